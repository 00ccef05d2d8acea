package v1

import (
	"taskhub/internal/api/v1/handlers"
	"taskhub/internal/middleware"
	ws "taskhub/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes mounts the full API surface under /api/v1. auth is the
// bearer-token gate; every route taking an :id also passes the hex-id guard
// before any handler runs.
func RegisterRoutes(app *fiber.App, h *handlers.Handler, hub *ws.Hub, auth fiber.Handler) {
	api := app.Group("/api/v1")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", h.Register)
	authRoutes.Post("/login", h.Login)

	userRoutes := api.Group("/users", auth)
	userRoutes.Get("/me", h.Me)
	userRoutes.Put("/", h.UpdateProfile)
	userRoutes.Delete("/photo", h.DeleteUserPhoto)

	taskRoutes := api.Group("/tasks", auth)
	taskRoutes.Get("/", h.ListTasks)
	taskRoutes.Get("/all", h.ListTasksPage)
	taskRoutes.Get("/:id", middleware.RequireHexID("id"), h.GetTask)
	taskRoutes.Post("/", h.CreateTask)
	taskRoutes.Put("/:id/files", middleware.RequireHexID("id"), h.RemoveTaskFile)
	taskRoutes.Put("/:id", middleware.RequireHexID("id"), h.UpdateTask)
	taskRoutes.Patch("/:id", middleware.RequireHexID("id"), h.PatchTask)
	taskRoutes.Delete("/:id", middleware.RequireHexID("id"), h.DeleteTask)

	// Event feed: one socket per connection, events routed by owner.
	wsRoutes := api.Group("/ws", auth, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	wsRoutes.Get("/tasks", websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(middleware.LocalsUserID).(string)
		client := &ws.Client{UserID: userID, Conn: conn}
		hub.Register <- client
		defer func() {
			hub.Unregister <- client
		}()
		for {
			// The feed is one-way; reads only detect the peer going away.
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}))
}
