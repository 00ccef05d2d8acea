package main

import (
	"context"
	"fmt"
	"time"

	"taskhub/configs"
	v1 "taskhub/internal/api/v1"
	"taskhub/internal/api/v1/handlers"
	"taskhub/internal/media"
	"taskhub/internal/middleware"
	"taskhub/internal/repository"
	"taskhub/internal/token"
	ws "taskhub/internal/websocket"
	"taskhub/pkg/database"
	"taskhub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	ctx := context.Background()
	cfg := configs.LoadConfig()

	db := database.ConnectDB(cfg)
	defer db.Close()
	repository.CreateTableIfNotExists(db)
	logger.SystemLogger.Info("Database connected")

	redisClient := database.ConnectRedis(ctx, cfg)
	defer redisClient.Close()

	mediaStore, err := media.NewS3Store(ctx, cfg)
	if err != nil {
		logger.ErrorLogger.Error("Media store initialization failed", zap.Error(err))
		logger.SyncLoggers()
		panic(err)
	}

	users := repository.NewUserRepository(db)
	tasks := repository.NewTaskRepository(db)
	tokens := token.NewService(cfg.JWTSecret, cfg.JWTExpiry)

	hub := ws.NewHub()
	go hub.Run()

	h := handlers.New(users, tasks, redisClient, mediaStore, tokens, hub)

	app := fiber.New(fiber.Config{
		BodyLimit: media.MaxFileSize * 21,
	})

	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	v1.RegisterRoutes(app, h, hub, middleware.Authenticate(tokens, users))

	addr := fmt.Sprintf(":%d", cfg.AppPort)
	logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
