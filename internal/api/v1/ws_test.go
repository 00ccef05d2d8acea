package v1

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The event feed needs a real socket, so the shared test app is additionally
// served on a loopback listener the first time a feed test runs.
var (
	wsListenOnce sync.Once
	wsAddr       string
)

func wsServerAddr(t *testing.T) string {
	t.Helper()
	wsListenOnce.Do(func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		wsAddr = ln.Addr().String()
		go func() {
			_ = testApp.Listener(ln)
		}()
	})
	return wsAddr
}

func dialTaskFeed(t *testing.T, bearer string) *websocket.Conn {
	t.Helper()

	url := "ws://" + wsServerAddr(t) + "/api/v1/ws/tasks"
	header := http.Header{"Authorization": {"Bearer " + bearer}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	// Let the hub pick up the registration before any event is published.
	time.Sleep(100 * time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestTaskFeedDeliversLifecycleEvents(t *testing.T) {
	bearer, _ := registerUser(t, "feedowner")
	conn := dialTaskFeed(t, bearer)

	id := createTask(t, bearer, "Watched task", "")
	ev := readEvent(t, conn)
	assert.Equal(t, "task.created", ev["type"])
	task, isMap := ev["task"].(map[string]interface{})
	require.True(t, isMap)
	assert.Equal(t, id, task["_id"])

	resp := doJSON(t, "PATCH", "/api/v1/tasks/"+id, bearer, map[string]string{"done": "true"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ev = readEvent(t, conn)
	assert.Equal(t, "task.updated", ev["type"])
	assert.Equal(t, true, ev["task"].(map[string]interface{})["done"])

	resp = doJSON(t, "DELETE", "/api/v1/tasks/"+id, bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ev = readEvent(t, conn)
	assert.Equal(t, "task.deleted", ev["type"])
}

func TestTaskFeedIsScopedToOwner(t *testing.T) {
	owner, _ := registerUser(t, "feedalice")
	bystander, _ := registerUser(t, "feedbob")

	ownerConn := dialTaskFeed(t, owner)
	bystanderConn := dialTaskFeed(t, bystander)

	createTask(t, owner, "Only mine", "")

	ev := readEvent(t, ownerConn)
	assert.Equal(t, "task.created", ev["type"])

	require.NoError(t, bystanderConn.SetReadDeadline(time.Now().Add(500*time.Millisecond)))
	_, _, err := bystanderConn.ReadMessage()
	assert.Error(t, err, "another user's events must not reach this connection")
}

func TestTaskFeedRequiresUpgrade(t *testing.T) {
	bearer, _ := registerUser(t, "feedplain")

	resp := doJSON(t, "GET", "/api/v1/ws/tasks", bearer, nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
