package sync

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"synccode/internal/core/domain"
	"synccode/pkg/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(config.DefaultConfig(), nil, zaptest.NewLogger(t).Sugar())
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, roomID, clientID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?room=" + roomID + "&client=" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandleWebSocket_MissingParamsRejected(t *testing.T) {
	_, server := newTestHub(t)

	resp, err := http.Get(server.URL + "/?room=interview-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleWebSocket_JoinerReceivesSnapshot(t *testing.T) {
	hub, server := newTestHub(t)

	channel := hub.Channel("interview-1", "alice")
	channel.SetLanguage("javascript")
	lease := channel.StartRun()
	require.NoError(t, channel.CompleteRun(lease, domain.ExecutionResult{Stdout: "done\n"}))

	conn := dial(t, server, "interview-1", "bob")

	msg := readMessage(t, conn)
	require.Equal(t, "snapshot", msg.Type)
	assert.Equal(t, "javascript", msg.Keys[KeyLanguage])
	assert.Equal(t, string(domain.RunCompleted), msg.Keys[KeyStatus])
	require.Len(t, msg.Log, 1)
	assert.Equal(t, "done\n", msg.Log[0].Stdout)
	assert.Equal(t, "alice", msg.Log[0].TriggeredBy)
}

func TestHandleWebSocket_SetReachesOtherClients(t *testing.T) {
	_, server := newTestHub(t)

	sender := dial(t, server, "interview-1", "alice")
	receiver := dial(t, server, "interview-1", "bob")
	readMessage(t, sender)   // snapshot
	readMessage(t, receiver) // snapshot

	require.NoError(t, sender.WriteJSON(Message{Type: "set", Key: KeyLanguage, Value: "python"}))

	msg := readMessage(t, receiver)
	assert.Equal(t, "set", msg.Type)
	assert.Equal(t, KeyLanguage, msg.Key)
	assert.Equal(t, "python", msg.Value)

	// The writer observes its own write as well.
	msg = readMessage(t, sender)
	assert.Equal(t, "set", msg.Type)
	assert.Equal(t, "python", msg.Value)
}

func TestHandleWebSocket_ChannelWritesReachClients(t *testing.T) {
	hub, server := newTestHub(t)

	conn := dial(t, server, "interview-1", "bob")
	readMessage(t, conn) // snapshot

	channel := hub.Channel("interview-1", "alice")
	lease := channel.StartRun()

	seen := map[string]string{}
	for i := 0; i < 4; i++ {
		msg := readMessage(t, conn)
		require.Equal(t, "set", msg.Type)
		seen[msg.Key] = msg.Value
	}
	assert.Equal(t, string(domain.RunRunning), seen[KeyStatus])
	assert.Equal(t, "alice", seen[KeyTriggeredBy])
	assert.Equal(t, lease, seen[KeyLease])
}

func TestHandleWebSocket_LogAppendBroadcast(t *testing.T) {
	_, server := newTestHub(t)

	sender := dial(t, server, "interview-1", "alice")
	receiver := dial(t, server, "interview-1", "bob")
	readMessage(t, sender)
	readMessage(t, receiver)

	entry := domain.ExecutionResult{Stdout: "hi\n", TriggeredBy: "alice"}
	require.NoError(t, sender.WriteJSON(Message{Type: "log", Entry: &entry}))

	msg := readMessage(t, receiver)
	require.Equal(t, "log", msg.Type)
	require.NotNil(t, msg.Entry)
	assert.Equal(t, "hi\n", msg.Entry.Stdout)
	assert.Equal(t, "alice", msg.Entry.TriggeredBy)
}

func TestHandleWebSocket_AwarenessBroadcastAndRemoval(t *testing.T) {
	_, server := newTestHub(t)

	alice := dial(t, server, "interview-1", "alice")
	bob := dial(t, server, "interview-1", "bob")
	readMessage(t, alice)
	readMessage(t, bob)

	require.NoError(t, alice.WriteJSON(Message{
		Type:  "awareness",
		State: []byte(`{"cursor":{"line":3}}`),
	}))

	msg := readMessage(t, bob)
	require.Equal(t, "awareness", msg.Type)
	assert.Equal(t, "alice", msg.ClientID)
	assert.JSONEq(t, `{"cursor":{"line":3}}`, string(msg.State))

	alice.Close()

	msg = readMessage(t, bob)
	require.Equal(t, "awareness", msg.Type)
	assert.Equal(t, "alice", msg.ClientID)
	assert.Nil(t, msg.State)
}

func TestHandleWebSocket_UnknownMessageType(t *testing.T) {
	_, server := newTestHub(t)

	conn := dial(t, server, "interview-1", "alice")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "subscribe"}))

	msg := readMessage(t, conn)
	require.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "unknown message type")
}

func TestHandleWebSocket_MessageRateLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 1
	cfg.RateLimiting.WebSocket.Burst = 1

	hub := NewHub(cfg, nil, zaptest.NewLogger(t).Sugar())
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)

	conn := dial(t, server, "interview-1", "alice")
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "set", Key: "k", Value: "1"}))
	require.NoError(t, conn.WriteJSON(Message{Type: "set", Key: "k", Value: "2"}))

	sawLimit := false
	for i := 0; i < 3; i++ {
		msg := readMessage(t, conn)
		if msg.Type == "error" && strings.Contains(msg.Error, "rate limit") {
			sawLimit = true
			break
		}
	}
	assert.True(t, sawLimit)
}

func TestApplyRemote_ReachesLocalClients(t *testing.T) {
	hub, server := newTestHub(t)

	conn := dial(t, server, "interview-1", "bob")
	readMessage(t, conn)

	hub.ApplyRemoteSet("interview-1", KeyLanguage, "javascript")

	msg := readMessage(t, conn)
	assert.Equal(t, "set", msg.Type)
	assert.Equal(t, KeyLanguage, msg.Key)
	assert.Equal(t, "javascript", msg.Value)

	hub.ApplyRemoteLog("interview-1", domain.ExecutionResult{Stdout: "remote\n"})

	msg = readMessage(t, conn)
	require.Equal(t, "log", msg.Type)
	require.NotNil(t, msg.Entry)
	assert.Equal(t, "remote\n", msg.Entry.Stdout)
}

func TestCounts(t *testing.T) {
	hub, server := newTestHub(t)

	assert.Equal(t, 0, hub.RoomCount())
	assert.Equal(t, 0, hub.ClientCount())

	conn := dial(t, server, "interview-1", "alice")
	readMessage(t, conn)
	dialed := dial(t, server, "interview-2", "bob")
	readMessage(t, dialed)

	assert.Equal(t, 2, hub.RoomCount())
	assert.Equal(t, 2, hub.ClientCount())
}
