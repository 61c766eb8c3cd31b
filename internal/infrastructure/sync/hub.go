package sync

import (
	"encoding/json"
	"fmt"
	"net/http"
	gosync "sync"
	"time"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
	"synccode/pkg/config"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Bridge fans room mutations out to other instances. The hub publishes
// every local mutation; mutations arriving from the bridge are applied
// through ApplyRemoteSet/ApplyRemoteLog and are not re-published.
type Bridge interface {
	PublishSet(roomID domain.RoomID, key, value string) error
	PublishLog(roomID domain.RoomID, result domain.ExecutionResult) error
}

// Message is the wire format between hub and clients.
type Message struct {
	Type      string                     `json:"type"`
	Key       string                     `json:"key,omitempty"`
	Value     string                     `json:"value,omitempty"`
	Entry     *domain.ExecutionResult    `json:"entry,omitempty"`
	ClientID  string                     `json:"clientId,omitempty"`
	State     json.RawMessage            `json:"state,omitempty"`
	Keys      map[string]string          `json:"keys,omitempty"`
	Log       []domain.ExecutionResult   `json:"log,omitempty"`
	Awareness map[string]json.RawMessage `json:"awareness,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

type client struct {
	id      string
	conn    *websocket.Conn
	limiter *rate.Limiter
	mu      gosync.Mutex
}

func (c *client) send(msg Message, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(msg)
}

type room struct {
	id    domain.RoomID
	state *MemoryMap
	log   *MemoryLog

	// Outward-facing views that also publish through the bridge. All
	// local mutations go through these; ApplyRemote* writes to the
	// inner state directly so remote mutations are never re-published.
	shared  ports.SharedMap
	results ports.ResultLog

	clients   map[string]*client
	awareness map[string]json.RawMessage
	mu        gosync.RWMutex
}

// Hub relays the shared room record over WebSocket: last-writer-wins keys,
// the append-only result log, and ephemeral per-client awareness states.
// Joiners receive a full snapshot before any incremental updates.
type Hub struct {
	rooms map[domain.RoomID]*room
	mu    gosync.RWMutex

	bridge Bridge

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	messagesPerSecond float64
	burst             int
	maxMessageSize    int64

	logger *zap.SugaredLogger
}

func NewHub(cfg *config.Config, bridge Bridge, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:             make(map[domain.RoomID]*room),
		bridge:            bridge,
		pingInterval:      cfg.Sync.PingInterval,
		pongTimeout:       cfg.Sync.PongTimeout,
		writeTimeout:      cfg.Sync.WriteTimeout,
		messagesPerSecond: cfg.RateLimiting.WebSocket.MessagesPerSecond,
		burst:             cfg.RateLimiting.WebSocket.Burst,
		maxMessageSize:    cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		logger:            logger,
	}
}

func (h *Hub) getRoom(roomID domain.RoomID) *room {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if ok {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		return r
	}

	r = &room{
		id:        roomID,
		state:     NewMemoryMap(),
		log:       NewMemoryLog(),
		clients:   make(map[string]*client),
		awareness: make(map[string]json.RawMessage),
	}
	r.shared = &bridgedMap{roomID: roomID, inner: r.state, bridge: h.bridge}
	r.results = &bridgedLog{roomID: roomID, inner: r.log, bridge: h.bridge}

	// Local fanout rides on the substrate subscriptions, so every write
	// path (WebSocket, HTTP handlers, bridge) reaches connected clients.
	r.state.Subscribe(func(key, value string) {
		h.broadcast(r, Message{Type: "set", Key: key, Value: value})
	})
	r.log.Subscribe(func(result domain.ExecutionResult) {
		entry := result
		h.broadcast(r, Message{Type: "log", Entry: &entry})
	})

	h.rooms[roomID] = r
	h.logger.Infow("room created", "room_id", roomID)
	return r
}

// Channel opens the execution channel of a room on behalf of identity.
// Writes made through it replicate to every participant.
func (h *Hub) Channel(roomID domain.RoomID, identity string) *ExecutionChannel {
	r := h.getRoom(roomID)
	return NewExecutionChannel(r.shared, r.results, identity, h.logger)
}

// ApplyRemoteSet applies a key write that originated on another instance.
func (h *Hub) ApplyRemoteSet(roomID domain.RoomID, key, value string) {
	h.getRoom(roomID).state.Set(key, value)
}

// ApplyRemoteLog applies a log append that originated on another instance.
func (h *Hub) ApplyRemoteLog(roomID domain.RoomID, result domain.ExecutionResult) {
	h.getRoom(roomID).log.Append(result)
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(r.URL.Query().Get("room"))
	clientID := r.URL.Query().Get("client")
	if roomID == "" || clientID == "" {
		http.Error(w, "room and client query parameters are required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	rm := h.getRoom(roomID)

	cl := &client{
		id:      clientID,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(h.messagesPerSecond), h.burst),
	}

	rm.mu.Lock()
	existing, isReconnect := rm.clients[clientID]
	if isReconnect && existing != nil {
		existing.conn.Close()
		h.logger.Infow("closing old connection for reconnecting client", "room_id", roomID, "client_id", clientID)
	}
	rm.clients[clientID] = cl
	rm.mu.Unlock()

	h.logger.Infow("client connected", "room_id", roomID, "client_id", clientID, "reconnect", isReconnect)

	// A joiner gets the full record before any incremental updates, so it
	// never has to reconstruct history from transitions it missed.
	if err := cl.send(h.snapshot(rm), h.writeTimeout); err != nil {
		h.logger.Infow("error sending snapshot", "room_id", roomID, "client_id", clientID, "error", err)
		h.removeClient(rm, cl)
		return
	}

	conn.SetReadLimit(h.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(h.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan Message, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
			messageChan <- msg
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			if !cl.limiter.Allow() {
				cl.send(Message{Type: "error", Error: "message rate limit exceeded"}, h.writeTimeout)
				continue
			}
			if err := h.handleMessage(rm, cl, msg); err != nil {
				h.logger.Infow("error handling message", "room_id", roomID, "client_id", clientID, "error", err)
				cl.send(Message{Type: "error", Error: err.Error()}, h.writeTimeout)
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Infow("error sending ping", "room_id", roomID, "client_id", clientID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Infow("error reading message", "room_id", roomID, "client_id", clientID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	h.removeClient(rm, cl)
	h.logger.Infow("client disconnected", "room_id", roomID, "client_id", clientID)
}

func (h *Hub) handleMessage(rm *room, cl *client, msg Message) error {
	switch msg.Type {
	case "set":
		if msg.Key == "" {
			return fmt.Errorf("key is required")
		}
		rm.shared.Set(msg.Key, msg.Value)
		return nil

	case "log":
		if msg.Entry == nil {
			return fmt.Errorf("entry is required")
		}
		rm.results.Append(*msg.Entry)
		return nil

	case "awareness":
		rm.mu.Lock()
		if msg.State == nil {
			delete(rm.awareness, cl.id)
		} else {
			rm.awareness[cl.id] = msg.State
		}
		rm.mu.Unlock()
		h.broadcast(rm, Message{Type: "awareness", ClientID: cl.id, State: msg.State})
		return nil

	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (h *Hub) snapshot(rm *room) Message {
	rm.mu.RLock()
	awareness := make(map[string]json.RawMessage, len(rm.awareness))
	for id, state := range rm.awareness {
		awareness[id] = state
	}
	rm.mu.RUnlock()

	return Message{
		Type:      "snapshot",
		Keys:      rm.state.All(),
		Log:       rm.log.Entries(),
		Awareness: awareness,
	}
}

func (h *Hub) broadcast(rm *room, msg Message) {
	rm.mu.RLock()
	clients := make([]*client, 0, len(rm.clients))
	for _, cl := range rm.clients {
		clients = append(clients, cl)
	}
	rm.mu.RUnlock()

	for _, cl := range clients {
		if err := cl.send(msg, h.writeTimeout); err != nil {
			h.logger.Infow("error broadcasting to client", "room_id", rm.id, "client_id", cl.id, "error", err)
		}
	}
}

func (h *Hub) removeClient(rm *room, cl *client) {
	rm.mu.Lock()
	if current, ok := rm.clients[cl.id]; ok && current == cl {
		delete(rm.clients, cl.id)
	}
	_, hadAwareness := rm.awareness[cl.id]
	delete(rm.awareness, cl.id)
	rm.mu.Unlock()

	if hadAwareness {
		h.broadcast(rm, Message{Type: "awareness", ClientID: cl.id})
	}
}

// RoomCount reports the number of rooms the hub has materialized.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ClientCount reports the number of connected clients across all rooms.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, rm := range h.rooms {
		rm.mu.RLock()
		total += len(rm.clients)
		rm.mu.RUnlock()
	}
	return total
}

// bridgedMap replicates writes through the bridge in addition to the local
// substrate. Reads and subscriptions are local.
type bridgedMap struct {
	roomID domain.RoomID
	inner  *MemoryMap
	bridge Bridge
}

func (m *bridgedMap) Get(key string) (string, bool) { return m.inner.Get(key) }

func (m *bridgedMap) Set(key, value string) {
	m.inner.Set(key, value)
	if m.bridge != nil {
		m.bridge.PublishSet(m.roomID, key, value)
	}
}

func (m *bridgedMap) Subscribe(fn func(key, value string)) func() {
	return m.inner.Subscribe(fn)
}

type bridgedLog struct {
	roomID domain.RoomID
	inner  *MemoryLog
	bridge Bridge
}

func (l *bridgedLog) Append(result domain.ExecutionResult) {
	l.inner.Append(result)
	if l.bridge != nil {
		l.bridge.PublishLog(l.roomID, result)
	}
}

func (l *bridgedLog) Entries() []domain.ExecutionResult { return l.inner.Entries() }

func (l *bridgedLog) Subscribe(fn func(result domain.ExecutionResult)) func() {
	return l.inner.Subscribe(fn)
}

var (
	_ ports.SharedMap = (*bridgedMap)(nil)
	_ ports.ResultLog = (*bridgedLog)(nil)
)
