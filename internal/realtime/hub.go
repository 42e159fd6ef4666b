package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/actionable-app/actionable/pkg/logger"
	"github.com/actionable-app/actionable/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize    = 1 << 16 // control frames only, keep it small
	defaultBufferSize = 64
)

// Message is the JSON envelope delivered to subscribers.
type Message struct {
	Stream string `json:"stream"`
	Event  string `json:"event"`
	Data   any    `json:"data,omitempty"`
}

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// Hub fans task and session events out to each user's connected devices.
type Hub struct {
	mu       sync.RWMutex
	byUser   map[string]map[*connection]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		byUser: make(map[string]map[*connection]struct{}),
		log:    logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the request to a WebSocket and pumps events until the client
// disconnects. The initial stream subscriptions come from the request; clients
// can adjust them later with subscribe/unsubscribe control messages.
func (h *Hub) Serve(userID string, streams []string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newConnection(h, conn, userID)
	client.subscribe(streams)
	h.register(client)

	go client.writeLoop()
	client.readLoop()
}

// PublishTaskChange delivers a task change event to every device of the user
// subscribed to the tasks stream.
func (h *Hub) PublishTaskChange(userID string, event ChangeEvent) {
	h.publish(userID, StreamTasks, string(event.Op), event)
	metrics.RealtimeEvents.WithLabelValues(StreamTasks, string(event.Op)).Inc()
}

// PublishSessionEvent notifies the user's devices about session lifecycle
// changes, such as a remote sign-out.
func (h *Hub) PublishSessionEvent(userID, event string, data any) {
	h.publish(userID, StreamSessions, event, data)
	metrics.RealtimeEvents.WithLabelValues(StreamSessions, event).Inc()
}

func (h *Hub) publish(userID, stream, event string, data any) {
	if userID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.byUser[userID] {
		if !client.subscribed(stream) {
			continue
		}
		h.enqueue(client, Message{Stream: stream, Event: event, Data: data})
	}
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.byUser[client.userID] == nil {
		h.byUser[client.userID] = make(map[*connection]struct{})
	}
	h.byUser[client.userID][client] = struct{}{}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.byUser[client.userID]
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.byUser, client.userID)
	}
}

func (h *Hub) enqueue(client *connection, message Message) {
	select {
	case client.send <- message:
	default:
		h.log.Warn("dropping slow realtime client", zap.String("user_id", client.userID))
		client.close()
	}
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	userID string

	mu      sync.Mutex
	streams map[string]struct{}

	send chan Message
	once sync.Once
}

func newConnection(hub *Hub, conn *websocket.Conn, userID string) *connection {
	return &connection{
		hub:     hub,
		socket:  conn,
		userID:  userID,
		streams: make(map[string]struct{}),
		send:    make(chan Message, defaultBufferSize),
	}
}

func (c *connection) subscribe(streams []string) {
	known := KnownStreams()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stream := range streams {
		stream = normalizeStream(stream)
		if _, ok := known[stream]; !ok {
			continue
		}
		c.streams[stream] = struct{}{}
	}
}

func (c *connection) unsubscribe(streams []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stream := range streams {
		delete(c.streams, normalizeStream(stream))
	}
}

func (c *connection) subscribed(stream string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.streams[stream]
	return ok
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			break
		}
		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			c.hub.log.Debug("invalid control payload", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}

		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "subscribe":
			c.subscribe(ctrl.Streams)
		case "unsubscribe":
			c.unsubscribe(ctrl.Streams)
		case "ping":
			c.send <- Message{Event: "pong"}
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.Contains(host, "://") {
		if parsed, err := http.NewRequest(http.MethodGet, host, nil); err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}
