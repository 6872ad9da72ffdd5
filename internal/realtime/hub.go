package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"direct-chat/internal/domain"
)

const (
	EventNewMessage  = "newMessage"
	EventOnlineUsers = "getOnlineUsers"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Event is the envelope of every frame written to a client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessagePayload is the wire form of a pushed message.
type MessagePayload struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Hub owns the live websocket connections of this process and delivers
// events to them using the Presence table for user lookups.
type Hub struct {
	presence Presence
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*conn
}

type conn struct {
	id     string
	userID int64
	ws     *websocket.Conn
	send   chan []byte
}

func NewHub(presence Presence, logger *logrus.Logger) *Hub {
	if presence == nil {
		presence = NewMemoryPresence()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		presence: presence,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the auth cookie is SameSite=Strict, so cross-site pages cannot authenticate here
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// Serve upgrades the request and blocks until the client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID int64) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Warn("websocket upgrade failed")
		return
	}

	c := &conn{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
	}

	ctx := context.WithoutCancel(r.Context())
	if err := h.register(ctx, c); err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("register connection")
		ws.Close()
		return
	}
	h.broadcastOnline(ctx)

	go c.writePump(h.logger)
	c.readPump(h.logger)

	h.unregister(ctx, c)
	h.broadcastOnline(ctx)
}

func (h *Hub) register(ctx context.Context, c *conn) error {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	if err := h.presence.Bind(ctx, c.userID, c.id); err != nil {
		h.mu.Lock()
		delete(h.conns, c.id)
		h.mu.Unlock()
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": c.userID,
		"conn_id": c.id,
	}).Info("client connected")
	return nil
}

func (h *Hub) unregister(ctx context.Context, c *conn) {
	if err := h.presence.Release(ctx, c.userID, c.id); err != nil {
		h.logger.WithError(err).WithField("user_id", c.userID).Warn("release presence")
	}

	h.mu.Lock()
	if _, ok := h.conns[c.id]; ok {
		delete(h.conns, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"user_id": c.userID,
		"conn_id": c.id,
	}).Info("client disconnected")
}

// Push delivers ev to the connection bound to userID. It reports false when
// the user is offline, bound to another process, or too slow to keep up.
func (h *Hub) Push(ctx context.Context, userID int64, ev Event) bool {
	connID, ok, err := h.presence.Lookup(ctx, userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Warn("presence lookup")
		return false
	}
	if !ok {
		return false
	}

	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).WithField("event", ev.Type).Error("marshal event")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	return c.enqueue(data)
}

// NotifyMessage pushes msg to its receiver.
func (h *Hub) NotifyMessage(ctx context.Context, msg domain.Message) bool {
	delivered := h.Push(ctx, msg.ReceiverID, Event{
		Type: EventNewMessage,
		Data: MessagePayload{
			ID:         msg.ID,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			Message:    msg.Body,
			CreatedAt:  msg.CreatedAt,
		},
	})
	h.logger.WithFields(logrus.Fields{
		"message_id":  msg.ID,
		"receiver_id": msg.ReceiverID,
		"delivered":   delivered,
	}).Debug("message push")
	return delivered
}

func (h *Hub) broadcastOnline(ctx context.Context) {
	online, err := h.presence.Online(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("list online users")
		return
	}
	data, err := json.Marshal(Event{Type: EventOnlineUsers, Data: online})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.enqueue(data)
	}
}

// Close disconnects every client; their read pumps then unregister them.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.ws.Close()
	}
}

// enqueue must be called with the hub lock held so send is not closed underneath.
func (c *conn) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump drains client frames so control messages are processed; clients
// never send application data over this channel.
func (c *conn) readPump(logger *logrus.Logger) {
	defer c.ws.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).WithField("conn_id", c.id).Debug("read")
			}
			return
		}
	}
}

func (c *conn) writePump(logger *logrus.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.WithError(err).WithField("conn_id", c.id).Debug("write")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
