// Package realtime pushes core.Event values to the websocket clients of a user.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core"
)

const (
	EventConnected = "connected"

	maxMessageSize = 512
)

var ErrUnknownNamespace = errors.New("unknown realtime namespace")

type client struct {
	hub       *Hub
	conn      *websocket.Conn
	namespace string
	userID    string
	send      chan []byte
	closed    bool // guarded by hub.mu
}

// Hub fans events out per namespace (core.ChannelFarm, core.ChannelPet) & per user.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[string]map[*client]struct{} // {namespace: {userID: {client}}}
	closed   bool
	upgrader websocket.Upgrader
	conf     core.RealtimeConfig
	logger   core.Logger
}

var _ core.Publisher = (*Hub)(nil) // interface compliance check

func NewHub(conf *core.Config, logger core.Logger) *Hub {
	return &Hub{
		clients: map[string]map[string]map[*client]struct{}{
			core.ChannelFarm: {},
			core.ChannelPet:  {},
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // authenticated by JWT
		},
		conf:   conf.Realtime,
		logger: logger,
	}
}

// Serve upgrades the request & pumps events to it until the connection drops.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, namespace, userID string) error {
	h.mu.RLock()
	_, ok := h.clients[namespace]
	closed := h.closed
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownNamespace
	}
	if closed {
		return core.NewShutdownError("realtime hub closed")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil // the upgrader already replied
	}
	c := &client{
		hub:       h,
		conn:      conn,
		namespace: namespace,
		userID:    userID,
		send:      make(chan []byte, h.conf.SendBuffer),
	}
	if !h.register(c) {
		_ = conn.Close()
		return nil
	}
	h.deliver(c, core.NewEvent(namespace, EventConnected, userID, nil))

	go c.writePump()
	c.readPump()
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	users := h.clients[c.namespace]
	if users[c.userID] == nil {
		users[c.userID] = make(map[*client]struct{})
	}
	users[c.userID][c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if users, ok := h.clients[c.namespace]; ok {
		delete(users[c.userID], c)
		if len(users[c.userID]) == 0 {
			delete(users, c.userID)
		}
	}
	c.close()
}

// Publish enqueues the event to every client of its user in its namespace.
// It never blocks: a client whose buffer is full is dropped.
func (h *Hub) Publish(evt core.Event) {
	if h.Count(evt.Channel, evt.UserID) == 0 {
		return
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error(fmt.Sprintf("realtime.Publish(%s): %v", evt.Type, err), err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients[evt.Channel][evt.UserID] {
		if !c.enqueue(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.drop(slow...)
}

func (h *Hub) deliver(c *client, evt core.Event) {
	msg, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error(fmt.Sprintf("realtime.deliver(%s): %v", evt.Type, err), err)
		return
	}
	h.mu.RLock()
	ok := c.enqueue(msg)
	h.mu.RUnlock()
	if !ok {
		h.drop(c)
	}
}

func (h *Hub) drop(clients ...*client) {
	for _, c := range clients {
		h.logger.Warn(fmt.Sprintf("realtime: dropping slow %s client of %s", c.namespace, c.userID))
		h.unregister(c)
	}
}

// Count returns how many clients the user has connected in `namespace`.
func (h *Hub) Count(namespace, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[namespace][userID])
}

// Close disconnects every client; later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, users := range h.clients {
		for userID, clients := range users {
			for c := range clients {
				c.close()
			}
			delete(users, userID)
		}
	}
}

// enqueue reports false if the buffer is full. The caller holds hub.mu for reading.
func (c *client) enqueue(msg []byte) bool {
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close closes `send` once. The caller holds hub.mu for writing.
func (c *client) close() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump discards incoming messages; pongs extend the read deadline & any read error unregisters.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	pongWait := c.hub.conf.PingInterval * 10 / 9
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug(fmt.Sprintf("realtime: %s client of %s: %v", c.namespace, c.userID, err))
			}
			return
		}
	}
}

// writePump writes queued messages & pings until `send` is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.conf.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.conf.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.conf.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
