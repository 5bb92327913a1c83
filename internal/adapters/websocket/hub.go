package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/core/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errHubStopped = errors.New("referral hub stopped")

// Subscriber identifies a connected supervisor and the village it watches ("" = all)
type Subscriber struct {
	UserID  string
	Role    string
	Village string
}

// Client represents a websocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	sub  Subscriber
}

// ReferralMessage is the frame pushed to supervisors
type ReferralMessage struct {
	Type     string                `json:"type"`
	Referral *domain.ReferralEvent `json:"referral"`
}

// Hub maintains the set of connected supervisors and pushes referrals to them
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			connectedSupervisors.Set(float64(total))
			h.logger.Info("supervisor connected",
				zap.String("user_id", client.sub.UserID),
				zap.String("village", client.sub.Village),
				zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			total := len(h.clients)
			h.mu.Unlock()
			connectedSupervisors.Set(float64(total))

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			connectedSupervisors.Set(0)
			return
		}
	}
}

// removeLocked drops a client; callers hold mu
func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// BroadcastReferral sends the event to every supervisor watching its village.
// Slow clients whose buffer is full are disconnected.
func (h *Hub) BroadcastReferral(event *domain.ReferralEvent) {
	message, err := json.Marshal(ReferralMessage{Type: "referral", Referral: event})
	if err != nil {
		h.logger.Error("failed to marshal referral frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		if !client.sub.Watches(event.Village) {
			continue
		}
		select {
		case client.send <- message:
			sent++
		default:
			h.logger.Warn("supervisor buffer full, disconnecting", zap.String("user_id", client.sub.UserID))
			h.removeLocked(client)
		}
	}
	referralsDelivered.Add(float64(sent))
	if sent == 0 {
		h.logger.Warn("no connected supervisors for referral",
			zap.String("referral_id", event.ID.String()),
			zap.String("village", event.Village))
		return
	}
	h.logger.Info("referral broadcast",
		zap.String("referral_id", event.ID.String()),
		zap.Int("recipients", sent))
}

// Watches reports whether the subscriber receives referrals from village
func (s Subscriber) Watches(village string) bool {
	return s.Village == "" || strings.EqualFold(s.Village, village)
}

// ConnectedCount returns the number of connected supervisors
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and attaches the connection to the hub
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sub Subscriber) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), sub: sub}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return errHubStopped
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump drains control frames until the connection closes
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket error", zap.String("user_id", c.sub.UserID), zap.Error(err))
			}
			return
		}
	}
}

// writePump pushes queued frames and pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
