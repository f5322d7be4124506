package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/corrosion/corrosion-server-go/internal/config"
	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// wsMessage is the envelope for every server-to-client frame.
type wsMessage struct {
	Type   string `json:"type"`
	GameID string `json:"game_id,omitempty"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Client is one WebSocket connection bound to a player seat.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	gameID   string
	playerID game.ID
}

type directMessage struct {
	client  *Client
	payload []byte
}

// Hub fans redacted game views out to connected players and routes their
// action frames to the engine. All client bookkeeping happens on the Run
// goroutine.
type Hub struct {
	engine       *game.Engine
	tokens       *SeatTokens
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	updates    chan string
	closing    chan string
	direct     chan directMessage
	done       chan struct{}
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(engine *game.Engine, tokens *SeatTokens, cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		engine:       engine,
		tokens:       tokens,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		updates:    make(chan string, sendBuffer),
		closing:    make(chan string),
		direct:     make(chan directMessage, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for gameID := range h.clients {
				h.dropGame(gameID)
			}
			return

		case client := <-h.register:
			if h.clients[client.gameID] == nil {
				h.clients[client.gameID] = make(map[*Client]bool)
			}
			h.clients[client.gameID][client] = true
			h.pushView(client)
			h.logger.Debug("websocket client registered",
				zap.String("game_id", client.gameID),
				zap.Uint64("player_id", uint64(client.playerID)),
			)

		case client := <-h.unregister:
			if h.clients[client.gameID][client] {
				h.remove(client)
				h.logger.Debug("websocket client unregistered",
					zap.String("game_id", client.gameID),
					zap.Uint64("player_id", uint64(client.playerID)),
				)
			}

		case gameID := <-h.updates:
			for client := range h.clients[gameID] {
				h.pushView(client)
			}

		case gameID := <-h.closing:
			h.dropGame(gameID)

		case msg := <-h.direct:
			if h.clients[msg.client.gameID][msg.client] {
				h.deliver(msg.client, msg.payload)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients[client.gameID], client)
	if len(h.clients[client.gameID]) == 0 {
		delete(h.clients, client.gameID)
	}
	close(client.send)
}

func (h *Hub) dropGame(gameID string) {
	for client := range h.clients[gameID] {
		h.remove(client)
	}
}

// deliver queues a frame, dropping the client if its buffer is full.
func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.logger.Warn("websocket send buffer full, dropping client",
			zap.String("game_id", client.gameID),
			zap.Uint64("player_id", uint64(client.playerID)),
		)
		h.remove(client)
	}
}

func (h *Hub) pushView(client *Client) {
	view, err := h.engine.View(client.gameID, client.playerID)
	if err != nil {
		h.deliver(client, encodeFrame(wsMessage{Type: "error", GameID: client.gameID, Error: err.Error()}))
		return
	}
	h.deliver(client, encodeFrame(wsMessage{
		Type:   "view",
		GameID: client.gameID,
		Data:   encodeView(client.gameID, view),
	}))
}

func encodeFrame(msg wsMessage) []byte {
	payload, err := json.Marshal(msg)
	if err != nil {
		payload, _ = json.Marshal(wsMessage{Type: "error", Error: "failed to encode frame"})
	}
	return payload
}

// Notify is a game.NotificationHandler pushing fresh views to every player
// connected to the notified game.
func (h *Hub) Notify(n game.Notification) {
	select {
	case h.updates <- n.GameID:
	case <-h.done:
	}
}

// CloseGame disconnects every client of a game.
func (h *Hub) CloseGame(gameID string) {
	select {
	case h.closing <- gameID:
	case <-h.done:
	}
}

func (h *Hub) reply(client *Client, msg wsMessage) {
	select {
	case h.direct <- directMessage{client: client, payload: encodeFrame(msg)}:
	case <-h.done:
	}
}

// ServeHTTP upgrades /ws?game=<id>&player=<id>&token=<seat token>.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	gameID := query.Get("game")
	if gameID == "" {
		http.Error(w, "missing game parameter", http.StatusBadRequest)
		return
	}
	rawPlayer, err := strconv.ParseUint(query.Get("player"), 10, 64)
	if err != nil || rawPlayer == 0 {
		http.Error(w, "invalid player parameter", http.StatusBadRequest)
		return
	}
	playerID := game.ID(rawPlayer)
	if !h.tokens.Verify(gameID, playerID, query.Get("token")) {
		http.Error(w, errUnauthenticated.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		gameID:   gameID,
		playerID: playerID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleFrame(client *Client, message []byte) {
	var fields map[string]any
	if err := json.Unmarshal(message, &fields); err != nil {
		h.reply(client, wsMessage{Type: "error", GameID: client.gameID, Error: "malformed frame"})
		return
	}
	kind, _ := fields["type"].(string)
	switch kind {
	case "action":
		actionFields, ok := fields["action"].(map[string]any)
		if !ok {
			h.reply(client, wsMessage{Type: "error", GameID: client.gameID, Error: "action must be an object"})
			return
		}
		action, err := decodeAction(actionFields)
		if err != nil {
			h.reply(client, wsMessage{Type: "error", GameID: client.gameID, Error: err.Error()})
			return
		}
		if err := h.engine.ProcessAction(context.Background(), client.gameID, client.playerID, action); err != nil {
			h.reply(client, wsMessage{Type: "rejected", GameID: client.gameID, Error: err.Error()})
		}
	case "view":
		h.reply(client, h.viewFrame(client))
	default:
		h.reply(client, wsMessage{Type: "error", GameID: client.gameID, Error: "unknown frame type"})
	}
}

func (h *Hub) viewFrame(client *Client) wsMessage {
	view, err := h.engine.View(client.gameID, client.playerID)
	if err != nil {
		return wsMessage{Type: "error", GameID: client.gameID, Error: err.Error()}
	}
	return wsMessage{Type: "view", GameID: client.gameID, Data: encodeView(client.gameID, view)}
}

// readPump reads frames from the connection until it fails.
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
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.hub.handleFrame(c, message)
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
