package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quizfire/quizfire/internal/engine"
	"github.com/quizfire/quizfire/internal/game"
)

// ClientMessage is what a contestant device sends.
type ClientMessage struct {
	Type   string `json:"type"`             // "buzz", "wager", "answer"
	Amount int    `json:"amount,omitempty"` // wager only
	Text   string `json:"text,omitempty"`   // answer only
}

// ServerMessage is what the engine pushes back to contestant devices.
type ServerMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type buzzerClient struct {
	conn   *websocket.Conn
	send   chan ServerMessage
	done   chan struct{}
	closed bool // guarded by the hub mutex
	player *game.Player
}

// shutdownLocked tears the client down. The send channel is never
// closed; an outgoing pump that raced the teardown just drops its
// message. Caller holds the hub mutex.
func (c *buzzerClient) shutdownLocked() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	_ = c.conn.Close()
}

// Hub owns the buzzer transport: one websocket per contestant device,
// session tokens from join, and the engine-facing peripheral calls
// (acknowledge floor-holder, prompt answers, open wagers). The engine
// never initiates connections; devices connect to the hub.
type Hub struct {
	log    *slog.Logger
	engine *engine.Engine

	mu       sync.Mutex
	sessions map[string]uuid.UUID
	clients  map[uuid.UUID]*buzzerClient
}

func NewHub(logger *slog.Logger, eng *engine.Engine) *Hub {
	return &Hub{
		log:      logger,
		engine:   eng,
		sessions: make(map[string]uuid.UUID),
		clients:  make(map[uuid.UUID]*buzzerClient),
	}
}

// IssueToken mints an opaque session token for a joined player.
func (h *Hub) IssueToken(p *game.Player) string {
	token := uuid.NewString()
	h.mu.Lock()
	h.sessions[token] = p.ID
	h.mu.Unlock()
	return token
}

// PlayerForToken resolves a session token to its player.
func (h *Hub) PlayerForToken(token string) (*game.Player, bool) {
	h.mu.Lock()
	id, ok := h.sessions[token]
	h.mu.Unlock()
	if !ok {
		return nil, false
	}
	return h.engine.PlayerByID(id)
}

// HandleWS upgrades a contestant device connection. A reconnect for
// the same player replaces the previous connection.
func (h *Hub) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := h.PlayerForToken(r.URL.Query().Get("token"))
		if !ok {
			http.Error(w, "invalid session token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Error("websocket upgrade failed", "error", err)
			return
		}

		c := &buzzerClient{
			conn:   conn,
			send:   make(chan ServerMessage, 8),
			done:   make(chan struct{}),
			player: player,
		}

		h.mu.Lock()
		if old, ok := h.clients[player.ID]; ok {
			old.shutdownLocked()
		}
		h.clients[player.ID] = c
		h.mu.Unlock()

		h.log.Info("buzzer connected", "player", player.Name)

		go c.writePump()
		h.readPump(c)
	}
}

func (h *Hub) readPump(c *buzzerClient) {
	defer func() {
		h.mu.Lock()
		if h.clients[c.player.ID] == c {
			delete(h.clients, c.player.ID)
		}
		c.shutdownLocked()
		h.mu.Unlock()
		h.log.Info("buzzer disconnected", "player", c.player.Name)
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "buzz":
			if h.engine.Buzz(c.player) {
				c.trySend(ServerMessage{Type: "buzz_accepted"})
			} else {
				c.trySend(ServerMessage{Type: "buzz_rejected"})
			}
		case "wager":
			if err := h.engine.Wager(c.player, msg.Amount); err != nil {
				c.trySend(ServerMessage{Type: "wager_rejected", Message: err.Error()})
			} else {
				c.trySend(ServerMessage{Type: "wager_accepted"})
			}
		case "answer":
			h.engine.Answer(c.player, msg.Text)
			c.trySend(ServerMessage{Type: "answer_accepted"})
		default:
			// ignore unknown types
		}
	}
}

func (c *buzzerClient) writePump() {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// trySend queues a message without ever blocking the caller.
func (c *buzzerClient) trySend(msg ServerMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) broadcast(msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.trySend(msg)
	}
}

// Hub implements engine.BuzzerController. These are called with the
// engine lock held, so they must never block or call back in.

func (h *Hub) ActivateBuzzer(p *game.Player) {
	h.mu.Lock()
	c, ok := h.clients[p.ID]
	h.mu.Unlock()
	if ok {
		c.trySend(ServerMessage{Type: "you_have_the_floor"})
	}
}

func (h *Hub) PromptAnswers() {
	h.broadcast(ServerMessage{Type: "prompt_answer"})
}

func (h *Hub) OpenWagers() {
	h.broadcast(ServerMessage{Type: "prompt_wager"})
}

var _ engine.BuzzerController = (*Hub)(nil)
