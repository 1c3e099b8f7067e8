package bot

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridline/bot-engine/internal/metrics"
)

const (
	wsReadDeadline  = 60 * time.Second
	wsWriteDeadline = 10 * time.Second
	wsPingInterval  = 30 * time.Second
)

// wsClient wraps a connection with its selected bot. The write mutex
// serializes broadcast, direct-reply, and ping writers.
type wsClient struct {
	conn *websocket.Conn

	mu    sync.Mutex
	botID string
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	return c.conn.WriteMessage(messageType, data)
}

func (c *wsClient) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *wsClient) selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botID
}

func (c *wsClient) selectBot(botID string) {
	c.mu.Lock()
	c.botID = botID
	c.mu.Unlock()
}

// Hub manages WebSocket connections: it fans bot broadcasts out to the
// clients watching that bot and routes inbound commands to the manager.
type Hub struct {
	manager *Manager // bound after construction

	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex

	defaultBot string
}

// NewHub creates a hub whose fresh connections watch defaultBot.
func NewHub(defaultBot string) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		defaultBot: defaultBot,
	}
}

// Bind attaches the manager that commands dispatch to. Hub and manager
// reference each other, so the hub is constructed first and bound here.
func (h *Hub) Bind(m *Manager) { h.manager = m }

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			slog.Info("ws client connected", "total", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
				metrics.WebSocketClients.Dec()
			}
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.deliver(data)
		}
	}
}

// deliver writes a frame to every client watching the message's bot.
// Failed writers are dropped.
func (h *Hub) deliver(data []byte) {
	var env struct {
		BotID string `json:"botId"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		env.BotID = "" // deliver to everyone rather than nobody
	}

	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		if env.BotID == "" || c.selected() == env.BotID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close()
		metrics.WebSocketClients.Dec()
	}
	h.mu.Unlock()
}

// Broadcast queues a message for fan-out. Drops when the buffer is full
// so a slow consumer never blocks trade execution.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws. A fresh
// connection immediately receives the default bot's status.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	c := &wsClient{conn: conn, botID: h.defaultBot}
	h.register <- c

	if h.manager != nil {
		if o := h.manager.Get(h.defaultBot); o != nil {
			c.send(Message{Type: MsgStatus, BotID: o.ID(), Data: o.Status()})
		}
	}

	// Read pump: decode commands and detect disconnects.
	go func() {
		defer func() { h.unregister <- c }()
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
			return nil
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			h.handleCommand(c, data)
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[c]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}

// handleCommand dispatches one inbound frame. Malformed or unknown frames
// get an error envelope back to the sender only.
func (h *Hub) handleCommand(c *wsClient, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.send(Message{Type: MsgError, Error: "malformed command"})
		return
	}

	botID := cmd.BotID
	if botID == "" {
		botID = c.selected()
	}

	if cmd.Type == CmdSelectBot {
		if h.manager == nil || h.manager.Get(botID) == nil {
			c.send(Message{Type: MsgError, Error: "unknown bot: " + botID})
			return
		}
		c.selectBot(botID)
		o := h.manager.Get(botID)
		c.send(Message{Type: MsgStatus, BotID: botID, Data: o.Status()})
		return
	}

	if h.manager == nil {
		c.send(Message{Type: MsgError, Error: "engine not ready"})
		return
	}
	o := h.manager.Get(botID)
	if o == nil {
		c.send(Message{Type: MsgError, Error: "unknown bot: " + botID})
		return
	}

	switch cmd.Type {
	case CmdStart:
		cfg := StartConfig{}
		if cmd.Config != nil {
			cfg = *cmd.Config
		}
		o.Start(cfg)
	case CmdStop:
		o.Stop()
	case CmdPause:
		o.Pause()
	case CmdResume:
		o.Resume()
	case CmdReset:
		o.Reset()
	case CmdGetStatus:
		c.send(Message{Type: MsgStatus, BotID: botID, Data: o.Status()})
	default:
		c.send(Message{Type: MsgError, Error: "unknown command: " + cmd.Type})
	}
}
