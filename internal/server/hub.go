package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satyaki-up/sprintboard/internal/board"
	"github.com/satyaki-up/sprintboard/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
	readLimit  = 512
)

// Message is the envelope written to websocket clients.
type Message struct {
	Type      string        `json:"type"`
	Recipient string        `json:"recipient,omitempty"`
	Change    *board.Change `json:"change,omitempty"`
	Toast     *notify.Toast `json:"toast,omitempty"`
}

type client struct {
	conn    *websocket.Conn
	boardID string
	send    chan []byte
	once    sync.Once
}

func (cl *client) closeSend() {
	cl.once.Do(func() { close(cl.send) })
}

// Hub fans store changes and toasts out to the websocket clients of each
// board. Slow clients are dropped.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]map[*client]struct{}
	closed   bool
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// OnChange is a board.Store subscriber. Private kinds (views, notifications,
// invites) are not broadcast.
func (h *Hub) OnChange(c board.Change) {
	switch c.Kind {
	case board.KindItem, board.KindEpic, board.KindSprint:
	default:
		return
	}
	if c.BoardID == "" {
		return
	}
	h.broadcast(c.BoardID, Message{Type: "change", Change: &c})
}

// ToastSink returns a sink that sends toasts coalesced for recipient to the
// clients of boardID only.
func (h *Hub) ToastSink(boardID, recipient string) notify.Sink {
	return notify.SinkFunc(func(t notify.Toast) {
		if boardID == "" {
			return
		}
		h.broadcast(boardID, Message{Type: "toast", Recipient: recipient, Toast: &t})
	})
}

// Clients reports how many clients are connected to boardID.
func (h *Hub) Clients(boardID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[boardID])
}

func (h *Hub) broadcast(boardID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode websocket message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[boardID]
	for cl := range set {
		select {
		case cl.send <- data:
		default:
			h.logger.Warn("dropping slow websocket client", zap.String("board", boardID))
			delete(set, cl)
			cl.closeSend()
		}
	}
	if len(set) == 0 {
		delete(h.clients, boardID)
	}
}

func (h *Hub) register(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[cl.boardID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[cl.boardID] = set
	}
	set[cl] = struct{}{}
	return true
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if set, ok := h.clients[cl.boardID]; ok {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.clients, cl.boardID)
		}
	}
	h.mu.Unlock()
	cl.closeSend()
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, set := range h.clients {
		for cl := range set {
			cl.closeSend()
		}
		delete(h.clients, id)
	}
}

// ServeWS upgrades the request and blocks until the client goes away.
func (h *Hub) ServeWS(c *gin.Context) {
	boardID := c.Param("boardID")
	if boardID == "" {
		badRequest(c, "board id required")
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	cl := &client{conn: conn, boardID: boardID, send: make(chan []byte, sendBuffer)}
	if !h.register(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.logger.Debug("websocket client connected", zap.String("board", boardID))

	go h.writePump(cl)
	h.readPump(cl)
}

// readPump discards client frames; it exists to process pongs and notice
// disconnects.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		h.logger.Debug("websocket client disconnected", zap.String("board", cl.boardID))
	}()
	cl.conn.SetReadLimit(readLimit)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case data, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
