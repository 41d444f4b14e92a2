package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jengzang/sites-backend-go/internal/loader"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 512
)

// Must be less than pongWait
var pingPeriod = (pongWait * 9) / 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameHostOrigin,
}

// sameHostOrigin accepts non-browser clients and same-host origins on any port
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), strings.Split(r.Host, ":")[0])
}

// StreamHandler pushes loader state changes to websocket clients
type StreamHandler struct {
	controller *loader.Controller
	logger     *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(controller *loader.Controller, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{controller: controller, logger: logger}
}

// streamMessage is one frame on the wire
type streamMessage struct {
	Type  string              `json:"type"`
	State *loader.State       `json:"state,omitempty"`
	Event *loader.StateChange `json:"event,omitempty"`
}

// Stream handles GET /api/v1/map/stream. The first frame is the full
// state; every later frame is a StateChange.
func (h *StreamHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	changes, unsubscribe := h.controller.SubscribeState()
	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, changes, done)
	unsubscribe()
}

// readPump discards client frames and keeps the read deadline alive
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket closed", "error", err)
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, changes <-chan loader.StateChange, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	st := h.controller.State()
	if err := h.write(conn, streamMessage{Type: "state", State: &st}); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case change, ok := <-changes:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "loader closed"))
				return
			}
			if err := h.write(conn, streamMessage{Type: "change", Event: &change}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, msg streamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", "error", err)
		return err
	}
	return nil
}
