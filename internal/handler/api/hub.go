package api

import (
	"net/http"
	"sync"
	"time"

	models "VolStack/internal/domain/models"
	xlogger "VolStack/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const writeWait = 5 * time.Second

// SignalHub fans each persisted prediction out to connected websocket
// clients. It implements usecase.SignalNotifier. A slow or broken client
// is dropped rather than allowed to block the cycle.
type SignalHub struct {
	upgrader websocket.Upgrader
	logger   *xlogger.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewSignalHub(logger *xlogger.Logger) *SignalHub {
	return &SignalHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Serve upgrades the request and keeps the connection registered until
// the client goes away.
func (h *SignalHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", xlogger.Int("clients", n))

	// Reader loop only detects disconnects; clients never send payloads.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Notify pushes one prediction to every connected client.
func (h *SignalHub) Notify(rec *models.PredictionRecord) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(rec); err != nil {
			h.logger.Debug("websocket write failed, dropping client", xlogger.Error(err))
			h.drop(conn)
		}
	}
}

// Close disconnects every client.
func (h *SignalHub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (h *SignalHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}
