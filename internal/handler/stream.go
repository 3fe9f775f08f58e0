package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hazardcam/internal/dto"
	"hazardcam/internal/logger"
	"hazardcam/internal/service/relay"
)

const (
	// maxFrameBytes bounds a single inbound frame message.
	maxFrameBytes = 16 << 20
	writeWait     = 10 * time.Second
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamWebsocketHandler upgrades a caller connection and runs one relay
// session over it until the caller disconnects.
func StreamWebsocketHandler(r *relay.Relay, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		connection, err := Upgrader.Upgrade(w, req, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(maxFrameBytes)

		t := newWSTransport(connection, req.RemoteAddr)
		if err := r.Serve(req.Context(), t); err != nil {
			logger.Warning("Stream from %s ended with error: %v", req.RemoteAddr, err)
		}
	}
}

// wsTransport adapts a gorilla connection to relay.Transport.
type wsTransport struct {
	conn      *websocket.Conn
	source    string
	closeOnce sync.Once
}

var _ relay.Transport = (*wsTransport)(nil)

func newWSTransport(conn *websocket.Conn, source string) *wsTransport {
	return &wsTransport{conn: conn, source: source}
}

// Receive returns the next text or binary message. Close frames and a
// vanished peer map to relay.ErrClosed.
func (t *wsTransport) Receive(ctx context.Context) ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || ctx.Err() != nil {
				return nil, relay.ErrClosed
			}
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) Send(_ context.Context, result dto.FrameResult) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteJSON(result); err != nil {
		return fmt.Errorf("failed to send result: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) Source() string { return t.source }
