package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WebSocketHost sends one WebSocket message per envelope. JSON envelopes go
// out as text frames, anything else as binary frames.
type WebSocketHost struct {
	conn    *websocket.Conn
	msgType int
	logger  zerolog.Logger

	writeMu sync.Mutex
	start   sync.Once
	closed  sync.Once
	done    chan struct{}

	mu        sync.RWMutex
	listeners []func([]byte)
}

// NewWebSocketHost wraps an established connection. binary selects binary frames.
func NewWebSocketHost(conn *websocket.Conn, binary bool, logger zerolog.Logger) *WebSocketHost {
	msgType := websocket.TextMessage
	if binary {
		msgType = websocket.BinaryMessage
	}
	return &WebSocketHost{
		conn:    conn,
		msgType: msgType,
		logger:  logger.With().Str("component", "websocket").Logger(),
		done:    make(chan struct{}),
	}
}

// DialWebSocket connects to a host bridge endpoint such as ws://127.0.0.1:7410/ipc.
func DialWebSocket(ctx context.Context, url string, binary bool) (*WebSocketHost, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, errors.Wrapf(err, "dial %s: status %d", url, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return NewWebSocketHost(conn, binary, log.Logger), nil
}

func (h *WebSocketHost) PostMessage(data []byte) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.conn.WriteMessage(h.msgType, data)
}

func (h *WebSocketHost) AddListener(fn func([]byte)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
	h.start.Do(func() { go h.readLoop() })
}

func (h *WebSocketHost) Done() <-chan struct{} {
	return h.done
}

func (h *WebSocketHost) Close() error {
	var err error
	h.closed.Do(func() {
		close(h.done)
		h.writeMu.Lock()
		_ = h.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		h.writeMu.Unlock()
		err = h.conn.Close()
	})
	return err
}

func (h *WebSocketHost) readLoop() {
	defer h.Close()
	for {
		msgType, data, err := h.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-h.done:
				default:
					h.logger.Debug().Err(err).Msg("websocket read failed, closing")
				}
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		h.mu.RLock()
		listeners := h.listeners
		h.mu.RUnlock()
		for _, fn := range listeners {
			fn(data)
		}
	}
}
