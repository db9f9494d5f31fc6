package transport

import (
	"io"
	"sync"
	"time"

	"ezi-bridge/protocol"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StreamHost carries envelopes as protocol frames over a byte stream.
//
// Writes share one connection, so the whole frame is written under the
// sending lock; otherwise request A's header could be followed by request
// B's body. Reads happen in a single recvLoop because frame boundaries
// can only be found by reading sequentially.
type StreamHost struct {
	conn      io.ReadWriteCloser
	codecType byte
	outType   protocol.MsgType
	logger    zerolog.Logger

	sending sync.Mutex
	start   sync.Once
	closed  sync.Once
	done    chan struct{}

	mu        sync.RWMutex
	listeners []func([]byte)
}

type StreamOption func(*StreamHost)

func WithStreamLogger(l zerolog.Logger) StreamOption {
	return func(h *StreamHost) {
		h.logger = l
	}
}

// WithHeartbeat sends an empty heartbeat frame every interval so idle
// connections through proxies are not reaped. The peer skips them.
func WithHeartbeat(interval time.Duration) StreamOption {
	return func(h *StreamHost) {
		if interval > 0 {
			go h.heartbeatLoop(interval)
		}
	}
}

// NewFrontendStream wraps the front-end side of a connection: it posts requests.
func NewFrontendStream(conn io.ReadWriteCloser, codecType byte, opts ...StreamOption) *StreamHost {
	return newStreamHost(conn, codecType, protocol.MsgTypeRequest, opts)
}

// NewHostStream wraps the host side of a connection: it posts responses.
func NewHostStream(conn io.ReadWriteCloser, codecType byte, opts ...StreamOption) *StreamHost {
	return newStreamHost(conn, codecType, protocol.MsgTypeResponse, opts)
}

func newStreamHost(conn io.ReadWriteCloser, codecType byte, outType protocol.MsgType, opts []StreamOption) *StreamHost {
	h := &StreamHost{
		conn:      conn,
		codecType: codecType,
		outType:   outType,
		logger:    log.Logger,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With().Str("component", "stream").Logger()
	return h
}

func (h *StreamHost) PostMessage(data []byte) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	h.sending.Lock()
	defer h.sending.Unlock()
	return protocol.Encode(h.conn, &protocol.Header{
		CodecType: h.codecType,
		MsgType:   h.outType,
	}, data)
}

func (h *StreamHost) AddListener(fn func([]byte)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
	h.start.Do(func() { go h.recvLoop() })
}

// Done is closed once the connection is closed or fails.
func (h *StreamHost) Done() <-chan struct{} {
	return h.done
}

func (h *StreamHost) Close() error {
	var err error
	h.closed.Do(func() {
		close(h.done)
		err = h.conn.Close()
	})
	return err
}

func (h *StreamHost) recvLoop() {
	defer h.Close()
	for {
		header, body, err := protocol.Decode(h.conn)
		if err != nil {
			select {
			case <-h.done:
			default:
				if err != io.EOF {
					h.logger.Debug().Err(err).Msg("stream read failed, closing")
				}
			}
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if header.MsgType == h.outType {
			h.logger.Warn().Int("type", int(header.MsgType)).Msg("dropping frame travelling the wrong way")
			continue
		}

		h.mu.RLock()
		listeners := h.listeners
		h.mu.RUnlock()
		for _, fn := range listeners {
			fn(body)
		}
	}
}

func (h *StreamHost) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sending.Lock()
			err := protocol.Encode(h.conn, &protocol.Header{
				CodecType: h.codecType,
				MsgType:   protocol.MsgTypeHeartbeat,
			}, nil)
			h.sending.Unlock()
			if err != nil {
				return
			}
		case <-h.done:
			return
		}
	}
}
