// Package transport provides concrete channel.Host primitives.
//
//   - MemoryHost:    in-process pair, for embedding the host in the same binary and for tests
//   - StreamHost:    framed messages over a net.Conn or stdio pipe
//   - WebSocketHost: one WebSocket message per envelope
//   - PubSubHost:    Watermill publisher/subscriber pair (gochannel, Redis Streams)
//
// Every Host delivers inbound messages to its listeners from a single
// goroutine, in arrival order, and starts reading only once the first
// listener is registered so nothing is dropped during setup.
package transport

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("transport closed")

// MemoryHost is one end of an in-process pipe.
type MemoryHost struct {
	peer *MemoryHost

	inbox  chan []byte
	done   chan struct{}
	closer *sync.Once // shared by both ends
	start  sync.Once

	mu        sync.RWMutex
	listeners []func([]byte)
}

// Pipe returns two connected hosts: what one posts, the other receives.
func Pipe() (*MemoryHost, *MemoryHost) {
	done := make(chan struct{})
	closer := &sync.Once{}
	a := &MemoryHost{inbox: make(chan []byte, 256), done: done, closer: closer}
	b := &MemoryHost{inbox: make(chan []byte, 256), done: done, closer: closer}
	a.peer, b.peer = b, a
	return a, b
}

func (h *MemoryHost) PostMessage(data []byte) error {
	msg := make([]byte, len(data))
	copy(msg, data)
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	select {
	case h.peer.inbox <- msg:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

func (h *MemoryHost) AddListener(fn func([]byte)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
	h.start.Do(func() { go h.recvLoop() })
}

// Done is closed when the pipe is closed from either end.
func (h *MemoryHost) Done() <-chan struct{} {
	return h.done
}

// Close shuts both ends down.
func (h *MemoryHost) Close() error {
	h.closer.Do(func() { close(h.done) })
	return nil
}

func (h *MemoryHost) recvLoop() {
	for {
		select {
		case msg := <-h.inbox:
			h.mu.RLock()
			listeners := h.listeners
			h.mu.RUnlock()
			for _, fn := range listeners {
				fn(msg)
			}
		case <-h.done:
			return
		}
	}
}
