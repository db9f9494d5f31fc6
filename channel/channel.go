// Package channel owns the host-provided bidirectional message primitive.
//
// A front-end gets exactly one Host from its environment. Channel takes it
// (detaching it so nothing else can post on it), and exposes two operations
// over it: Send an envelope and Subscribe to inbound ones.
//
// If the environment has no Host, construction fails hard: nothing in the
// front-end can work without the bridge, so New reports ErrUnsupported and
// runs the configured failure handler (NoticeHandler replaces the visible
// document with a static notice).
package channel

import (
	"sync"

	"ezi-bridge/codec"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrUnsupported is returned by New when the environment exposes no Host.
var ErrUnsupported = errors.New("ipc not supported")

// Host is the primitive a hosting process hands to the front-end.
// PostMessage must not block for long; AddListener handlers are called once
// per inbound message, in arrival order, from the host's own goroutine.
type Host interface {
	PostMessage(data []byte) error
	AddListener(fn func(data []byte))
}

// Environment exposes a Host to a single taker.
type Environment interface {
	TakeHost() (Host, bool)
}

// Slot is an Environment holding at most one Host. TakeHost empties it.
type Slot struct {
	mu   sync.Mutex
	host Host
}

func NewSlot(h Host) *Slot {
	return &Slot{host: h}
}

func (s *Slot) TakeHost() (Host, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.host
	s.host = nil
	return h, h != nil
}

// Inbound is one received message, decoded lazily with the channel codec.
type Inbound struct {
	Data  []byte
	codec codec.Codec
}

func (in Inbound) Decode(v any) error {
	return in.codec.Decode(in.Data, v)
}

type Channel struct {
	host   Host
	codec  codec.Codec
	logger zerolog.Logger

	mu       sync.RWMutex
	handlers []func(Inbound)
}

type config struct {
	codec         codec.Codec
	logger        zerolog.Logger
	onUnsupported func(error)
}

type Option func(*config)

func WithCodec(c codec.Codec) Option {
	return func(cfg *config) {
		cfg.codec = c
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithUnsupportedHandler replaces the failure handler run when the
// environment has no Host.
func WithUnsupportedHandler(fn func(error)) Option {
	return func(cfg *config) {
		cfg.onUnsupported = fn
	}
}

// New takes the Host out of env. The Host is registered with exactly one
// listener that fans out to Subscribe handlers.
func New(env Environment, opts ...Option) (*Channel, error) {
	cfg := config{
		codec:  &codec.JSONCodec{},
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With().Str("component", "channel").Logger()

	var (
		host Host
		ok   bool
	)
	if env != nil {
		host, ok = env.TakeHost()
	}
	if !ok {
		if cfg.onUnsupported != nil {
			cfg.onUnsupported(ErrUnsupported)
		} else {
			logger.Error().Err(ErrUnsupported).Msg("no host primitive in this environment")
		}
		return nil, ErrUnsupported
	}

	ch := &Channel{
		host:   host,
		codec:  cfg.codec,
		logger: logger,
	}
	host.AddListener(ch.dispatch)
	return ch, nil
}

// Send encodes v and posts it to the host.
func (c *Channel) Send(v any) error {
	data, err := c.codec.Encode(v)
	if err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	if err := c.host.PostMessage(data); err != nil {
		return errors.Wrap(err, "post message")
	}
	return nil
}

// Subscribe registers fn for every inbound message.
func (c *Channel) Subscribe(fn func(Inbound)) {
	c.mu.Lock()
	c.handlers = append(c.handlers, fn)
	c.mu.Unlock()
}

func (c *Channel) Codec() codec.Codec {
	return c.codec
}

func (c *Channel) dispatch(data []byte) {
	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug().Int("bytes", len(data)).Msg("inbound message with no subscriber")
		return
	}
	in := Inbound{Data: data, codec: c.codec}
	for _, h := range handlers {
		h(in)
	}
}
