// Package server is the host side of the bridge: it answers request
// envelopes from front-ends by dispatching them to registered namespaces.
//
//	Host (stream / websocket / pubsub / memory)
//	  → channel.Channel decodes a Request
//	    → go handleRequest: middleware chain → namespace method → Response
//	      → channel.Channel.Send
//
// Requests on one connection are handled concurrently, so responses go back
// in completion order; the front-end matches them by id.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"ezi-bridge/channel"
	"ezi-bridge/codec"
	"ezi-bridge/message"
	"ezi-bridge/middleware"
	"ezi-bridge/registry"
	"ezi-bridge/transport"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Func handles one qualified method with raw JSON arguments.
type Func func(ctx context.Context, args json.RawMessage) (any, error)

type Server struct {
	codec     codec.Codec
	logger    zerolog.Logger
	heartbeat time.Duration

	mu          sync.RWMutex
	serviceMap  map[string]*service // namespace → reflected receiver
	funcs       map[string]Func     // "ns.method" → raw handler
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
	listeners   []net.Listener
	attached    map[*channel.Channel]struct{}

	admitMu  sync.Mutex     // orders admit against the shutdown flip
	wg       sync.WaitGroup // in-flight requests
	shutdown atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc

	registry   registry.Registry
	app        string
	advertised []registry.HostInstance
}

type Option func(*Server)

func WithCodec(c codec.Codec) Option {
	return func(s *Server) {
		s.codec = c
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithHeartbeat makes stream connections send a heartbeat frame every d.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

func NewServer(opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		codec:      &codec.JSONCodec{},
		logger:     log.Logger,
		serviceMap: make(map[string]*service),
		funcs:      make(map[string]Func),
		attached:   make(map[*channel.Channel]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "server").Logger()
	return s
}

// Register exposes rcvr's methods under namespace. See newService for the
// accepted method shape.
func (s *Server) Register(namespace string, rcvr any) error {
	svc, err := newService(namespace, rcvr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.serviceMap[namespace] = svc
	s.mu.Unlock()
	return nil
}

// HandleFunc exposes a single qualified method ("terminal.log").
func (s *Server) HandleFunc(fn string, h Func) {
	s.mu.Lock()
	s.funcs[fn] = h
	s.mu.Unlock()
}

// Use appends a middleware. Middlewares must be added before serving starts.
func (s *Server) Use(mw middleware.Middleware) {
	s.mu.Lock()
	s.middlewares = append(s.middlewares, mw)
	s.handler = nil
	s.mu.Unlock()
}

func (s *Server) chain() middleware.HandlerFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler == nil {
		s.handler = middleware.Chain(s.middlewares...)(s.dispatch)
	}
	return s.handler
}

// ServeHost answers requests arriving on h until ctx ends, the server shuts
// down, or h reports it is done (when it has a Done channel).
func (s *Server) ServeHost(ctx context.Context, h channel.Host) error {
	ch, err := s.attach(ctx, h)
	if err != nil {
		return err
	}
	defer s.detach(ch)

	var hostDone <-chan struct{}
	if d, ok := h.(interface{ Done() <-chan struct{} }); ok {
		hostDone = d.Done()
	}
	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	case <-hostDone:
	}
	return nil
}

// Attach subscribes to h and returns once requests on h are being answered.
// Handlers run with ctx. h receives events until Shutdown.
func (s *Server) Attach(ctx context.Context, h channel.Host) error {
	_, err := s.attach(ctx, h)
	return err
}

func (s *Server) attach(ctx context.Context, h channel.Host) (*channel.Channel, error) {
	ch, err := channel.New(channel.NewSlot(h), channel.WithCodec(s.codec), channel.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	handler := s.chain()

	ch.Subscribe(func(in channel.Inbound) {
		var req message.Request
		if err := in.Decode(&req); err != nil {
			s.logger.Warn().Err(err).Msg("dropping undecodable request")
			return
		}
		if req.ID == "" {
			s.logger.Warn().Str("func", req.Func).Msg("dropping request without id")
			return
		}
		if !s.admit() {
			s.reply(ch, message.NewErrorResponse(req.ID, "host shutting down"))
			return
		}
		go func() {
			defer s.wg.Done()
			s.reply(ch, handler(ctx, &req))
		}()
	})

	s.mu.Lock()
	s.attached[ch] = struct{}{}
	s.mu.Unlock()
	return ch, nil
}

// admit counts one more in-flight request unless shutdown has begun.
func (s *Server) admit() bool {
	s.admitMu.Lock()
	defer s.admitMu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) detach(ch *channel.Channel) {
	s.mu.Lock()
	delete(s.attached, ch)
	s.mu.Unlock()
}

// Notify sends ev to every attached front-end and returns how many it
// reached.
func (s *Server) Notify(ev *message.Event) int {
	s.mu.RLock()
	chans := make([]*channel.Channel, 0, len(s.attached))
	for ch := range s.attached {
		chans = append(chans, ch)
	}
	s.mu.RUnlock()

	sent := 0
	for _, ch := range chans {
		if err := ch.Send(ev); err != nil {
			s.logger.Warn().Err(err).Str("callback", ev.Callback).Msg("failed to send event")
			continue
		}
		sent++
	}
	return sent
}

func (s *Server) reply(ch *channel.Channel, resp *message.Response) {
	if err := ch.Send(resp); err != nil {
		s.logger.Warn().Err(err).Str("id", resp.ID).Msg("failed to send response")
	}
}

// Serve accepts framed stream connections on address until Shutdown.
func (s *Server) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return errors.Wrapf(err, "listen %s", address)
	}
	return s.ServeListener(listener)
}

func (s *Server) ServeListener(listener net.Listener) error {
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	opts := []transport.StreamOption{transport.WithStreamLogger(s.logger)}
	if s.heartbeat > 0 {
		opts = append(opts, transport.WithHeartbeat(s.heartbeat))
	}
	h := transport.NewHostStream(conn, byte(s.codec.Type()), opts...)
	defer h.Close()
	s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("front-end connected")
	s.serveConn(h, "stream")
}

// serveConn serves a host the server accepted itself until it is done.
func (s *Server) serveConn(h channel.Host, kind string) {
	if err := s.ServeHost(s.ctx, h); err != nil {
		s.logger.Debug().Err(err).Str("transport", kind).Msg("host not served")
	}
}

// WebSocketHandler upgrades each HTTP request to a bridge connection.
func (s *Server) WebSocketHandler() http.Handler {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	binary := s.codec.Type() == codec.CodecTypeBinary
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		h := transport.NewWebSocketHost(conn, binary, s.logger)
		defer h.Close()
		s.serveConn(h, "websocket")
	})
}

// Advertise registers instance for app so front-ends can discover this host.
// Shutdown deregisters it.
func (s *Server) Advertise(ctx context.Context, reg registry.Registry, app string, instance registry.HostInstance, ttl int64) error {
	if err := reg.Register(ctx, app, instance, ttl); err != nil {
		return errors.Wrapf(err, "advertise %s", instance.Key())
	}
	s.mu.Lock()
	s.registry = reg
	s.app = app
	s.advertised = append(s.advertised, instance)
	s.mu.Unlock()
	return nil
}

// Shutdown deregisters, stops accepting, and waits up to timeout for
// in-flight requests. Requests arriving meanwhile are answered with an error.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	reg, app, advertised := s.registry, s.app, s.advertised
	listeners := s.listeners
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, inst := range advertised {
		if err := reg.Deregister(ctx, app, inst.Key()); err != nil {
			s.logger.Warn().Err(err).Str("instance", inst.Key()).Msg("deregister failed")
		}
	}

	s.admitMu.Lock()
	s.shutdown.Store(true)
	s.admitMu.Unlock()
	for _, l := range listeners {
		_ = l.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	defer s.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("timeout waiting for in-flight calls")
	}
}

// dispatch is the innermost handler: resolve the function and run it.
func (s *Server) dispatch(ctx context.Context, req *message.Request) (resp *message.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("func", req.Func).Msg("handler panicked")
			resp = message.NewErrorResponse(req.ID, fmt.Sprintf("internal error in %s", req.Func))
		}
	}()

	s.mu.RLock()
	fn, ok := s.funcs[req.Func]
	s.mu.RUnlock()
	if ok {
		value, err := fn(ctx, req.Args)
		return s.result(req, value, err)
	}

	namespace, methodName, ok := message.SplitFunc(req.Func)
	if !ok {
		return message.NewErrorResponse(req.ID, "invalid function name: "+req.Func)
	}
	s.mu.RLock()
	svc := s.serviceMap[namespace]
	s.mu.RUnlock()
	if svc == nil {
		return message.NewErrorResponse(req.ID, "unknown function: "+req.Func)
	}
	method := svc.method[methodName]
	if method == nil {
		return message.NewErrorResponse(req.ID, "unknown function: "+req.Func)
	}

	argv := reflect.New(method.ArgType)
	replyv := reflect.New(method.ReplyType)
	if len(req.Args) > 0 && string(req.Args) != "null" {
		if err := json.Unmarshal(req.Args, argv.Interface()); err != nil {
			return message.NewErrorResponse(req.ID, "invalid arguments: "+err.Error())
		}
	}

	err := svc.call(ctx, method, argv, replyv)
	return s.result(req, replyv.Elem().Interface(), err)
}

func (s *Server) result(req *message.Request, value any, err error) *message.Response {
	if err != nil {
		return message.NewErrorResponse(req.ID, err.Error())
	}
	resp, err := message.NewResponse(req.ID, value)
	if err != nil {
		s.logger.Error().Err(err).Str("func", req.Func).Msg("failed to marshal result")
		return message.NewErrorResponse(req.ID, "unserializable result")
	}
	return resp
}
