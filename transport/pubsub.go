package transport

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Topics returns the request and response topics for an application.
func Topics(app string) (requests, responses string) {
	return app + ".requests", app + ".responses"
}

// PubSubHost posts to one topic and listens on another. The front-end
// publishes requests and subscribes to responses; the host the reverse.
type PubSubHost struct {
	pub       wmessage.Publisher
	sub       wmessage.Subscriber
	postTopic string
	recvTopic string
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	start  sync.Once
	closed sync.Once

	mu        sync.RWMutex
	listeners []func([]byte)
}

func NewPubSubHost(pub wmessage.Publisher, sub wmessage.Subscriber, postTopic, recvTopic string, logger zerolog.Logger) *PubSubHost {
	ctx, cancel := context.WithCancel(context.Background())
	return &PubSubHost{
		pub:       pub,
		sub:       sub,
		postTopic: postTopic,
		recvTopic: recvTopic,
		logger:    logger.With().Str("component", "pubsub").Str("topic", recvTopic).Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// NewGoChannel returns an in-process Watermill pub/sub usable as both ends.
func NewGoChannel(logger zerolog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewWatermillLogger(logger))
}

// NewRedisPubSub builds a Redis Streams publisher and a subscriber in the given consumer group.
func NewRedisPubSub(client redis.UniversalClient, group, consumer string, logger zerolog.Logger) (wmessage.Publisher, wmessage.Subscriber, error) {
	wlog := NewWatermillLogger(logger)
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, wlog)
	if err != nil {
		return nil, nil, errors.Wrap(err, "redis publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: group,
		Consumer:      consumer,
	}, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, nil, errors.Wrap(err, "redis subscriber")
	}
	return pub, sub, nil
}

func (h *PubSubHost) PostMessage(data []byte) error {
	if h.ctx.Err() != nil {
		return ErrClosed
	}
	payload := make([]byte, len(data))
	copy(payload, data)
	return h.pub.Publish(h.postTopic, wmessage.NewMessage(uuid.NewString(), payload))
}

func (h *PubSubHost) AddListener(fn func([]byte)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
	h.start.Do(func() {
		msgs, err := h.sub.Subscribe(h.ctx, h.recvTopic)
		if err != nil {
			h.logger.Error().Err(err).Msg("subscribe failed")
			return
		}
		go h.recvLoop(msgs)
	})
}

// Done is closed when the host is closed.
func (h *PubSubHost) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Close stops listening. Publisher and subscriber are owned by the caller.
func (h *PubSubHost) Close() error {
	h.closed.Do(h.cancel)
	return nil
}

func (h *PubSubHost) recvLoop(msgs <-chan *wmessage.Message) {
	for msg := range msgs {
		h.mu.RLock()
		listeners := h.listeners
		h.mu.RUnlock()
		for _, fn := range listeners {
			fn(msg.Payload)
		}
		msg.Ack()
	}
}

// watermillLogger adapts zerolog to watermill.LoggerAdapter.
type watermillLogger struct {
	logger zerolog.Logger
}

func NewWatermillLogger(l zerolog.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: l.With().Str("component", "watermill").Logger()}
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.logger.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: w.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}
