package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/ahmetcoskunkizilkaya/logbook/internal/logging"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/logbook/internal/models"
)

const (
	DefaultMaxRetries   = 4
	DefaultCloseTimeout = 10 * time.Second

	handlerName = "persist-log-entries"
	// trackedKey marks messages published by Queue.Write, the only ones
	// Drain waits for.
	trackedKey = "logbook_tracked"
)

// QueueOptions tunes queue write mode.
type QueueOptions struct {
	Topic string
	// MaxRetries is how many times a failed insert is retried before the
	// entry is reported and dropped.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// CloseTimeout bounds how long the router waits for running handlers
	// when it stops.
	CloseTimeout time.Duration
	Logger       *slog.Logger
}

func DefaultQueueOptions(topic string) QueueOptions {
	return QueueOptions{
		Topic:           topic,
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		CloseTimeout:    DefaultCloseTimeout,
	}
}

// Queue publishes entries on a watermill topic and persists them from a
// router handler with retry, poison and panic middleware. It is both the
// Writer and the suture.Service that runs the router.
//
// Entries are only published while the router is consuming. Before Serve
// starts and after Drain they are persisted inline instead.
type Queue struct {
	pubsub PubSub
	store  Persister
	opts   QueueOptions
	logger watermill.LoggerAdapter
	gate   gate
}

func NewQueue(pubsub PubSub, store Persister, opts QueueOptions) (*Queue, error) {
	if pubsub == nil || store == nil || opts.Topic == "" {
		return nil, errors.New("queue writer requires a pubsub, a store and a topic")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = DefaultCloseTimeout
	}
	return &Queue{
		pubsub: pubsub,
		store:  store,
		opts:   opts,
		logger: watermillLogger(opts.Logger),
	}, nil
}

func (q *Queue) Write(ctx context.Context, e *models.LogEntry) {
	defer guard(ModeQueue, e)

	if !q.gate.enter() {
		q.persist(ctx, e)
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		q.gate.leave()
		fail(ModeQueue, e, "failed to encode log entry", err)
		return
	}
	msg := message.NewMessage(e.ID, payload)
	msg.Metadata.Set(trackedKey, "1")
	if err := q.pubsub.Publish(q.opts.Topic, msg); err != nil {
		q.gate.leave()
		fail(ModeQueue, e, "failed to publish log entry", err)
	}
}

func (q *Queue) persist(ctx context.Context, e *models.LogEntry) {
	if err := q.store.Create(context.WithoutCancel(ctx), e); err != nil {
		fail(ModeQueue, e, "failed to write log entry", err)
		return
	}
	metrics.EntriesWritten.WithLabelValues(ModeQueue).Inc()
}

// Serve runs the router until ctx is cancelled. Call Drain first so
// published entries are persisted before the subscription closes.
func (q *Queue) Serve(ctx context.Context) error {
	router, err := q.newRouter()
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- router.Run(ctx) }()

	select {
	case <-router.Running():
		q.gate.setOpen(true)
		err = <-errc
	case err = <-errc:
	}
	q.gate.setOpen(false)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("queue router: %w", err)
	}
	return errors.New("queue router stopped")
}

func (q *Queue) String() string { return "queue:" + q.opts.Topic }

// Drain stops publishing and waits until every published entry has been
// persisted or reported. It returns ctx's error if that takes too long.
func (q *Queue) Drain(ctx context.Context) error {
	q.gate.close()
	if err := q.gate.wait(ctx); err != nil {
		logging.Diagnose("queue drain timed out", err, "pending", q.gate.pending())
		return err
	}
	return nil
}

func (q *Queue) newRouter() (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: q.opts.CloseTimeout}, q.logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	poison, err := middleware.PoisonQueue(poisonReporter{}, q.opts.Topic+".poison")
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	retry := middleware.Retry{
		MaxRetries:      q.opts.MaxRetries,
		InitialInterval: q.opts.InitialInterval,
		MaxInterval:     q.opts.MaxInterval,
		Multiplier:      2,
		Logger:          q.logger,
	}

	// Outermost first: settle sees the final outcome, poison catches what
	// retry gave up on, recoverer turns panics into retryable errors.
	router.AddMiddleware(q.settle, poison, retry.Middleware, middleware.Recoverer)
	router.AddConsumerHandler(handlerName, q.opts.Topic, q.pubsub, q.handle)
	return router, nil
}

// handle persists one message. Undecodable payloads are reported and acked.
func (q *Queue) handle(msg *message.Message) error {
	var e models.LogEntry
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		metrics.WriteFailures.WithLabelValues(ModeQueue).Inc()
		logging.Diagnose("dropping undecodable queued entry", err, "message_uuid", msg.UUID)
		return nil
	}
	if err := q.store.Create(context.WithoutCancel(msg.Context()), &e); err != nil {
		return err
	}
	metrics.EntriesWritten.WithLabelValues(ModeQueue).Inc()
	return nil
}

// settle releases a tracked message once it is acked. Errors mean a nack
// and a redelivery, so the message stays pending.
func (q *Queue) settle(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err == nil && msg.Metadata.Get(trackedKey) != "" {
			q.gate.leave()
		}
		return out, err
	}
}

// poisonReporter receives entries that exhausted their retries.
type poisonReporter struct{}

func (poisonReporter) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		metrics.WriteFailures.WithLabelValues(ModeQueue).Inc()
		logging.Diagnose("dropping queued entry after repeated failures",
			errors.New(msg.Metadata.Get(middleware.ReasonForPoisonedKey)),
			"mode", ModeQueue, "entry_id", msg.UUID, "topic", topic)
	}
	return nil
}

func (poisonReporter) Close() error { return nil }

// gate counts published entries that are not yet settled and decides
// whether new entries may be published.
type gate struct {
	mu    sync.Mutex
	open  bool
	shut  bool
	count int
	idle  chan struct{}
}

func (g *gate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return false
	}
	if g.count == 0 {
		g.idle = make(chan struct{})
	}
	g.count++
	return true
}

func (g *gate) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count == 0 {
		return
	}
	g.count--
	if g.count == 0 {
		close(g.idle)
	}
}

// setOpen is ignored once the gate is closed for good.
func (g *gate) setOpen(open bool) {
	g.mu.Lock()
	g.open = open && !g.shut
	g.mu.Unlock()
}

func (g *gate) close() {
	g.mu.Lock()
	g.open, g.shut = false, true
	g.mu.Unlock()
}

func (g *gate) isOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

func (g *gate) pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	if g.count == 0 {
		g.mu.Unlock()
		return nil
	}
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
