package fetchstate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelpascari/fetchstate/pkg/store"
)

// Option configures a Controller using the functional options pattern.
type Option func(*controllerConfig)

type controllerConfig struct {
	logger      *slog.Logger
	staleWrites bool
	timeout     time.Duration
}

// WithLogger sets the logger used for lifecycle events. Transitions are
// logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *controllerConfig) {
		c.logger = logger
	}
}

// WithStaleWrites lets completions of superseded triggers overwrite the
// state, so the last completion wins regardless of trigger order. By
// default only the latest trigger may settle the state.
func WithStaleWrites() Option {
	return func(c *controllerConfig) {
		c.staleWrites = true
	}
}

// WithTimeout bounds every request made by the controller. Zero, the
// default, waits until the caller's context ends.
func WithTimeout(timeout time.Duration) Option {
	return func(c *controllerConfig) {
		c.timeout = timeout
	}
}

// Controller owns the request state of one consumer. Callers read
// snapshots and call Trigger; nothing else changes the state.
//
// A Controller is safe for concurrent use. Overlapping triggers are
// allowed and are not deduplicated.
type Controller[T any] struct {
	transport Transport
	state     *store.Store[State[T], action[T]]
	logger    *slog.Logger
	config    controllerConfig

	mu         sync.Mutex
	generation uint64
	inflight   map[uint64]context.CancelFunc
	closed     bool
}

// NewController creates an idle controller issuing requests through transport.
func NewController[T any](transport Transport, opts ...Option) *Controller[T] {
	cfg := controllerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Controller[T]{
		transport: transport,
		state:     store.New(reduce[T], State[T]{}, store.WithEqual(sameRevision[T])),
		logger:    logger,
		config:    cfg,
		inflight:  make(map[uint64]context.CancelFunc),
	}
}

// Snapshot returns the current state.
func (c *Controller[T]) Snapshot() State[T] {
	return c.state.State()
}

// Subscribe registers fn to be called with every new state and returns a
// function that removes it. fn may call back into the controller.
//
// fn is never called concurrently with itself and sees states in the order
// their transitions were applied. A transition that lands while fn is
// running is delivered once fn returns, on the goroutine already calling
// it; of several such transitions only the newest is delivered.
func (c *Controller[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	return c.state.Subscribe(inOrder(fn))
}

// inOrder serializes calls to fn and drops states older than the last one
// fn was given.
func inOrder[T any](fn func(State[T])) func(State[T]) {
	var (
		mu         sync.Mutex
		delivering bool
		last       uint64
		next       *State[T]
	)

	return func(s State[T]) {
		mu.Lock()
		if s.rev <= last || (next != nil && s.rev <= next.rev) {
			mu.Unlock()
			return
		}
		if delivering {
			next = &s
			mu.Unlock()
			return
		}
		delivering = true

		returned := false
		defer func() {
			if !returned {
				mu.Lock()
				delivering, next = false, nil
				mu.Unlock()
			}
		}()

		for {
			last = s.rev
			mu.Unlock()
			fn(s)
			mu.Lock()

			if next == nil {
				delivering, returned = false, true
				mu.Unlock()
				return
			}
			s, next = *next, nil
		}
	}
}

// Trigger starts a request for d. The state is Pending when Trigger
// returns, with any previous data or error discarded. The returned channel
// is closed once this request has completed, whether or not its result
// was applied.
//
// Trigger on a closed controller does nothing and returns a closed channel.
//
//nolint:gocritic // Descriptor is copied on purpose
func (c *Controller[T]) Trigger(ctx context.Context, d Descriptor[T]) <-chan struct{} {
	done := make(chan struct{})

	gen, reqCtx, ok := c.begin(ctx)
	if !ok {
		close(done)
		return done
	}

	d = d.clone()
	c.state.Dispatch(action[T]{kind: actionSend, gen: gen})
	c.logger.Debug("request pending",
		slog.Uint64("generation", gen),
		slog.String("method", d.Request.method()),
		slog.String("path", d.Request.Path),
	)

	go c.run(reqCtx, gen, &d, done)

	return done
}

// Do triggers d and waits for it to complete, returning the state at that
// point. With overlapping triggers the returned state may belong to a
// newer request.
//
//nolint:gocritic // Descriptor is copied on purpose
func (c *Controller[T]) Do(ctx context.Context, d Descriptor[T]) State[T] {
	<-c.Trigger(ctx, d)
	return c.Snapshot()
}

// Reset returns the controller to Idle. Requests still in flight can no
// longer settle the state.
func (c *Controller[T]) Reset() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	c.state.Dispatch(action[T]{kind: actionReset, gen: gen})
}

// Close tears the controller down: in-flight requests are canceled and
// their completions dropped. The last state stays readable.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancels := make([]context.CancelFunc, 0, len(c.inflight))
	for _, cancel := range c.inflight {
		cancels = append(cancels, cancel)
	}
	c.mu.Unlock()

	c.state.Dispatch(action[T]{kind: actionClose})
	for _, cancel := range cancels {
		cancel()
	}
}

func (c *Controller[T]) begin(ctx context.Context) (uint64, context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, nil, false
	}

	c.generation++
	gen := c.generation

	var cancel context.CancelFunc
	if c.config.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.config.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	c.inflight[gen] = cancel

	return gen, ctx, true
}

func (c *Controller[T]) finish(gen uint64) {
	c.mu.Lock()
	cancel := c.inflight[gen]
	delete(c.inflight, gen)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Controller[T]) run(ctx context.Context, gen uint64, d *Descriptor[T], done chan<- struct{}) {
	defer close(done)
	defer c.finish(gen)

	start := time.Now()
	data, err := c.fetch(ctx, d)

	a := action[T]{kind: actionSuccess, gen: gen, data: data, stale: c.config.staleWrites}
	if err != nil {
		a = action[T]{kind: actionError, gen: gen, err: err, stale: c.config.staleWrites}
	}

	next := c.state.Dispatch(a)
	applied := next.gen == gen && next.Settled() && !next.closed
	if c.config.staleWrites {
		applied = next.Settled() && !next.closed
	}

	attrs := []any{
		slog.Uint64("generation", gen),
		slog.String("path", d.Request.Path),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("applied", applied),
	}
	if err != nil {
		c.logger.Debug("request failed", append(attrs, slog.Any("error", err))...)
		return
	}
	c.logger.Debug("request resolved", attrs...)
}

func (c *Controller[T]) fetch(ctx context.Context, d *Descriptor[T]) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewTransportError(d.Request, fmt.Errorf("transport panic: %v", r))
		}
	}()

	resp, err := c.transport.Do(ctx, d.Request)
	if err != nil {
		if !IsTransportError(err) {
			err = NewTransportError(d.Request, err)
		}
		return data, err
	}

	if !resp.OK() {
		return data, NewServerError(resp.StatusCode, d.errorMessage(resp.Raw))
	}

	return d.transform(resp.Raw)
}
