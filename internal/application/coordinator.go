package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 2 * time.Minute
	// throttleRatio is the share of the interval that must elapse since the
	// last successful fetch before a requested refresh reaches the API.
	// Scheduled ticks are not gated.
	throttleRatio = 0.9
)

var ErrCoordinatorRunning = errors.New("coordinator already running")

// Coordinator polls one account and publishes immutable snapshots. Readers
// never block: Latest is a single atomic load.
type Coordinator struct {
	account  domain.AccountNumber
	fetcher  ports.SnapshotFetcher
	clock    ports.Clock
	interval time.Duration
	logger   *zap.Logger
	metrics  ports.Metrics
	ticks    tickerFunc

	latest      atomic.Pointer[domain.Snapshot]
	lastSuccess atomic.Pointer[time.Time]
	lastFailure atomic.Pointer[FetchFailure]

	// sem serializes fetches; seq is only touched while holding it.
	sem chan struct{}
	seq uint64

	subsMu  sync.Mutex
	subs    map[uint64]chan struct{}
	nextSub uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// tickerFunc returns a tick channel and its stop func.
type tickerFunc func(time.Duration) (<-chan time.Time, func())

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(d)
	return ticker.C, ticker.Stop
}

type FetchFailure struct {
	At  time.Time
	Err error
}

type CoordinatorOption func(*Coordinator)

func WithCoordinatorLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithCoordinatorMetrics(metrics ports.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

func NewCoordinator(account domain.AccountNumber, fetcher ports.SnapshotFetcher, clock ports.Clock, interval time.Duration, opts ...CoordinatorOption) *Coordinator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	c := &Coordinator{
		account:  account,
		fetcher:  fetcher,
		clock:    clock,
		interval: interval,
		logger:   zap.NewNop(),
		metrics:  ports.NopMetrics{},
		ticks:    systemTicker,
		sem:      make(chan struct{}, 1),
		subs:     make(map[uint64]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Coordinator) Account() domain.AccountNumber {
	return c.account
}

func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// Latest returns the last published snapshot or nil before the first success.
func (c *Coordinator) Latest() *domain.Snapshot {
	return c.latest.Load()
}

func (c *Coordinator) LastSuccess() (time.Time, bool) {
	at := c.lastSuccess.Load()
	if at == nil {
		return time.Time{}, false
	}

	return *at, true
}

func (c *Coordinator) LastFailure() (FetchFailure, bool) {
	failure := c.lastFailure.Load()
	if failure == nil {
		return FetchFailure{}, false
	}

	return *failure, true
}

// Start fetches once immediately, then on every tick of the interval until
// Stop is called or ctx ends. Ticks keep a fixed cadence however long a fetch
// takes. Fetch failures are logged and keep the previous
// snapshot in place.
func (c *Coordinator) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.cancel != nil {
		return ErrCoordinatorRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx, c.done)

	return nil
}

// Stop cancels the poll loop and any fetch it has in flight, then waits for it
// to exit. Subscriber channels are closed.
func (c *Coordinator) Stop() {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()
}

func (c *Coordinator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn("initial snapshot fetch failed", zap.Error(err))
	}

	ticks, stop := c.ticks(c.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("scheduled snapshot fetch failed", zap.Error(err))
			}
		}
	}
}

// Refresh fetches unconditionally.
func (c *Coordinator) Refresh(ctx context.Context) (*domain.Snapshot, error) {
	snapshot, _, err := c.fetch(ctx, true)
	return snapshot, err
}

// RequestRefresh fetches only if 90% of the interval has elapsed since the
// last successful fetch; otherwise the cached snapshot is returned. fetched
// reports whether the API was called.
func (c *Coordinator) RequestRefresh(ctx context.Context) (snapshot *domain.Snapshot, fetched bool, err error) {
	return c.fetch(ctx, false)
}

func (c *Coordinator) due(now time.Time) bool {
	last := c.lastSuccess.Load()
	if last == nil {
		return true
	}

	threshold := time.Duration(float64(c.interval) * throttleRatio)
	return now.Sub(*last) >= threshold
}

func (c *Coordinator) fetch(ctx context.Context, force bool) (*domain.Snapshot, bool, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return c.Latest(), false, ctx.Err()
	}
	defer func() { <-c.sem }()

	started := c.clock.Now()
	if !force && !c.due(started) {
		c.metrics.IncThrottled()
		c.logger.Debug("refresh served from cache", zap.Stringer("account", c.account))
		return c.Latest(), false, nil
	}

	snapshot, err := c.fetcher.FetchSnapshot(ctx, c.account)
	if err == nil && snapshot == nil {
		err = &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: "fetch snapshot", Err: errors.New("empty snapshot")}
	}
	finished := c.clock.Now()
	c.metrics.ObserveFetch(finished.Sub(started), err)

	if err != nil {
		c.lastFailure.Store(&FetchFailure{At: finished, Err: err})
		c.logger.Warn("snapshot fetch failed, keeping previous snapshot",
			zap.Stringer("account", c.account),
			zap.Bool("has_previous", c.Latest() != nil),
			zap.Error(err),
		)
		return c.Latest(), true, fmt.Errorf("fetch snapshot: %w", err)
	}

	published := *snapshot
	c.seq++
	published.Seq = c.seq
	published.AccountNumber = c.account
	if published.FetchedAt.IsZero() {
		published.FetchedAt = finished
	}

	c.latest.Store(&published)
	c.lastSuccess.Store(&finished)
	c.lastFailure.Store(nil)
	c.metrics.SetPublished(c.account.String(), published.Seq, finished)
	c.notify()

	return &published, true, nil
}

// Subscribe registers for "snapshot updated" signals. Signals coalesce: a
// subscriber that has not drained its channel misses nothing but the count.
func (c *Coordinator) Subscribe() (<-chan struct{}, func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan struct{}, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if existing, ok := c.subs[id]; ok {
				close(existing)
				delete(c.subs, id)
			}
		})
	}
}

func (c *Coordinator) notify() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
