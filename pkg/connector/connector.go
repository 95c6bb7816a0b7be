// Package connector keeps a sample source connected.
//
// A Connector owns one audioio.SampleSource. Start begins acquisition; a
// failed attempt or a lost session arms a single periodic retry timer that
// fires until acquisition succeeds or Stop is called. No error escapes
// Start: every failure is treated as transient and retried.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dittyapp/ditty/pkg/audioio"
)

// Config holds connector parameters.
type Config struct {
	// RetryInterval is the period of the retry timer.
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval" json:"retry_interval"`

	// AttemptTimeout bounds one acquisition attempt. Zero means no bound
	// beyond the source's own polling budget.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" yaml:"attempt_timeout" json:"attempt_timeout"`
}

// DefaultConfig returns a 3 second retry interval.
func DefaultConfig() Config {
	return Config{
		RetryInterval:  3 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry_interval must be positive, got %v", c.RetryInterval)
	}
	if c.AttemptTimeout < 0 {
		return fmt.Errorf("attempt_timeout must not be negative, got %v", c.AttemptTimeout)
	}
	return nil
}

// Stats contains connector statistics.
type Stats struct {
	State       State  `json:"state"`
	Attempts    int64  `json:"attempts"`
	Failures    int64  `json:"failures"`
	Connects    int64  `json:"connects"`
	Losses      int64  `json:"losses"`
	RetryTimers int    `json:"retry_timers"`
	LastError   string `json:"last_error,omitempty"`
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStateObserver registers fn to be called on every state transition.
// Calls are sequential. fn must not call Start or Stop.
func WithStateObserver(fn func(from, to State)) Option {
	return func(c *Connector) {
		c.observer = fn
	}
}

// WithDisconnectHook registers fn to be called whenever a session ends,
// after the source has been closed.
func WithDisconnectHook(fn func()) Option {
	return func(c *Connector) {
		c.onDisconnect = fn
	}
}

// Connector drives a SampleSource through the connection state machine.
type Connector struct {
	src     audioio.SampleSource
	handler audioio.FrameHandler
	cfg     Config
	logger  *slog.Logger

	observer     func(from, to State)
	onDisconnect func()

	// opMu serializes Start, Stop and Close.
	opMu   sync.Mutex
	closed bool
	cancel context.CancelFunc
	exited chan struct{}

	mu      sync.Mutex
	state   State
	lastErr error

	// Owned by the run goroutine.
	streak int
	retry  *time.Ticker

	timers   atomic.Int32
	attempts atomic.Int64
	failures atomic.Int64
	connects atomic.Int64
	losses   atomic.Int64
}

// New creates a disconnected connector delivering frames from src to handler.
func New(src audioio.SampleSource, handler audioio.FrameHandler, cfg Config, opts ...Option) *Connector {
	c := &Connector{
		src:     src,
		handler: handler,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "connector", "source", src.Name())
	return c
}

// Start begins acquisition. It is a no-op unless the connector is
// disconnected.
func (c *Connector) Start() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.closed || c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.exited = make(chan struct{})

	c.setState(Connecting)
	go c.run(ctx, c.exited)
}

// Stop cancels any in-flight attempt and the retry timer, closes the source
// and returns to Disconnected. It blocks until the connector is idle and is
// safe to call from any goroutine and repeatedly.
func (c *Connector) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopLocked()
}

func (c *Connector) stopLocked() {
	if c.cancel == nil {
		return
	}

	c.cancel()
	<-c.exited
	c.cancel = nil
	c.exited = nil

	c.teardown()
	c.setState(Disconnected)
	c.logger.Info("capture stopped")
}

// Close stops the connector permanently.
func (c *Connector) Close() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopLocked()
	c.closed = true
	return nil
}

// State returns the current state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RetryTimers returns the number of live retry timers, 0 or 1.
func (c *Connector) RetryTimers() int {
	return int(c.timers.Load())
}

// Stats returns connector statistics.
func (c *Connector) Stats() Stats {
	c.mu.Lock()
	state, lastErr := c.state, c.lastErr
	c.mu.Unlock()

	s := Stats{
		State:       state,
		Attempts:    c.attempts.Load(),
		Failures:    c.failures.Load(),
		Connects:    c.connects.Load(),
		Losses:      c.losses.Load(),
		RetryTimers: c.RetryTimers(),
	}
	if lastErr != nil {
		s.LastError = lastErr.Error()
	}
	return s
}

func (c *Connector) run(ctx context.Context, exited chan struct{}) {
	defer close(exited)
	defer c.disarm()

	for {
		lost, ok := c.attempt(ctx)
		if ctx.Err() != nil {
			return
		}

		if ok {
			select {
			case <-ctx.Done():
				return
			case <-lost:
			}
			c.losses.Add(1)
			c.logger.Warn("capture source lost, scheduling retry", "retry_in", c.cfg.RetryInterval)
			c.teardown()
		}

		c.arm()
		c.setState(RetryPending)

		select {
		case <-ctx.Done():
			return
		case <-c.retry.C:
		}
		c.setState(Connecting)
	}
}

// arm starts the retry ticker unless it is already running.
func (c *Connector) arm() {
	if c.retry != nil {
		return
	}
	c.retry = time.NewTicker(c.cfg.RetryInterval)
	c.timers.Add(1)
}

func (c *Connector) disarm() {
	if c.retry == nil {
		return
	}
	c.retry.Stop()
	c.retry = nil
	c.timers.Add(-1)
}

// attempt runs one acquisition. On success it returns the source's loss
// channel, which may be nil.
func (c *Connector) attempt(ctx context.Context) (<-chan struct{}, bool) {
	n := c.attempts.Add(1)

	actx := ctx
	if c.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		defer cancel()
	}

	err := c.src.Open(actx, c.handler)
	if ctx.Err() != nil {
		return nil, false
	}
	if err != nil {
		c.failures.Add(1)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()

		c.streak++
		if c.streak == 1 {
			c.logger.Warn("capture attempt failed, will retry", "attempt", n, "error", err, "retry_in", c.cfg.RetryInterval)
		} else {
			c.logger.Debug("capture attempt failed", "attempt", n, "error", err)
		}
		return nil, false
	}

	c.connects.Add(1)
	c.streak = 0
	c.disarm()
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()

	format := c.src.Format()
	c.logger.Info("capture connected", "attempt", n, "sample_rate", format.SampleRate, "channels", format.Channels)
	c.setState(Connected)
	return c.src.Done(), true
}

func (c *Connector) teardown() {
	if err := c.src.Close(); err != nil {
		c.logger.Debug("source close reported errors", "error", err)
	}
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
}

func (c *Connector) setState(to State) {
	c.mu.Lock()
	from := c.state
	if from == to {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	c.logger.Debug("state change", "from", from, "to", to)
	if c.observer != nil {
		c.observer(from, to)
	}
}
