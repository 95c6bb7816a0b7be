package connector

import (
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dittyapp/ditty/pkg/audioio"
)

// recorder collects state transitions and the live retry timer count seen
// at each one.
type recorder struct {
	mu        sync.Mutex
	states    []State
	maxTimers int
	c         *Connector
}

func (r *recorder) observe(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, to)
	if r.c != nil {
		r.maxTimers = max(r.maxTimers, r.c.RetryTimers())
	}
}

func (r *recorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func testSourceConfig() audioio.Config {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	cfg.BufferDuration = 5 * time.Millisecond
	return cfg
}

func newTestConnector(t *testing.T, src audioio.SampleSource, opts ...Option) (*Connector, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithStateObserver(rec.observe)}, opts...)
	c := New(src, nil, Config{RetryInterval: 5 * time.Millisecond}, opts...)
	rec.mu.Lock()
	rec.c = c
	rec.mu.Unlock()
	t.Cleanup(func() { c.Close() })
	return c, rec
}

func waitState(t *testing.T, c *Connector, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, state is %s", want, c.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConnector_ConnectsImmediately(t *testing.T) {
	src := audioio.NewMockSource(testSourceConfig(), nil)
	c, rec := newTestConnector(t, src)

	if c.State() != Disconnected {
		t.Fatalf("initial state = %s", c.State())
	}
	c.Start()
	waitState(t, c, Connected)

	want := []State{Connecting, Connected}
	if got := rec.snapshot(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
	if c.RetryTimers() != 0 {
		t.Errorf("retry timers = %d, want 0", c.RetryTimers())
	}
	if !src.Stats().Running {
		t.Error("source not running")
	}
}

func TestConnector_RetriesUntilConnected(t *testing.T) {
	src := audioio.NewMockSource(testSourceConfig(), nil, audioio.WithFailures(2))
	c, rec := newTestConnector(t, src)

	c.Start()
	waitState(t, c, Connected)

	want := []State{Connecting, RetryPending, Connecting, RetryPending, Connecting, Connected}
	if got := rec.snapshot(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
	if rec.maxTimers > 1 {
		t.Errorf("saw %d live retry timers", rec.maxTimers)
	}
	if c.RetryTimers() != 0 {
		t.Errorf("retry timer still armed after connecting")
	}

	stats := c.Stats()
	if stats.Attempts != 3 || stats.Failures != 2 || stats.Connects != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LastError != "" {
		t.Errorf("last error not cleared: %q", stats.LastError)
	}
}

func TestConnector_StartIsIdempotent(t *testing.T) {
	src := audioio.NewMockSource(testSourceConfig(), nil)
	c, rec := newTestConnector(t, src)

	c.Start()
	c.Start()
	waitState(t, c, Connected)
	c.Start()

	if got := rec.snapshot(); !slices.Equal(got, []State{Connecting, Connected}) {
		t.Errorf("transitions = %v", got)
	}
	if src.Stats().Opens != 1 {
		t.Errorf("opens = %d, want 1", src.Stats().Opens)
	}
}

func TestConnector_StopWhileRetryPending(t *testing.T) {
	src := audioio.NewMockSource(testSourceConfig(), nil, audioio.WithFailures(1000))
	c := New(src, nil, Config{RetryInterval: time.Hour})
	defer c.Close()

	c.Start()
	waitState(t, c, RetryPending)
	if c.RetryTimers() != 1 {
		t.Fatalf("retry timers = %d, want 1", c.RetryTimers())
	}

	c.Stop()
	if c.State() != Disconnected {
		t.Errorf("state = %s, want disconnected", c.State())
	}
	if c.RetryTimers() != 0 {
		t.Errorf("retry timer survived Stop")
	}
}

func TestConnector_StopDuringAttempt(t *testing.T) {
	src := audioio.NewMockSource(testSourceConfig(), nil, audioio.WithOpenDelay(time.Hour))
	c, _ := newTestConnector(t, src)

	c.Start()
	waitState(t, c, Connecting)

	start := time.Now()
	c.Stop()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop took %v", elapsed)
	}
	if c.State() != Disconnected {
		t.Errorf("state = %s, want disconnected", c.State())
	}
	if src.Stats().Running {
		t.Error("source left running")
	}
}

func TestConnector_StopAndRestart(t *testing.T) {
	src := audioio.NewMockSource(testSourceConfig(), nil)
	var resets atomic.Int32
	c, _ := newTestConnector(t, src, WithDisconnectHook(func() { resets.Add(1) }))

	c.Stop()
	if resets.Load() != 0 {
		t.Error("Stop before Start ran the disconnect hook")
	}

	c.Start()
	waitState(t, c, Connected)
	c.Stop()
	c.Stop()
	if resets.Load() != 1 {
		t.Errorf("disconnect hook ran %d times, want 1", resets.Load())
	}
	if src.Stats().Running {
		t.Error("source still running after Stop")
	}

	c.Start()
	waitState(t, c, Connected)
	if src.Stats().Opens != 2 {
		t.Errorf("opens = %d, want 2", src.Stats().Opens)
	}
}

func TestConnector_LossRearmsRetry(t *testing.T) {
	src := audioio.NewMockSource(testSourceConfig(), nil)
	var resets atomic.Int32
	c, rec := newTestConnector(t, src, WithDisconnectHook(func() { resets.Add(1) }))

	c.Start()
	waitState(t, c, Connected)

	src.Lose()

	deadline := time.Now().Add(2 * time.Second)
	for c.Stats().Connects < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("did not reconnect, transitions %v", rec.snapshot())
		}
		time.Sleep(time.Millisecond)
	}
	waitState(t, c, Connected)

	want := []State{Connecting, Connected, RetryPending, Connecting, Connected}
	if got := rec.snapshot(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
	if c.Stats().Losses != 1 {
		t.Errorf("losses = %d, want 1", c.Stats().Losses)
	}
	if resets.Load() != 1 {
		t.Errorf("disconnect hook ran %d times, want 1", resets.Load())
	}
}

func TestConnector_CloseIsFinal(t *testing.T) {
	src := audioio.NewMockSource(testSourceConfig(), nil)
	c := New(src, nil, Config{RetryInterval: 5 * time.Millisecond})

	c.Start()
	waitState(t, c, Connected)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c.Start()
	time.Sleep(10 * time.Millisecond)
	if c.State() != Disconnected {
		t.Errorf("Start after Close changed state to %s", c.State())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		RetryPending: "retry_pending",
		State(42):    "state(42)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	cfg.RetryInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero retry interval")
	}
}
