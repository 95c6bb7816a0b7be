package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dittyapp/ditty/pkg/audioio"
)

// SessionConfig holds session acquisition parameters.
type SessionConfig struct {
	// Target is matched against running process names.
	Target string

	// Mute silences the target while it is tapped.
	Mute bool

	// AliveAttempts and AliveInterval bound the wait for the aggregate
	// device to report alive.
	AliveAttempts int
	AliveInterval time.Duration

	// FormatAttempts and FormatInterval bound the wait for a stream format
	// with a positive sample rate.
	FormatAttempts int
	FormatInterval time.Duration

	// WatchdogInterval is how often an open session checks that the device
	// and the target process are still alive. Zero disables the watchdog.
	WatchdogInterval time.Duration
}

// DefaultSessionConfig returns the standard polling budget.
func DefaultSessionConfig(target string) SessionConfig {
	return SessionConfig{
		Target:           target,
		AliveAttempts:    20,
		AliveInterval:    100 * time.Millisecond,
		FormatAttempts:   5,
		FormatInterval:   50 * time.Millisecond,
		WatchdogInterval: time.Second,
	}
}

// Session is one live acquisition of a tap, aggregate device and IO callback.
// It implements audioio.SampleSource.
type Session struct {
	drv    Driver
	cfg    SessionConfig
	logger *slog.Logger

	// mu serializes Open and Close and guards the driver resources. It is
	// held across the polling steps, so readers never take it.
	mu      sync.Mutex
	pids    []int32
	tap     ObjectID
	device  ObjectID
	ioProc  IOProcID
	started bool
	stopDog chan struct{}
	dogWG   sync.WaitGroup

	// stateMu guards what Format, Done and Stats report.
	stateMu sync.Mutex
	open    bool
	format  audioio.Format
	lost    chan struct{}

	gate callbackGate

	opens    atomic.Int64
	failures atomic.Int64
	buffers  atomic.Int64
	frames   atomic.Int64
}

// NewSession creates a closed session on drv.
func NewSession(drv Driver, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		drv:    drv,
		cfg:    cfg,
		logger: logger.With("component", "capture", "driver", drv.Name()),
	}
}

// Open acquires the tap and starts delivering mono frames to handler.
// On failure every resource acquired so far has been released.
func (s *Session) Open(ctx context.Context, handler audioio.FrameHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isOpen() {
		return nil
	}

	format, err := s.acquire(ctx, handler)
	if err != nil {
		s.failures.Add(1)
		if relErr := s.release(); relErr != nil {
			s.logger.Debug("rollback incomplete", "error", relErr)
		}
		return err
	}

	lost := make(chan struct{})
	s.stateMu.Lock()
	s.open, s.format, s.lost = true, format, lost
	s.stateMu.Unlock()

	s.opens.Add(1)
	if s.cfg.WatchdogInterval > 0 {
		s.stopDog = make(chan struct{})
		s.dogWG.Add(1)
		go s.watchdog(s.device, s.pids, lost, s.stopDog)
	}

	s.logger.Info("capture session open",
		"target", s.cfg.Target,
		"pids", s.pids,
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
	)
	return nil
}

func (s *Session) acquire(ctx context.Context, handler audioio.FrameHandler) (audioio.Format, error) {
	var none audioio.Format
	if err := ctx.Err(); err != nil {
		return none, stepError(StepResolveProcess, nil, err)
	}

	pids, err := s.drv.ResolveProcess(s.cfg.Target)
	if err != nil {
		return none, stepError(StepResolveProcess, ErrProcessNotRunning, err)
	}
	s.pids = pids

	tapUID := uuid.NewString()
	tap, err := s.drv.CreateTap(TapDescription{
		UUID:      tapUID,
		Name:      "ditty tap: " + s.cfg.Target,
		Processes: pids,
		Private:   true,
		Mute:      s.cfg.Mute,
	})
	if err != nil {
		return none, stepError(StepCreateTap, ErrTapCreate, err)
	}
	s.tap = tap

	device, err := s.drv.CreateAggregateDevice(AggregateDescription{
		Name:              "ditty aggregate",
		UID:               uuid.NewString(),
		TapUID:            tapUID,
		Private:           true,
		TapAutoStart:      true,
		DriftCompensation: true,
	})
	if err != nil {
		return none, stepError(StepCreateDevice, ErrDeviceCreate, err)
	}
	s.device = device

	if err := s.waitAlive(ctx); err != nil {
		return none, err
	}

	format, err := s.waitFormat(ctx)
	if err != nil {
		return none, err
	}

	s.gate.reset()
	proc, err := s.drv.CreateIOProc(device, s.ioCallback(handler, format))
	if err != nil {
		return none, stepError(StepCreateIOProc, ErrIOProc, err)
	}
	s.ioProc = proc

	if err := s.drv.StartDevice(device, proc); err != nil {
		return none, stepError(StepStartDevice, ErrDeviceStart, err)
	}
	s.started = true

	return format, nil
}

func (s *Session) waitAlive(ctx context.Context) error {
	for attempt := 0; attempt < s.cfg.AliveAttempts; attempt++ {
		if s.drv.DeviceIsAlive(s.device) {
			return nil
		}
		if err := sleepCtx(ctx, s.cfg.AliveInterval); err != nil {
			return stepError(StepDeviceAlive, nil, err)
		}
	}
	return stepError(StepDeviceAlive, ErrDeviceNotAlive, nil)
}

func (s *Session) waitFormat(ctx context.Context) (audioio.Format, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.FormatAttempts; attempt++ {
		format, err := s.drv.StreamFormat(s.device)
		if err == nil && format.SampleRate > 0 {
			if format.Channels < 1 {
				format.Channels = 1
			}
			return format, nil
		}
		lastErr = err
		if err := sleepCtx(ctx, s.cfg.FormatInterval); err != nil {
			return audioio.Format{}, stepError(StepStreamFormat, nil, err)
		}
	}
	return audioio.Format{}, stepError(StepStreamFormat, ErrFormatUnavailable, lastErr)
}

// ioCallback builds the real-time callback. It owns its mono scratch buffer
// and touches nothing else of the session except the gate and counters.
func (s *Session) ioCallback(handler audioio.FrameHandler, format audioio.Format) IOProc {
	mono := audioio.NewMonoExtractor(0)
	rate := format.SampleRate

	return func(interleaved []float32, channels int) {
		if !s.gate.enter() {
			return
		}
		defer s.gate.exit()

		if channels < 1 {
			channels = format.Channels
		}
		frames := mono.Extract(interleaved, channels)
		s.buffers.Add(1)
		s.frames.Add(int64(len(frames)))
		if handler != nil && len(frames) > 0 {
			handler(frames, rate)
		}
	}
}

// watchdog closes lost once the device or the target process disappears.
func (s *Session) watchdog(device ObjectID, pids []int32, lost, stop chan struct{}) {
	defer s.dogWG.Done()

	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			reason := ""
			switch {
			case !s.drv.DeviceIsAlive(device):
				reason = "device"
			case !s.drv.ProcessAlive(pids):
				reason = "process"
			}
			if reason != "" {
				s.logger.Warn("capture source lost", "reason", reason)
				close(lost)
				return
			}
		}
	}
}

// Close stops the device and releases the IO proc, device and tap, in that
// order. It waits for in-flight callbacks and is safe to call repeatedly.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopDog != nil {
		close(s.stopDog)
		s.dogWG.Wait()
		s.stopDog = nil
	}

	s.stateMu.Lock()
	wasOpen := s.open
	s.open, s.format, s.lost = false, audioio.Format{}, nil
	s.stateMu.Unlock()

	err := s.release()
	if wasOpen {
		s.logger.Info("capture session closed")
	}
	return err
}

// release tears down whatever acquire left behind. Callers hold s.mu.
func (s *Session) release() error {
	var errs []error

	s.gate.close()
	if s.started {
		if err := s.drv.StopDevice(s.device, s.ioProc); err != nil {
			errs = append(errs, fmt.Errorf("stop device: %w", err))
		}
		s.started = false
	}
	s.gate.drain()

	if s.ioProc != 0 {
		if err := s.drv.DestroyIOProc(s.device, s.ioProc); err != nil {
			errs = append(errs, fmt.Errorf("destroy io proc: %w", err))
		}
		s.ioProc = 0
	}
	if s.device != 0 {
		if err := s.drv.DestroyAggregateDevice(s.device); err != nil {
			errs = append(errs, fmt.Errorf("destroy aggregate device: %w", err))
		}
		s.device = 0
	}
	if s.tap != 0 {
		if err := s.drv.DestroyTap(s.tap); err != nil {
			errs = append(errs, fmt.Errorf("destroy tap: %w", err))
		}
		s.tap = 0
	}

	s.pids = nil
	return errors.Join(errs...)
}

// Done is closed when the device or the target process is lost.
func (s *Session) Done() <-chan struct{} {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lost
}

// Format returns the negotiated stream format while open.
func (s *Session) Format() audioio.Format {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.format
}

func (s *Session) isOpen() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.open
}

// Name returns the driver name.
func (s *Session) Name() string {
	return s.drv.Name()
}

// Stats returns session statistics.
func (s *Session) Stats() audioio.SourceStats {
	running := s.isOpen()

	return audioio.SourceStats{
		Opens:    s.opens.Load(),
		Failures: s.failures.Load(),
		Buffers:  s.buffers.Load(),
		Frames:   s.frames.Load(),
		Running:  running,
		Backend:  s.drv.Name(),
	}
}

var _ audioio.SourceWithStats = (*Session)(nil)

// callbackGate keeps IO callbacks out of a session that is tearing down.
// A callback enters only while the gate is open; close stops new entries and
// drain waits for the ones already inside.
type callbackGate struct {
	closed   atomic.Bool
	inflight atomic.Int32
}

func (g *callbackGate) reset() {
	g.closed.Store(false)
}

func (g *callbackGate) enter() bool {
	g.inflight.Add(1)
	if g.closed.Load() {
		g.inflight.Add(-1)
		return false
	}
	return true
}

func (g *callbackGate) exit() {
	g.inflight.Add(-1)
}

func (g *callbackGate) close() {
	g.closed.Store(true)
}

func (g *callbackGate) drain() {
	for g.inflight.Load() > 0 {
		time.Sleep(100 * time.Microsecond)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
