package audioio

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// ErrMockUnavailable is returned by MockSource.Open while injected failures remain.
var ErrMockUnavailable = errors.New("audioio: mock source unavailable")

// MockSource is a mock sample source for testing.
// It generates synthetic audio (silence or sine wave) on its own goroutine and
// can be told to fail a number of Open calls before succeeding.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	failLeft int
	stopCh   chan struct{}
	doneCh   chan struct{}
	wg       sync.WaitGroup

	// Stats
	opens    atomic.Int64
	failures atomic.Int64
	buffers  atomic.Int64
	frames   atomic.Int64

	// Synthetic audio generation
	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
	openDelay time.Duration
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithFailures makes the first n calls to Open fail with ErrMockUnavailable.
func WithFailures(n int) MockSourceOption {
	return func(m *MockSource) {
		m.failLeft = n
	}
}

// WithOpenDelay makes every Open call take d, honoring context cancellation.
func WithOpenDelay(d time.Duration) MockSourceOption {
	return func(m *MockSource) {
		m.openDelay = d
	}
}

// NewMockSource creates a new mock sample source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		frequency: 0, // Silence by default
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Open begins generating audio, unless an injected failure is pending.
func (m *MockSource) Open(ctx context.Context, handler FrameHandler) error {
	if m.openDelay > 0 {
		select {
		case <-ctx.Done():
			m.failures.Add(1)
			return ctx.Err()
		case <-time.After(m.openDelay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	if m.failLeft > 0 {
		m.failLeft--
		m.failures.Add(1)
		return ErrMockUnavailable
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.opens.Add(1)

	m.wg.Add(1)
	go m.generateLoop(m.stopCh, m.doneCh, handler)

	m.logger.Debug("mock sample source opened",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)

	return nil
}

func (m *MockSource) generateLoop(stop, lost <-chan struct{}, handler FrameHandler) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	channels := max(1, m.cfg.Channels)
	interleaved := make([]float32, m.cfg.BufferSize()*channels)
	mono := NewMonoExtractor(m.cfg.BufferSize())

	for {
		select {
		case <-stop:
			return
		case <-lost:
			return
		case <-ticker.C:
			m.fill(interleaved, channels)
			frames := mono.Extract(interleaved, channels)
			if handler != nil {
				handler(frames, m.cfg.SampleRate)
			}
			m.buffers.Add(1)
			m.frames.Add(int64(len(frames)))
		}
	}
}

func (m *MockSource) fill(interleaved []float32, channels int) {
	frames := len(interleaved) / channels
	if m.frequency <= 0 {
		clear(interleaved)
		return
	}

	// Generate sine wave
	for i := 0; i < frames; i++ {
		sample := float32(m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/m.cfg.SampleRate))
		for ch := 0; ch < channels; ch++ {
			interleaved[i*channels+ch] = sample
		}

		m.phase++
		if m.phase >= m.cfg.SampleRate {
			m.phase = 0
		}
	}
}

// Close halts audio generation and waits for the generator to exit.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Debug("mock sample source closed")
	return nil
}

// Lose simulates the tapped process going away: frame delivery stops and
// Done is closed, but resources are held until Close.
func (m *MockSource) Lose() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || m.doneCh == nil {
		return
	}
	select {
	case <-m.doneCh:
	default:
		close(m.doneCh)
	}
}

// Done returns the loss channel of the current session.
func (m *MockSource) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	return m.doneCh
}

// Format returns the mock's configured format while running.
func (m *MockSource) Format() Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return Format{}
	}
	return Format{SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		Opens:    m.opens.Load(),
		Failures: m.failures.Load(),
		Buffers:  m.buffers.Load(),
		Frames:   m.frames.Load(),
		Running:  running,
		Backend:  "mock",
	}
}

// Ensure MockSource implements SourceWithStats.
var _ SourceWithStats = (*MockSource)(nil)
