package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dittyapp/ditty/pkg/audioio"
)

// ErrMockFault is the default error injected by MockDriver.FailAt.
var ErrMockFault = errors.New("capture: injected fault")

// MockDriver is an in-memory Driver for testing.
// It records every call, counts live resources and can fail any step.
// IO procs only run when Fire is called.
type MockDriver struct {
	mu sync.Mutex

	next    uint32
	taps    map[ObjectID]bool
	devices map[ObjectID]bool
	procs   map[IOProcID]mockProc
	running map[IOProcID]bool
	calls   []string

	faults       map[Step]error
	aliveAfter   int
	alivePolls   int
	deviceAlive  bool
	processAlive bool
	format       audioio.Format
	formatAfter  int
	formatPolls  int
	pids         []int32
}

type mockProc struct {
	device ObjectID
	fn     IOProc
}

// NewMockDriver creates a mock whose target is running and whose device
// comes alive immediately at 48 kHz stereo.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		taps:         make(map[ObjectID]bool),
		devices:      make(map[ObjectID]bool),
		procs:        make(map[IOProcID]mockProc),
		running:      make(map[IOProcID]bool),
		faults:       make(map[Step]error),
		deviceAlive:  true,
		processAlive: true,
		format:       audioio.Format{SampleRate: 48000, Channels: 2},
		pids:         []int32{4242},
	}
}

// FailAt makes step fail. A nil err injects ErrMockFault. For
// StepDeviceAlive and StepStreamFormat the device never becomes ready.
func (m *MockDriver) FailAt(step Step, err error) {
	if err == nil {
		err = ErrMockFault
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[step] = err
}

// ClearFaults removes every injected fault.
func (m *MockDriver) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.faults)
}

// AliveAfter makes DeviceIsAlive report false for the first n polls.
func (m *MockDriver) AliveAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliveAfter, m.alivePolls = n, 0
}

// FormatAfter makes StreamFormat report a zero rate for the first n polls.
func (m *MockDriver) FormatAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.formatAfter, m.formatPolls = n, 0
}

// SetFormat sets the format reported for every device.
func (m *MockDriver) SetFormat(f audioio.Format) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.format = f
}

// SetDeviceAlive simulates the device disappearing or returning.
func (m *MockDriver) SetDeviceAlive(alive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceAlive = alive
}

// SetProcessAlive simulates the target process exiting or returning.
func (m *MockDriver) SetProcessAlive(alive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processAlive = alive
}

// Fire invokes every started IO proc with interleaved, synchronously.
// It reports how many procs ran.
func (m *MockDriver) Fire(interleaved []float32, channels int) int {
	m.mu.Lock()
	var fns []IOProc
	for id, p := range m.procs {
		if m.running[id] {
			fns = append(fns, p.fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(interleaved, channels)
	}
	return len(fns)
}

// FireAny invokes every registered IO proc, started or not. It mimics a
// driver thread that is already inside a callback when the device stops.
func (m *MockDriver) FireAny(interleaved []float32, channels int) int {
	m.mu.Lock()
	var fns []IOProc
	for _, p := range m.procs {
		fns = append(fns, p.fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(interleaved, channels)
	}
	return len(fns)
}

// Live returns the number of taps, devices and IO procs not yet destroyed.
func (m *MockDriver) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.taps) + len(m.devices) + len(m.procs)
}

// Running returns the number of started IO procs.
func (m *MockDriver) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Calls returns the names of driver calls that changed state, in order.
func (m *MockDriver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// ResetCalls clears the call log.
func (m *MockDriver) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockDriver) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *MockDriver) id() uint32 {
	m.next++
	return m.next
}

// Name returns "mock".
func (m *MockDriver) Name() string {
	return "mock"
}

// ResolveProcess implements Driver.
func (m *MockDriver) ResolveProcess(target string) ([]int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ResolveProcess")

	if err := m.faults[StepResolveProcess]; err != nil {
		return nil, err
	}
	if !m.processAlive {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotRunning, target)
	}
	return append([]int32(nil), m.pids...), nil
}

// ProcessAlive implements Driver.
func (m *MockDriver) ProcessAlive(pids []int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processAlive
}

// CreateTap implements Driver.
func (m *MockDriver) CreateTap(desc TapDescription) (ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateTap")

	if err := m.faults[StepCreateTap]; err != nil {
		return 0, err
	}
	id := ObjectID(m.id())
	m.taps[id] = true
	return id, nil
}

// DestroyTap implements Driver.
func (m *MockDriver) DestroyTap(tap ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DestroyTap")

	if !m.taps[tap] {
		return ErrUnknownObject
	}
	delete(m.taps, tap)
	return nil
}

// CreateAggregateDevice implements Driver.
func (m *MockDriver) CreateAggregateDevice(desc AggregateDescription) (ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateAggregateDevice")

	if err := m.faults[StepCreateDevice]; err != nil {
		return 0, err
	}
	id := ObjectID(m.id())
	m.devices[id] = true
	return id, nil
}

// DestroyAggregateDevice implements Driver.
func (m *MockDriver) DestroyAggregateDevice(device ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DestroyAggregateDevice")

	if !m.devices[device] {
		return ErrUnknownObject
	}
	delete(m.devices, device)
	return nil
}

// DeviceIsAlive implements Driver.
func (m *MockDriver) DeviceIsAlive(device ObjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.faults[StepDeviceAlive] != nil || !m.devices[device] || !m.deviceAlive {
		return false
	}
	if m.alivePolls < m.aliveAfter {
		m.alivePolls++
		return false
	}
	return true
}

// StreamFormat implements Driver.
func (m *MockDriver) StreamFormat(device ObjectID) (audioio.Format, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[StepStreamFormat]; err != nil {
		return audioio.Format{}, err
	}
	if !m.devices[device] {
		return audioio.Format{}, ErrUnknownObject
	}
	if m.formatPolls < m.formatAfter {
		m.formatPolls++
		return audioio.Format{}, nil
	}
	return m.format, nil
}

// CreateIOProc implements Driver.
func (m *MockDriver) CreateIOProc(device ObjectID, proc IOProc) (IOProcID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateIOProc")

	if err := m.faults[StepCreateIOProc]; err != nil {
		return 0, err
	}
	if !m.devices[device] {
		return 0, ErrUnknownObject
	}
	id := IOProcID(m.id())
	m.procs[id] = mockProc{device: device, fn: proc}
	return id, nil
}

// DestroyIOProc implements Driver.
func (m *MockDriver) DestroyIOProc(device ObjectID, proc IOProcID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DestroyIOProc")

	if _, ok := m.procs[proc]; !ok {
		return ErrUnknownObject
	}
	delete(m.procs, proc)
	delete(m.running, proc)
	return nil
}

// StartDevice implements Driver.
func (m *MockDriver) StartDevice(device ObjectID, proc IOProcID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("StartDevice")

	if err := m.faults[StepStartDevice]; err != nil {
		return err
	}
	if _, ok := m.procs[proc]; !ok {
		return ErrUnknownObject
	}
	m.running[proc] = true
	return nil
}

// StopDevice implements Driver.
func (m *MockDriver) StopDevice(device ObjectID, proc IOProcID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("StopDevice")

	delete(m.running, proc)
	return nil
}

var _ Driver = (*MockDriver)(nil)
