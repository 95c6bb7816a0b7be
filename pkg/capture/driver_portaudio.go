//go:build cgo

package capture

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/dittyapp/ditty/pkg/audioio"
)

// PortAudioDriver captures a loopback input device through PortAudio.
//
// A tap is a PortAudio host session (Initialize/Terminate), the aggregate
// device is the loopback input whose name contains the configured device
// string, and an IO proc is an input stream with a callback. Routing the
// target's output into the loopback device (BlackHole, a PulseAudio monitor
// source, a Loopback device) is done outside this process.
type PortAudioDriver struct {
	device string

	mu      sync.Mutex
	next    uint32
	taps    map[ObjectID]bool
	devices map[ObjectID]*portaudio.DeviceInfo
	streams map[IOProcID]*portaudio.Stream
}

// NewPortAudioDriver creates a driver that captures the input device whose
// name contains device. An empty device selects the default input.
func NewPortAudioDriver(device string) (*PortAudioDriver, error) {
	return &PortAudioDriver{
		device:  device,
		taps:    make(map[ObjectID]bool),
		devices: make(map[ObjectID]*portaudio.DeviceInfo),
		streams: make(map[IOProcID]*portaudio.Stream),
	}, nil
}

// Name returns "portaudio".
func (d *PortAudioDriver) Name() string {
	return string(audioio.BackendPortAudio)
}

// ResolveProcess implements Driver.
func (d *PortAudioDriver) ResolveProcess(target string) ([]int32, error) {
	return FindProcesses(target)
}

// ProcessAlive implements Driver.
func (d *PortAudioDriver) ProcessAlive(pids []int32) bool {
	return ProcessesAlive(pids)
}

// CreateTap initializes a PortAudio host session.
func (d *PortAudioDriver) CreateTap(desc TapDescription) (ObjectID, error) {
	if err := portaudio.Initialize(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	id := ObjectID(d.next)
	d.taps[id] = true
	return id, nil
}

// DestroyTap terminates the host session created by CreateTap.
func (d *PortAudioDriver) DestroyTap(tap ObjectID) error {
	d.mu.Lock()
	if !d.taps[tap] {
		d.mu.Unlock()
		return ErrUnknownObject
	}
	delete(d.taps, tap)
	d.mu.Unlock()

	return portaudio.Terminate()
}

// CreateAggregateDevice selects the loopback input device.
func (d *PortAudioDriver) CreateAggregateDevice(desc AggregateDescription) (ObjectID, error) {
	info, err := d.findInput()
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	id := ObjectID(d.next)
	d.devices[id] = info
	return id, nil
}

func (d *PortAudioDriver) findInput() (*portaudio.DeviceInfo, error) {
	if d.device == "" {
		info, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, err
		}
		return info, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(d.device)
	for _, info := range devices {
		if info.MaxInputChannels > 0 && strings.Contains(strings.ToLower(info.Name), want) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("no input device matching %q", d.device)
}

// DestroyAggregateDevice forgets the selected device.
func (d *PortAudioDriver) DestroyAggregateDevice(device ObjectID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.devices[device]; !ok {
		return ErrUnknownObject
	}
	delete(d.devices, device)
	return nil
}

// DeviceIsAlive reports whether the device is still enumerated.
func (d *PortAudioDriver) DeviceIsAlive(device ObjectID) bool {
	d.mu.Lock()
	info, ok := d.devices[device]
	d.mu.Unlock()
	if !ok {
		return false
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return false
	}
	for _, other := range devices {
		if other.Name == info.Name && other.MaxInputChannels > 0 {
			return true
		}
	}
	return false
}

// StreamFormat returns the device's default rate and up to two channels.
func (d *PortAudioDriver) StreamFormat(device ObjectID) (audioio.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.devices[device]
	if !ok {
		return audioio.Format{}, ErrUnknownObject
	}
	return audioio.Format{
		SampleRate: info.DefaultSampleRate,
		Channels:   min(info.MaxInputChannels, 2),
	}, nil
}

// CreateIOProc opens an input stream that feeds proc.
func (d *PortAudioDriver) CreateIOProc(device ObjectID, proc IOProc) (IOProcID, error) {
	d.mu.Lock()
	info, ok := d.devices[device]
	d.mu.Unlock()
	if !ok {
		return 0, ErrUnknownObject
	}

	params := portaudio.LowLatencyParameters(info, nil)
	channels := min(info.MaxInputChannels, 2)
	params.Input.Channels = channels

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		proc(in, channels)
	})
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	id := IOProcID(d.next)
	d.streams[id] = stream
	return id, nil
}

// DestroyIOProc closes the stream.
func (d *PortAudioDriver) DestroyIOProc(device ObjectID, proc IOProcID) error {
	d.mu.Lock()
	stream, ok := d.streams[proc]
	delete(d.streams, proc)
	d.mu.Unlock()
	if !ok {
		return ErrUnknownObject
	}
	return stream.Close()
}

// StartDevice starts the stream.
func (d *PortAudioDriver) StartDevice(device ObjectID, proc IOProcID) error {
	stream, err := d.stream(proc)
	if err != nil {
		return err
	}
	return stream.Start()
}

// StopDevice stops the stream. PortAudio returns once the callback has
// finished its last buffer.
func (d *PortAudioDriver) StopDevice(device ObjectID, proc IOProcID) error {
	stream, err := d.stream(proc)
	if err != nil {
		return err
	}
	return stream.Stop()
}

func (d *PortAudioDriver) stream(proc IOProcID) (*portaudio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	stream, ok := d.streams[proc]
	if !ok {
		return nil, ErrUnknownObject
	}
	return stream, nil
}

// ListDevices returns the input devices PortAudio can capture from.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var out []DeviceInfo
	for _, info := range devices {
		if info.MaxInputChannels == 0 {
			continue
		}
		host := ""
		if info.HostApi != nil {
			host = info.HostApi.Name
		}
		out = append(out, DeviceInfo{
			Index:      info.Index,
			Name:       info.Name,
			HostAPI:    host,
			Channels:   info.MaxInputChannels,
			SampleRate: info.DefaultSampleRate,
		})
	}
	return out, nil
}

var _ Driver = (*PortAudioDriver)(nil)
