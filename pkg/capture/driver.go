// Package capture acquires a live audio tap on another process and delivers
// its PCM to a real-time callback.
//
// A Session drives a Driver (the boundary to the OS audio layer) through a
// fixed acquisition order: resolve the target process, create a tap on it,
// wrap the tap in a private aggregate device, wait for the device to come
// alive, read its stream format, register an IO callback and start the
// device. Any failure releases what was already acquired, in reverse order.
package capture

import (
	"github.com/dittyapp/ditty/pkg/audioio"
)

// ObjectID identifies a tap or aggregate device created by a Driver.
// Zero is never a valid id.
type ObjectID uint32

// IOProcID identifies a registered IO callback. Zero is never a valid id.
type IOProcID uint32

// TapDescription describes a process tap.
type TapDescription struct {
	// UUID uniquely identifies the tap; the aggregate device refers to it.
	UUID string

	// Name is a human readable label.
	Name string

	// Processes are the tapped process ids. Empty taps system output.
	Processes []int32

	// Private hides the tap from other clients.
	Private bool

	// Mute silences the tapped process while it is being captured.
	Mute bool
}

// AggregateDescription describes the device wrapping a tap.
type AggregateDescription struct {
	Name              string
	UID               string
	TapUID            string
	Private           bool
	TapAutoStart      bool
	DriftCompensation bool
}

// IOProc receives interleaved float32 PCM on the driver's real-time thread.
// The slice is only valid for the duration of the call.
type IOProc func(interleaved []float32, channels int)

// Driver is the OS audio layer a Session acquires resources from.
//
// Implementations must be safe for concurrent use. StopDevice must not return
// until the driver has stopped invoking the device's IO procs.
type Driver interface {
	// Name returns the backend name.
	Name() string

	// ResolveProcess returns the ids of processes matching target.
	// It returns ErrProcessNotRunning when none match.
	ResolveProcess(target string) ([]int32, error)

	// ProcessAlive reports whether any of pids is still running.
	ProcessAlive(pids []int32) bool

	CreateTap(desc TapDescription) (ObjectID, error)
	DestroyTap(tap ObjectID) error

	CreateAggregateDevice(desc AggregateDescription) (ObjectID, error)
	DestroyAggregateDevice(device ObjectID) error

	// DeviceIsAlive reports whether the device can deliver audio.
	DeviceIsAlive(device ObjectID) bool

	// StreamFormat returns the device's input format. A zero SampleRate
	// means the format is not known yet.
	StreamFormat(device ObjectID) (audioio.Format, error)

	CreateIOProc(device ObjectID, proc IOProc) (IOProcID, error)
	DestroyIOProc(device ObjectID, proc IOProcID) error

	StartDevice(device ObjectID, proc IOProcID) error
	StopDevice(device ObjectID, proc IOProcID) error
}

// DeviceInfo describes a capture-capable input device.
type DeviceInfo struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	HostAPI    string  `json:"host_api"`
	Channels   int     `json:"channels"`
	SampleRate float64 `json:"sample_rate"`
}
