package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors for capture failures. Every acquisition failure is wrapped
// in a StepError and also matches one of these via errors.Is.
var (
	// ErrProcessNotRunning is returned when the target process cannot be found.
	ErrProcessNotRunning = errors.New("capture: target process not running")

	// ErrTapCreate is returned when the process tap cannot be created.
	ErrTapCreate = errors.New("capture: tap creation failed")

	// ErrDeviceCreate is returned when the aggregate device cannot be created.
	ErrDeviceCreate = errors.New("capture: aggregate device creation failed")

	// ErrDeviceNotAlive is returned when the aggregate device never reports alive.
	ErrDeviceNotAlive = errors.New("capture: aggregate device not alive")

	// ErrFormatUnavailable is returned when no usable stream format is reported.
	ErrFormatUnavailable = errors.New("capture: stream format unavailable")

	// ErrIOProc is returned when the IO callback cannot be registered.
	ErrIOProc = errors.New("capture: IO proc registration failed")

	// ErrDeviceStart is returned when the device fails to start.
	ErrDeviceStart = errors.New("capture: device start failed")

	// ErrUnsupported is returned by drivers not available in this build.
	ErrUnsupported = errors.New("capture: driver not supported on this build")

	// ErrUnknownObject is returned by drivers for ids they did not create.
	ErrUnknownObject = errors.New("capture: unknown object")
)

// Step names one stage of session acquisition.
type Step string

// Acquisition steps in order.
const (
	StepResolveProcess Step = "resolve_process"
	StepCreateTap      Step = "create_tap"
	StepCreateDevice   Step = "create_aggregate_device"
	StepDeviceAlive    Step = "device_alive"
	StepStreamFormat   Step = "stream_format"
	StepCreateIOProc   Step = "create_io_proc"
	StepStartDevice    Step = "start_device"
)

// Steps lists the acquisition steps in the order Session.Open runs them.
var Steps = []Step{
	StepResolveProcess,
	StepCreateTap,
	StepCreateDevice,
	StepDeviceAlive,
	StepStreamFormat,
	StepCreateIOProc,
	StepStartDevice,
}

// StepError records which acquisition step failed.
type StepError struct {
	Step Step
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("capture [%s]: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// stepError wraps cause with the step's sentinel. Either may be nil.
func stepError(step Step, sentinel, cause error) error {
	err := cause
	switch {
	case cause == nil:
		err = sentinel
	case sentinel != nil && !errors.Is(cause, sentinel):
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &StepError{Step: step, Err: err}
}
