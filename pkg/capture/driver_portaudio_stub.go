//go:build !cgo

package capture

// NewPortAudioDriver returns ErrUnsupported on builds without cgo.
func NewPortAudioDriver(device string) (Driver, error) {
	return nil, ErrUnsupported
}

// ListDevices returns ErrUnsupported on builds without cgo.
func ListDevices() ([]DeviceInfo, error) {
	return nil, ErrUnsupported
}
