package audioio

import (
	"runtime"
)

// ResolveBackend returns b, or the best backend for the platform when b is
// BackendAuto.
func ResolveBackend(b Backend) Backend {
	if b == BackendAuto {
		return detectBestBackend()
	}
	return b
}

// detectBestBackend returns the best available backend for the current platform.
func detectBestBackend() Backend {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return BackendPortAudio
	default:
		return BackendSynthetic
	}
}

// AvailableBackends returns the list of backends available on this platform.
func AvailableBackends() []Backend {
	backends := []Backend{BackendSynthetic, BackendFile, BackendMock}

	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		backends = append(backends, BackendPortAudio)
	}

	return backends
}
