package audioio

// minMonoCapacity is the initial scratch capacity; most drivers deliver
// 512-4096 frames per buffer.
const minMonoCapacity = 4096

// MonoExtractor reduces interleaved PCM to a single channel.
//
// It takes channel 0 (left) with a stride of the channel count and writes into
// a scratch buffer that is reused across calls. The buffer grows when a larger
// buffer arrives but never shrinks, so steady-state extraction does not
// allocate. A MonoExtractor is not safe for concurrent use; each real-time
// callback owns one.
type MonoExtractor struct {
	buf []float32
}

// NewMonoExtractor creates an extractor with room for capacity frames.
func NewMonoExtractor(capacity int) *MonoExtractor {
	if capacity < minMonoCapacity {
		capacity = minMonoCapacity
	}
	return &MonoExtractor{buf: make([]float32, capacity)}
}

// Extract returns the left channel of interleaved. The returned slice aliases
// the extractor's scratch buffer and is overwritten by the next call.
func (m *MonoExtractor) Extract(interleaved []float32, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(interleaved) / channels
	if frames == 0 {
		return m.buf[:0]
	}

	if cap(m.buf) < frames {
		m.buf = make([]float32, frames)
	}
	out := m.buf[:frames]

	if channels == 1 {
		copy(out, interleaved[:frames])
		return out
	}

	for i := 0; i < frames; i++ {
		out[i] = interleaved[i*channels]
	}
	return out
}

// Capacity returns the current scratch capacity in frames.
func (m *MonoExtractor) Capacity() int {
	return cap(m.buf)
}
