// Package hub fans spectrum frames out to websocket clients.
//
// A single goroutine owns the client set. Frames are handed to every client
// as-is and encoded on the client's own write goroutine, so each client can
// ask for a different bar count. Slow clients are dropped rather than allowed
// to stall the broadcaster.
package hub

// Frame is one broadcast unit. A frame is shared by every client and must
// not be mutated once broadcast.
type Frame interface {
	// Encode renders the frame as a text message for a client that wants
	// bars bars. Zero means every band.
	Encode(bars int) ([]byte, error)
}
