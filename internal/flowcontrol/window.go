// Package flowcontrol implements the additive flow-control window shared by
// a multiplexed Session and its Transactions, generalized from the
// teacher's unexported `flow` type (internal/legacy/http2/server.go,
// referenced by serverConn.flow and stream.flow but not itself present in
// the retrieved slice — this is a from-scratch reconstruction of the same
// concept: a signed credit counter that grows on WINDOW_UPDATE and shrinks
// as bytes are sent).
package flowcontrol

import "math"

// Window is a flow-control credit counter. It may go negative transiently
// (e.g. after a SETTINGS_INITIAL_WINDOW_SIZE decrease), matching RFC 7540
// §6.9.2.
type Window struct {
	size int64
}

// New creates a Window with the given initial size.
func New(initial int32) *Window {
	return &Window{size: int64(initial)}
}

// Size returns the current available credit. It may be negative.
func (w *Window) Size() int64 {
	return w.size
}

// Add applies a signed delta (positive for WINDOW_UPDATE/SETTINGS growth,
// negative for an initial-window-size decrease). It reports false if the
// result would overflow the protocol's signed 31-bit window, which the
// caller must treat as a flow-control protocol error.
func (w *Window) Add(delta int32) bool {
	next := w.size + int64(delta)
	if next > math.MaxInt32 {
		return false
	}
	w.size = next
	return true
}

// Consume deducts n bytes of credit after sending them.
func (w *Window) Consume(n int64) {
	w.size -= n
}
