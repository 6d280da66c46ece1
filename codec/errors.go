package codec

import "fmt"

// StreamError is a protocol error scoped to a single stream: the session
// continues, but the stream resets (spec.md §7 kind 1). Codecs return it
// from OnIngress; server.Session answers it with RST_STREAM egress and an
// OnError call on the stream's handler.
type StreamError struct {
	Stream StreamID
	Code   ErrorCode
}

func (e StreamError) Error() string {
	return fmt.Sprintf("stream %d error: %s", e.Stream, e.Code)
}

// ConnectionError is session-fatal: an unrecoverable framing desync
// (spec.md §7 kind 2). The session emits GOAWAY with this code and closes.
type ConnectionError struct {
	Code ErrorCode
}

func (e ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s", e.Code)
}

// FlowControlError describes a WINDOW_UPDATE that would overflow a flow
// window, as a type distinct from ConnectionError. No codec in this module
// returns it: codec/mux reports window overflow as a ConnectionError or
// StreamError carrying ErrorFlowControl.
type FlowControlError struct {
	Stream    StreamID
	HasStream bool
}

func (e FlowControlError) Error() string {
	if e.HasStream {
		return fmt.Sprintf("flow control error on stream %d", e.Stream)
	}
	return "session-level flow control error"
}
