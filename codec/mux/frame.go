// Package mux implements codec.Codec for the multiplexed, SPDY-style
// binary protocol: SETTINGS, WINDOW_UPDATE, GOAWAY, PING, RST_STREAM,
// headers and data frames, with header blocks compressed by this repo's
// hpack package instead of SPDY/3's zlib dictionary (spec.md §9 REDESIGN
// FLAG — see SPEC_FULL.md §4.2 for the substitution rationale).
//
// Frame types and semantics are grounded on the SPDY/3 control-frame set
// (other_examples/.../go-spdy/types.go: SynStream, SynReply, RstStream,
// Settings, Ping, GoAway, Headers, WindowUpdate) and on the teacher's
// frame-dispatch loop (internal/legacy/http2/server.go's processFrame
// switch). The fixed-size frame header below is a simpler length-prefixed
// layout (closer to HTTP/2's 9-octet header) than SPDY's packed
// control-bit layout, since the header-compression swap already breaks
// wire compatibility with a real SPDY/3 peer — there is no remaining
// reason to reproduce SPDY's more awkward bit-packed header once that
// compatibility is gone.
package mux

import "github.com/baranov1ch/httpcore/codec"

// frameType identifies the kind of a multiplexed frame.
type frameType uint8

const (
	frameData frameType = iota
	frameHeaders
	framePushPromise
	frameRstStream
	frameSettings
	framePing
	frameGoaway
	frameWindowUpdate
)

// Frame flags.
const (
	flagEndStream byte = 0x1
	flagAck       byte = 0x1 // SETTINGS/PING ack, shares the low bit
)

// frameHeaderSize is the fixed-size frame prefix: 3 bytes length, 1 byte
// type, 1 byte flags, 4 bytes stream id (high bit reserved, always 0).
const frameHeaderSize = 9

// maxFrameSize bounds a single frame's payload; larger egress writes are
// the caller's responsibility to split (this slice does not implement
// CONTINUATION-style header splitting, matching spec.md's scope note that a
// full realization is "substantially larger").
const maxFrameSize = 1 << 24

type frameHeader struct {
	length    uint32
	typ       frameType
	flags     byte
	streamID  codec.StreamID
}

func encodeFrameHeader(h frameHeader) [frameHeaderSize]byte {
	var b [frameHeaderSize]byte
	b[0] = byte(h.length >> 16)
	b[1] = byte(h.length >> 8)
	b[2] = byte(h.length)
	b[3] = byte(h.typ)
	b[4] = h.flags
	sid := uint32(h.streamID) & 0x7fffffff
	b[5] = byte(sid >> 24)
	b[6] = byte(sid >> 16)
	b[7] = byte(sid >> 8)
	b[8] = byte(sid)
	return b
}

func decodeFrameHeader(p []byte) frameHeader {
	length := uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
	sid := uint32(p[5])<<24 | uint32(p[6])<<16 | uint32(p[7])<<8 | uint32(p[8])
	return frameHeader{
		length:   length,
		typ:      frameType(p[3]),
		flags:    p[4],
		streamID: codec.StreamID(sid & 0x7fffffff),
	}
}
