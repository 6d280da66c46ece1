// Package hpack implements the HPACK-style header-compression wire format
// used by the multiplexed codec: a segmented output buffer, RFC 7541 §5.1
// prefix-integer encoding, and literal (plain or Huffman) string encoding.
package hpack

import (
	"fmt"
	"net"

	"github.com/valyala/bytebufferpool"
)

// defaultGrowth is the minimum segment size allocated when the tail segment
// of an EncodeBuffer is full and a new one must be grown.
const defaultGrowth = 4096

// segment is a single contiguously-writable chunk owned by an EncodeBuffer.
// data[:wr] is what has been written so far; data[wr:] is writable.
type segment struct {
	buf *bytebufferpool.ByteBuffer
	wr  int
}

func (s *segment) writable() int {
	return cap(s.buf.B) - s.wr
}

// EncodeBuffer is a growable, segmented byte sink. It supports reserving
// front headroom (only while empty), appending bytes/integers/literals, and
// taking out the accumulated chain as net.Buffers for a single vectored
// write.
//
// Headroom may be reserved only while the queue is empty; once any byte has
// been appended, headroom is fixed. Reserving headroom on a non-empty buffer
// is a programming error and panics, mirroring the teacher's CHECK()
// assertion in HPACKEncodeBuffer.cpp.
type EncodeBuffer struct {
	growth   int
	segments []*segment
	size     int
}

// NewEncodeBuffer creates an EncodeBuffer with the given growth quantum. A
// non-positive growth falls back to defaultGrowth.
func NewEncodeBuffer(growth int) *EncodeBuffer {
	if growth <= 0 {
		growth = defaultGrowth
	}
	return &EncodeBuffer{growth: growth}
}

// Len reports the total number of bytes appended so far.
func (e *EncodeBuffer) Len() int {
	return e.size
}

// ReserveHeadroom allocates a first segment sized max(n, growth quantum) and
// advances its write cursor by n, reserving the leading n bytes for a caller
// that will fill them in later (e.g. a frame-length prefix written after the
// payload is known). It panics if anything has already been appended.
func (e *EncodeBuffer) ReserveHeadroom(n int) {
	if e.size != 0 || len(e.segments) != 0 {
		panic("hpack: ReserveHeadroom called on a non-empty EncodeBuffer")
	}
	size := n
	if size < e.growth {
		size = e.growth
	}
	bb := bytebufferpool.Get()
	bb.B = growSlice(bb.B, size)
	seg := &segment{buf: bb, wr: n}
	e.segments = append(e.segments, seg)
	e.size += n
}

// EnsureCapacity guarantees that the tail segment has at least n contiguous
// writable bytes, allocating a new segment of max(n, growth) if needed.
func (e *EncodeBuffer) EnsureCapacity(n int) {
	if len(e.segments) > 0 {
		tail := e.segments[len(e.segments)-1]
		if tail.writable() >= n {
			return
		}
	}
	size := n
	if size < e.growth {
		size = e.growth
	}
	bb := bytebufferpool.Get()
	bb.B = growSlice(bb.B, size)
	e.segments = append(e.segments, &segment{buf: bb})
}

func growSlice(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:0]
	}
	return make([]byte, 0, n)
}

// AppendByte appends a single byte, growing the tail segment if necessary.
func (e *EncodeBuffer) AppendByte(b byte) {
	e.EnsureCapacity(1)
	tail := e.segments[len(e.segments)-1]
	tail.buf.B = tail.buf.B[:tail.wr+1]
	tail.buf.B[tail.wr] = b
	tail.wr++
	e.size++
}

// AppendBytes copies p into the buffer, growing as needed.
func (e *EncodeBuffer) AppendBytes(p []byte) {
	for len(p) > 0 {
		e.EnsureCapacity(1)
		tail := e.segments[len(e.segments)-1]
		n := copy(tail.buf.B[tail.wr:cap(tail.buf.B)], p)
		tail.buf.B = tail.buf.B[:tail.wr+n]
		tail.wr += n
		e.size += n
		p = p[n:]
	}
}

// AppendInteger encodes value using RFC 7541 §5.1 prefix-integer encoding
// with an N-bit prefix (1..8) and a caller-supplied prefix byte already
// masked to the high (8-N) bits. It returns the number of bytes written.
//
// This encoding is self-delimiting (continuation bit) and always terminates
// because value strictly decreases on each iteration of the loop below.
func (e *EncodeBuffer) AppendInteger(value uint64, prefixBits int, prefixByte byte) int {
	if prefixBits <= 0 || prefixBits > 8 {
		panic(fmt.Sprintf("hpack: invalid prefix bit count %d", prefixBits))
	}
	maxPrefix := uint64(1)<<uint(prefixBits) - 1
	written := 0
	if value < maxPrefix {
		e.AppendByte(prefixByte | byte(value))
		return 1
	}
	e.AppendByte(prefixByte | byte(maxPrefix))
	written++
	value -= maxPrefix
	for value >= 128 {
		e.AppendByte(byte(0x80 | (value & 0x7f)))
		value >>= 7
		written++
	}
	e.AppendByte(byte(value))
	written++
	return written
}

// AppendLiteral encodes s as an HPACK string literal: a 7-bit-prefixed
// length (high bit set for Huffman, clear for plain) followed by the
// string's bytes, Huffman-coded or verbatim depending on huffman.
func (e *EncodeBuffer) AppendLiteral(s string, huffman bool, msgType MessageType) int {
	if huffman {
		return e.appendHuffmanLiteral(s, msgType)
	}
	n := e.AppendInteger(uint64(len(s)), 7, plainLiteralFlag)
	e.AppendBytes([]byte(s))
	return n + len(s)
}

func (e *EncodeBuffer) appendHuffmanLiteral(s string, msgType MessageType) int {
	table := tableFor(msgType)
	size := table.encodedLen(s)
	n := e.AppendInteger(uint64(size), 7, huffmanLiteralFlag)
	e.EnsureCapacity(size)
	table.encodeInto(e, s)
	return n + size
}

// Take returns the accumulated byte chain as net.Buffers, suitable for a
// single vectored net.Conn write. The EncodeBuffer must not be reused after
// Take.
func (e *EncodeBuffer) Take() net.Buffers {
	out := make(net.Buffers, 0, len(e.segments))
	for _, seg := range e.segments {
		out = append(out, seg.buf.B[:seg.wr])
	}
	return out
}

// Release returns the underlying segment buffers to the shared pool. Call
// it once the bytes returned by Take have been fully written.
func (e *EncodeBuffer) Release() {
	for _, seg := range e.segments {
		bytebufferpool.Put(seg.buf)
	}
	e.segments = nil
	e.size = 0
}

// Bytes copies the full chain into a single contiguous slice. Prefer Take
// for writing to a net.Conn; Bytes is for tests and callers that need one
// slice.
func (e *EncodeBuffer) Bytes() []byte {
	out := make([]byte, 0, e.size)
	for _, seg := range e.segments {
		out = append(out, seg.buf.B[:seg.wr]...)
	}
	return out
}

// PatchAt overwrites len(data) bytes starting at absolute offset within the
// reserved headroom segment. It exists for the common framed-protocol
// pattern of reserving headroom for a frame header whose length field can
// only be computed after the variable-length payload (e.g. an HPACK header
// block) has been written after it. It may only target bytes within the
// first segment's already-written region (i.e. within the headroom
// reserved by ReserveHeadroom, or bytes appended since); patching across a
// segment boundary panics, since headroom by construction lives entirely in
// segment 0.
func (e *EncodeBuffer) PatchAt(offset int, data []byte) {
	if len(e.segments) == 0 {
		panic("hpack: PatchAt called on an empty EncodeBuffer")
	}
	seg := e.segments[0]
	if offset < 0 || offset+len(data) > seg.wr {
		panic("hpack: PatchAt range outside the written portion of segment 0")
	}
	copy(seg.buf.B[offset:offset+len(data)], data)
}
