package mux

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/hpack"
	"github.com/baranov1ch/httpcore/internal/flowcontrol"
)

// encoderFor returns the HeaderEncoder for this codec's outgoing message
// direction: a downstream (server) codec emits responses, an upstream
// (client) codec emits requests.
func (c *CodecMux) encoderFor() *hpack.HeaderEncoder {
	if c.direction == codec.DirectionDownstream {
		return c.respEncoder
	}
	return c.reqEncoder
}

func (c *CodecMux) messageToFields(msg *codec.HTTPMessage) []hpack.HeaderField {
	if c.direction == codec.DirectionDownstream {
		return responseFields(msg)
	}
	return requestFields(msg)
}

func requestFields(msg *codec.HTTPMessage) []hpack.HeaderField {
	method := msg.Method
	if method == "" {
		method = "GET"
	}
	fields := []hpack.HeaderField{
		{Name: ":method", Value: method},
		{Name: ":path", Value: msg.URL},
	}
	msg.Headers.ForEach(func(name, value string) {
		fields = append(fields, hpack.HeaderField{Name: strings.ToLower(name), Value: value})
	})
	return fields
}

func responseFields(msg *codec.HTTPMessage) []hpack.HeaderField {
	status := msg.StatusCode
	if status == 0 {
		status = 200
	}
	fields := []hpack.HeaderField{
		{Name: ":status", Value: strconv.Itoa(status)},
	}
	msg.Headers.ForEach(func(name, value string) {
		fields = append(fields, hpack.HeaderField{Name: strings.ToLower(name), Value: value})
	})
	return fields
}

func (c *CodecMux) ensureOutgoingStream(id codec.StreamID) *muxStream {
	st := c.streams[id]
	if st == nil {
		st = &muxStream{id: id, state: codec.StateOpen, window: flowcontrol.New(c.initialWindowSize)}
		c.streams[id] = st
	}
	return st
}

// writeFrame appends a frame header followed by payload to buf and returns
// the total number of bytes written.
func writeFrame(buf *hpack.EncodeBuffer, typ frameType, flags byte, stream codec.StreamID, payload []byte) int {
	h := encodeFrameHeader(frameHeader{length: uint32(len(payload)), typ: typ, flags: flags, streamID: stream})
	buf.AppendBytes(h[:])
	if len(payload) > 0 {
		buf.AppendBytes(payload)
	}
	return frameHeaderSize + len(payload)
}

// GenerateHeader emits a HEADERS (or, when assocStream is non-zero, a
// PUSH_PROMISE) frame for stream, compressing msg's fields with this
// codec's outgoing HeaderEncoder.
func (c *CodecMux) GenerateHeader(buf *hpack.EncodeBuffer, stream codec.StreamID, msg *codec.HTTPMessage, assocStream codec.StreamID) int {
	if msg == nil {
		return 0
	}
	st := c.ensureOutgoingStream(stream)
	if st.state == codec.StateClosed {
		return 0
	}

	isPush := assocStream != codec.SessionStreamID
	var fields []hpack.HeaderField
	var encoder *hpack.HeaderEncoder
	if isPush {
		// A PUSH_PROMISE always describes the synthetic request the push
		// satisfies, regardless of which side of the connection originates
		// it, so it is encoded with the request table even from a
		// downstream (server) codec.
		fields = requestFields(msg)
		encoder = c.reqEncoder
	} else {
		fields = c.messageToFields(msg)
		encoder = c.encoderFor()
	}
	tmp := hpack.NewEncodeBuffer(0)
	encoder.EncodeInto(tmp, fields)
	payload := tmp.Bytes()
	tmp.Release()

	if isPush {
		full := make([]byte, 4+len(payload))
		binary.BigEndian.PutUint32(full, uint32(stream)&0x7fffffff)
		copy(full[4:], payload)
		return writeFrame(buf, framePushPromise, 0, assocStream, full)
	}
	return writeFrame(buf, frameHeaders, 0, stream, payload)
}

// GenerateBody emits a DATA frame. When eom is true the stream's egress
// side transitions per codec.StreamState.OnEgressEOM.
func (c *CodecMux) GenerateBody(buf *hpack.EncodeBuffer, stream codec.StreamID, p []byte, eom bool) int {
	st := c.streams[stream]
	if st == nil || st.state == codec.StateClosed {
		return 0
	}
	var flags byte
	if eom {
		flags |= flagEndStream
	}
	n := writeFrame(buf, frameData, flags, stream, p)
	if eom {
		st.state = st.state.OnEgressEOM()
		if st.state == codec.StateClosed {
			delete(c.streams, stream)
		}
	}
	return n
}

// GenerateChunkHeader is a no-op: the multiplexed protocol has no HTTP/1
// chunked-transfer framing, DATA frames already delimit their own length.
func (c *CodecMux) GenerateChunkHeader(buf *hpack.EncodeBuffer, stream codec.StreamID, length int) int {
	return 0
}

// GenerateChunkTerminator is a no-op for the same reason as GenerateChunkHeader.
func (c *CodecMux) GenerateChunkTerminator(buf *hpack.EncodeBuffer, stream codec.StreamID) int {
	return 0
}

// GenerateTrailers emits a final HEADERS frame carrying trailers and ends
// the stream's egress side.
func (c *CodecMux) GenerateTrailers(buf *hpack.EncodeBuffer, stream codec.StreamID, trailers codec.HTTPHeaders) int {
	st := c.streams[stream]
	if st == nil || st.state == codec.StateClosed {
		return 0
	}
	var fields []hpack.HeaderField
	trailers.ForEach(func(name, value string) {
		fields = append(fields, hpack.HeaderField{Name: strings.ToLower(name), Value: value})
	})
	tmp := hpack.NewEncodeBuffer(0)
	c.encoderFor().EncodeInto(tmp, fields)
	payload := tmp.Bytes()
	tmp.Release()
	n := writeFrame(buf, frameHeaders, flagEndStream, stream, payload)
	st.state = st.state.OnEgressEOM()
	if st.state == codec.StateClosed {
		delete(c.streams, stream)
	}
	return n
}

// GenerateEOM emits a zero-length DATA frame with END_STREAM set, the
// multiplexed protocol's explicit end-of-message marker.
func (c *CodecMux) GenerateEOM(buf *hpack.EncodeBuffer, stream codec.StreamID) int {
	return c.GenerateBody(buf, stream, nil, true)
}

// GenerateRstStream emits RST_STREAM and closes the stream's egress side
// immediately, without waiting for an EOM.
func (c *CodecMux) GenerateRstStream(buf *hpack.EncodeBuffer, stream codec.StreamID, code codec.ErrorCode) int {
	st := c.streams[stream]
	if st == nil {
		return 0
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(code))
	n := writeFrame(buf, frameRstStream, 0, stream, payload)
	st.rstSent = true
	delete(c.streams, stream)
	return n
}

// GenerateGoaway emits GOAWAY advertising lastStream as the highest stream
// this codec will process, and marks the session as draining.
func (c *CodecMux) GenerateGoaway(buf *hpack.EncodeBuffer, lastStream codec.StreamID, code codec.ErrorCode) int {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload, uint32(lastStream)&0x7fffffff)
	binary.BigEndian.PutUint32(payload[4:], uint32(code))
	c.sentGoaway = true
	c.goawayAdvertised = lastStream
	return writeFrame(buf, frameGoaway, 0, codec.SessionStreamID, payload)
}

// GeneratePingRequest emits a PING frame with a locally-generated,
// monotonically increasing identifier and returns the number of bytes
// written; the identifier itself is not returned to the caller.
func (c *CodecMux) GeneratePingRequest(buf *hpack.EncodeBuffer) int {
	c.pingCounter++
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, c.pingCounter)
	return writeFrame(buf, framePing, 0, codec.SessionStreamID, payload)
}

// GeneratePingReply emits a PING ack frame echoing uniqueID.
func (c *CodecMux) GeneratePingReply(buf *hpack.EncodeBuffer, uniqueID uint64) int {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uniqueID)
	return writeFrame(buf, framePing, flagAck, codec.SessionStreamID, payload)
}

// GenerateSettings emits a SETTINGS frame advertising this codec's current
// initial window size and max concurrent streams.
func (c *CodecMux) GenerateSettings(buf *hpack.EncodeBuffer) int {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint16(payload[0:], uint16(codec.SettingInitialWindowSize))
	binary.BigEndian.PutUint32(payload[2:], uint32(c.initialWindowSize))
	binary.BigEndian.PutUint16(payload[6:], uint16(codec.SettingMaxConcurrentStreams))
	binary.BigEndian.PutUint32(payload[8:], defaultMaxConcurrentStreams)
	return writeFrame(buf, frameSettings, 0, codec.SessionStreamID, payload)
}

// GenerateWindowUpdate emits a WINDOW_UPDATE frame granting delta additional
// bytes of credit to the peer, either for a single stream or (stream ==
// codec.SessionStreamID) for the whole session.
func (c *CodecMux) GenerateWindowUpdate(buf *hpack.EncodeBuffer, stream codec.StreamID, delta uint32) int {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, delta&0x7fffffff)
	return writeFrame(buf, frameWindowUpdate, 0, stream, payload)
}
