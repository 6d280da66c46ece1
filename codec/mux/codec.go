package mux

import (
	"encoding/binary"
	"fmt"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/hpack"
	"github.com/baranov1ch/httpcore/internal/flowcontrol"
)

const (
	defaultInitialWindowSize int32 = 65535
	defaultMaxConcurrentStreams = 100
)

type muxStream struct {
	id      codec.StreamID
	state   codec.StreamState
	window  *flowcontrol.Window
	rstSent bool
	msg     *codec.HTTPMessage
}

// CodecMux implements codec.Codec for the multiplexed binary protocol
// (spec.md §4.2 "HTTPMultiplexed").
type CodecMux struct {
	direction codec.Direction
	cb        codec.Callback

	paused  bool
	pending []byte

	streams          map[codec.StreamID]*muxStream
	nextOutgoing     codec.StreamID
	expectIncomingOdd bool
	lastIncoming     codec.StreamID
	maxStreamIDSeen  codec.StreamID

	numIncoming int
	numOutgoing int

	sessionWindow     *flowcontrol.Window
	initialWindowSize int32

	sentGoaway      bool
	doubleGoaway    bool
	goawayAdvertised codec.StreamID

	reqDecoder  *hpack.HeaderDecoder
	respDecoder *hpack.HeaderDecoder
	reqEncoder  *hpack.HeaderEncoder
	respEncoder *hpack.HeaderEncoder
	huffman     bool

	pingCounter uint64
}

// New creates a multiplexed codec for the given direction. Downstream
// (server) codecs allocate even-numbered outgoing (pushed) streams and
// expect odd-numbered incoming (client) streams; upstream (client) codecs
// do the reverse.
func New(direction codec.Direction) *CodecMux {
	c := &CodecMux{
		direction:         direction,
		streams:           make(map[codec.StreamID]*muxStream),
		initialWindowSize: defaultInitialWindowSize,
		sessionWindow:     flowcontrol.New(defaultInitialWindowSize),
		reqDecoder:        hpack.NewHeaderDecoder(hpack.MessageTypeRequest),
		respDecoder:       hpack.NewHeaderDecoder(hpack.MessageTypeResponse),
		reqEncoder:        hpack.NewHeaderEncoder(true, hpack.MessageTypeRequest),
		respEncoder:       hpack.NewHeaderEncoder(true, hpack.MessageTypeResponse),
		huffman:           true,
	}
	if direction == codec.DirectionDownstream {
		c.nextOutgoing = 2
		c.expectIncomingOdd = true
	} else {
		c.nextOutgoing = 1
		c.expectIncomingOdd = false
	}
	return c
}

func (c *CodecMux) Protocol() codec.Protocol     { return codec.ProtocolMultiplexed }
func (c *CodecMux) Direction() codec.Direction   { return c.direction }

func (c *CodecMux) SupportsStreamFlowControl() bool  { return true }
func (c *CodecMux) SupportsSessionFlowControl() bool { return true }
func (c *CodecMux) SupportsParallelRequests() bool   { return true }
func (c *CodecMux) SupportsPushTransactions() bool   { return true }

func (c *CodecMux) IsBusy() bool { return len(c.streams) > 0 }
func (c *CodecMux) IsReusable() bool { return !c.sentGoaway }
func (c *CodecMux) IsWaitingToDrain() bool { return c.sentGoaway && len(c.streams) > 0 }
func (c *CodecMux) CloseOnEgressComplete() bool { return c.sentGoaway && len(c.streams) == 0 }
func (c *CodecMux) NumIncomingStreams() int { return c.numIncoming }
func (c *CodecMux) NumOutgoingStreams() int { return c.numOutgoing }
func (c *CodecMux) LastIncomingStreamID() codec.StreamID { return c.lastIncoming }

func (c *CodecMux) CreateStream() codec.StreamID {
	id := c.nextOutgoing
	c.nextOutgoing += 2
	c.numOutgoing++
	c.streams[id] = &muxStream{id: id, state: codec.StateIdle, window: flowcontrol.New(c.initialWindowSize)}
	return id
}

func (c *CodecMux) SetCallback(cb codec.Callback) { c.cb = cb }

func (c *CodecMux) EnableDoubleGoawayDrain() {
	c.doubleGoaway = true
}

func (c *CodecMux) SetParserPaused(paused bool) {
	was := c.paused
	c.paused = paused
	if was && !paused && len(c.pending) > 0 {
		buffered := c.pending
		c.pending = nil
		_, _ = c.OnIngress(buffered)
	}
}

// OnIngress parses complete frames out of p, dispatching callbacks in wire
// order. Partial frames are retained internally (via the paused-style
// pending buffer) until enough bytes arrive.
func (c *CodecMux) OnIngress(p []byte) (int, error) {
	if c.paused {
		c.pending = append(c.pending, p...)
		return len(p), nil
	}
	consumed := 0
	buf := p
	// Bytes carried over in c.pending were already reported as consumed by
	// the call that buffered them, so only bytes of p are reported here.
	carried := len(c.pending)
	reported := func(n int) int {
		if n < carried {
			return 0
		}
		return n - carried
	}
	if carried > 0 {
		buf = append(c.pending, p...)
		c.pending = nil
	}
	for {
		if len(buf) < frameHeaderSize {
			break
		}
		h := decodeFrameHeader(buf)
		total := frameHeaderSize + int(h.length)
		if len(buf) < total {
			break
		}
		payload := buf[frameHeaderSize:total]
		if err := c.dispatch(h, payload); err != nil {
			if _, ok := err.(codec.StreamError); ok {
				// The offending frame is fully consumed either way; the
				// caller can reset the stream and keep feeding the
				// remainder without resubmitting (and re-erroring on)
				// this same frame.
				consumed += total
			}
			return reported(consumed), err
		}
		buf = buf[total:]
		consumed += total
	}
	if len(buf) > 0 {
		c.pending = append(c.pending, buf...)
		consumed += len(buf)
	}
	return reported(consumed), nil
}

func (c *CodecMux) OnIngressEOF() {
	for id, st := range c.streams {
		if st.state != codec.StateClosed {
			c.emitError(id, codec.ErrorStreamClosed, "connection closed mid-stream", false)
		}
	}
}

func (c *CodecMux) dispatch(h frameHeader, payload []byte) error {
	switch h.typ {
	case frameSettings:
		return c.handleSettings(h, payload)
	case framePing:
		return c.handlePing(h, payload)
	case frameGoaway:
		return c.handleGoaway(payload)
	case frameWindowUpdate:
		return c.handleWindowUpdate(h, payload)
	case frameRstStream:
		return c.handleRstStream(h, payload)
	case frameHeaders:
		return c.handleHeaders(h, payload)
	case framePushPromise:
		return c.handlePushPromise(h, payload)
	case frameData:
		return c.handleData(h, payload)
	default:
		return nil // unknown frame types are ignored, per common framed-protocol practice
	}
}

func (c *CodecMux) handleSettings(h frameHeader, payload []byte) error {
	if h.flags&flagAck != 0 {
		if c.cb != nil {
			c.cb.OnSettingsAck()
		}
		return nil
	}
	if len(payload)%6 != 0 {
		return codec.ConnectionError{Code: codec.ErrorFrameSize}
	}
	var settings codec.Settings
	for i := 0; i+6 <= len(payload); i += 6 {
		id := codec.SettingID(binary.BigEndian.Uint16(payload[i:]))
		val := binary.BigEndian.Uint32(payload[i+2:])
		settings = append(settings, codec.Setting{ID: id, Value: val})
		if id == codec.SettingInitialWindowSize {
			if err := c.applyInitialWindowSize(val); err != nil {
				return err
			}
		}
	}
	if c.cb != nil {
		c.cb.OnSettings(settings)
	}
	return nil
}

func (c *CodecMux) applyInitialWindowSize(val uint32) error {
	if val > 1<<31-1 {
		return codec.ConnectionError{Code: codec.ErrorFlowControl}
	}
	old := c.initialWindowSize
	c.initialWindowSize = int32(val)
	growth := c.initialWindowSize - old
	for _, st := range c.streams {
		if !st.window.Add(growth) {
			return codec.ConnectionError{Code: codec.ErrorFlowControl}
		}
	}
	return nil
}

func (c *CodecMux) handlePing(h frameHeader, payload []byte) error {
	if len(payload) != 8 {
		return codec.ConnectionError{Code: codec.ErrorFrameSize}
	}
	id := binary.BigEndian.Uint64(payload)
	if c.cb == nil {
		return nil
	}
	if h.flags&flagAck != 0 {
		c.cb.OnPingReply(id)
	} else {
		c.cb.OnPingRequest(id)
	}
	return nil
}

func (c *CodecMux) handleGoaway(payload []byte) error {
	if len(payload) < 8 {
		return codec.ConnectionError{Code: codec.ErrorFrameSize}
	}
	lastGood := codec.StreamID(binary.BigEndian.Uint32(payload) & 0x7fffffff)
	code := codec.ErrorCode(binary.BigEndian.Uint32(payload[4:]))
	if c.cb != nil {
		c.cb.OnGoaway(lastGood, code)
	}
	return nil
}

func (c *CodecMux) handleWindowUpdate(h frameHeader, payload []byte) error {
	if len(payload) != 4 {
		return codec.ConnectionError{Code: codec.ErrorFrameSize}
	}
	delta := binary.BigEndian.Uint32(payload) & 0x7fffffff
	if h.streamID == codec.SessionStreamID {
		if !c.sessionWindow.Add(int32(delta)) {
			return codec.ConnectionError{Code: codec.ErrorFlowControl}
		}
	} else {
		st := c.streams[h.streamID]
		if st == nil {
			return nil // late WINDOW_UPDATE on a closed/unknown stream is not an error (spec.md §4.2)
		}
		if !st.window.Add(int32(delta)) {
			return codec.StreamError{Stream: h.streamID, Code: codec.ErrorFlowControl}
		}
	}
	if c.cb != nil {
		c.cb.OnWindowUpdate(h.streamID, delta)
	}
	return nil
}

func (c *CodecMux) handleRstStream(h frameHeader, payload []byte) error {
	if len(payload) != 4 {
		return codec.ConnectionError{Code: codec.ErrorFrameSize}
	}
	code := codec.ErrorCode(binary.BigEndian.Uint32(payload))
	if st := c.streams[h.streamID]; st != nil {
		st.state = codec.StateClosed
		delete(c.streams, h.streamID)
	}
	if c.cb != nil {
		c.cb.OnAbort(h.streamID, code)
	}
	return nil
}

func (c *CodecMux) decoderFor(incoming bool) *hpack.HeaderDecoder {
	// A downstream (server) codec decodes request headers on incoming
	// HEADERS frames and response headers never arrive as ingress; an
	// upstream (client) codec is the mirror image.
	if (c.direction == codec.DirectionDownstream) == incoming {
		return c.reqDecoder
	}
	return c.respDecoder
}

func (c *CodecMux) handleHeaders(h frameHeader, payload []byte) error {
	st := c.streams[h.streamID]
	isNew := st == nil
	if isNew {
		if err := c.validateNewIncomingStream(h.streamID); err != nil {
			return err
		}
		st = &muxStream{id: h.streamID, state: codec.StateOpen, window: flowcontrol.New(c.initialWindowSize)}
		c.streams[h.streamID] = st
		c.numIncoming++
		c.lastIncoming = h.streamID
	} else if st.state == codec.StateClosed {
		c.emitError(h.streamID, codec.ErrorStreamClosed, "headers on closed stream", false)
		return nil
	}

	fields, err := c.decoderFor(true).Decode(payload)
	if err != nil {
		return codec.ConnectionError{Code: codec.ErrorCompression}
	}
	msg := fieldsToMessage(fields)
	st.msg = msg

	if isNew && c.cb != nil {
		c.cb.OnMessageBegin(h.streamID, msg)
	}
	if c.cb != nil {
		c.cb.OnHeadersComplete(h.streamID, msg)
	}
	if h.flags&flagEndStream != 0 {
		st.state = st.state.OnIngressEOM()
		if c.cb != nil {
			c.cb.OnMessageComplete(h.streamID, false)
		}
		if st.state == codec.StateClosed {
			delete(c.streams, h.streamID)
		}
	}
	return nil
}

func (c *CodecMux) handlePushPromise(h frameHeader, payload []byte) error {
	if len(payload) < 4 {
		return codec.ConnectionError{Code: codec.ErrorFrameSize}
	}
	promised := codec.StreamID(binary.BigEndian.Uint32(payload) & 0x7fffffff)
	fields, err := c.decoderFor(true).Decode(payload[4:])
	if err != nil {
		return codec.ConnectionError{Code: codec.ErrorCompression}
	}
	msg := fieldsToMessage(fields)
	c.streams[promised] = &muxStream{id: promised, state: codec.StateOpen, window: flowcontrol.New(c.initialWindowSize), msg: msg}
	if c.cb != nil {
		c.cb.OnPushMessageBegin(promised, h.streamID, msg)
	}
	return nil
}

func (c *CodecMux) handleData(h frameHeader, payload []byte) error {
	st := c.streams[h.streamID]
	if st == nil || st.state == codec.StateClosed {
		return codec.StreamError{Stream: h.streamID, Code: codec.ErrorStreamClosed}
	}
	if len(payload) > 0 {
		if c.cb != nil {
			c.cb.OnBody(h.streamID, payload)
		}
		st.window.Consume(int64(len(payload)))
		c.sessionWindow.Consume(int64(len(payload)))
	}
	if h.flags&flagEndStream != 0 {
		st.state = st.state.OnIngressEOM()
		if c.cb != nil {
			c.cb.OnMessageComplete(h.streamID, false)
		}
		if st.state == codec.StateClosed {
			delete(c.streams, h.streamID)
		}
	}
	return nil
}

func (c *CodecMux) validateNewIncomingStream(id codec.StreamID) error {
	odd := id%2 == 1
	if odd != c.expectIncomingOdd {
		return codec.ConnectionError{Code: codec.ErrorProtocol}
	}
	if id <= c.maxStreamIDSeen && c.maxStreamIDSeen != 0 {
		return codec.ConnectionError{Code: codec.ErrorProtocol}
	}
	c.maxStreamIDSeen = id
	return nil
}

func (c *CodecMux) emitError(stream codec.StreamID, code codec.ErrorCode, message string, newStream bool) {
	if c.cb == nil {
		return
	}
	c.cb.OnError(stream, &codec.HTTPException{Ingress: true, Code: code, Message: message, Stream: stream, HasStream: true}, newStream)
}

func fieldsToMessage(fields []hpack.HeaderField) *codec.HTTPMessage {
	msg := &codec.HTTPMessage{}
	for _, f := range fields {
		switch f.Name {
		case ":method":
			msg.Method = f.Value
		case ":path":
			msg.URL = f.Value
		case ":status":
			fmt.Sscanf(f.Value, "%d", &msg.StatusCode)
		case ":scheme", ":authority":
			msg.Headers.Add(f.Name, f.Value)
		default:
			msg.Headers.Add(f.Name, f.Value)
		}
	}
	return msg
}
