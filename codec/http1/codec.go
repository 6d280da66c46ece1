// Package http1 implements codec.Codec for HTTP/1.x (RFC 7230), generalized
// from the teacher's single-draft-HTTP/2 serverConn shape
// (internal/legacy/http2/server.go) down to the one-stream-at-a-time model
// HTTP/1.x actually has: SupportsParallelRequests and
// SupportsPushTransactions are always false, and StreamID is a simple
// per-message sequence number rather than a framed identifier.
package http1

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/hpack"
)

// parseState is the ingress parser's position within one HTTP/1.x message.
type parseState int

const (
	parseStartLine parseState = iota
	parseHeaders
	parseBody
	parseChunkSize
	parseChunkData
	parseChunkCRLF
	parseTrailers
	parseDone
)

type streamInfo struct {
	id          codec.StreamID
	ingress     codec.StreamState
	egress      codec.StreamState
	contentLen  int64 // -1 if unknown/chunked
	remaining   int64
	chunked     bool
}

// Codec1 is the HTTP/1.x codec.Codec implementation.
type Codec1 struct {
	direction codec.Direction
	cb        codec.Callback

	paused  bool
	pending bytes.Buffer

	state      parseState
	nextStream codec.StreamID
	cur        *streamInfo
	msg        *codec.HTTPMessage

	numIncoming int
	numOutgoing int
	lastIncoming codec.StreamID
	sentGoaway   bool
	closing      bool
}

// New creates an HTTP/1.x codec for the given direction (downstream for a
// server reading requests, upstream for a client reading responses).
func New(direction codec.Direction) *Codec1 {
	return &Codec1{direction: direction, nextStream: 1}
}

func (c *Codec1) Protocol() codec.Protocol { return codec.ProtocolHTTP1 }
func (c *Codec1) Direction() codec.Direction { return c.direction }

func (c *Codec1) SupportsStreamFlowControl() bool  { return false }
func (c *Codec1) SupportsSessionFlowControl() bool { return false }
func (c *Codec1) SupportsParallelRequests() bool   { return false }
func (c *Codec1) SupportsPushTransactions() bool    { return false }

func (c *Codec1) IsBusy() bool { return c.cur != nil && c.state != parseDone }
func (c *Codec1) IsReusable() bool { return !c.closing }
func (c *Codec1) IsWaitingToDrain() bool { return c.sentGoaway && c.IsBusy() }
func (c *Codec1) CloseOnEgressComplete() bool { return c.closing }
func (c *Codec1) NumIncomingStreams() int { return c.numIncoming }
func (c *Codec1) NumOutgoingStreams() int { return c.numOutgoing }
func (c *Codec1) LastIncomingStreamID() codec.StreamID { return c.lastIncoming }

func (c *Codec1) CreateStream() codec.StreamID {
	id := c.nextStream
	c.nextStream++
	c.numOutgoing++
	return id
}

func (c *Codec1) SetCallback(cb codec.Callback) { c.cb = cb }

func (c *Codec1) EnableDoubleGoawayDrain() {
	// HTTP/1.x has no session-level GOAWAY; closing after the current
	// message completes is the only drain mode available, so this is a
	// no-op capability (spec.md §4.2's generic contract allows variants to
	// make double-GOAWAY drain a harmless no-op when it doesn't apply).
}

func (c *Codec1) SetParserPaused(paused bool) {
	wasPaused := c.paused
	c.paused = paused
	if wasPaused && !paused && c.pending.Len() > 0 {
		buffered := c.pending.Bytes()
		c.pending.Reset()
		// Draining must preserve input order; OnIngress re-enters the
		// parser with exactly the bytes that arrived while paused.
		_, _ = c.OnIngress(buffered)
	}
}

// OnIngress feeds bytes into the parser, emitting callbacks in wire order.
// While paused, bytes are buffered and no callbacks fire.
func (c *Codec1) OnIngress(p []byte) (int, error) {
	if c.paused {
		c.pending.Write(p)
		return len(p), nil
	}
	total := 0
	for len(p) > 0 {
		n, err := c.step(p)
		total += n
		p = p[n:]
		if err != nil {
			return total, err
		}
		if n == 0 {
			break // need more bytes than currently available
		}
	}
	return total, nil
}

func (c *Codec1) OnIngressEOF() {
	if c.cur != nil && c.state != parseDone {
		c.emitError(c.cur.id, codec.ErrorStreamClosed, "connection closed mid-message", false)
	}
}

func (c *Codec1) step(p []byte) (int, error) {
	switch c.state {
	case parseStartLine:
		return c.parseStartLineFrom(p)
	case parseHeaders:
		return c.parseHeaderLineFrom(p)
	case parseBody:
		return c.parseBodyFrom(p)
	case parseChunkSize:
		return c.parseChunkSizeFrom(p)
	case parseChunkData:
		return c.parseChunkDataFrom(p)
	case parseChunkCRLF:
		return c.parseChunkCRLFFrom(p)
	case parseTrailers:
		return c.parseTrailerLineFrom(p)
	default:
		return 0, nil
	}
}

func findCRLF(p []byte) int {
	return bytes.Index(p, []byte("\r\n"))
}

func (c *Codec1) parseStartLineFrom(p []byte) (int, error) {
	idx := findCRLF(p)
	if idx < 0 {
		if len(p) > 8192 {
			return 0, codec.ConnectionError{Code: codec.ErrorFrameSize}
		}
		return 0, nil
	}
	line := string(p[:idx])
	id := c.nextStream
	c.nextStream++
	c.numIncoming++
	c.lastIncoming = id
	c.cur = &streamInfo{id: id, ingress: codec.StateOpen, egress: codec.StateOpen, contentLen: -1}
	c.msg = &codec.HTTPMessage{}

	if c.direction == codec.DirectionDownstream {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return 0, c.badRequest(id, "malformed request line")
		}
		c.msg.Method = parts[0]
		c.msg.URL = parts[1]
		c.msg.Version = parts[2]
	} else {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 {
			return 0, c.badRequest(id, "malformed status line")
		}
		c.msg.Version = parts[0]
		code, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, c.badRequest(id, "malformed status code")
		}
		c.msg.StatusCode = code
	}
	if c.cb != nil {
		c.cb.OnMessageBegin(id, c.msg)
	}
	c.state = parseHeaders
	return idx + 2, nil
}

func (c *Codec1) badRequest(id codec.StreamID, reason string) error {
	c.emitError(id, codec.ErrorProtocol, reason, true)
	return codec.StreamError{Stream: id, Code: codec.ErrorProtocol}
}

func (c *Codec1) parseHeaderLineFrom(p []byte) (int, error) {
	idx := findCRLF(p)
	if idx < 0 {
		if len(p) > 64*1024 {
			return 0, codec.ConnectionError{Code: codec.ErrorFrameSize}
		}
		return 0, nil
	}
	line := p[:idx]
	if len(line) == 0 {
		return idx + 2, c.finishHeaders()
	}
	name, value, ok := splitHeaderLine(string(line))
	if !ok {
		return 0, c.badRequest(c.cur.id, fmt.Sprintf("invalid header line %q", line))
	}
	c.msg.Headers.Add(name, value)
	return idx + 2, nil
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

func (c *Codec1) finishHeaders() error {
	if cl, ok := c.msg.Headers.Get("Content-Length"); ok {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return c.badRequest(c.cur.id, "invalid Content-Length")
		}
		c.cur.contentLen = n
		c.cur.remaining = n
	}
	if te, ok := c.msg.Headers.Get("Transfer-Encoding"); ok && strings.EqualFold(te, "chunked") {
		c.cur.chunked = true
	}
	if c.cb != nil {
		c.cb.OnHeadersComplete(c.cur.id, c.msg)
	}
	if c.cur.chunked {
		c.state = parseChunkSize
		return nil
	}
	if c.cur.contentLen > 0 {
		c.state = parseBody
		return nil
	}
	return c.completeMessage(false)
}

func (c *Codec1) parseBodyFrom(p []byte) (int, error) {
	n := int64(len(p))
	if n > c.cur.remaining {
		n = c.cur.remaining
	}
	if n > 0 && c.cb != nil {
		c.cb.OnBody(c.cur.id, p[:n])
	}
	c.cur.remaining -= n
	if c.cur.remaining == 0 {
		if err := c.completeMessage(false); err != nil {
			return int(n), err
		}
	}
	return int(n), nil
}

func (c *Codec1) parseChunkSizeFrom(p []byte) (int, error) {
	idx := findCRLF(p)
	if idx < 0 {
		return 0, nil
	}
	line := string(p[:idx])
	if semi := strings.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
	if err != nil || size < 0 {
		return 0, c.badRequest(c.cur.id, "invalid chunk size")
	}
	if c.cb != nil {
		c.cb.OnChunkHeader(c.cur.id, int(size))
	}
	c.cur.remaining = size
	if size == 0 {
		c.state = parseTrailers
		return idx + 2, nil
	}
	c.state = parseChunkData
	return idx + 2, nil
}

func (c *Codec1) parseChunkDataFrom(p []byte) (int, error) {
	n := int64(len(p))
	if n > c.cur.remaining {
		n = c.cur.remaining
	}
	if n > 0 && c.cb != nil {
		c.cb.OnBody(c.cur.id, p[:n])
	}
	c.cur.remaining -= n
	if c.cur.remaining == 0 {
		c.state = parseChunkCRLF
	}
	return int(n), nil
}

func (c *Codec1) parseChunkCRLFFrom(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, nil
	}
	if c.cb != nil {
		c.cb.OnChunkComplete(c.cur.id)
	}
	c.state = parseChunkSize
	return 2, nil
}

func (c *Codec1) parseTrailerLineFrom(p []byte) (int, error) {
	idx := findCRLF(p)
	if idx < 0 {
		return 0, nil
	}
	line := p[:idx]
	if len(line) == 0 {
		var trailers *codec.HTTPHeaders
		if c.msg.Trailers != nil && c.msg.Trailers.Len() > 0 {
			trailers = c.msg.Trailers
		}
		if c.cb != nil && trailers != nil {
			c.cb.OnTrailersComplete(c.cur.id, trailers)
		}
		return idx + 2, c.completeMessage(false)
	}
	name, value, ok := splitHeaderLine(string(line))
	if !ok {
		return 0, c.badRequest(c.cur.id, "invalid trailer line")
	}
	if c.msg.Trailers == nil {
		c.msg.Trailers = &codec.HTTPHeaders{}
	}
	c.msg.Trailers.Add(name, value)
	return idx + 2, nil
}

func (c *Codec1) completeMessage(upgrade bool) error {
	id := c.cur.id
	c.cur.ingress = c.cur.ingress.OnIngressEOM()
	if c.cb != nil {
		c.cb.OnMessageComplete(id, upgrade)
	}
	c.state = parseStartLine
	c.cur = nil
	c.msg = nil
	return nil
}

func (c *Codec1) emitError(stream codec.StreamID, code codec.ErrorCode, message string, newStream bool) {
	if c.cb == nil {
		return
	}
	c.cb.OnError(stream, &codec.HTTPException{Ingress: true, Code: code, Message: message, Stream: stream, HasStream: true}, newStream)
}

// --- egress ---

func (c *Codec1) GenerateHeader(buf *hpack.EncodeBuffer, stream codec.StreamID, msg *codec.HTTPMessage, assocStream codec.StreamID) int {
	start := buf.Len()
	if c.direction == codec.DirectionDownstream {
		status := msg.StatusCode
		if status == 0 {
			status = 200
		}
		buf.AppendBytes([]byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, statusText(status))))
	} else {
		buf.AppendBytes([]byte(fmt.Sprintf("%s %s HTTP/1.1\r\n", msg.Method, msg.URL)))
	}
	msg.Headers.ForEach(func(name, value string) {
		buf.AppendBytes([]byte(name))
		buf.AppendBytes([]byte(": "))
		buf.AppendBytes([]byte(value))
		buf.AppendBytes([]byte("\r\n"))
	})
	buf.AppendBytes([]byte("\r\n"))
	return buf.Len() - start
}

func (c *Codec1) GenerateBody(buf *hpack.EncodeBuffer, stream codec.StreamID, p []byte, eom bool) int {
	buf.AppendBytes(p)
	return len(p)
}

func (c *Codec1) GenerateChunkHeader(buf *hpack.EncodeBuffer, stream codec.StreamID, length int) int {
	start := buf.Len()
	buf.AppendBytes([]byte(fmt.Sprintf("%x\r\n", length)))
	return buf.Len() - start
}

func (c *Codec1) GenerateChunkTerminator(buf *hpack.EncodeBuffer, stream codec.StreamID) int {
	buf.AppendBytes([]byte("\r\n"))
	return 2
}

func (c *Codec1) GenerateTrailers(buf *hpack.EncodeBuffer, stream codec.StreamID, trailers codec.HTTPHeaders) int {
	start := buf.Len()
	trailers.ForEach(func(name, value string) {
		buf.AppendBytes([]byte(name + ": " + value + "\r\n"))
	})
	buf.AppendBytes([]byte("\r\n"))
	return buf.Len() - start
}

func (c *Codec1) GenerateEOM(buf *hpack.EncodeBuffer, stream codec.StreamID) int {
	buf.AppendBytes([]byte("0\r\n\r\n"))
	return 5
}

// GenerateRstStream has no HTTP/1.x wire representation; the only way to
// abort a message is to close the connection, so this returns 0 bytes
// (spec.md §4.2: "illegal operations ... produce 0 bytes").
func (c *Codec1) GenerateRstStream(buf *hpack.EncodeBuffer, stream codec.StreamID, code codec.ErrorCode) int {
	c.closing = true
	return 0
}

func (c *Codec1) GenerateGoaway(buf *hpack.EncodeBuffer, lastStream codec.StreamID, code codec.ErrorCode) int {
	c.sentGoaway = true
	c.closing = true
	return 0
}

func (c *Codec1) GeneratePingRequest(buf *hpack.EncodeBuffer) int  { return 0 }
func (c *Codec1) GeneratePingReply(buf *hpack.EncodeBuffer, uniqueID uint64) int { return 0 }
func (c *Codec1) GenerateSettings(buf *hpack.EncodeBuffer) int     { return 0 }
func (c *Codec1) GenerateWindowUpdate(buf *hpack.EncodeBuffer, stream codec.StreamID, delta uint32) int {
	return 0
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 301:
		return "Moved Permanently"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}
