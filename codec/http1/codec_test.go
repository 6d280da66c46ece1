package http1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/hpack"
)

type recordingCallback struct {
	begun     []codec.StreamID
	headers   []*codec.HTTPMessage
	bodies    [][]byte
	completed []codec.StreamID
	errs      []*codec.HTTPException
}

func (r *recordingCallback) OnMessageBegin(stream codec.StreamID, msg *codec.HTTPMessage) {
	r.begun = append(r.begun, stream)
}
func (r *recordingCallback) OnPushMessageBegin(codec.StreamID, codec.StreamID, *codec.HTTPMessage) {}
func (r *recordingCallback) OnHeadersComplete(stream codec.StreamID, msg *codec.HTTPMessage) {
	r.headers = append(r.headers, msg)
}
func (r *recordingCallback) OnBody(stream codec.StreamID, p []byte) {
	cp := append([]byte(nil), p...)
	r.bodies = append(r.bodies, cp)
}
func (r *recordingCallback) OnChunkHeader(codec.StreamID, int)             {}
func (r *recordingCallback) OnChunkComplete(codec.StreamID)                {}
func (r *recordingCallback) OnTrailersComplete(codec.StreamID, *codec.HTTPHeaders) {}
func (r *recordingCallback) OnMessageComplete(stream codec.StreamID, upgrade bool) {
	r.completed = append(r.completed, stream)
}
func (r *recordingCallback) OnError(stream codec.StreamID, err *codec.HTTPException, newStream bool) {
	r.errs = append(r.errs, err)
}
func (r *recordingCallback) OnAbort(codec.StreamID, codec.ErrorCode)          {}
func (r *recordingCallback) OnGoaway(codec.StreamID, codec.ErrorCode)         {}
func (r *recordingCallback) OnPingRequest(uint64)                             {}
func (r *recordingCallback) OnPingReply(uint64)                               {}
func (r *recordingCallback) OnWindowUpdate(codec.StreamID, uint32)            {}
func (r *recordingCallback) OnSettings(codec.Settings)                        {}
func (r *recordingCallback) OnSettingsAck()                                   {}

func TestCodec1_ParsesSimpleRequest(t *testing.T) {
	c := New(codec.DirectionDownstream)
	cb := &recordingCallback{}
	c.SetCallback(cb)

	req := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	n, err := c.OnIngress([]byte(req))
	require.NoError(t, err)
	assert.Equal(t, len(req), n)

	require.Len(t, cb.headers, 1)
	assert.Equal(t, "GET", cb.headers[0].Method)
	assert.Equal(t, "/index.html", cb.headers[0].URL)
	host, ok := cb.headers[0].Headers.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
	require.Len(t, cb.completed, 1)
	assert.False(t, c.IsBusy())
}

func TestCodec1_ContentLengthBody(t *testing.T) {
	c := New(codec.DirectionDownstream)
	cb := &recordingCallback{}
	c.SetCallback(cb)

	req := "POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	_, err := c.OnIngress([]byte(req))
	require.NoError(t, err)
	require.Len(t, cb.bodies, 1)
	assert.Equal(t, "hello", string(cb.bodies[0]))
	require.Len(t, cb.completed, 1)
}

func TestCodec1_ChunkedBody(t *testing.T) {
	c := New(codec.DirectionDownstream)
	cb := &recordingCallback{}
	c.SetCallback(cb)

	req := "POST /s HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n0\r\n\r\n"
	_, err := c.OnIngress([]byte(req))
	require.NoError(t, err)
	require.Len(t, cb.bodies, 1)
	assert.Equal(t, "hello", string(cb.bodies[0]))
	require.Len(t, cb.completed, 1)
}

func TestCodec1_PausedBuffersBytes(t *testing.T) {
	c := New(codec.DirectionDownstream)
	cb := &recordingCallback{}
	c.SetCallback(cb)

	c.SetParserPaused(true)
	req := "GET / HTTP/1.1\r\n\r\n"
	n, err := c.OnIngress([]byte(req))
	require.NoError(t, err)
	assert.Equal(t, len(req), n)
	assert.Empty(t, cb.begun, "no callbacks while paused")

	c.SetParserPaused(false)
	assert.Len(t, cb.begun, 1)
	assert.Len(t, cb.completed, 1)
}

func TestCodec1_Capabilities(t *testing.T) {
	c := New(codec.DirectionDownstream)
	assert.False(t, c.SupportsParallelRequests())
	assert.False(t, c.SupportsPushTransactions())
	assert.False(t, c.SupportsStreamFlowControl())
	assert.False(t, c.SupportsSessionFlowControl())
	assert.Equal(t, codec.ProtocolHTTP1, c.Protocol())
}

func TestCodec1_GenerateHeaderAndBody(t *testing.T) {
	c := New(codec.DirectionDownstream)
	buf := hpack.NewEncodeBuffer(0)
	msg := &codec.HTTPMessage{StatusCode: 200}
	msg.Headers.Add("Content-Type", "text/plain")
	n := c.GenerateHeader(buf, 1, msg, 0)
	assert.Greater(t, n, 0)
	n2 := c.GenerateBody(buf, 1, []byte("hi"), true)
	assert.Equal(t, 2, n2)
	out := string(buf.Bytes())
	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "Content-Type: text/plain\r\n")
	assert.Contains(t, out, "hi")
}
