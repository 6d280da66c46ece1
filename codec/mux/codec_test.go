package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/hpack"
)

type recordingCallback struct {
	begun     []codec.StreamID
	pushed    []codec.StreamID
	headers   []*codec.HTTPMessage
	bodies    [][]byte
	completed []codec.StreamID
	aborted   []codec.ErrorCode
	settings  []codec.Settings
	pings     []uint64
	pingAcks  []uint64
	windowUps []uint32
	goaways   []codec.ErrorCode
}

func (r *recordingCallback) OnMessageBegin(stream codec.StreamID, msg *codec.HTTPMessage) {
	r.begun = append(r.begun, stream)
}
func (r *recordingCallback) OnPushMessageBegin(stream, assoc codec.StreamID, msg *codec.HTTPMessage) {
	r.pushed = append(r.pushed, stream)
}
func (r *recordingCallback) OnHeadersComplete(stream codec.StreamID, msg *codec.HTTPMessage) {
	r.headers = append(r.headers, msg)
}
func (r *recordingCallback) OnBody(stream codec.StreamID, p []byte) {
	r.bodies = append(r.bodies, append([]byte(nil), p...))
}
func (r *recordingCallback) OnChunkHeader(codec.StreamID, int)                     {}
func (r *recordingCallback) OnChunkComplete(codec.StreamID)                        {}
func (r *recordingCallback) OnTrailersComplete(codec.StreamID, *codec.HTTPHeaders) {}
func (r *recordingCallback) OnMessageComplete(stream codec.StreamID, upgrade bool) {
	r.completed = append(r.completed, stream)
}
func (r *recordingCallback) OnError(codec.StreamID, *codec.HTTPException, bool) {}
func (r *recordingCallback) OnAbort(stream codec.StreamID, code codec.ErrorCode) {
	r.aborted = append(r.aborted, code)
}
func (r *recordingCallback) OnGoaway(last codec.StreamID, code codec.ErrorCode) {
	r.goaways = append(r.goaways, code)
}
func (r *recordingCallback) OnPingRequest(id uint64) { r.pings = append(r.pings, id) }
func (r *recordingCallback) OnPingReply(id uint64)   { r.pingAcks = append(r.pingAcks, id) }
func (r *recordingCallback) OnWindowUpdate(stream codec.StreamID, delta uint32) {
	r.windowUps = append(r.windowUps, delta)
}
func (r *recordingCallback) OnSettings(s codec.Settings) { r.settings = append(r.settings, s) }
func (r *recordingCallback) OnSettingsAck()              {}

func TestCodecMux_HeadersAndDataRoundTrip(t *testing.T) {
	server := New(codec.DirectionDownstream)
	serverCB := &recordingCallback{}
	server.SetCallback(serverCB)

	client := New(codec.DirectionUpstream)

	buf := hpack.NewEncodeBuffer(0)
	req := &codec.HTTPMessage{Method: "GET", URL: "/hello"}
	req.Headers.Add("host", "example.com")
	n := client.GenerateHeader(buf, 1, req, 0)
	assert.Greater(t, n, 0)
	n2 := client.GenerateBody(buf, 1, []byte("payload"), true)
	assert.Greater(t, n2, 0)

	wire := buf.Bytes()
	consumed, err := server.OnIngress(wire)
	require.NoError(t, err)
	assert.Equal(t, len(wire), consumed)

	require.Len(t, serverCB.begun, 1)
	require.Len(t, serverCB.headers, 1)
	assert.Equal(t, "GET", serverCB.headers[0].Method)
	assert.Equal(t, "/hello", serverCB.headers[0].URL)
	host, ok := serverCB.headers[0].Headers.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
	require.Len(t, serverCB.bodies, 1)
	assert.Equal(t, "payload", string(serverCB.bodies[0]))
	require.Len(t, serverCB.completed, 1)
}

func TestCodecMux_PartialFrameBuffering(t *testing.T) {
	server := New(codec.DirectionDownstream)
	cb := &recordingCallback{}
	server.SetCallback(cb)

	client := New(codec.DirectionUpstream)
	buf := hpack.NewEncodeBuffer(0)
	req := &codec.HTTPMessage{Method: "GET", URL: "/x"}
	client.GenerateHeader(buf, 1, req, 0)
	client.GenerateBody(buf, 1, []byte("ab"), true)
	wire := buf.Bytes()

	_, err := server.OnIngress(wire[:5])
	require.NoError(t, err)
	assert.Empty(t, cb.headers, "no complete frame yet")

	_, err = server.OnIngress(wire[5:])
	require.NoError(t, err)
	require.Len(t, cb.headers, 1)
	require.Len(t, cb.bodies, 1)
	assert.Equal(t, "ab", string(cb.bodies[0]))
}

func TestCodecMux_SettingsPingGoaway(t *testing.T) {
	server := New(codec.DirectionDownstream)
	cb := &recordingCallback{}
	server.SetCallback(cb)

	client := New(codec.DirectionUpstream)
	buf := hpack.NewEncodeBuffer(0)
	client.GenerateSettings(buf)
	client.GeneratePingRequest(buf)
	client.GenerateGoaway(buf, 0, codec.ErrorNone)

	_, err := server.OnIngress(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, cb.settings, 1)
	require.Len(t, cb.pings, 1)
	require.Len(t, cb.goaways, 1)
	assert.Equal(t, codec.ErrorNone, cb.goaways[0])
}

func TestCodecMux_RstStreamClosesStream(t *testing.T) {
	server := New(codec.DirectionDownstream)
	cb := &recordingCallback{}
	server.SetCallback(cb)

	client := New(codec.DirectionUpstream)
	buf := hpack.NewEncodeBuffer(0)
	req := &codec.HTTPMessage{Method: "GET", URL: "/x"}
	client.GenerateHeader(buf, 1, req, 0)
	_, err := server.OnIngress(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, server.IsBusy())

	buf2 := hpack.NewEncodeBuffer(0)
	client.GenerateRstStream(buf2, 1, codec.ErrorCancel)
	_, err = server.OnIngress(buf2.Bytes())
	require.NoError(t, err)
	require.Len(t, cb.aborted, 1)
	assert.Equal(t, codec.ErrorCancel, cb.aborted[0])
	assert.False(t, server.IsBusy())
}

func TestCodecMux_StreamParityValidation(t *testing.T) {
	server := New(codec.DirectionDownstream)
	cb := &recordingCallback{}
	server.SetCallback(cb)

	h := encodeFrameHeader(frameHeader{length: 0, typ: frameHeaders, flags: flagEndStream, streamID: 2})
	_, err := server.OnIngress(h[:])
	assert.Error(t, err, "even-numbered client stream violates parity")
}

func TestCodecMux_Capabilities(t *testing.T) {
	c := New(codec.DirectionDownstream)
	assert.True(t, c.SupportsParallelRequests())
	assert.True(t, c.SupportsPushTransactions())
	assert.True(t, c.SupportsStreamFlowControl())
	assert.Equal(t, codec.ProtocolMultiplexed, c.Protocol())
}
