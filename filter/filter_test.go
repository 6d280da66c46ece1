package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/codec/http1"
)

type capturingCallback struct {
	begun []codec.StreamID
}

func (c *capturingCallback) OnMessageBegin(stream codec.StreamID, msg *codec.HTTPMessage) {
	c.begun = append(c.begun, stream)
}
func (c *capturingCallback) OnPushMessageBegin(codec.StreamID, codec.StreamID, *codec.HTTPMessage) {}
func (c *capturingCallback) OnHeadersComplete(codec.StreamID, *codec.HTTPMessage)                  {}
func (c *capturingCallback) OnBody(codec.StreamID, []byte)                                         {}
func (c *capturingCallback) OnChunkHeader(codec.StreamID, int)                                     {}
func (c *capturingCallback) OnChunkComplete(codec.StreamID)                                         {}
func (c *capturingCallback) OnTrailersComplete(codec.StreamID, *codec.HTTPHeaders)                  {}
func (c *capturingCallback) OnMessageComplete(codec.StreamID, bool)                                 {}
func (c *capturingCallback) OnError(codec.StreamID, *codec.HTTPException, bool)                     {}
func (c *capturingCallback) OnAbort(codec.StreamID, codec.ErrorCode)                                {}
func (c *capturingCallback) OnGoaway(codec.StreamID, codec.ErrorCode)                                {}
func (c *capturingCallback) OnPingRequest(uint64)                                                   {}
func (c *capturingCallback) OnPingReply(uint64)                                                      {}
func (c *capturingCallback) OnWindowUpdate(codec.StreamID, uint32)                                   {}
func (c *capturingCallback) OnSettings(codec.Settings)                                                {}
func (c *capturingCallback) OnSettingsAck()                                                           {}

// countingFilter counts how many times OnMessageBegin passes through it,
// otherwise behaving as a pure PassThroughFilter.
type countingFilter struct {
	*PassThroughFilter
	count *int
}

func newCountingFilter(count *int) Factory {
	return func(next codec.Codec) codec.Codec {
		return &countingFilter{PassThroughFilter: NewPassThroughFilter(next), count: count}
	}
}

func (f *countingFilter) OnMessageBegin(stream codec.StreamID, msg *codec.HTTPMessage) {
	*f.count++
	f.PassThroughFilter.OnMessageBegin(stream, msg)
}

func TestChain_EmptyIsIdentity(t *testing.T) {
	base := http1.New(codec.DirectionDownstream)
	chained := Chain(base)
	assert.True(t, chained == codec.Codec(base), "empty chain must return the base codec unchanged")
}

func TestChain_ForwardsCallsAndCallbacks(t *testing.T) {
	base := http1.New(codec.DirectionDownstream)
	var hits int
	chained := Chain(base, newCountingFilter(&hits))

	term := &capturingCallback{}
	chained.SetCallback(term)

	n, err := chained.OnIngress([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.Equal(t, 1, hits)
	require.Len(t, term.begun, 1)
}

func TestChain_MultipleLayersPreserveOrder(t *testing.T) {
	base := http1.New(codec.DirectionDownstream)
	var a, b int
	chained := Chain(base, newCountingFilter(&a), newCountingFilter(&b))
	chained.SetCallback(&capturingCallback{})

	_, err := chained.OnIngress([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
