// Package filter implements the composable codec-interception pattern used
// to splice cross-cutting behavior (compression, stats, access logging)
// into a Codec's call/callback path without touching the wire codec itself.
//
// It is grounded on proxygen's GenericFilter / PassThroughHTTPCodecFilter /
// FilterChain (original_source/proxygen/lib/http/codec/HTTPCodecFilter.h,
// lib/utils/FilterChain.h): a filter embeds the next Codec inward so it
// inherits every call method by default, and separately implements
// codec.Callback so it can intercept every callback before forwarding it
// outward. C++ needed an explicit pass-through body per virtual method
// (PassThroughHTTPCodecFilter); Go embedding gives calls that for free, so
// PassThroughFilter only has to write the Callback side.
package filter

import "github.com/baranov1ch/httpcore/codec"

// PassThroughFilter wraps a codec.Codec, forwarding every call to it
// unmodified (via embedding) and every callback to whatever outer Callback
// is registered via SetCallback. Embed it and override individual methods
// to intercept only the calls or callbacks a concrete filter cares about.
type PassThroughFilter struct {
	codec.Codec
	cb codec.Callback
}

// NewPassThroughFilter wraps next, wiring itself as next's callback so
// ingress callbacks route through this filter before reaching whatever
// outer callback is later registered via SetCallback.
func NewPassThroughFilter(next codec.Codec) *PassThroughFilter {
	f := &PassThroughFilter{Codec: next}
	next.SetCallback(f)
	return f
}

// SetCallback registers the outer callback this filter forwards to. It
// shadows the embedded Codec's SetCallback, which was already used once
// (by NewPassThroughFilter) to wire the filter itself into the inner
// codec's callback slot.
func (f *PassThroughFilter) SetCallback(cb codec.Callback) {
	f.cb = cb
}

func (f *PassThroughFilter) OnMessageBegin(stream codec.StreamID, msg *codec.HTTPMessage) {
	if f.cb != nil {
		f.cb.OnMessageBegin(stream, msg)
	}
}

func (f *PassThroughFilter) OnPushMessageBegin(stream, assocStream codec.StreamID, msg *codec.HTTPMessage) {
	if f.cb != nil {
		f.cb.OnPushMessageBegin(stream, assocStream, msg)
	}
}

func (f *PassThroughFilter) OnHeadersComplete(stream codec.StreamID, msg *codec.HTTPMessage) {
	if f.cb != nil {
		f.cb.OnHeadersComplete(stream, msg)
	}
}

func (f *PassThroughFilter) OnBody(stream codec.StreamID, p []byte) {
	if f.cb != nil {
		f.cb.OnBody(stream, p)
	}
}

func (f *PassThroughFilter) OnChunkHeader(stream codec.StreamID, length int) {
	if f.cb != nil {
		f.cb.OnChunkHeader(stream, length)
	}
}

func (f *PassThroughFilter) OnChunkComplete(stream codec.StreamID) {
	if f.cb != nil {
		f.cb.OnChunkComplete(stream)
	}
}

func (f *PassThroughFilter) OnTrailersComplete(stream codec.StreamID, trailers *codec.HTTPHeaders) {
	if f.cb != nil {
		f.cb.OnTrailersComplete(stream, trailers)
	}
}

func (f *PassThroughFilter) OnMessageComplete(stream codec.StreamID, upgrade bool) {
	if f.cb != nil {
		f.cb.OnMessageComplete(stream, upgrade)
	}
}

func (f *PassThroughFilter) OnError(stream codec.StreamID, err *codec.HTTPException, newStream bool) {
	if f.cb != nil {
		f.cb.OnError(stream, err, newStream)
	}
}

func (f *PassThroughFilter) OnAbort(stream codec.StreamID, code codec.ErrorCode) {
	if f.cb != nil {
		f.cb.OnAbort(stream, code)
	}
}

func (f *PassThroughFilter) OnGoaway(lastGoodStreamID codec.StreamID, code codec.ErrorCode) {
	if f.cb != nil {
		f.cb.OnGoaway(lastGoodStreamID, code)
	}
}

func (f *PassThroughFilter) OnPingRequest(uniqueID uint64) {
	if f.cb != nil {
		f.cb.OnPingRequest(uniqueID)
	}
}

func (f *PassThroughFilter) OnPingReply(uniqueID uint64) {
	if f.cb != nil {
		f.cb.OnPingReply(uniqueID)
	}
}

func (f *PassThroughFilter) OnWindowUpdate(stream codec.StreamID, delta uint32) {
	if f.cb != nil {
		f.cb.OnWindowUpdate(stream, delta)
	}
}

func (f *PassThroughFilter) OnSettings(settings codec.Settings) {
	if f.cb != nil {
		f.cb.OnSettings(settings)
	}
}

func (f *PassThroughFilter) OnSettingsAck() {
	if f.cb != nil {
		f.cb.OnSettingsAck()
	}
}

// Factory builds one filter layer around next. A Chain is built by applying
// a list of Factory values to a base codec in order, innermost first.
type Factory func(next codec.Codec) codec.Codec

// Chain wires base through factories in order and returns the outermost
// codec.Codec. Chain(base) with no factories returns base unchanged, so a
// caller can't distinguish an empty chain from a bare codec.
//
// When a layer implements codec.Callback, Chain registers that layer (not
// the PassThroughFilter it may embed) as the inner codec's callback, so
// callback methods the layer overrides are the ones the inner codec calls.
func Chain(base codec.Codec, factories ...Factory) codec.Codec {
	c := base
	for _, f := range factories {
		layer := f(c)
		if cb, ok := layer.(codec.Callback); ok {
			c.SetCallback(cb)
		}
		c = layer
	}
	return c
}
