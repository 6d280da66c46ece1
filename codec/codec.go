package codec

import "github.com/baranov1ch/httpcore/hpack"

// Callback receives the events a Codec emits while parsing ingress bytes,
// in strict wire order per stream (spec.md §4.2 "Callback surface"). A
// Codec may invoke Callback synchronously from within OnIngress; the
// callback implementation must not destroy the Codec from inside one of
// these methods (spec.md §9 "Callback re-entrancy") — instead mark for
// deferred teardown and release after the top-level OnIngress call
// returns.
type Callback interface {
	OnMessageBegin(stream StreamID, msg *HTTPMessage)
	OnPushMessageBegin(stream, assocStream StreamID, msg *HTTPMessage)
	OnHeadersComplete(stream StreamID, msg *HTTPMessage)
	OnBody(stream StreamID, p []byte)
	OnChunkHeader(stream StreamID, length int)
	OnChunkComplete(stream StreamID)
	OnTrailersComplete(stream StreamID, trailers *HTTPHeaders)
	OnMessageComplete(stream StreamID, upgrade bool)
	OnError(stream StreamID, err *HTTPException, newStream bool)
	OnAbort(stream StreamID, code ErrorCode)
	OnGoaway(lastGoodStreamID StreamID, code ErrorCode)
	OnPingRequest(uniqueID uint64)
	OnPingReply(uniqueID uint64)
	OnWindowUpdate(stream StreamID, delta uint32)
	OnSettings(settings Settings)
	OnSettingsAck()
}

// Codec is the capability-polymorphic protocol state machine implemented
// by codec/http1 and codec/mux, and re-exported unchanged by
// filter.PassThroughFilter/filter.Chain so a caller can't tell a filter
// chain from a bare codec (spec.md §4.2, §4.3).
//
// Every variant implements the full operation set; variants that lack a
// capability return a constant false/zero for the relevant query rather
// than omitting the method.
type Codec interface {
	// Ingress.
	OnIngress(p []byte) (consumed int, err error)
	OnIngressEOF()
	SetParserPaused(paused bool)

	// Egress: each Generate* method returns the number of bytes it wrote.
	// codec/mux writes nothing and returns 0 for a stream it does not know
	// or has closed; codec/http1 does not check stream state. Neither codec
	// logs a rejected call.
	GenerateHeader(buf *hpack.EncodeBuffer, stream StreamID, msg *HTTPMessage, assocStream StreamID) int
	GenerateBody(buf *hpack.EncodeBuffer, stream StreamID, p []byte, eom bool) int
	GenerateChunkHeader(buf *hpack.EncodeBuffer, stream StreamID, length int) int
	GenerateChunkTerminator(buf *hpack.EncodeBuffer, stream StreamID) int
	GenerateTrailers(buf *hpack.EncodeBuffer, stream StreamID, trailers HTTPHeaders) int
	GenerateEOM(buf *hpack.EncodeBuffer, stream StreamID) int
	GenerateRstStream(buf *hpack.EncodeBuffer, stream StreamID, code ErrorCode) int
	GenerateGoaway(buf *hpack.EncodeBuffer, lastStream StreamID, code ErrorCode) int
	GeneratePingRequest(buf *hpack.EncodeBuffer) int
	GeneratePingReply(buf *hpack.EncodeBuffer, uniqueID uint64) int
	GenerateSettings(buf *hpack.EncodeBuffer) int
	GenerateWindowUpdate(buf *hpack.EncodeBuffer, stream StreamID, delta uint32) int

	// Queries.
	Protocol() Protocol
	Direction() Direction
	SupportsStreamFlowControl() bool
	SupportsSessionFlowControl() bool
	SupportsParallelRequests() bool
	SupportsPushTransactions() bool
	IsBusy() bool
	IsReusable() bool
	IsWaitingToDrain() bool
	CloseOnEgressComplete() bool
	NumIncomingStreams() int
	NumOutgoingStreams() int
	LastIncomingStreamID() StreamID

	// Lifecycle.
	CreateStream() StreamID
	SetCallback(cb Callback)
	EnableDoubleGoawayDrain()
}
