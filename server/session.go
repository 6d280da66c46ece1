package server

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/hpack"
	"github.com/baranov1ch/httpcore/internal/metrics"
	"github.com/baranov1ch/httpcore/transportinfo"
)

// readBufferSize is the chunk size Session.serve reads into per iteration.
const readBufferSize = 16 * 1024

// Session owns one accepted connection's Codec and the Transactions
// multiplexed over it. It is pinned to the worker goroutine that accepted
// it (spec.md §5 "Scheduling model") — every method below except the ones
// explicitly documented as cross-goroutine-safe assumes it is only ever
// called from that one goroutine.
type Session struct {
	id     string
	conn   net.Conn
	codec  codec.Codec
	logger *zap.Logger
	metrics *metrics.Registry

	factories   []RequestHandlerFactory
	idleTimeout time.Duration

	txns map[codec.StreamID]*Transaction

	mu     sync.Mutex // guards closed, which isClosed may read from any goroutine
	closed bool
}

func newSession(conn net.Conn, c codec.Codec, cfg AcceptorConfiguration, logger *zap.Logger, reg *metrics.Registry) *Session {
	s := &Session{
		id:          uuid.NewString(),
		conn:        conn,
		codec:       c,
		logger:      logger,
		metrics:     reg,
		factories:   cfg.HandlerFactories,
		idleTimeout: cfg.IdleTimeout,
		txns:        make(map[codec.StreamID]*Transaction),
	}
	c.SetCallback(s)
	return s
}

// serve runs the ingress loop until the connection closes or the codec
// reports a fatal error. It never returns until the session is done, by
// design: the caller (a worker goroutine) is pinned to exactly one Session.
func (s *Session) serve() {
	defer s.closeConn()
	buf := make([]byte, readBufferSize)
	for {
		if s.idleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			if s.metrics != nil {
				s.metrics.BytesRead.Add(float64(n))
			}
			if !s.ingest(buf[:n]) {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("read error, closing session", zap.String("session", s.id), zap.Error(err))
			}
			s.codec.OnIngressEOF()
			return
		}
	}
}

// ingest feeds p through the codec, recovering from per-stream protocol
// errors instead of tearing down the whole connection for them (spec.md §7
// kind 1): a codec.StreamError resets just the offending stream and ingest
// keeps feeding the remainder of p when OnIngress reports the offending bytes
// as consumed (codec/mux does). A stream error that consumed nothing (as
// codec/http1 reports a malformed message) and any other error are
// connection-fatal: ingest returns false so serve closes the session.
func (s *Session) ingest(p []byte) bool {
	for len(p) > 0 {
		consumed, err := s.codec.OnIngress(p)
		p = p[consumed:]
		if err == nil {
			return true
		}
		streamErr, ok := err.(codec.StreamError)
		if !ok {
			s.logger.Warn("ingress error, closing session", zap.String("session", s.id), zap.Error(err))
			return false
		}
		s.logger.Debug("stream error, resetting stream", zap.String("session", s.id), zap.Error(streamErr))
		s.resetStream(streamErr.Stream, streamErr.Code)
		if consumed == 0 {
			// Feeding the same bytes again would fail the same way.
			return false
		}
	}
	return true
}

// resetStream generates and flushes an RST_STREAM for stream, notifies its
// handler via OnError, and forgets the transaction, mirroring the recovery
// codec/errors.go documents for codec.StreamError.
func (s *Session) resetStream(stream codec.StreamID, code codec.ErrorCode) {
	buf := hpack.NewEncodeBuffer(0)
	s.codec.GenerateRstStream(buf, stream, code)
	_ = s.flush(buf)

	txn := s.txns[stream]
	if txn != nil {
		if txn.handler != nil {
			txn.handler.OnError(txn, codec.StreamError{Stream: stream, Code: code})
		}
		s.removeTransaction(stream)
	}
}

func (s *Session) closeConn() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	_ = s.conn.Close()
}

// isClosed reports whether the underlying connection has already been
// closed. Safe to call from any goroutine.
func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// sample reads the current TCP_INFO snapshot for this session's connection
// and mirrors it into the RTT gauge, per spec.md §6 "Observable state".
func (s *Session) sample() transportinfo.Sample {
	sample := transportinfo.SampleConn(s.conn)
	if sample.Valid && s.metrics != nil {
		s.metrics.SampledRTT.Set(sample.RTT.Seconds())
	}
	return sample
}

func (s *Session) flush(buf *hpack.EncodeBuffer) error {
	defer buf.Release()
	chain := buf.Take()
	n, err := chain.WriteTo(s.conn)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.BytesWritten.Add(float64(n))
	}
	return nil
}

func (s *Session) removeTransaction(stream codec.StreamID) {
	delete(s.txns, stream)
	if s.metrics != nil {
		s.metrics.ActiveStreams.Dec()
	}
}

// --- codec.Callback ---

func (s *Session) OnMessageBegin(stream codec.StreamID, msg *codec.HTTPMessage) {
	msg.ClientAddr = s.conn.RemoteAddr()
	msg.DstAddr = s.conn.LocalAddr()
	txn := &Transaction{session: s, stream: stream, msg: msg}
	txn.handler = buildHandlerChain(txn, s.factories)
	s.txns[stream] = txn
	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
	}
}

func (s *Session) OnPushMessageBegin(stream, assocStream codec.StreamID, msg *codec.HTTPMessage) {
	s.OnMessageBegin(stream, msg)
}

func (s *Session) OnHeadersComplete(stream codec.StreamID, msg *codec.HTTPMessage) {
	txn := s.txns[stream]
	if txn == nil {
		return
	}
	txn.msg = msg
	if txn.handler != nil {
		txn.handler.OnHeadersComplete(txn, msg)
	}
}

func (s *Session) OnBody(stream codec.StreamID, p []byte) {
	if txn := s.txns[stream]; txn != nil && txn.handler != nil {
		txn.handler.OnBody(txn, p)
	}
}

func (s *Session) OnChunkHeader(codec.StreamID, int) {}
func (s *Session) OnChunkComplete(codec.StreamID)    {}

func (s *Session) OnTrailersComplete(stream codec.StreamID, trailers *codec.HTTPHeaders) {
	if txn := s.txns[stream]; txn != nil {
		txn.msg.Trailers = trailers
	}
}

func (s *Session) OnMessageComplete(stream codec.StreamID, upgrade bool) {
	txn := s.txns[stream]
	if txn == nil {
		return
	}
	if txn.handler != nil {
		txn.handler.OnEOM(txn)
	}
	if !s.codec.SupportsParallelRequests() {
		// HTTP/1.x: the transaction's lifetime ends with the message, since
		// there is nothing left to multiplex it against.
		s.removeTransaction(stream)
	}
}

func (s *Session) OnError(stream codec.StreamID, err *codec.HTTPException, newStream bool) {
	txn := s.txns[stream]
	if txn == nil || txn.handler == nil {
		s.logger.Warn("unhandled codec error", zap.String("session", s.id), zap.Error(err))
		return
	}
	txn.handler.OnError(txn, err)
}

func (s *Session) OnAbort(stream codec.StreamID, code codec.ErrorCode) {
	if txn := s.txns[stream]; txn != nil {
		if txn.handler != nil {
			txn.handler.OnError(txn, codec.StreamError{Stream: stream, Code: code})
		}
		s.removeTransaction(stream)
	}
}

func (s *Session) OnGoaway(lastGoodStreamID codec.StreamID, code codec.ErrorCode) {
	s.logger.Info("received GOAWAY", zap.String("session", s.id), zap.Any("last_stream", lastGoodStreamID), zap.Stringer("code", code))
}

func (s *Session) OnPingRequest(uniqueID uint64) {
	buf := hpack.NewEncodeBuffer(0)
	s.codec.GeneratePingReply(buf, uniqueID)
	_ = s.flush(buf)
}

func (s *Session) OnPingReply(uint64) {}

func (s *Session) OnWindowUpdate(codec.StreamID, uint32) {}
func (s *Session) OnSettings(codec.Settings)              {}
func (s *Session) OnSettingsAck()                          {}
