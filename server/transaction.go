package server

import (
	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/hpack"
)

// Transaction is one request/response exchange scoped to a single stream of
// a Session. It back-references its Session non-owningly: the Session owns
// the Transaction, never the reverse, matching spec.md §3's ownership rule.
type Transaction struct {
	session *Session
	stream  codec.StreamID
	handler RequestHandler

	msg *codec.HTTPMessage
}

// ID returns the stream identifier this Transaction is scoped to.
func (t *Transaction) ID() codec.StreamID { return t.stream }

// Message returns the request/response headers once OnHeadersComplete has
// fired; nil before that.
func (t *Transaction) Message() *codec.HTTPMessage { return t.msg }

// SendHeaders generates and flushes a HEADERS (or PUSH_PROMISE, when
// assocStream is non-zero) frame for this transaction.
func (t *Transaction) SendHeaders(msg *codec.HTTPMessage, assocStream codec.StreamID) error {
	buf := hpack.NewEncodeBuffer(0)
	t.session.codec.GenerateHeader(buf, t.stream, msg, assocStream)
	return t.session.flush(buf)
}

// SendBody generates and flushes a body chunk, optionally ending the
// message (eom).
func (t *Transaction) SendBody(p []byte, eom bool) error {
	buf := hpack.NewEncodeBuffer(0)
	t.session.codec.GenerateBody(buf, t.stream, p, eom)
	return t.session.flush(buf)
}

// SendEOM generates and flushes the protocol's explicit end-of-message
// marker without any additional body bytes.
func (t *Transaction) SendEOM() error {
	buf := hpack.NewEncodeBuffer(0)
	t.session.codec.GenerateEOM(buf, t.stream)
	return t.session.flush(buf)
}

// Abort resets the stream with code and removes it from the owning
// Session's active-transaction set.
func (t *Transaction) Abort(code codec.ErrorCode) error {
	buf := hpack.NewEncodeBuffer(0)
	t.session.codec.GenerateRstStream(buf, t.stream, code)
	if err := t.session.flush(buf); err != nil {
		return err
	}
	t.session.removeTransaction(t.stream)
	return nil
}
