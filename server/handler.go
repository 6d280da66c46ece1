package server

import (
	"github.com/baranov1ch/httpcore/codec"
	"github.com/baranov1ch/httpcore/codec/http1"
	"github.com/baranov1ch/httpcore/codec/mux"
)

// RequestHandler is the per-transaction callback surface a handler chain
// ultimately dispatches to: the terminal consumer of codec.Callback events,
// scoped to one Transaction rather than a whole Session.
type RequestHandler interface {
	OnHeadersComplete(txn *Transaction, msg *codec.HTTPMessage)
	OnBody(txn *Transaction, p []byte)
	OnEOM(txn *Transaction)
	OnError(txn *Transaction, err error)
}

// RequestHandlerFactory decorates the handler chain built so far (prev,
// which is nil for the innermost factory) and returns the next handler,
// which may be prev unchanged, a wrapper around it, or a replacement.
// HTTPServerOptions.HandlerFactories is consulted in reverse configuration
// order (see buildHandlerChain) so the first configured factory ends up
// outermost: it is called last and sees every inner factory's decoration
// already applied.
type RequestHandlerFactory interface {
	OnRequest(prev RequestHandler, txn *Transaction) RequestHandler
}

// RequestHandlerFactoryFunc adapts a plain function to RequestHandlerFactory.
type RequestHandlerFactoryFunc func(prev RequestHandler, txn *Transaction) RequestHandler

func (f RequestHandlerFactoryFunc) OnRequest(prev RequestHandler, txn *Transaction) RequestHandler {
	return f(prev, txn)
}

// RequestHandlerAdaptor is an embeddable no-op RequestHandler: a concrete
// handler embeds it and overrides only the methods it cares about, mirroring
// filter.PassThroughFilter's role on the codec side.
type RequestHandlerAdaptor struct{}

func (RequestHandlerAdaptor) OnHeadersComplete(*Transaction, *codec.HTTPMessage) {}
func (RequestHandlerAdaptor) OnBody(*Transaction, []byte)                       {}
func (RequestHandlerAdaptor) OnEOM(*Transaction)                                {}
func (RequestHandlerAdaptor) OnError(*Transaction, error)                       {}

// buildHandlerChain constructs the RequestHandler a transaction dispatches
// to. Factories are applied innermost-first (the slice's reverse): the last
// configured factory runs first against a nil prev, and each subsequent
// factory wraps the accumulated result, so the first configured factory
// ends up outermost — matching HTTPServerAcceptor::newHandler's
// reverse-then-fold construction.
func buildHandlerChain(txn *Transaction, factories []RequestHandlerFactory) RequestHandler {
	var h RequestHandler
	for i := len(factories) - 1; i >= 0; i-- {
		h = factories[i].OnRequest(h, txn)
	}
	return h
}

// DefaultCodecRegistry resolves AcceptorConfiguration.PlaintextProtocol to a
// codec constructor (spec.md §9 Open Question, resolved here): "spdy/3.1"
// selects the multiplexed codec, and "" or "http/1.1" select HTTP/1.x. Any
// other label has no entry, so Bind fails for it.
func DefaultCodecRegistry() map[string]func(codec.Direction) codec.Codec {
	return map[string]func(codec.Direction) codec.Codec{
		"":          func(d codec.Direction) codec.Codec { return http1.New(d) },
		"http/1.1":  func(d codec.Direction) codec.Codec { return http1.New(d) },
		"spdy/3.1":  func(d codec.Direction) codec.Codec { return mux.New(d) },
	}
}
