// Package server implements the acceptor/session/transaction layer that
// multiplexes accepted connections across worker goroutines, builds a
// per-transaction handler chain, and drains cleanly on shutdown. It is
// grounded on the teacher's serverConn/responseWriter ownership model
// (internal/legacy/http2/server.go) generalized to a protocol-agnostic
// codec.Codec instead of one hard-coded HTTP/2 draft implementation.
package server

import (
	"net"
	"strconv"
	"time"

	"github.com/baranov1ch/httpcore/codec"
)

// SocketAddress is a bindable (host, port) pair.
type SocketAddress struct {
	Host string
	Port uint16
}

func (a SocketAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// SSLContextConfig names a certificate/key pair to load for a bind address.
// Loading the configured material from disk is in scope; issuing or
// validating certificate chains is not.
type SSLContextConfig struct {
	CertFile   string
	KeyFile    string
	Passphrase string
	IsDefault  bool
}

// IPConfig is one address this Acceptor should bind, plus the plaintext
// protocol label used to pick a codec factory for connections that never
// negotiate TLS-ALPN (see DefaultCodecRegistry).
type IPConfig struct {
	Address           SocketAddress
	SSL               []SSLContextConfig
	PlaintextProtocol string
}

// AcceptorConfiguration is the fully-resolved, per-IPConfig settings an
// Acceptor needs to actually listen and dispatch: everything HTTPServerOptions
// carries, narrowed to one address.
type AcceptorConfiguration struct {
	Address           SocketAddress
	SSL               []SSLContextConfig
	PlaintextProtocol string
	IdleTimeout       time.Duration
	HandlerFactories  []RequestHandlerFactory
	CodecFactory      func(codec.Direction) codec.Codec
}

// BindRequest carries one IPConfig to bind. Its PlaintextProtocol label is
// resolved to a codec factory through HTTPServerOptions.CodecRegistry.
type BindRequest struct {
	IPConfig IPConfig
}

// HTTPServerOptions is the top-level, caller-populated configuration for an
// Acceptor. There is deliberately no file/CLI parser for it (spec.md
// Non-goals): cmd/httpcored populates one by hand.
type HTTPServerOptions struct {
	Threads          int
	IdleTimeout      time.Duration
	HandlerFactories []RequestHandlerFactory
	Verbose          bool
	CodecRegistry    map[string]func(codec.Direction) codec.Codec

	// OnDrained, if set, is invoked exactly once by Acceptor.Stop, after
	// every accepted Session has closed (spec.md §3, §5
	// "onConnectionsDrained"). It runs on the goroutine whose Stop call
	// performs the drain.
	OnDrained func()
}
