// Package transportinfo samples kernel-reported TCP transport state for a
// connection, the way proxygen's TransportInfo does for its acceptor
// metrics. Linux exposes the full picture via TCP_INFO
// (transportinfo_linux.go); other platforms get a conservative stub
// (transportinfo_other.go) rather than failing to build, grounded on the
// pack's own linux/!linux split for the same syscall
// (other_examples/.../sockstats/pkg-tcpinfo-tcpinfo_linux.go.go is
// Linux-only with no documented fallback — this repo adds one so a
// non-Linux build still links).
package transportinfo

import "time"

// Sample is a point-in-time read of a connection's TCP-level state, reduced
// to the fields the session/metrics layer actually consumes.
type Sample struct {
	Valid bool

	RTT    time.Duration
	RTTVar time.Duration

	CongestionWindow uint32
	SendWindow       uint32
	ReceiveWindow    uint32

	BytesAcked    uint64
	BytesReceived uint64
	Retransmits   uint32
}

// invalidSample is returned whenever a sample cannot be taken (platform
// without TCP_INFO, or a non-TCP connection).
var invalidSample = Sample{Valid: false, RTT: -1, RTTVar: -1}
