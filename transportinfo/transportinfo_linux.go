//go:build linux

package transportinfo

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// SampleConn reads TCP_INFO for conn via golang.org/x/sys/unix, the same
// syscall wrapper the Linux-only sibling packages in the retrieval pack
// reach for instead of hand-rolling the getsockopt(2) call.
func SampleConn(conn net.Conn) Sample {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return invalidSample
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return invalidSample
	}
	var info *unix.TCPInfo
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		info, sockErr = unix.GetsockoptTCPInfo(int(fd), unix.SOL_TCP, unix.TCP_INFO)
	})
	if err != nil || sockErr != nil || info == nil {
		return invalidSample
	}
	return Sample{
		Valid:             true,
		RTT:               time.Duration(info.Rtt) * time.Microsecond,
		RTTVar:            time.Duration(info.Rttvar) * time.Microsecond,
		CongestionWindow:  info.Snd_cwnd,
		SendWindow:        info.Snd_ssthresh,
		ReceiveWindow:     info.Rcv_space,
		BytesAcked:        info.Bytes_acked,
		BytesReceived:     info.Bytes_received,
		Retransmits:       uint32(info.Retransmits),
	}
}
