//go:build !linux

package transportinfo

import "net"

// SampleConn always reports an invalid sample outside Linux: TCP_INFO has
// no portable equivalent, and spec.md §6 treats an absent sample as
// legitimate rather than an error.
func SampleConn(conn net.Conn) Sample {
	return invalidSample
}
