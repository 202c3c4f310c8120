/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package transport implements the uniform send/receive abstraction over
// UDP (unicast and multicast) and TCP (stream-framed) the dispatcher
// multiplexes, grounded on the socket-handling idiom of
// github.com/facebook/time's ptp4u server (net.ListenUDP plus
// golang.org/x/sys/unix for FD-level options, golang.org/x/net/ipv4|ipv6
// for multicast group membership).
package transport

import (
	"errors"
	"net"
	"time"
)

// ErrInvalidArgument is returned by UDP Send when no destination is given.
var ErrInvalidArgument = errors.New("transport: destination required")

// ErrNotConnected is returned by TCPServer.Send when targeting an unknown peer.
var ErrNotConnected = errors.New("transport: peer not connected")

// Protocol identifies the L4 transport protocol, using the SOME/IP SD wire
// values (0x06 TCP, 0x11 UDP) so callers can round-trip option values
// directly.
type Protocol uint8

// L4 protocol codes as carried in SD Ipv4/Ipv6 endpoint options.
const (
	ProtoTCP Protocol = 0x06
	ProtoUDP Protocol = 0x11
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	default:
		return "unknown"
	}
}

// Transport is the capability set every concrete transport (UDP, TCP
// client, TCP server) implements. It mirrors the {send, receive,
// local_addr, set_nonblocking} surface from spec.md §4.3.
type Transport interface {
	// Send writes b. dst is required for UDP; TCPClient ignores it; TCPServer
	// requires it to select the peer.
	Send(b []byte, dst net.Addr) (int, error)
	// Receive reads the next available message into buf, returning the
	// number of bytes written and the originating address. Returns
	// net.ErrClosed-wrapping errors or a "would block" error (see IsWouldBlock)
	// when nothing is ready and the transport is non-blocking.
	Receive(buf []byte) (int, net.Addr, error)
	LocalAddr() net.Addr
	SetNonblocking(bool) error
	Close() error
}

// wouldBlocker is implemented by errors that mean "nothing to read yet",
// distinguishing a normal empty-poll from a real I/O failure.
type wouldBlocker interface {
	WouldBlock() bool
}

// IsWouldBlock reports whether err represents a non-blocking Receive that
// simply had nothing ready (including an incomplete framed TCP message).
func IsWouldBlock(err error) bool {
	var wb wouldBlocker
	if errors.As(err, &wb) {
		return wb.WouldBlock()
	}
	return false
}

type wouldBlockError struct{ msg string }

func (e *wouldBlockError) Error() string     { return e.msg }
func (e *wouldBlockError) WouldBlock() bool { return true }

// errWouldBlock is returned verbatim where no extra context is needed.
var errWouldBlock = &wouldBlockError{msg: "transport: would block"}

// nonblockingPollInterval is the read-deadline duration used to emulate
// non-blocking reads on connections whose only portable polling mechanism
// is a deadline (net.UDPConn, net.TCPConn).
const nonblockingPollInterval = 20 * time.Millisecond
