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

package transport

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// UDPConfig describes how to bind and, optionally, join a multicast group.
type UDPConfig struct {
	// BindAddr is the local address to bind to. For a unicast socket this is
	// the socket's own address; for a multicast receiver the spec allows
	// binding either to the group address (strict Unix binding, see
	// bindToDevice) or to the unicast address (Windows).
	BindAddr *net.UDPAddr

	// MulticastGroup, if non-nil, is joined after bind.
	MulticastGroup *net.UDPAddr

	// InterfaceName pins the outgoing multicast interface and, on Unix, is
	// used for SO_BINDTODEVICE when binding to a multicast group address.
	InterfaceName string

	// TTL/HopLimit for v4/v6 multicast; 0 leaves the OS default.
	MulticastTTL int

	// Loopback enables receiving our own multicast transmissions.
	Loopback bool

	// ReuseAddr enables SO_REUSEADDR (SO_REUSEPORT is not set), required so
	// multiple listeners can share a multicast port.
	ReuseAddr bool
}

// UDPTransport implements Transport over a UDP socket, with optional
// multicast group membership.
type UDPTransport struct {
	conn        *net.UDPConn
	pc4         *ipv4.PacketConn
	pc6         *ipv6.PacketConn
	isV6        bool
	nonblocking int32
}

// NewUDPTransport binds a UDP socket per cfg and, if MulticastGroup is set,
// joins the group on InterfaceName (or on the system-chosen default
// multicast interface when InterfaceName is empty).
func NewUDPTransport(cfg UDPConfig) (*UDPTransport, error) {
	if cfg.BindAddr == nil {
		return nil, fmt.Errorf("transport: BindAddr required")
	}
	network := "udp4"
	isV6 := cfg.BindAddr.IP.To4() == nil
	if isV6 {
		network = "udp6"
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				if cfg.ReuseAddr {
					if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
						ctrlErr = e
						return
					}
				}
				if cfg.MulticastGroup != nil && cfg.InterfaceName != "" {
					if e := bindToDevice(int(fd), cfg.InterfaceName); e != nil {
						// best-effort: not every platform supports SO_BINDTODEVICE.
						ctrlErr = nil
					}
				}
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	bindAddr := cfg.BindAddr.String()
	if cfg.MulticastGroup != nil {
		// Strict Unix binding: bind the socket to the multicast group address
		// itself. BindAddr's address is not used for the bind in this case;
		// it only selects the address family.
		bindAddr = (&net.UDPAddr{IP: cfg.MulticastGroup.IP, Port: cfg.MulticastGroup.Port}).String()
	}

	pconn, err := lc.ListenPacket(context.Background(), network, bindAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s %s: %w", network, bindAddr, err)
	}
	conn, ok := pconn.(*net.UDPConn)
	if !ok {
		pconn.Close()
		return nil, fmt.Errorf("transport: unexpected packet conn type %T", pconn)
	}

	t := &UDPTransport{conn: conn, isV6: isV6}

	if cfg.MulticastGroup != nil {
		var ifi *net.Interface
		if cfg.InterfaceName != "" {
			ifi, err = net.InterfaceByName(cfg.InterfaceName)
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("transport: interface %q: %w", cfg.InterfaceName, err)
			}
		}
		if isV6 {
			pc6 := ipv6.NewPacketConn(conn)
			if err := pc6.JoinGroup(ifi, cfg.MulticastGroup); err != nil {
				conn.Close()
				return nil, fmt.Errorf("transport: join v6 group %s: %w", cfg.MulticastGroup, err)
			}
			if cfg.MulticastTTL > 0 {
				_ = pc6.SetMulticastHopLimit(cfg.MulticastTTL)
			}
			_ = pc6.SetMulticastLoopback(cfg.Loopback)
			if ifi != nil {
				_ = pc6.SetMulticastInterface(ifi)
			}
			t.pc6 = pc6
		} else {
			pc4 := ipv4.NewPacketConn(conn)
			if err := pc4.JoinGroup(ifi, cfg.MulticastGroup); err != nil {
				conn.Close()
				return nil, fmt.Errorf("transport: join v4 group %s: %w", cfg.MulticastGroup, err)
			}
			if cfg.MulticastTTL > 0 {
				_ = pc4.SetMulticastTTL(cfg.MulticastTTL)
			}
			_ = pc4.SetMulticastLoopback(cfg.Loopback)
			if ifi != nil {
				_ = pc4.SetMulticastInterface(ifi)
			}
			t.pc4 = pc4
		}
	}

	return t, nil
}

// Send writes b to dst, which must be a *net.UDPAddr. spec.md §4.3: UDP send
// without a destination fails with ErrInvalidArgument.
func (t *UDPTransport) Send(b []byte, dst net.Addr) (int, error) {
	if dst == nil {
		return 0, ErrInvalidArgument
	}
	udst, ok := dst.(*net.UDPAddr)
	if !ok {
		return 0, fmt.Errorf("%w: expected *net.UDPAddr, got %T", ErrInvalidArgument, dst)
	}
	return t.conn.WriteToUDP(b, udst)
}

// Receive reads the next datagram into buf. In non-blocking mode it polls
// with a short read deadline and returns errWouldBlock when nothing arrives
// in time, since net.UDPConn has no raw non-blocking read mode.
func (t *UDPTransport) Receive(buf []byte) (int, net.Addr, error) {
	if atomic.LoadInt32(&t.nonblocking) != 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(nonblockingPollInterval))
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}
	n, addr, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if atomic.LoadInt32(&t.nonblocking) != 0 && isTimeoutOrWouldBlock(err) {
			return 0, nil, errWouldBlock
		}
		return 0, nil, err
	}
	return n, addr, nil
}

// LocalAddr returns the bound local address.
func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// SetNonblocking toggles a read-deadline-based non-blocking emulation, since
// net.UDPConn has no raw non-blocking mode portable across platforms.
func (t *UDPTransport) SetNonblocking(nonblocking bool) error {
	if nonblocking {
		atomic.StoreInt32(&t.nonblocking, 1)
	} else {
		atomic.StoreInt32(&t.nonblocking, 0)
	}
	return nil
}

// Close releases the underlying socket.
func (t *UDPTransport) Close() error { return t.conn.Close() }
