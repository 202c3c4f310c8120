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
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProtocolString(t *testing.T) {
	require.Equal(t, "tcp", ProtoTCP.String())
	require.Equal(t, "udp", ProtoUDP.String())
	require.Equal(t, "unknown", Protocol(0xFF).String())
}

func TestIsWouldBlock(t *testing.T) {
	require.True(t, IsWouldBlock(errWouldBlock))
	require.False(t, IsWouldBlock(errors.New("boom")))
}

func TestUDPSendRequiresDestination(t *testing.T) {
	tr, err := NewUDPTransport(UDPConfig{BindAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}})
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Send([]byte("hi"), nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUDPRoundtrip(t *testing.T) {
	a, err := NewUDPTransport(UDPConfig{BindAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}})
	require.NoError(t, err)
	defer a.Close()

	b, err := NewUDPTransport(UDPConfig{BindAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}})
	require.NoError(t, err)
	defer b.Close()

	_, err = a.Send([]byte("hello"), b.LocalAddr())
	require.NoError(t, err)

	buf := make([]byte, 64)
	require.NoError(t, b.SetNonblocking(true))
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		n, _, rerr := b.Receive(buf)
		if rerr == nil {
			require.Equal(t, "hello", string(buf[:n]))
			return
		}
		if !IsWouldBlock(rerr) {
			require.NoError(t, rerr)
		}
	}
	t.Fatal("never received datagram")
}

func TestTCPRoundtrip(t *testing.T) {
	srv, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	client, err := DialTCP(srv.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	msg := []byte{0, 1, 0, 2, 0, 0, 0, 9, 0, 3, 0, 1, 1, 1, 0x00, 0x00, 'h'}
	_, err = client.Send(msg, nil)
	require.NoError(t, err)

	require.NoError(t, srv.SetNonblocking(true))
	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, _, rerr := srv.Receive(buf)
		if rerr == nil {
			require.Equal(t, msg, buf[:n])
			return
		}
		if !IsWouldBlock(rerr) {
			require.NoError(t, rerr)
		}
	}
	t.Fatal("never received frame")
}

func TestTCPServerSendToUnknownPeerFails(t *testing.T) {
	srv, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	_, err = srv.Send([]byte("x"), &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestFrameLength(t *testing.T) {
	short := []byte{0, 1, 0, 2, 0, 0}
	_, ok := frameLength(short)
	require.False(t, ok)

	full := []byte{0, 1, 0, 2, 0, 0, 0, 9}
	total, ok := frameLength(full)
	require.True(t, ok)
	require.Equal(t, 17, total)
}
