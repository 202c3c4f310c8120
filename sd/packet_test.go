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

package sd

import (
	"net"
	"testing"

	"github.com/arunj123/go-someip/transport"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundtrip(t *testing.T) {
	p := Packet{
		Reboot:           true,
		UnicastSupported: true,
		Entries: []Entry{
			{Type: EntryOfferService, ServiceID: 0x1234, InstanceID: 1, MajorVer: 1, TTL: 0x00FFFFFF, Index1: 0, NOpts1: 1},
		},
		Options: []Option{
			{Type: OptionIPv4Endpoint, IP: net.IPv4(127, 0, 0, 1), L4Proto: transport.ProtoUDP, Port: 30501},
		},
	}
	b := EncodePacket(p)
	got, err := DecodePacket(b)
	require.NoError(t, err)
	require.True(t, got.Reboot)
	require.True(t, got.UnicastSupported)
	require.Len(t, got.Entries, 1)
	require.Len(t, got.Options, 1)
	require.Equal(t, p.Entries[0].ServiceID, got.Entries[0].ServiceID)
	require.True(t, got.Options[0].IP.Equal(net.IPv4(127, 0, 0, 1)))
}

func TestPacketEmpty(t *testing.T) {
	b := EncodePacket(Packet{})
	got, err := DecodePacket(b)
	require.NoError(t, err)
	require.Empty(t, got.Entries)
	require.Empty(t, got.Options)
}

func TestOptionsForEntryBoundsCheck(t *testing.T) {
	p := Packet{Options: []Option{{Type: OptionConfiguration, Config: "x"}}}
	e := Entry{Index1: 0, NOpts1: 5}
	_, _, err := p.OptionsForEntry(e)
	require.Error(t, err)
}

func TestOptionsForEntryResolvesTwoRuns(t *testing.T) {
	p := Packet{Options: []Option{
		{Type: OptionIPv4Endpoint, IP: net.IPv4(1, 1, 1, 1), Port: 1},
		{Type: OptionIPv4Endpoint, IP: net.IPv4(2, 2, 2, 2), Port: 2},
	}}
	e := Entry{Index1: 0, NOpts1: 1, Index2: 1, NOpts2: 1}
	run1, run2, err := p.OptionsForEntry(e)
	require.NoError(t, err)
	require.Len(t, run1, 1)
	require.Len(t, run2, 1)
	require.True(t, run1[0].IP.Equal(net.IPv4(1, 1, 1, 1)))
	require.True(t, run2[0].IP.Equal(net.IPv4(2, 2, 2, 2)))
}

func TestDecodePacketTruncated(t *testing.T) {
	_, err := DecodePacket([]byte{0, 0, 0})
	require.Error(t, err)
}
