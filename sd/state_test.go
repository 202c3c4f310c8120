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
	"time"

	"github.com/arunj123/go-someip/transport"
	"github.com/stretchr/testify/require"
)

func newLoopbackListener(t *testing.T, alias string) *Listener {
	t.Helper()
	tr, err := transport.NewUDPTransport(transport.UDPConfig{BindAddr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}})
	require.NoError(t, err)
	require.NoError(t, tr.SetNonblocking(true))
	t.Cleanup(func() { tr.Close() })
	return &Listener{Alias: alias, V4: tr, V4Group: tr.LocalAddr().(*net.UDPAddr)}
}

// Two State instances share one loopback "multicast group" address (in
// practice each listener's own unicast port, since real multicast loopback
// needs a multicast-capable test environment) - each sends its emissions to
// the other's listener address directly.
func TestOfferAndFindServiceEndToEnd(t *testing.T) {
	providerListener := newLoopbackListener(t, "primary")
	consumerListener := newLoopbackListener(t, "primary")
	providerListener.V4Group = consumerListener.V4.LocalAddr().(*net.UDPAddr)
	consumerListener.V4Group = providerListener.V4.LocalAddr().(*net.UDPAddr)

	provider := NewState([]*Listener{providerListener})
	consumer := NewState([]*Listener{consumerListener})

	timing := Timing{
		InitialDelayMin: time.Millisecond,
		InitialDelayMax: 2 * time.Millisecond,
		RepetitionBase:  2 * time.Millisecond,
		RepetitionMax:   2,
		CyclicDelay:     10 * time.Millisecond,
		TTL:             0x00FFFFFF,
	}
	endpoints := []Option{{Type: OptionIPv4Endpoint, IP: net.IPv4(127, 0, 0, 1), L4Proto: transport.ProtoUDP, Port: 30501}}
	provider.OfferService(0x1234, 1, 1, 0, endpoints, []string{"primary"}, timing)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		now := time.Now()
		provider.Poll(now)
		consumer.Poll(now)
		if _, ok := consumer.GetService(0x1234, InstanceWildcard); ok {
			svc, _ := consumer.GetService(0x1234, InstanceWildcard)
			require.Equal(t, uint16(1), svc.InstanceID)
			addr, proto, ok := svc.Endpoint()
			require.True(t, ok)
			require.Equal(t, transport.ProtoUDP, proto)
			require.Equal(t, "127.0.0.1:30501", addr.String())
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("consumer never discovered the offered service")
}

func TestStopOfferRemovesRemoteServiceWithinOnePoll(t *testing.T) {
	providerListener := newLoopbackListener(t, "primary")
	consumerListener := newLoopbackListener(t, "primary")
	providerListener.V4Group = consumerListener.V4.LocalAddr().(*net.UDPAddr)
	consumerListener.V4Group = providerListener.V4.LocalAddr().(*net.UDPAddr)

	provider := NewState([]*Listener{providerListener})
	consumer := NewState([]*Listener{consumerListener})
	consumer.Registry.Upsert(RemoteService{ServiceID: 0x1234, InstanceID: 1, LastSeen: time.Now(), TTL: time.Minute})

	timing := DefaultTiming()
	provider.OfferService(0x1234, 1, 1, 0, nil, []string{"primary"}, timing)
	provider.StopOffer(0x1234, 1)

	// The TTL=0 entry is already queued on the consumer's loopback socket,
	// so a single Poll must receive it and drop the remote service.
	consumer.Poll(time.Now())
	_, ok := consumer.GetService(0x1234, 1)
	require.False(t, ok, "stopOffer entry did not remove the service within one poll")
}
