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
	"testing"
	"time"

	"github.com/arunj123/go-someip/transport"
	"github.com/stretchr/testify/require"
)

func TestRegistryUpsertAndGet(t *testing.T) {
	r := NewRegistry()
	r.Upsert(RemoteService{ServiceID: 0x1234, InstanceID: 1, LastSeen: time.Now(), TTL: time.Minute})
	svc, ok := r.Get(0x1234, 1)
	require.True(t, ok)
	require.Equal(t, uint16(0x1234), svc.ServiceID)
}

func TestRegistryWildcardInstance(t *testing.T) {
	r := NewRegistry()
	r.Upsert(RemoteService{ServiceID: 0x1234, InstanceID: 7, LastSeen: time.Now(), TTL: time.Minute})
	svc, ok := r.Get(0x1234, InstanceWildcard)
	require.True(t, ok)
	require.Equal(t, uint16(7), svc.InstanceID)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Upsert(RemoteService{ServiceID: 0x1234, InstanceID: 1, LastSeen: time.Now(), TTL: time.Minute})
	r.Remove(0x1234, 1)
	_, ok := r.Get(0x1234, 1)
	require.False(t, ok)
}

func TestRegistrySweepExpired(t *testing.T) {
	r := NewRegistry()
	old := time.Now().Add(-time.Hour)
	r.Upsert(RemoteService{ServiceID: 0x1234, InstanceID: 1, LastSeen: old, TTL: time.Second})
	r.SweepExpired(time.Now())
	_, ok := r.Get(0x1234, 1)
	require.False(t, ok)
}

func TestRemoteServiceEndpointResolution(t *testing.T) {
	svc := RemoteService{
		Endpoints: []Option{
			{Type: OptionIPv4Endpoint, IP: []byte{127, 0, 0, 1}, L4Proto: transport.ProtoUDP, Port: 30501},
		},
	}
	addr, proto, ok := svc.Endpoint()
	require.True(t, ok)
	require.Equal(t, transport.ProtoUDP, proto)
	require.Equal(t, "127.0.0.1:30501", addr.String())
}
