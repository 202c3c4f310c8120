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

	"github.com/stretchr/testify/require"
)

func TestSubscribeDeduplicatesByAddress(t *testing.T) {
	tbl := NewSubscriptionTable()
	key := EventgroupKey{ServiceID: 0x1234, EventgroupID: 1}
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5000}

	tbl.Subscribe(key, addr, time.Minute, time.Now())
	tbl.Subscribe(key, addr, time.Minute, time.Now())
	require.Len(t, tbl.Subscribers(key), 1)
}

func TestUnsubscribeRemovesEntry(t *testing.T) {
	tbl := NewSubscriptionTable()
	key := EventgroupKey{ServiceID: 0x1234, EventgroupID: 1}
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5000}
	tbl.Subscribe(key, addr, time.Minute, time.Now())
	tbl.Unsubscribe(key, addr)
	require.Empty(t, tbl.Subscribers(key))
}

func TestConsumerSubscriptionLifecycle(t *testing.T) {
	tbl := NewSubscriptionTable()
	key := EventgroupKey{ServiceID: 0x1234, EventgroupID: 1}

	require.Equal(t, SubNone, tbl.State(key))
	tbl.MarkPending(key)
	require.Equal(t, SubPending, tbl.State(key))

	tbl.MarkAcked(key, 100)
	require.Equal(t, SubActive, tbl.State(key))
	require.True(t, tbl.IsAcked(key))

	tbl.MarkAcked(key, 0)
	require.Equal(t, SubFailed, tbl.State(key))
	require.False(t, tbl.IsAcked(key))

	tbl.MarkNone(key)
	require.Equal(t, SubNone, tbl.State(key))
}
