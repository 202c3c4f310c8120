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

	"github.com/stretchr/testify/require"
)

func TestEntryRoundtrip(t *testing.T) {
	e := Entry{
		Type:       EntryOfferService,
		Index1:     1,
		Index2:     0,
		NOpts1:     2,
		NOpts2:     0,
		ServiceID:  0x1234,
		InstanceID: 0x0001,
		MajorVer:   1,
		TTL:        0x00FFFFFF,
		Final32:    0x00000000,
	}
	b := make([]byte, EntrySize)
	require.NoError(t, EncodeEntry(e, b))
	got, err := DecodeEntry(b)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestEntryTTLIs24Bit(t *testing.T) {
	e := Entry{Type: EntryOfferService, TTL: 0x00FFFFFF}
	b := make([]byte, EntrySize)
	require.NoError(t, EncodeEntry(e, b))
	require.Equal(t, byte(0xFF), b[9])
	require.Equal(t, byte(0xFF), b[10])
	require.Equal(t, byte(0xFF), b[11])
}

func TestEntryTooShort(t *testing.T) {
	_, err := DecodeEntry(make([]byte, 15))
	require.Error(t, err)
}

func TestEventgroupIDFromFinal32(t *testing.T) {
	e := Entry{Type: EntrySubscribeEventgroup, Final32: uint32(7)<<16 | 3}
	require.Equal(t, uint16(7), e.EventgroupID())
}
