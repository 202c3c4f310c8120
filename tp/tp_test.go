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

package tp

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/arunj123/go-someip/wire"
	"github.com/stretchr/testify/require"
)

func TestSegmentEmptyPayload(t *testing.T) {
	segs := SegmentPayload(nil, 1400)
	require.Len(t, segs, 1)
	require.Equal(t, uint32(0), segs[0].Header.Offset)
	require.False(t, segs[0].Header.MoreSegments)
	require.Empty(t, segs[0].Payload)
}

func TestSegmentAlignment(t *testing.T) {
	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i)
	}
	segs := SegmentPayload(payload, 1400)
	require.Len(t, segs, 4)
	for i, s := range segs {
		if i < len(segs)-1 {
			require.True(t, s.Header.MoreSegments)
			require.Positive(t, len(s.Payload))
			require.Zero(t, len(s.Payload)%16)
			require.Equal(t, 1376, len(s.Payload))
		} else {
			require.False(t, s.Header.MoreSegments)
		}
	}
	total := 0
	for _, s := range segs {
		total += len(s.Payload)
	}
	require.Equal(t, len(payload), total)
}

func reassembleAll(t *testing.T, segs []Segment) []byte {
	t.Helper()
	r := NewReassembler()
	key := Key{MessageID: 1, RequestID: 1}
	var out []byte
	for i, s := range segs {
		res, err := r.Process(key, s)
		if i < len(segs)-1 {
			require.ErrorIs(t, err, ErrIncomplete)
		} else {
			require.NoError(t, err)
			out = res
		}
	}
	return out
}

func TestSegmentReassembleRoundtrip(t *testing.T) {
	sizes := []int{0, 1, 15, 16, 17, 1376, 5000, 65536}
	for _, size := range sizes {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i % 251)
		}
		segs := SegmentPayload(payload, 1400)
		got := reassembleAll(t, segs)
		require.Equal(t, payload, got)
	}
}

func TestReassemblerOrderIndependent(t *testing.T) {
	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i)
	}
	segs := SegmentPayload(payload, 1400)

	for trial := 0; trial < 5; trial++ {
		shuffled := append([]Segment(nil), segs...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		r := NewReassembler()
		key := Key{MessageID: 2, RequestID: 2}
		var got []byte
		var err error
		for _, s := range shuffled {
			got, err = r.Process(key, s)
		}
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}
}

func TestReassemblerDuplicateOffsetLateArrivalWins(t *testing.T) {
	r := NewReassembler()
	key := Key{MessageID: 3, RequestID: 3}

	zeros := []byte(strings.Repeat("0", 16))
	ones := []byte(strings.Repeat("1", 16))

	_, err := r.Process(key, Segment{Header: wire.TPHeader{Offset: 0, MoreSegments: true}, Payload: zeros})
	require.ErrorIs(t, err, ErrIncomplete)

	// late arrival for the same offset overwrites the first.
	_, err = r.Process(key, Segment{Header: wire.TPHeader{Offset: 0, MoreSegments: true}, Payload: ones})
	require.ErrorIs(t, err, ErrIncomplete)

	got, err := r.Process(key, Segment{Header: wire.TPHeader{Offset: 16, MoreSegments: false}, Payload: []byte("tail")})
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("1", 16)+"tail", string(got))
}

func TestReassemblerGapStaysIncomplete(t *testing.T) {
	r := NewReassembler()
	key := Key{MessageID: 4, RequestID: 4}
	_, err := r.Process(key, Segment{Header: wire.TPHeader{Offset: 16, MoreSegments: false}, Payload: []byte("tail")})
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestReassemblerSizeCap(t *testing.T) {
	r := NewReassembler(WithMaxReassemblySize(32))
	key := Key{MessageID: 5, RequestID: 5}
	_, err := r.Process(key, Segment{Header: wire.TPHeader{Offset: 0, MoreSegments: true}, Payload: make([]byte, 16)})
	require.ErrorIs(t, err, ErrIncomplete)
	_, err = r.Process(key, Segment{Header: wire.TPHeader{Offset: 16, MoreSegments: true}, Payload: make([]byte, 16)})
	require.ErrorIs(t, err, ErrIncomplete)
	_, err = r.Process(key, Segment{Header: wire.TPHeader{Offset: 32, MoreSegments: false}, Payload: make([]byte, 16)})
	require.Error(t, err)
	require.Zero(t, r.Pending())
}
