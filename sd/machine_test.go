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

	"github.com/stretchr/testify/require"
)

func testTiming() Timing {
	return Timing{
		InitialDelayMin: 10 * time.Millisecond,
		InitialDelayMax: 20 * time.Millisecond,
		RepetitionBase:  10 * time.Millisecond,
		RepetitionMax:   2,
		CyclicDelay:     50 * time.Millisecond,
		TTL:             0x00FFFFFF,
	}
}

func TestOfferEntersInitialWaitWithDelayInRange(t *testing.T) {
	ls := NewLocalService(0x1234, 1, 1, 0, nil, []string{"primary"}, testTiming())
	now := time.Now()
	ls.Offer(now)
	require.Equal(t, PhaseInitialWait, ls.Phase)
	require.True(t, !ls.NextTransmission.Before(now.Add(10*time.Millisecond)))
	require.True(t, ls.NextTransmission.Before(now.Add(20*time.Millisecond)))
}

func TestAdvanceThroughRepetitionToMain(t *testing.T) {
	ls := NewLocalService(0x1234, 1, 1, 0, nil, []string{"primary"}, testTiming())
	now := time.Now()
	ls.Offer(now)

	// force the next transmission due.
	ls.NextTransmission = now
	emitted := ls.Advance(now)
	require.Len(t, emitted, 1)
	require.Equal(t, PhaseRepetition, ls.Phase)
	require.Equal(t, 1, ls.RepetitionCount)

	ls.NextTransmission = now
	emitted = ls.Advance(now)
	require.Len(t, emitted, 1)
	require.Equal(t, 2, ls.RepetitionCount)
	require.Equal(t, PhaseRepetition, ls.Phase)

	// repetition count now exceeds RepetitionMax=2 on the next tick -> transitions to Main with two emits.
	ls.NextTransmission = now
	emitted = ls.Advance(now)
	require.Len(t, emitted, 2)
	require.Equal(t, PhaseMain, ls.Phase)

	ls.NextTransmission = now
	emitted = ls.Advance(now)
	require.Len(t, emitted, 1)
	require.Equal(t, PhaseMain, ls.Phase)
}

func TestAdvanceNoOpBeforeNextTransmission(t *testing.T) {
	ls := NewLocalService(0x1234, 1, 1, 0, nil, nil, testTiming())
	now := time.Now()
	ls.Offer(now)
	ls.NextTransmission = now.Add(time.Hour)
	require.Empty(t, ls.Advance(now))
}

func TestAdvanceNoOpWhenDown(t *testing.T) {
	ls := NewLocalService(0x1234, 1, 1, 0, nil, nil, testTiming())
	require.Equal(t, PhaseDown, ls.Phase)
	require.Empty(t, ls.Advance(time.Now()))
}

func TestStopOfferEmitsTTLZero(t *testing.T) {
	ls := NewLocalService(0x1234, 1, 1, 0, nil, nil, testTiming())
	ls.Offer(time.Now())
	entry := ls.StopOffer(time.Now())
	require.Equal(t, PhaseDown, ls.Phase)
	require.Zero(t, entry.TTL)
	require.Equal(t, EntryOfferService, entry.Type)
}
