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
	"math/rand"
	"time"
)

// Phase is one state of the LocalService offer state machine, spec.md §4.4.
type Phase int

const (
	PhaseDown Phase = iota
	PhaseInitialWait
	PhaseRepetition
	PhaseMain
)

func (p Phase) String() string {
	switch p {
	case PhaseDown:
		return "Down"
	case PhaseInitialWait:
		return "InitialWait"
	case PhaseRepetition:
		return "Repetition"
	case PhaseMain:
		return "Main"
	default:
		return "Unknown"
	}
}

// Timing holds the configured SD timers for one LocalService, spec.md §6
// defaults: initial delay 10-100ms, repetition base 100ms, repetition max 3,
// cyclic delay 1s, TTL 0x00FFFFFF.
type Timing struct {
	InitialDelayMin time.Duration
	InitialDelayMax time.Duration
	RepetitionBase  time.Duration
	RepetitionMax   int
	CyclicDelay     time.Duration
	TTL             uint32
}

// DefaultTiming returns the spec.md §6 default timers.
func DefaultTiming() Timing {
	return Timing{
		InitialDelayMin: 10 * time.Millisecond,
		InitialDelayMax: 100 * time.Millisecond,
		RepetitionBase:  100 * time.Millisecond,
		RepetitionMax:   3,
		CyclicDelay:     time.Second,
		TTL:             0x00FFFFFF,
	}
}

// LocalService is a service this runtime offers over SD: the templated
// OfferService entry, its endpoint options, and the offer phase machine.
type LocalService struct {
	ServiceID  uint16
	InstanceID uint16
	MajorVer   uint8
	MinorVer   uint32
	Endpoints  []Option
	// OfferOn lists the listener aliases this service's endpoint options
	// are installed on; spec.md §4.4: "only installs an Ipv4/Ipv6 endpoint
	// option for listeners matching that alias."
	OfferOn []string

	Phase            Phase
	PhaseEnteredAt   time.Time
	NextTransmission time.Time
	RepetitionCount  int
	Timing           Timing
}

// NewLocalService builds a LocalService in phase Down.
func NewLocalService(serviceID, instanceID uint16, major uint8, minor uint32, endpoints []Option, offerOn []string, timing Timing) *LocalService {
	return &LocalService{
		ServiceID:  serviceID,
		InstanceID: instanceID,
		MajorVer:   major,
		MinorVer:   minor,
		Endpoints:  endpoints,
		OfferOn:    offerOn,
		Phase:      PhaseDown,
		Timing:     timing,
	}
}

// offersOn reports whether alias is in OfferOn.
func (ls *LocalService) offersOn(alias string) bool {
	for _, a := range ls.OfferOn {
		if a == alias {
			return true
		}
	}
	return false
}

// Offer transitions ls into InitialWait with a next-transmission chosen
// uniformly in [InitialDelayMin, InitialDelayMax).
func (ls *LocalService) Offer(now time.Time) {
	ls.Phase = PhaseInitialWait
	ls.PhaseEnteredAt = now
	ls.RepetitionCount = 0
	ls.NextTransmission = now.Add(randDuration(ls.Timing.InitialDelayMin, ls.Timing.InitialDelayMax))
}

// StopOffer transitions ls to Down and returns the final TTL=0 entry that
// must be emitted once, immediately.
func (ls *LocalService) StopOffer(now time.Time) Entry {
	ls.Phase = PhaseDown
	ls.PhaseEnteredAt = now
	return ls.buildEntry(0)
}

// Advance drives the phase machine one poll tick. It returns zero, one, or
// two entries to emit: two only on the Repetition->Main transition tick,
// where the repetition's own emission and Main's first emission both fire
// in the same tick (spec.md §4.4: "when count exceeds repetition_max,
// transition to Main and emit immediately").
func (ls *LocalService) Advance(now time.Time) []Entry {
	if ls.Phase == PhaseDown {
		return nil
	}
	if now.Before(ls.NextTransmission) {
		return nil
	}

	if ls.Phase == PhaseInitialWait {
		ls.Phase = PhaseRepetition
		ls.RepetitionCount = 0
	}

	var emitted []Entry
	switch ls.Phase {
	case PhaseRepetition:
		emitted = append(emitted, ls.buildEntry(ls.Timing.TTL))
		ls.RepetitionCount++
		if ls.RepetitionCount > ls.Timing.RepetitionMax {
			ls.Phase = PhaseMain
			emitted = append(emitted, ls.buildEntry(ls.Timing.TTL))
			ls.NextTransmission = now.Add(ls.Timing.CyclicDelay)
		} else {
			backoff := ls.Timing.RepetitionBase * time.Duration(1<<uint(ls.RepetitionCount-1))
			ls.NextTransmission = now.Add(backoff)
		}
	case PhaseMain:
		emitted = append(emitted, ls.buildEntry(ls.Timing.TTL))
		ls.NextTransmission = now.Add(ls.Timing.CyclicDelay)
	}
	return emitted
}

func (ls *LocalService) buildEntry(ttl uint32) Entry {
	return Entry{
		Type:       EntryOfferService,
		ServiceID:  ls.ServiceID,
		InstanceID: ls.InstanceID,
		MajorVer:   ls.MajorVer,
		TTL:        ttl,
		Final32:    ls.MinorVer,
	}
}

func randDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
