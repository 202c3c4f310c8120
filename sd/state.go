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
	"sync"
	"time"

	"github.com/arunj123/go-someip/stats"
	"github.com/arunj123/go-someip/transport"
	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"
)

// pendingReply is a delayed unicast Offer response to an inbound
// FindService, spec.md §4.4: "respond with a unicast Offer after a delay
// uniformly drawn from the configured request-response window."
type pendingReply struct {
	service  *LocalService
	listener *Listener
	dst      net.Addr
	sendAt   time.Time
}

// State is the SD runtime: local offer machines, the remote registry, the
// subscription table, and the set of multi-interface listeners. One State
// is driven by a single Poll(now) call per event-loop tick.
type State struct {
	mu  sync.Mutex
	local map[ServiceKey]*LocalService

	Registry *Registry
	Subs     *SubscriptionTable

	listeners []*Listener
	pending   []pendingReply

	reqRespDelayMin time.Duration
	reqRespDelayMax time.Duration

	roundTrip map[uint16]*welford.Stats

	stats *stats.Stats
}

// NewState builds a State with the spec.md §6 default request-response
// delay window [10ms, 100ms).
func NewState(listeners []*Listener) *State {
	return &State{
		local:           make(map[ServiceKey]*LocalService),
		Registry:        NewRegistry(),
		Subs:            NewSubscriptionTable(),
		listeners:       listeners,
		reqRespDelayMin: 10 * time.Millisecond,
		reqRespDelayMax: 100 * time.Millisecond,
		roundTrip:       make(map[uint16]*welford.Stats),
	}
}

// WithRequestResponseDelay overrides the default FindService reply delay window.
func (s *State) WithRequestResponseDelay(min, max time.Duration) *State {
	s.reqRespDelayMin, s.reqRespDelayMax = min, max
	return s
}

// WithStats attaches a stats.Stats this State feeds from its offer/find/
// subscribe/receive hot paths.
func (s *State) WithStats(st *stats.Stats) *State {
	s.stats = st
	return s
}

// OfferService registers a LocalService and enters it into InitialWait.
// spec.md §3: only one LocalService exists per (service-id, instance-id).
func (s *State) OfferService(serviceID, instanceID uint16, major uint8, minor uint32, endpoints []Option, offerOn []string, timing Timing) *LocalService {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls := NewLocalService(serviceID, instanceID, major, minor, endpoints, offerOn, timing)
	ls.Offer(time.Now())
	s.local[ServiceKey{serviceID, instanceID}] = ls
	return ls
}

// StopOffer transitions a LocalService to Down and emits its final TTL=0
// entry on every listener it was offered on.
func (s *State) StopOffer(serviceID, instanceID uint16) {
	s.mu.Lock()
	ls, ok := s.local[ServiceKey{serviceID, instanceID}]
	s.mu.Unlock()
	if !ok {
		return
	}
	entry := ls.StopOffer(time.Now())
	s.emit(ls, []Entry{entry})
}

// FindService sends an EntryFindService on every listener matching findOn
// (or all listeners, if findOn is empty), spec.md §4.4: a consumer actively
// seeking a service rather than only waiting on passive Offer reception.
// MajorVer/minor-version are wildcarded (0xFF / 0xFFFFFFFF) since the
// consumer is asking for any version.
func (s *State) FindService(serviceID, instanceID uint16, findOn []string) {
	entry := Entry{
		Type:       EntryFindService,
		ServiceID:  serviceID,
		InstanceID: instanceID,
		MajorVer:   0xFF,
		TTL:        0,
		Final32:    0xFFFFFFFF,
	}
	pkt := Packet{Entries: []Entry{entry}}
	b := EncodePacket(pkt)

	if s.stats != nil {
		s.stats.IncSDFindSent()
	}

	for _, l := range s.listeners {
		if len(findOn) > 0 && !containsAlias(findOn, l.Alias) {
			continue
		}
		if l.V4Group != nil && l.V4 != nil {
			if _, err := l.V4.Send(b, l.V4Group); err != nil {
				log.WithError(err).Warn("sd: v4 find-service send failed")
			}
		}
		if l.V6Group != nil && l.V6 != nil {
			if _, err := l.V6.Send(b, l.V6Group); err != nil {
				log.WithError(err).Warn("sd: v6 find-service send failed")
			}
		}
	}
}

// SubscribeEventgroup sends an EntrySubscribeEventgroup on every listener
// matching findOn (or all listeners, if findOn is empty) and marks the
// subscription Pending, spec.md §4.4/§4.5: consumer sends SubscribeEventgroup
// and awaits the provider's ack before is_subscription_acked becomes true.
// endpoint is the consumer's own notify destination, carried as the entry's
// referenced option so the provider knows where to send Notify traffic.
func (s *State) SubscribeEventgroup(serviceID, instanceID, eventgroupID uint16, major uint8, ttl time.Duration, findOn []string, endpoint Option) {
	key := EventgroupKey{serviceID, eventgroupID}
	s.Subs.MarkPending(key)

	entry := Entry{
		Type:       EntrySubscribeEventgroup,
		ServiceID:  serviceID,
		InstanceID: instanceID,
		MajorVer:   major,
		TTL:        uint32(ttl / time.Second),
		Final32:    uint32(eventgroupID) << 16,
		Index1:     0,
		NOpts1:     1,
	}
	pkt := Packet{Entries: []Entry{entry}, Options: []Option{endpoint}}
	b := EncodePacket(pkt)

	for _, l := range s.listeners {
		if len(findOn) > 0 && !containsAlias(findOn, l.Alias) {
			continue
		}
		if l.V4Group != nil && l.V4 != nil {
			if _, err := l.V4.Send(b, l.V4Group); err != nil {
				log.WithError(err).Warn("sd: v4 subscribe-eventgroup send failed")
			}
		}
		if l.V6Group != nil && l.V6 != nil {
			if _, err := l.V6.Send(b, l.V6Group); err != nil {
				log.WithError(err).Warn("sd: v6 subscribe-eventgroup send failed")
			}
		}
	}
}

// UnsubscribeEventgroup sends an EntrySubscribeEventgroup with TTL=0,
// resetting the consumer-side subscription to None.
func (s *State) UnsubscribeEventgroup(serviceID, instanceID, eventgroupID uint16, major uint8, findOn []string, endpoint Option) {
	key := EventgroupKey{serviceID, eventgroupID}
	s.Subs.MarkNone(key)

	entry := Entry{
		Type:       EntrySubscribeEventgroup,
		ServiceID:  serviceID,
		InstanceID: instanceID,
		MajorVer:   major,
		TTL:        0,
		Final32:    uint32(eventgroupID) << 16,
		Index1:     0,
		NOpts1:     1,
	}
	pkt := Packet{Entries: []Entry{entry}, Options: []Option{endpoint}}
	b := EncodePacket(pkt)

	for _, l := range s.listeners {
		if len(findOn) > 0 && !containsAlias(findOn, l.Alias) {
			continue
		}
		if l.V4Group != nil && l.V4 != nil {
			if _, err := l.V4.Send(b, l.V4Group); err != nil {
				log.WithError(err).Warn("sd: v4 unsubscribe-eventgroup send failed")
			}
		}
		if l.V6Group != nil && l.V6 != nil {
			if _, err := l.V6.Send(b, l.V6Group); err != nil {
				log.WithError(err).Warn("sd: v6 unsubscribe-eventgroup send failed")
			}
		}
	}
}

func containsAlias(aliases []string, alias string) bool {
	for _, a := range aliases {
		if a == alias {
			return true
		}
	}
	return false
}

// GetService resolves a (service-id, instance-id) lookup against the remote
// registry, wildcard instance 0xFFFF selecting any matching service-id.
func (s *State) GetService(serviceID, instanceID uint16) (RemoteService, bool) {
	return s.Registry.Get(serviceID, instanceID)
}

// RecordOfferRoundTrip feeds the FindService->Offer latency for serviceID
// into a running mean/variance, supplementing the TTL-based registry per
// SPEC_FULL.md's domain-stack wiring.
func (s *State) RecordOfferRoundTrip(serviceID uint16, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.roundTrip[serviceID]
	if !ok {
		st = welford.New()
		s.roundTrip[serviceID] = st
	}
	st.Add(float64(d.Milliseconds()))
}

// OfferRoundTripStats returns the current mean/variance (in milliseconds)
// for serviceID, if any samples have been recorded.
func (s *State) OfferRoundTripStats(serviceID uint16) (mean, variance float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.roundTrip[serviceID]
	if !ok || st.Count() == 0 {
		return 0, 0, false
	}
	return st.Mean(), st.Variance(), true
}

// Poll drives one SD tick: sweeps expired remote services, advances every
// local offer machine, flushes due delayed FindService replies, and drains
// every listener's inbound packets. Intended to be called roughly every
// 10ms by the runtime event loop, spec.md §4.4.
func (s *State) Poll(now time.Time) {
	s.Registry.SweepExpired(now)

	s.mu.Lock()
	locals := make([]*LocalService, 0, len(s.local))
	for _, ls := range s.local {
		locals = append(locals, ls)
	}
	s.mu.Unlock()

	for _, ls := range locals {
		if entries := ls.Advance(now); len(entries) > 0 {
			s.emit(ls, entries)
		}
	}

	s.flushPendingReplies(now)
	s.receiveAll(now)
}

func (s *State) emit(ls *LocalService, entries []Entry) {
	if s.stats != nil {
		for range entries {
			s.stats.IncSDOfferSent()
		}
	}
	for _, l := range s.listeners {
		if !ls.offersOn(l.Alias) {
			continue
		}
		for i := range entries {
			entries[i].Index1 = 0
			entries[i].NOpts1 = uint8(len(ls.Endpoints))
		}
		pkt := Packet{Entries: entries, Options: ls.Endpoints}
		b := EncodePacket(pkt)
		if l.V4Group != nil && l.V4 != nil {
			if _, err := l.V4.Send(b, l.V4Group); err != nil {
				log.WithError(err).Warn("sd: v4 multicast emit failed")
			}
		}
		if l.V6Group != nil && l.V6 != nil {
			if _, err := l.V6.Send(b, l.V6Group); err != nil {
				log.WithError(err).Warn("sd: v6 multicast emit failed")
			}
		}
	}
}

func (s *State) flushPendingReplies(now time.Time) {
	s.mu.Lock()
	var due []pendingReply
	var rest []pendingReply
	for _, p := range s.pending {
		if !now.Before(p.sendAt) {
			due = append(due, p)
		} else {
			rest = append(rest, p)
		}
	}
	s.pending = rest
	s.mu.Unlock()

	for _, p := range due {
		if p.service.Phase == PhaseDown {
			continue
		}
		entry := Entry{
			Type:       EntryOfferService,
			ServiceID:  p.service.ServiceID,
			InstanceID: p.service.InstanceID,
			MajorVer:   p.service.MajorVer,
			TTL:        p.service.Timing.TTL,
			Final32:    p.service.MinorVer,
			Index1:     0,
			NOpts1:     uint8(len(p.service.Endpoints)),
		}
		pkt := Packet{Entries: []Entry{entry}, Options: p.service.Endpoints}
		b := EncodePacket(pkt)
		if _, err := p.listener.send(b, p.dst); err != nil {
			log.WithError(err).Warn("sd: unicast find-service reply failed")
		}
	}
}

func (s *State) receiveAll(now time.Time) {
	for _, l := range s.listeners {
		s.receiveFrom(l, l.V4, now)
		s.receiveFrom(l, l.V6, now)
	}
}

func (s *State) receiveFrom(l *Listener, conn transport.Transport, now time.Time) {
	if conn == nil {
		return
	}
	buf := make([]byte, 65535)
	for {
		n, src, err := conn.Receive(buf)
		if err != nil {
			return
		}
		pkt, perr := DecodePacket(buf[:n])
		if perr != nil {
			log.WithError(perr).Warn("sd: dropping malformed sd packet")
			if s.stats != nil {
				s.stats.IncMalformedDropped()
			}
			continue
		}
		s.handleInbound(l, pkt, src, now)
	}
}

func (s *State) handleInbound(l *Listener, pkt Packet, src net.Addr, now time.Time) {
	for _, e := range pkt.Entries {
		switch e.Type {
		case EntryOfferService:
			s.handleOffer(pkt, e, now)
		case EntryFindService:
			s.handleFind(l, e, src, now)
		case EntrySubscribeEventgroup:
			s.handleSubscribe(l, pkt, e, src, now)
		case EntryStopSubscribeEventgroup:
			s.handleUnsubscribe(pkt, e)
		case EntrySubscribeEventgroupAck:
			key := EventgroupKey{e.ServiceID, e.EventgroupID()}
			s.Subs.MarkAcked(key, e.TTL)
		}
	}
}

func (s *State) handleOffer(pkt Packet, e Entry, now time.Time) {
	if s.stats != nil {
		s.stats.IncSDOfferReceived()
	}
	run1, _, err := pkt.OptionsForEntry(e)
	if err != nil {
		log.WithError(err).Warn("sd: offer entry references invalid option run")
		return
	}
	if e.TTL == 0 {
		s.Registry.Remove(e.ServiceID, e.InstanceID)
		return
	}
	s.Registry.Upsert(RemoteService{
		ServiceID:  e.ServiceID,
		InstanceID: e.InstanceID,
		MajorVer:   e.MajorVer,
		MinorVer:   e.MinorVersion(),
		Endpoints:  run1,
		LastSeen:   now,
		TTL:        time.Duration(e.TTL) * time.Second,
	})
}

func (s *State) handleFind(l *Listener, e Entry, src net.Addr, now time.Time) {
	s.mu.Lock()
	var match *LocalService
	for key, ls := range s.local {
		if key.ServiceID == e.ServiceID && (e.InstanceID == InstanceWildcard || key.InstanceID == e.InstanceID) {
			match = ls
			break
		}
	}
	s.mu.Unlock()
	if match == nil || match.Phase == PhaseDown {
		return
	}
	delay := randDuration(s.reqRespDelayMin, s.reqRespDelayMax)
	s.mu.Lock()
	s.pending = append(s.pending, pendingReply{service: match, listener: l, dst: src, sendAt: now.Add(delay)})
	s.mu.Unlock()
}

func (s *State) handleSubscribe(l *Listener, pkt Packet, e Entry, src net.Addr, now time.Time) {
	run1, _, err := pkt.OptionsForEntry(e)
	if err != nil {
		log.WithError(err).Warn("sd: subscribe entry references invalid option run")
		return
	}
	key := EventgroupKey{e.ServiceID, e.EventgroupID()}
	for _, opt := range run1 {
		addr := optionToUDPAddr(opt)
		if addr == nil {
			continue
		}
		if e.TTL > 0 {
			s.Subs.Subscribe(key, addr, time.Duration(e.TTL)*time.Second, now)
		} else {
			s.Subs.Unsubscribe(key, addr)
		}
	}
	if s.stats != nil {
		s.stats.SetSDSubscriptions(s.Subs.Count())
	}
	if e.TTL > 0 {
		ack := Entry{Type: EntrySubscribeEventgroupAck, ServiceID: e.ServiceID, InstanceID: e.InstanceID, MajorVer: e.MajorVer, TTL: e.TTL, Final32: e.Final32}
		b := EncodePacket(Packet{Entries: []Entry{ack}})
		if _, err := l.send(b, src); err != nil {
			log.WithError(err).Warn("sd: subscribe-ack send failed")
		}
	}
}

func (s *State) handleUnsubscribe(pkt Packet, e Entry) {
	run1, _, err := pkt.OptionsForEntry(e)
	if err != nil {
		return
	}
	key := EventgroupKey{e.ServiceID, e.EventgroupID()}
	for _, opt := range run1 {
		if addr := optionToUDPAddr(opt); addr != nil {
			s.Subs.Unsubscribe(key, addr)
		}
	}
	if s.stats != nil {
		s.stats.SetSDSubscriptions(s.Subs.Count())
	}
}

func optionToUDPAddr(o Option) *net.UDPAddr {
	if o.IP == nil {
		return nil
	}
	return &net.UDPAddr{IP: o.IP, Port: int(o.Port)}
}
