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
)

// EventgroupKey identifies one (service-id, eventgroup-id) pair.
type EventgroupKey struct {
	ServiceID   uint16
	EventgroupID uint16
}

// SubState is a consumer-side subscription's lifecycle, spec.md §4.5's
// "Subscription: None -> Pending -> Active|Failed -> None" summary.
type SubState int

const (
	SubNone SubState = iota
	SubPending
	SubActive
	SubFailed
)

func (s SubState) String() string {
	switch s {
	case SubNone:
		return "None"
	case SubPending:
		return "Pending"
	case SubActive:
		return "Active"
	case SubFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// subscriber is one provider-side entry for (service, eventgroup): an
// address deduplicated by string form, with the TTL from its most recent
// SubscribeEventgroup.
type subscriber struct {
	addr net.Addr
	ttl  time.Duration
	seen time.Time
}

// SubscriptionTable tracks both roles SD subscription traffic plays:
// provider-side subscriber sets per eventgroup, and consumer-side pending
// subscription state. Generalised from ptp4u/server/subscription.go's
// mutex-guarded ticker-driven SubscriptionClient.
type SubscriptionTable struct {
	mu          sync.Mutex
	subscribers map[EventgroupKey]map[string]subscriber
	pending     map[EventgroupKey]SubState
}

// NewSubscriptionTable returns an empty SubscriptionTable.
func NewSubscriptionTable() *SubscriptionTable {
	return &SubscriptionTable{
		subscribers: make(map[EventgroupKey]map[string]subscriber),
		pending:     make(map[EventgroupKey]SubState),
	}
}

// Subscribe records (or refreshes) a subscriber for an eventgroup this
// instance provides. Idempotent: duplicate subscriptions from the same
// address are deduplicated.
func (t *SubscriptionTable) Subscribe(key EventgroupKey, addr net.Addr, ttl time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.subscribers[key]
	if !ok {
		set = make(map[string]subscriber)
		t.subscribers[key] = set
	}
	set[addr.String()] = subscriber{addr: addr, ttl: ttl, seen: now}
}

// Unsubscribe removes addr's entry for key.
func (t *SubscriptionTable) Unsubscribe(key EventgroupKey, addr net.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscribers[key], addr.String())
}

// Subscribers returns the deduplicated address strings subscribed to key.
func (t *SubscriptionTable) Subscribers(key EventgroupKey) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.subscribers[key]
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	return out
}

// SubscriberAddrs returns the net.Addr of every subscriber of key, for
// fan-out delivery. Unlike Subscribers, this never needs to re-resolve a
// string back into an address.
func (t *SubscriptionTable) SubscriberAddrs(key EventgroupKey) []net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.subscribers[key]
	out := make([]net.Addr, 0, len(set))
	for _, sub := range set {
		out = append(out, sub.addr)
	}
	return out
}

// Count returns the total number of provider-side subscribers held across
// every eventgroup, for stats.
func (t *SubscriptionTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, set := range t.subscribers {
		n += len(set)
	}
	return n
}

// MarkPending records that this instance, as a consumer, has sent a
// SubscribeEventgroup for key and is awaiting the ack.
func (t *SubscriptionTable) MarkPending(key EventgroupKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[key] = SubPending
}

// MarkAcked resolves a pending consumer-side subscription per the ack's TTL:
// TTL>0 -> Active, TTL==0 -> Failed.
func (t *SubscriptionTable) MarkAcked(key EventgroupKey, ttl uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ttl > 0 {
		t.pending[key] = SubActive
	} else {
		t.pending[key] = SubFailed
	}
}

// MarkNone resets a consumer-side subscription to None (unsubscribe).
func (t *SubscriptionTable) MarkNone(key EventgroupKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, key)
}

// State reports the current consumer-side state for key, SubNone if never
// subscribed.
func (t *SubscriptionTable) State(key EventgroupKey) SubState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.pending[key]
	if !ok {
		return SubNone
	}
	return st
}

// IsAcked reports whether key's consumer-side subscription is Active.
func (t *SubscriptionTable) IsAcked(key EventgroupKey) bool {
	return t.State(key) == SubActive
}
