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

package runtime

import "sync"

type sessionPairKey struct {
	serviceID uint16
	methodID  uint16
}

// sessionAllocator hands out session ids per (service-id, method-id) pair,
// spec.md §4.5: "monotonic counter that starts at 1 and skips 0 on wrap
// (so the legal domain is 1..=0xFFFF)."
type sessionAllocator struct {
	mu      sync.Mutex
	counter map[sessionPairKey]uint16
}

func newSessionAllocator() *sessionAllocator {
	return &sessionAllocator{counter: make(map[sessionPairKey]uint16)}
}

func (a *sessionAllocator) next(serviceID, methodID uint16) uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := sessionPairKey{serviceID, methodID}
	cur := a.counter[key]
	cur++
	if cur == 0 {
		cur = 1
	}
	a.counter[key] = cur
	return cur
}
