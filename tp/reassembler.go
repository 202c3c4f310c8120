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
	"fmt"
	"sort"
	"sync"

	"github.com/arunj123/go-someip/wire"
)

// DefaultMaxReassemblySize bounds the memory a single in-flight reassembly
// may consume. spec.md §9(c) flags the source reassembler as having no such
// bound; this is the cap this implementation adds.
const DefaultMaxReassemblySize = 256 * 1024

// Key identifies one in-flight reassembly: the (service<<16|method) message
// id paired with the (client<<16|session) request id.
type Key struct {
	MessageID uint32
	RequestID uint32
}

// NewKey builds a Key from a message header.
func NewKey(h wire.Header) Key {
	return Key{
		MessageID: uint32(h.ServiceID)<<16 | uint32(h.MethodID),
		RequestID: uint32(h.ClientID)<<16 | uint32(h.SessionID),
	}
}

type entry struct {
	segments map[uint32]Segment
	total    int
}

// Reassembler reconstitutes payloads segmented by Segment. It is safe for
// concurrent use; the dispatcher's event loop and any other caller may share
// one instance.
type Reassembler struct {
	mu      sync.Mutex
	entries map[Key]*entry
	maxSize int
}

// ReassemblerOption configures a Reassembler.
type ReassemblerOption func(*Reassembler)

// WithMaxReassemblySize overrides DefaultMaxReassemblySize.
func WithMaxReassemblySize(n int) ReassemblerOption {
	return func(r *Reassembler) { r.maxSize = n }
}

// NewReassembler returns an empty Reassembler.
func NewReassembler(opts ...ReassemblerOption) *Reassembler {
	r := &Reassembler{
		entries: make(map[Key]*entry),
		maxSize: DefaultMaxReassemblySize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrIncomplete is returned by Process while a key is still missing segments.
var ErrIncomplete = fmt.Errorf("tp: reassembly incomplete")

// Process inserts one segment for key and, if the run of segments received
// so far is contiguous from offset 0 through a segment with More=false,
// returns the assembled payload and evicts key. Otherwise it returns
// ErrIncomplete. Duplicate offsets overwrite - the most recently delivered
// segment for an offset wins.
func (r *Reassembler) Process(key Key, seg Segment) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = &entry{segments: make(map[uint32]Segment)}
		r.entries[key] = e
	}

	if prev, exists := e.segments[seg.Header.Offset]; !exists || len(prev.Payload) != len(seg.Payload) {
		if exists {
			e.total -= len(prev.Payload)
		}
		e.total += len(seg.Payload)
		if e.total > r.maxSize {
			delete(r.entries, key)
			return nil, fmt.Errorf("%w: reassembly for %+v exceeds %d bytes", wire.ErrMalformed, key, r.maxSize)
		}
	}
	e.segments[seg.Header.Offset] = seg

	offsets := make([]uint32, 0, len(e.segments))
	for off := range e.segments {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	if len(offsets) == 0 || offsets[0] != 0 {
		return nil, ErrIncomplete
	}

	expected := uint32(0)
	assembledLen := 0
	complete := false
	for i, off := range offsets {
		if off != expected {
			return nil, ErrIncomplete
		}
		s := e.segments[off]
		assembledLen += len(s.Payload)
		expected = off + uint32(len(s.Payload))
		if !s.Header.MoreSegments {
			complete = i == len(offsets)-1
			break
		}
	}

	if !complete {
		return nil, ErrIncomplete
	}

	out := make([]byte, 0, assembledLen)
	for _, off := range offsets {
		out = append(out, e.segments[off].Payload...)
	}
	delete(r.entries, key)
	return out, nil
}

// Evict removes any in-flight state for key without returning a result; used
// when an error elsewhere (e.g. a malformed TP header) means the key can
// never complete.
func (r *Reassembler) Evict(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Pending reports how many keys currently have in-flight partial data -
// exposed for stats/metrics.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
