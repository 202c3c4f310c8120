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

// Package workerpool implements the bounded, hash-keyed worker pool spec.md
// §5 describes for blocking handler invocation: jobs with the same
// caller-supplied key always land on the same worker (serialising work for
// that key); jobs without a key round-robin across workers.
//
// Grounded on two sources: the channel-queue-plus-worker-goroutine shape of
// github.com/facebook/time's ptp4u/server/worker.go (sendWorker draining a
// chan of jobs), and original_source/src/runtime/threadpool.rs's
// ThreadPool::execute(key: Option<K: Hash>), which left its no-key fallback
// unfinished - its own comment admits "Simplification: Hash of 0 implies
// don't-care but stacks them on thread 0". This implementation completes
// that gap with a genuine round-robin counter instead of pinning to worker 0.
package workerpool

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash"
)

// Job is a unit of work submitted to the pool.
type Job func()

type job struct {
	key    []byte
	hasKey bool
	fn     Job
}

// Pool is a fixed set of worker goroutines, each draining its own queue.
type Pool struct {
	queues  []chan job
	wg      sync.WaitGroup
	rr      uint64
	started bool
	mu      sync.Mutex
}

// New builds a Pool with n workers, each with a queue of the given depth.
// Workers are not started until Start is called.
func New(n, queueDepth int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{queues: make([]chan job, n)}
	for i := range p.queues {
		p.queues[i] = make(chan job, queueDepth)
	}
	return p
}

// Start launches one goroutine per worker queue.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for _, q := range p.queues {
		q := q
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range q {
				j.fn()
			}
		}()
	}
}

// Submit enqueues fn with no routing key: it round-robins across workers.
func (p *Pool) Submit(fn Job) {
	idx := int(atomic.AddUint64(&p.rr, 1)-1) % len(p.queues)
	p.queues[idx] <- job{fn: fn}
}

// SubmitWithKey enqueues fn on the worker selected by hashing key, so every
// job sharing key is processed by the same worker and therefore serialised
// relative to one another.
func (p *Pool) SubmitWithKey(key []byte, fn Job) {
	idx := int(xxhash.Sum64(key) % uint64(len(p.queues)))
	p.queues[idx] <- job{key: key, hasKey: true, fn: fn}
}

// Stop closes every worker queue and waits for the workers to drain and
// exit, mirroring spec.md §5's "pool shutdown sends a terminate message to
// each worker and joins them" (a closed channel is Go's terminate message).
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	for _, q := range p.queues {
		close(q)
	}
	p.wg.Wait()
	p.started = false
}

// Workers reports the number of workers in the pool.
func (p *Pool) Workers() int { return len(p.queues) }

// QueueDepth returns the total number of jobs currently buffered across
// every worker's queue, for stats/metrics. A snapshot, not a lock-held
// total: workers are draining concurrently as this is read.
func (p *Pool) QueueDepth() int {
	total := 0
	for _, q := range p.queues {
		total += len(q)
	}
	return total
}
