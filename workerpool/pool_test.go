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

package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash"
	"github.com/stretchr/testify/require"
)

func TestSubmitRoundRobinsAcrossWorkers(t *testing.T) {
	p := New(4, 8)
	defer p.Stop()

	// Submit before Start so the queues can be inspected: 16 unkeyed jobs
	// over 4 workers land 4 per queue.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		p.Submit(func() { defer wg.Done() })
	}
	for i, q := range p.queues {
		require.Len(t, q, 4, "worker %d", i)
	}
	p.Start()
	wg.Wait()
}

func TestSubmitWithKeySerializesPerKey(t *testing.T) {
	p := New(4, 32)
	p.Start()
	defer p.Stop()

	var counter int64
	var maxConcurrent int64
	var wg sync.WaitGroup
	key := []byte("order-123")

	for i := 0; i < 20; i++ {
		wg.Add(1)
		p.SubmitWithKey(key, func() {
			defer wg.Done()
			cur := atomic.AddInt64(&counter, 1)
			for {
				m := atomic.LoadInt64(&maxConcurrent)
				if cur <= m || atomic.CompareAndSwapInt64(&maxConcurrent, m, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&counter, -1)
		})
	}
	wg.Wait()
	require.Equal(t, int64(1), maxConcurrent)
}

func TestSameKeyAlwaysRoutesToSameWorker(t *testing.T) {
	p := New(8, 8)
	defer p.Stop()

	var wg sync.WaitGroup
	key := []byte("stable-key")

	// Submit before Start so the queues can be inspected: all five jobs
	// must sit on the one queue the key hashes to.
	for i := 0; i < 5; i++ {
		wg.Add(1)
		p.SubmitWithKey(key, func() { defer wg.Done() })
	}
	want := int(xxhash.Sum64(key) % 8)
	for i, q := range p.queues {
		if i == want {
			require.Len(t, q, 5)
		} else {
			require.Empty(t, q, "worker %d", i)
		}
	}
	p.Start()
	wg.Wait()
}

func TestStopDrainsQueuedJobs(t *testing.T) {
	p := New(2, 8)
	p.Start()

	var n int64
	for i := 0; i < 10; i++ {
		p.Submit(func() {
			atomic.AddInt64(&n, 1)
		})
	}
	// No wait before Stop: Stop itself must let the workers drain what is queued.
	p.Stop()
	require.Equal(t, int64(10), atomic.LoadInt64(&n))
}
