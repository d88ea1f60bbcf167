// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"sync"
	"testing"
	"time"
)

func TestItemDispatcherPreservesOrder(t *testing.T) {
	pool := newDispatchPool(4)
	defer pool.stop(time.Second)

	d := newItemDispatcher(pool)
	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		d.enqueue(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("got %d deliveries, want 50", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("delivery %d out of order: got %d want %d", i, v, i)
		}
	}
}

func TestDispatchPoolBoundedConcurrency(t *testing.T) {
	const size = 2
	pool := newDispatchPool(size)
	defer pool.stop(time.Second)

	var mu sync.Mutex
	running := 0
	maxRunning := 0
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.submit(func() {
			defer wg.Done()
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	wg.Wait()

	if maxRunning > size {
		t.Fatalf("observed %d concurrent jobs, pool size is %d", maxRunning, size)
	}
}

func TestDispatchPoolSwallowsPanic(t *testing.T) {
	pool := newDispatchPool(1)
	defer pool.stop(time.Second)

	done := make(chan struct{})
	pool.submit(func() { panic("boom") })
	pool.submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not process job after a panicking job")
	}
}

func TestItemDispatcherSerializesAcrossConcurrentItems(t *testing.T) {
	pool := newDispatchPool(4)
	defer pool.stop(time.Second)

	const items = 8
	const perItem = 20
	dispatchers := make([]*itemDispatcher, items)
	results := make([][]int, items)
	var mus [items]sync.Mutex
	var wg sync.WaitGroup

	for i := range dispatchers {
		dispatchers[i] = newItemDispatcher(pool)
		for j := 0; j < perItem; j++ {
			i, j := i, j
			wg.Add(1)
			dispatchers[i].enqueue(func() {
				defer wg.Done()
				mus[i].Lock()
				results[i] = append(results[i], j)
				mus[i].Unlock()
			})
		}
	}
	wg.Wait()

	for i, got := range results {
		if len(got) != perItem {
			t.Fatalf("item %d: got %d deliveries, want %d", i, len(got), perItem)
		}
		for j, v := range got {
			if v != j {
				t.Fatalf("item %d delivery %d out of order: got %d want %d", i, j, v, j)
			}
		}
	}
}
