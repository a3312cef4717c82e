package tp

import (
	"container/heap"
	"sync"
	"time"
)

// PendingSend is one scheduled delivery: a batch of already-segmented
// packets destined for a single peer at a fixed deadline.
type PendingSend struct {
	Packets     [][]byte
	Destination string
	Deadline    time.Time

	seq int // insertion order, for deadline ties
}

// sendHeap is a min-heap over PendingSend keyed by Deadline, ties broken
// by insertion order.
type sendHeap []*PendingSend

func (h sendHeap) Len() int { return len(h) }
func (h sendHeap) Less(i, j int) bool {
	if h[i].Deadline.Equal(h[j].Deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].Deadline.Before(h[j].Deadline)
}
func (h sendHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *sendHeap) Push(x any)   { *h = append(*h, x.(*PendingSend)) }
func (h *sendHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// AsyncSender delivers scheduled segment batches in deadline order via a
// single dedicated worker goroutine, matching spec.md §4.8. The original
// design blocks a worker thread on a condition variable armed for the
// next deadline; this adaptation uses a wake channel plus a timer, the
// idiomatic Go equivalent (see spec.md §9, "coroutine-style asio
// callbacks").
type AsyncSender struct {
	mu      sync.Mutex
	pending sendHeap
	nextSeq int

	onSend func(p *PendingSend)

	wake chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
	running bool
}

// NewAsyncSender creates an AsyncSender that invokes onSend for each
// packet batch whose deadline has elapsed.
func NewAsyncSender(onSend func(p *PendingSend)) *AsyncSender {
	return &AsyncSender{onSend: onSend, wake: make(chan struct{}, 1)}
}

// Start launches the worker goroutine. It is idempotent against a prior
// Stop: calling Start again after Stop spawns a fresh goroutine that can
// be joined again by a subsequent Stop.
func (a *AsyncSender) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.stop = make(chan struct{})
	a.mu.Unlock()

	a.wg.Add(1)
	go a.run()
}

// Schedule enqueues a packet batch for delivery at deadline.
func (a *AsyncSender) Schedule(packets [][]byte, destination string, deadline time.Time) {
	a.mu.Lock()
	a.nextSeq++
	heap.Push(&a.pending, &PendingSend{Packets: packets, Destination: destination, Deadline: deadline, seq: a.nextSeq})
	a.mu.Unlock()
	a.signal()
}

func (a *AsyncSender) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Stop sets running=false, wakes the worker, joins it, and clears the
// queue.
func (a *AsyncSender) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	stopCh := a.stop
	a.mu.Unlock()

	close(stopCh)
	a.wg.Wait()

	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
}

// Pending returns the number of batches currently queued, for tests.
func (a *AsyncSender) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *AsyncSender) run() {
	defer a.wg.Done()
	for {
		a.mu.Lock()
		if !a.running {
			a.mu.Unlock()
			return
		}
		stopCh := a.stop

		if len(a.pending) == 0 {
			a.mu.Unlock()
			select {
			case <-stopCh:
				return
			case <-a.wake:
				continue
			}
		}

		now := time.Now()
		next := a.pending[0]
		if !next.Deadline.After(now) {
			var due []*PendingSend
			for len(a.pending) > 0 && !a.pending[0].Deadline.After(now) {
				due = append(due, heap.Pop(&a.pending).(*PendingSend))
			}
			a.mu.Unlock()
			for _, p := range due {
				a.onSend(p)
			}
			continue
		}

		wait := next.Deadline.Sub(now)
		a.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-a.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
