// Package queue implements a thread-safe, multi-producer/single-consumer
// handoff queue with per-producer local batching, modeled on the
// registry-of-named-FIFOs pattern: producers and consumers rendezvous on a
// queue by naming a (src, dst) pair, and each producer gets its own local
// queue that batches up to a threshold before flushing into the shared one.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/ProD3-LF/estimators/cmn/debug"
	"github.com/ProD3-LF/estimators/cmn/nlog"
)

// DefaultThreshold is the local-queue size at which a FlushDefault enqueue
// triggers a flush into the shared queue.
const DefaultThreshold = 5

// FlushOption controls whether Enqueue flushes the producer's local queue.
type FlushOption int

const (
	FlushDefault FlushOption = iota // flush once threshold is reached
	FlushNow                        // flush immediately after this enqueue
	FlushNever                      // never flush for this enqueue, regardless of threshold
)

// ErrClosed is returned by Dequeue/TimedDequeue once the queue has been
// closed and drained.
var ErrClosed = errors.New("queue: closed")

// registry is the process-wide map of named shared queues, protected by its
// own mutex -- taken before any individual queue's mutex, matching the
// lock-ordering discipline of the original (registry lock, then per-queue
// lock, then shared-area lock).
type registry struct {
	mu   sync.Mutex
	byID map[string]*shared
}

var reg = &registry{byID: make(map[string]*shared)}

type shared struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []any
	src, dst string
	refCount int
	closed   bool
}

func key(src, dst string) string { return src + "\x00" + dst }

func getOrCreate(src, dst string) *shared {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	k := key(src, dst)
	q, ok := reg.byID[k]
	if !ok {
		q = &shared{src: src, dst: dst}
		q.cond = sync.NewCond(&q.mu)
		reg.byID[k] = q
	}
	q.refCount++
	return q
}

func release(q *shared) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	q.refCount--
	if q.refCount <= 0 {
		delete(reg.byID, key(q.src, q.dst))
		if q.refCount < 0 {
			nlog.Warningf("queue: handle refcount went negative for %s->%s", q.src, q.dst)
		}
	}
}

// Handle is a producer- or consumer-side view onto a named shared queue,
// with its own local batching buffer.
type Handle struct {
	q         *shared
	local     []any
	threshold int
}

// GetHandle returns a handle for the (src, dst) pair, creating the backing
// shared queue on first use.
func GetHandle(src, dst string) *Handle {
	return &Handle{q: getOrCreate(src, dst), threshold: DefaultThreshold}
}

// Close releases the handle's reference to the shared queue, destroying it
// once the last handle is released.
func (h *Handle) Close() error {
	if len(h.local) > 0 {
		h.Flush()
	}
	release(h.q)
	return nil
}

// SetThreshold changes the local-queue flush threshold for this handle.
func (h *Handle) SetThreshold(n int) { h.threshold = n }

// LocalSize returns the number of items buffered locally, not yet flushed.
func (h *Handle) LocalSize() int { return len(h.local) }

// Size returns the number of items currently in the shared queue.
func (h *Handle) Size() int {
	h.q.mu.Lock()
	defer h.q.mu.Unlock()
	return len(h.q.items)
}

// Enqueue appends data to the handle's local queue, flushing to the shared
// queue according to op.
func (h *Handle) Enqueue(data any, op FlushOption) {
	h.local = append(h.local, data)
	switch op {
	case FlushNow:
		h.Flush()
	case FlushNever:
	default:
		if len(h.local) >= h.threshold {
			h.Flush()
		}
	}
}

// Flush splices the handle's local queue onto the tail of the shared
// queue and wakes one waiting consumer.
func (h *Handle) Flush() {
	if len(h.local) == 0 {
		return
	}
	h.q.mu.Lock()
	h.q.items = append(h.q.items, h.local...)
	h.q.cond.Signal()
	h.q.mu.Unlock()
	h.local = h.local[:0]
}

// Dequeue blocks until an item is available or the queue is closed.
func (h *Handle) Dequeue() (any, error) {
	h.q.mu.Lock()
	defer h.q.mu.Unlock()
	for len(h.q.items) == 0 && !h.q.closed {
		h.q.cond.Wait()
	}
	if len(h.q.items) == 0 {
		return nil, ErrClosed
	}
	v := h.q.items[0]
	h.q.items = h.q.items[1:]
	return v, nil
}

// TimedDequeue blocks until an item is available, the queue is closed, or
// ctx is done, whichever comes first.
func (h *Handle) TimedDequeue(ctx context.Context) (any, error) {
	done := make(chan struct{})
	var v any
	var err error
	go func() {
		v, err = h.Dequeue()
		close(done)
	}()
	select {
	case <-done:
		return v, err
	case <-ctx.Done():
		// best-effort: the blocked Dequeue above will still complete and
		// its result is discarded; a real consumer should not reuse h
		// concurrently from two goroutines, so this path is for shutdown
		// races only.
		return nil, ctx.Err()
	}
}

// CloseQueue marks the shared queue backing this handle as closed and wakes
// every blocked consumer; subsequent Dequeue calls drain remaining items
// and then return ErrClosed.
func (h *Handle) CloseQueue() {
	h.q.mu.Lock()
	h.q.closed = true
	h.q.cond.Broadcast()
	h.q.mu.Unlock()
}

func init() {
	debug.Assert(DefaultThreshold > 0)
}
