// Package driver owns every suspended op between submission and
// settlement. Futures run on goroutines, but the JS thread observes their
// completion only at the driver's poll point: goroutines flag readiness
// over a channel and never touch JS-visible state.
package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/cryguy/opcall/internal/core"
)

// PromiseID correlates a pending async call with its JS promise.
// Per-realm, monotonically increasing, never reused.
type PromiseID uint64

// ScheduledResult is the settled outcome of one pending op, applied on
// the JS thread to fulfill or reject the matching promise.
type ScheduledResult struct {
	Promise PromiseID
	Value   core.Value
	Err     *core.OpError
}

// pendingOp states: Submitted -> Polling -> {Completed, Cancelled}.
type pendingOp struct {
	promise  PromiseID
	op       core.OpID
	cancel   context.CancelFunc
	fut      core.FutureFunc // non-nil until started (lazy futures wait for a turn)
	unreffed bool
}

// Submission is the driver's answer to an async submission: either the
// value settled immediately (Eager fast path, no bookkeeping), or a
// promise id now owned by the driver.
type Submission struct {
	Settled bool
	Value   core.Value
	Err     *core.OpError
	Promise PromiseID
}

// Driver tracks in-flight async operations for one realm.
type Driver struct {
	mu       sync.Mutex
	next     PromiseID
	pending  map[PromiseID]*pendingOp
	deferred []ScheduledResult // ready results forced to the next turn, FIFO
	lazy     []PromiseID       // futures that start on the next poll

	completions chan ScheduledResult

	ctx      context.Context
	cancel   context.CancelFunc
	tornDown bool
}

// New creates a driver whose futures inherit from parent.
func New(parent context.Context, completionBuffer int) *Driver {
	if parent == nil {
		parent = context.Background()
	}
	if completionBuffer <= 0 {
		completionBuffer = 256
	}
	ctx, cancel := context.WithCancel(parent)
	return &Driver{
		pending:     make(map[PromiseID]*pendingOp),
		completions: make(chan ScheduledResult, completionBuffer),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Submit routes an async result per the op's scheduling policy.
func (d *Driver) Submit(op core.OpID, policy core.SchedulingPolicy, res core.AsyncResult) Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tornDown {
		return Submission{Settled: true, Err: core.Errorf(core.ClassError, "realm is shutting down")}
	}

	if res.IsReady() {
		v, err := res.Outcome()
		if policy != core.PolicyDeferred {
			// Eager (and lazy ops that completed before returning a
			// future): no promise machinery, no bookkeeping.
			return Submission{Settled: true, Value: v, Err: err}
		}
		// Deferred: the continuation waits for the next turn even though
		// the result is already known, keeping submission order.
		pid := d.alloc()
		d.pending[pid] = &pendingOp{promise: pid, op: op}
		d.deferred = append(d.deferred, ScheduledResult{Promise: pid, Value: v, Err: err})
		return Submission{Promise: pid}
	}

	pid := d.alloc()
	ctx, cancel := context.WithCancel(d.ctx)
	p := &pendingOp{promise: pid, op: op, cancel: cancel}
	d.pending[pid] = p

	if policy == core.PolicyLazy {
		p.fut = res.Future()
		d.lazy = append(d.lazy, pid)
	} else {
		d.start(ctx, pid, res.Future())
	}
	return Submission{Promise: pid}
}

func (d *Driver) alloc() PromiseID {
	d.next++
	return d.next
}

// start launches a future on its own goroutine. The goroutine's only
// interaction with the realm is the readiness flag on the completion
// channel; settlement happens at the next poll, on the JS thread.
func (d *Driver) start(ctx context.Context, pid PromiseID, fut core.FutureFunc) {
	go func() {
		v, err := fut(ctx)
		select {
		case d.completions <- ScheduledResult{Promise: pid, Value: v, Err: err}:
		case <-d.ctx.Done():
			// Teardown dropped the pending op; the outcome is discarded
			// and native resources release through ordinary drops.
		}
	}()
}

// Poll runs one turn: starts lazily-submitted futures, then drains the
// deferred queue and every completion flagged since the last turn.
// Deferred results come first, in submission order. Must be called on the
// JS thread.
func (d *Driver) Poll() []ScheduledResult {
	d.mu.Lock()
	if d.tornDown {
		d.mu.Unlock()
		return nil
	}

	for _, pid := range d.lazy {
		p, ok := d.pending[pid]
		if !ok || p.fut == nil {
			continue
		}
		ctx, cancel := context.WithCancel(d.ctx)
		p.cancel = cancel
		fut := p.fut
		p.fut = nil
		d.start(ctx, pid, fut)
	}
	d.lazy = d.lazy[:0]

	out := d.deferred
	d.deferred = nil
	for _, r := range out {
		d.settleLocked(r.Promise)
	}
	d.mu.Unlock()

	for {
		select {
		case r := <-d.completions:
			d.mu.Lock()
			d.settleLocked(r.Promise)
			d.mu.Unlock()
			out = append(out, r)
		default:
			return out
		}
	}
}

// settleLocked removes a pending op on its way to settlement. A promise
// id with no pending op means a double settlement or corrupted
// bookkeeping; continuing would desynchronize the driver from the JS
// heap, so fail fast.
func (d *Driver) settleLocked(pid PromiseID) {
	p, ok := d.pending[pid]
	if !ok {
		panic(fmt.Sprintf("opcall: settling unknown promise id %d", pid))
	}
	if p.cancel != nil {
		p.cancel()
	}
	delete(d.pending, pid)
}

// Ref restores the default liveness contribution of a pending op.
// Idempotent; a no-op for already-settled ids.
func (d *Driver) Ref(pid PromiseID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[pid]; ok {
		p.unreffed = false
	}
}

// Unref makes a pending op's eventual settlement optional for liveness:
// it alone no longer prevents quiescence. Idempotent.
func (d *Driver) Unref(pid PromiseID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[pid]; ok {
		p.unreffed = true
	}
}

// OutstandingCount reports the number of pending ops the driver owns.
func (d *Driver) OutstandingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Quiescent reports whether the event loop may stop: no ref'd pending op
// and no queued work for the next turn.
func (d *Driver) Quiescent() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deferred) > 0 || len(d.lazy) > 0 {
		return false
	}
	for _, p := range d.pending {
		if !p.unreffed {
			return false
		}
	}
	return true
}

// Teardown drops every outstanding future unsettled. Futures observe the
// cancellation at their own suspension points; their late completions are
// discarded. The driver is unusable afterwards.
func (d *Driver) Teardown() {
	d.mu.Lock()
	if d.tornDown {
		d.mu.Unlock()
		return
	}
	d.tornDown = true
	for _, p := range d.pending {
		if p.cancel != nil {
			p.cancel()
		}
	}
	d.pending = make(map[PromiseID]*pendingOp)
	d.deferred = nil
	d.lazy = nil
	d.mu.Unlock()

	d.cancel()
	// Drain completions already flagged so no goroutine stays blocked.
	for {
		select {
		case <-d.completions:
		default:
			return
		}
	}
}
