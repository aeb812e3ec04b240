package driver

import (
	"context"
	"testing"
	"time"

	"github.com/cryguy/opcall/internal/core"
)

func TestEagerReadyBypassesBookkeeping(t *testing.T) {
	d := New(context.Background(), 0)
	defer d.Teardown()

	sub := d.Submit(0, core.PolicyEager, core.Ready(core.Int32(7)))
	if !sub.Settled || sub.Err != nil || sub.Value.AsInt32() != 7 {
		t.Fatalf("eager ready submission = %+v", sub)
	}
	if n := d.OutstandingCount(); n != 0 {
		t.Errorf("OutstandingCount = %d, want 0", n)
	}
	if !d.Quiescent() {
		t.Error("driver not quiescent after eager ready result")
	}

	sub = d.Submit(0, core.PolicyEager, core.Fail(core.Errorf(core.ClassError, "boom")))
	if !sub.Settled || sub.Err == nil {
		t.Fatalf("eager failed submission = %+v", sub)
	}
}

func TestDeferredReadyWaitsForNextTurn(t *testing.T) {
	d := New(context.Background(), 0)
	defer d.Teardown()

	a := d.Submit(0, core.PolicyDeferred, core.Ready(core.Int32(1)))
	b := d.Submit(0, core.PolicyDeferred, core.Ready(core.Int32(2)))
	if a.Settled || b.Settled {
		t.Fatal("deferred results settled at submission")
	}
	if a.Promise == b.Promise {
		t.Fatal("promise ids reused")
	}
	if d.Quiescent() {
		t.Error("driver quiescent with deferred results queued")
	}

	res := d.Poll()
	if len(res) != 2 {
		t.Fatalf("Poll returned %d results, want 2", len(res))
	}
	// Submission order is preserved.
	if res[0].Promise != a.Promise || res[1].Promise != b.Promise {
		t.Errorf("poll order = [%d, %d], want [%d, %d]",
			res[0].Promise, res[1].Promise, a.Promise, b.Promise)
	}
	if res[0].Value.AsInt32() != 1 || res[1].Value.AsInt32() != 2 {
		t.Errorf("poll values = [%v, %v]", res[0].Value, res[1].Value)
	}
	if !d.Quiescent() {
		t.Error("driver not quiescent after draining deferred results")
	}
}

func TestDeferredResultsPrecedeCompletions(t *testing.T) {
	d := New(context.Background(), 0)
	defer d.Teardown()

	fut := d.Submit(0, core.PolicyEager, core.Await(func(ctx context.Context) (core.Value, *core.OpError) {
		return core.Int32(10), nil
	}))
	def := d.Submit(0, core.PolicyDeferred, core.Ready(core.Int32(20)))

	res := waitForResults(t, d, 2)
	if res[0].Promise != def.Promise {
		t.Errorf("first settled promise = %d, want deferred %d", res[0].Promise, def.Promise)
	}
	if res[1].Promise != fut.Promise || res[1].Value.AsInt32() != 10 {
		t.Errorf("future settlement = %+v", res[1])
	}
}

func TestLazyStartsOnPoll(t *testing.T) {
	d := New(context.Background(), 0)
	defer d.Teardown()

	started := make(chan struct{})
	sub := d.Submit(0, core.PolicyLazy, core.Await(func(ctx context.Context) (core.Value, *core.OpError) {
		close(started)
		return core.Bool(true), nil
	}))
	if sub.Settled {
		t.Fatal("lazy submission settled immediately")
	}
	select {
	case <-started:
		t.Fatal("lazy future started before the first poll")
	case <-time.After(20 * time.Millisecond):
	}
	if d.Quiescent() {
		t.Error("driver quiescent with a lazy future queued")
	}

	res := waitForResults(t, d, 1)
	<-started
	if res[0].Promise != sub.Promise || !res[0].Value.AsBool() {
		t.Errorf("lazy settlement = %+v", res[0])
	}
}

func TestLazyReadyResultStillSettlesImmediately(t *testing.T) {
	d := New(context.Background(), 0)
	defer d.Teardown()

	sub := d.Submit(0, core.PolicyLazy, core.Ready(core.Int32(3)))
	if !sub.Settled || sub.Value.AsInt32() != 3 {
		t.Errorf("lazy ready submission = %+v", sub)
	}
}

func TestRefUnref(t *testing.T) {
	d := New(context.Background(), 0)
	defer d.Teardown()

	block := make(chan struct{})
	sub := d.Submit(0, core.PolicyEager, core.Await(func(ctx context.Context) (core.Value, *core.OpError) {
		select {
		case <-block:
			return core.Undefined(), nil
		case <-ctx.Done():
			return core.Value{}, core.Errorf(core.ClassError, "cancelled")
		}
	}))
	if d.Quiescent() {
		t.Fatal("driver quiescent with a ref'd pending op")
	}

	d.Unref(sub.Promise)
	if !d.Quiescent() {
		t.Error("unref'd pending op still holds the loop open")
	}
	d.Unref(sub.Promise) // idempotent
	d.Ref(sub.Promise)
	if d.Quiescent() {
		t.Error("re-ref'd pending op no longer holds the loop open")
	}

	close(block)
	waitForResults(t, d, 1)
	// Ref and Unref on a settled id are no-ops.
	d.Ref(sub.Promise)
	d.Unref(sub.Promise)
	if n := d.OutstandingCount(); n != 0 {
		t.Errorf("OutstandingCount = %d, want 0", n)
	}
}

func TestTeardownCancelsFutures(t *testing.T) {
	d := New(context.Background(), 0)

	cancelled := make(chan struct{})
	d.Submit(0, core.PolicyEager, core.Await(func(ctx context.Context) (core.Value, *core.OpError) {
		<-ctx.Done()
		close(cancelled)
		return core.Value{}, core.Errorf(core.ClassError, "cancelled")
	}))

	d.Teardown()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("future did not observe cancellation")
	}
	if res := d.Poll(); res != nil {
		t.Errorf("Poll after teardown = %v, want nil", res)
	}
	sub := d.Submit(0, core.PolicyEager, core.Ready(core.Int32(1)))
	if !sub.Settled || sub.Err == nil {
		t.Errorf("submission after teardown = %+v, want settled error", sub)
	}
	d.Teardown() // idempotent
}

func TestUnknownPromiseSettlementPanics(t *testing.T) {
	d := New(context.Background(), 0)
	defer d.Teardown()

	defer func() {
		if recover() == nil {
			t.Error("settling an unknown promise id did not panic")
		}
	}()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settleLocked(999)
}

// waitForResults polls until n settlements have arrived. Completion
// flagging is asynchronous, so the test loops rather than sleeping once.
func waitForResults(t *testing.T, d *Driver, n int) []ScheduledResult {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var out []ScheduledResult
	for len(out) < n {
		out = append(out, d.Poll()...)
		if time.Now().After(deadline) {
			t.Fatalf("got %d settlements, want %d", len(out), n)
		}
		time.Sleep(time.Millisecond)
	}
	return out
}
