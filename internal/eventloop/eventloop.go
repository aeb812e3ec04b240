package eventloop

import (
	"fmt"
	"sync"
	"time"

	"github.com/cryguy/opcall/internal/core"
	"github.com/cryguy/opcall/internal/dispatch"
)

// timerEntry represents a pending setTimeout or setInterval callback.
// The actual callback is stored in globalThis.__timerCallbacks[id] on the
// JS side. Go only tracks scheduling metadata.
type timerEntry struct {
	deadline time.Time
	interval time.Duration // 0 for setTimeout, >0 for setInterval
	id       int
	cleared  bool
}

// EventLoop turns driver completions and Go-backed timers into JS
// execution. Each pump delivers settled op results to the realm and runs
// a microtask checkpoint so promise reactions observe them immediately.
type EventLoop struct {
	mu     sync.Mutex
	timers map[int]*timerEntry
	nextID int
}

// New creates a new EventLoop.
func New() *EventLoop {
	return &EventLoop{
		timers: make(map[int]*timerEntry),
	}
}

// RegisterTimer creates a timer entry and returns its ID.
// The actual JS callback is stored in globalThis.__timerCallbacks[id].
func (el *EventLoop) RegisterTimer(delay time.Duration, isInterval bool) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	id := el.nextID
	entry := &timerEntry{
		deadline: time.Now().Add(delay),
		id:       id,
	}
	if isInterval {
		if delay < 10*time.Millisecond {
			delay = 10 * time.Millisecond // minimum interval
		}
		entry.interval = delay
	}
	el.timers[id] = entry
	return id
}

// ClearTimer cancels a timer by ID.
func (el *EventLoop) ClearTimer(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if t, ok := el.timers[id]; ok {
		t.cleared = true
		delete(el.timers, id)
	}
}

// PumpOps delivers every settlement the driver has ready right now.
// Deferred results queued before this pump come out ahead of anything
// read from the completion channel, and each delivery is followed by a
// microtask checkpoint. Returns true if any settlement was delivered.
// Must be called on the runtime's goroutine.
func (el *EventLoop) PumpOps(rt core.JSRuntime, fe *dispatch.Frontend) bool {
	results := fe.Driver().Poll()
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		_ = rt.Eval(fe.EncodeSettlement(r))
		rt.RunMicrotasks()
	}
	return true
}

// fireTimer fires a timer callback by invoking the JS-side callback map.
func (el *EventLoop) fireTimer(rt core.JSRuntime, id int) {
	js := fmt.Sprintf(`(function() {
		var entry = globalThis.__timerCallbacks[%d];
		if (!entry) return;
		if (!entry.interval) delete globalThis.__timerCallbacks[%d];
		entry.fn.apply(null, entry.args || []);
	})()`, id, id)
	_ = rt.Eval(js)
}

// Drain pumps op settlements and fires timers until the driver is
// quiescent and no timers remain, or the deadline is reached. Unref'd
// pending ops do not hold the loop open.
// Must be called on the runtime's goroutine (JS engines are single-threaded).
func (el *EventLoop) Drain(rt core.JSRuntime, fe *dispatch.Frontend, deadline time.Time) {
	for {
		// Deliver whatever is ready before considering a sleep.
		if el.PumpOps(rt, fe) {
			continue
		}

		el.mu.Lock()
		hasTimers := len(el.timers) > 0
		el.mu.Unlock()
		hasOps := !fe.Driver().Quiescent()

		if !hasTimers && !hasOps {
			return
		}

		// Find the next timer to fire.
		el.mu.Lock()
		var next *timerEntry
		for _, t := range el.timers {
			if t.cleared {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		el.mu.Unlock()

		if next == nil && !hasOps {
			return
		}

		if next == nil {
			// No timers, but ops are in flight. Poll with short sleeps.
			if time.Now().After(deadline) {
				return
			}
			time.Sleep(1 * time.Millisecond)
			continue
		}

		// Wait until the timer fires, pumping ops in between.
		now := time.Now()
		if next.deadline.After(now) {
			wait := next.deadline.Sub(now)
			if now.Add(wait).After(deadline) {
				for time.Now().Before(deadline) {
					if el.PumpOps(rt, fe) {
						break
					}
					time.Sleep(1 * time.Millisecond)
				}
				return
			}
			timerDeadline := now.Add(wait)
			for time.Now().Before(timerDeadline) {
				el.PumpOps(rt, fe)
				remaining := time.Until(timerDeadline)
				if remaining <= 0 {
					break
				}
				if remaining > 1*time.Millisecond {
					remaining = 1 * time.Millisecond
				}
				time.Sleep(remaining)
			}
		}

		if time.Now().After(deadline) {
			return
		}

		// Fire the callback.
		el.mu.Lock()
		if next.cleared {
			el.mu.Unlock()
			continue
		}
		timerID := next.id
		if next.interval > 0 {
			next.deadline = time.Now().Add(next.interval)
		} else {
			delete(el.timers, next.id)
		}
		el.mu.Unlock()

		el.fireTimer(rt, timerID)
		rt.RunMicrotasks()
	}
}

// HasPending returns true if any active timers remain.
func (el *EventLoop) HasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.timers) > 0
}

// Reset clears all timers. Called when a realm is reused.
func (el *EventLoop) Reset() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.timers = make(map[int]*timerEntry)
	el.nextID = 0
}
