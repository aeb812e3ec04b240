package core

import (
	"log"
	"sort"
	"sync"
)

// ResourceID identifies a GC-managed host object. The JS side holds a
// wrapper object carrying the rid; the engine's collector (or an explicit
// close op, or isolate teardown) decides when the native payloads die.
type ResourceID uint32

// HostResource is a native payload whose lifetime the JS heap manages.
type HostResource interface {
	Close() error
}

// DefaultSlot is the payload slot used when a resource has a single
// native payload.
const DefaultSlot = ""

// ResourceTable maps rids to their native payloads. Several payloads may
// compose behind one rid under distinct slots, modeling prototype-chain
// "inherits" relationships behind a single JS identity.
type ResourceTable struct {
	mu      sync.Mutex
	next    ResourceID
	entries map[ResourceID]map[string]HostResource
}

// NewResourceTable returns an empty table.
func NewResourceTable() *ResourceTable {
	return &ResourceTable{entries: make(map[ResourceID]map[string]HostResource)}
}

// Add registers a payload under a fresh rid. Rids are never reused.
func (t *ResourceTable) Add(r HostResource) ResourceID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.entries[t.next] = map[string]HostResource{DefaultSlot: r}
	return t.next
}

// AddSlot composes an additional payload behind an existing rid.
func (t *ResourceTable) AddSlot(rid ResourceID, slot string, r HostResource) *OpError {
	t.mu.Lock()
	defer t.mu.Unlock()
	slots, ok := t.entries[rid]
	if !ok {
		return TypeErrorf("unknown resource id %d", rid)
	}
	if _, dup := slots[slot]; dup {
		return TypeErrorf("resource %d already has a %q payload", rid, slot)
	}
	slots[slot] = r
	return nil
}

// Has reports whether rid is live.
func (t *ResourceTable) Has(rid ResourceID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[rid]
	return ok
}

// get is the scope-mediated lookup; callers go through CallScope.Resource.
func (t *ResourceTable) get(rid ResourceID, slot string) (HostResource, *OpError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	slots, ok := t.entries[rid]
	if !ok {
		return nil, TypeErrorf("unknown resource id %d", rid)
	}
	r, ok := slots[slot]
	if !ok {
		return nil, TypeErrorf("resource %d has no %q payload", rid, slot)
	}
	return r, nil
}

// Close destroys a resource and all composed payloads. The first close
// error is returned; all payloads are closed regardless.
func (t *ResourceTable) Close(rid ResourceID) error {
	t.mu.Lock()
	slots, ok := t.entries[rid]
	delete(t.entries, rid)
	t.mu.Unlock()
	if !ok {
		return TypeErrorf("unknown resource id %d", rid)
	}
	var first error
	for _, name := range sortedSlots(slots) {
		if err := slots[name].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CloseAll destroys every live resource. Called at isolate teardown.
func (t *ResourceTable) CloseAll() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[ResourceID]map[string]HostResource)
	t.mu.Unlock()
	for rid, slots := range entries {
		for _, name := range sortedSlots(slots) {
			if err := slots[name].Close(); err != nil {
				log.Printf("opcall: closing resource %d at teardown: %v", rid, err)
			}
		}
	}
}

func sortedSlots(slots map[string]HostResource) []string {
	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
