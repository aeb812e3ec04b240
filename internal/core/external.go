package core

import "sync"

// ExternalTag distinguishes pointee types of external handles. Tags are
// the only type safety across the boundary: the pointee itself is never
// validated, and there is no untyped unwrap.
type ExternalTag uint32

// OwnershipMode answers who releases an external pointer.
type OwnershipMode uint8

const (
	// OwnershipBorrowed ties the lifetime to a GC-managed resource.
	OwnershipBorrowed OwnershipMode = iota
	// OwnershipTransferred makes the pointer permanently native-owned;
	// release happens through the handle.
	OwnershipTransferred
	// OwnershipUnmanaged leaves the lifetime asserted by the caller.
	OwnershipUnmanaged
)

// ExternalHandle wraps a raw address with a type tag and an explicit
// ownership mode. The zero address is only legal as the null sentinel.
type ExternalHandle struct {
	addr     uintptr
	tag      ExternalTag
	mode     OwnershipMode
	release  func(uintptr)
	released bool
}

// NullExternal is the explicit accepted null sentinel.
var NullExternal = &ExternalHandle{}

// NewExternal wraps addr. A zero address is rejected; use NullExternal to
// pass null deliberately. release may be nil for borrowed and unmanaged
// handles.
func NewExternal(addr uintptr, tag ExternalTag, mode OwnershipMode, release func(uintptr)) (*ExternalHandle, *OpError) {
	if addr == 0 {
		return nil, TypeErrorf("external pointer must not be null; pass the null sentinel explicitly")
	}
	return &ExternalHandle{addr: addr, tag: tag, mode: mode, release: release}, nil
}

// IsNull reports whether this is the null sentinel.
func (h *ExternalHandle) IsNull() bool { return h == nil || h.addr == 0 }

// Tag returns the handle's type tag.
func (h *ExternalHandle) Tag() ExternalTag { return h.tag }

// Ownership returns the handle's ownership mode.
func (h *ExternalHandle) Ownership() OwnershipMode { return h.mode }

// Unwrap returns the raw address after checking the type tag. Null and
// released handles fail with a type error.
func (h *ExternalHandle) Unwrap(tag ExternalTag) (uintptr, *OpError) {
	if h.IsNull() {
		return 0, TypeErrorf("unexpected null external pointer")
	}
	if h.released {
		return 0, TypeErrorf("external pointer used after release")
	}
	if h.tag != tag {
		return 0, TypeErrorf("external pointer tag mismatch: have %d, want %d", h.tag, tag)
	}
	return h.addr, nil
}

// Release frees a transferred handle. Idempotent; a no-op for borrowed and
// unmanaged handles, whose release responsibility lies elsewhere.
func (h *ExternalHandle) Release() {
	if h.IsNull() || h.released || h.mode != OwnershipTransferred {
		return
	}
	h.released = true
	if h.release != nil {
		h.release(h.addr)
	}
}

// ExternalTable assigns small-integer ids to handles crossing into JS.
// JS only ever sees the id; the address stays on the native side.
type ExternalTable struct {
	mu      sync.Mutex
	next    uint32
	handles map[uint32]*ExternalHandle
}

// NewExternalTable returns an empty table.
func NewExternalTable() *ExternalTable {
	return &ExternalTable{handles: make(map[uint32]*ExternalHandle)}
}

// Add registers a handle and returns its id. The null sentinel is id 0.
func (t *ExternalTable) Add(h *ExternalHandle) uint32 {
	if h.IsNull() {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.handles[t.next] = h
	return t.next
}

// Get resolves an id back to a handle. Id 0 is the null sentinel.
func (t *ExternalTable) Get(id uint32) (*ExternalHandle, *OpError) {
	if id == 0 {
		return NullExternal, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[id]
	if !ok {
		return nil, TypeErrorf("unknown external pointer id %d", id)
	}
	return h, nil
}

// Remove drops an id, releasing transferred handles.
func (t *ExternalTable) Remove(id uint32) {
	t.mu.Lock()
	h := t.handles[id]
	delete(t.handles, id)
	t.mu.Unlock()
	if h != nil {
		h.Release()
	}
}

// ReleaseAll drops every handle. Called at isolate teardown.
func (t *ExternalTable) ReleaseAll() {
	t.mu.Lock()
	handles := t.handles
	t.handles = make(map[uint32]*ExternalHandle)
	t.mu.Unlock()
	for _, h := range handles {
		h.Release()
	}
}
