package core

// CallScope is the per-call window through which an op touches engine
// lifetimes: borrowed byte views, scoped resource access, and the string
// scratch buffer. The dispatch frontend opens a scope before marshaling
// and closes it after the return is marshaled; closing invalidates every
// borrow handed out, so nothing scoped can outlive the call.
type CallScope struct {
	res      *ResourceTable
	borrowed []*Slice
	scratch  *[]byte
	closed   bool
}

// NewCallScope opens a scope against the realm's resource table.
func NewCallScope(res *ResourceTable, scratchSize int) *CallScope {
	return &CallScope{res: res, scratch: getScratch(scratchSize)}
}

// Borrow wraps b as a call-scoped zero-copy view.
func (sc *CallScope) Borrow(b []byte) *Slice {
	s := borrowedSlice(b)
	sc.borrowed = append(sc.borrowed, s)
	return s
}

// Resource returns the payload behind rid for the duration of this call.
// The reference must not be retained across calls; after Close the scope
// refuses further lookups.
func (sc *CallScope) Resource(rid ResourceID) (HostResource, *OpError) {
	return sc.ResourceSlot(rid, DefaultSlot)
}

// AddResource registers r in the realm's resource table and returns its
// id. The resource outlives the call; it stays live until closed by an
// op, by JS, or at teardown.
func (sc *CallScope) AddResource(r HostResource) (ResourceID, *OpError) {
	if sc.closed {
		return 0, TypeErrorf("resource access outside its call")
	}
	if sc.res == nil {
		return 0, TypeErrorf("no resource table in this realm")
	}
	return sc.res.Add(r), nil
}

// ResourceSlot returns a composed payload behind rid.
func (sc *CallScope) ResourceSlot(rid ResourceID, slot string) (HostResource, *OpError) {
	if sc.closed {
		return nil, TypeErrorf("resource access outside its call")
	}
	if sc.res == nil {
		return nil, TypeErrorf("no resource table in this realm")
	}
	return sc.res.get(rid, slot)
}

// EncodeString encodes s for transport using the scope's scratch buffer.
// The returned bytes are valid until the scope closes.
func (sc *CallScope) EncodeString(s string) ([]byte, bool) {
	if sc.scratch == nil {
		return EncodeString(s, nil)
	}
	return EncodeString(s, *sc.scratch)
}

// Close ends the call: every borrowed slice expires and the scratch buffer
// returns to its pool. Closing twice is a no-op.
func (sc *CallScope) Close() {
	if sc.closed {
		return
	}
	sc.closed = true
	for _, s := range sc.borrowed {
		s.expire()
	}
	sc.borrowed = nil
	if sc.scratch != nil {
		putScratch(sc.scratch)
		sc.scratch = nil
	}
}
