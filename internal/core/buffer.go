package core

// SliceMode describes how a byte range relates to the JS heap.
type SliceMode uint8

const (
	// SliceOwned is an independent heap copy.
	SliceOwned SliceMode = iota
	// SliceBorrowed is a zero-copy view valid only for the current call.
	SliceBorrowed
	// SliceDetachable is a buffer whose backing store has been transferred
	// out of the JS heap; the JS-side alias is permanently zero-length.
	SliceDetachable
)

// Slice is a byte range crossing the boundary. Access goes through Bytes
// so the detached and out-of-scope states can be enforced: once detached,
// a slice can never be read or written from either side again.
type Slice struct {
	data     []byte
	mode     SliceMode
	detached bool
	expired  bool // borrowed slice whose call scope has closed
}

// OwnedSlice copies b into an independently owned slice.
func OwnedSlice(b []byte) *Slice {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Slice{data: cp, mode: SliceOwned}
}

// OwnedSliceNoCopy takes ownership of b without copying. The caller must
// not alias b afterwards.
func OwnedSliceNoCopy(b []byte) *Slice {
	return &Slice{data: b, mode: SliceOwned}
}

// DetachableSlice wraps a backing store whose JS alias has already been
// neutralized by the engine binding.
func DetachableSlice(b []byte) *Slice {
	return &Slice{data: b, mode: SliceDetachable}
}

func borrowedSlice(b []byte) *Slice {
	return &Slice{data: b, mode: SliceBorrowed}
}

// Mode reports the slice family.
func (s *Slice) Mode() SliceMode { return s.mode }

// Detached reports whether the backing store has been moved out.
func (s *Slice) Detached() bool { return s.detached }

// Len returns the visible length: zero once detached or expired.
func (s *Slice) Len() int {
	if s.detached || s.expired {
		return 0
	}
	return len(s.data)
}

// Bytes returns the byte view, or a type error when the slice is detached
// or its borrowing call has ended.
func (s *Slice) Bytes() ([]byte, *OpError) {
	if s.detached {
		return nil, TypeErrorf("buffer has been detached")
	}
	if s.expired {
		return nil, TypeErrorf("borrowed buffer used outside its call")
	}
	return s.data, nil
}

// Detach transfers the backing store to the caller and permanently
// invalidates the slice. Only detachable slices may be detached.
func (s *Slice) Detach() ([]byte, *OpError) {
	if s.mode != SliceDetachable {
		return nil, TypeErrorf("buffer is not detachable")
	}
	if s.detached {
		return nil, TypeErrorf("buffer has been detached")
	}
	s.detached = true
	b := s.data
	s.data = nil
	return b, nil
}

// expire marks a borrowed slice as out of scope. Owned and detachable
// slices outlive the call and are unaffected.
func (s *Slice) expire() {
	if s.mode == SliceBorrowed {
		s.expired = true
		s.data = nil
	}
}

// NormalizeView reduces an arbitrary buffer view — an array buffer, a
// typed array of any element width, or a data view — to a byte-addressed
// range of its backing store. byteOffset and byteLength are in bytes
// regardless of the source element width.
func NormalizeView(backing []byte, byteOffset, byteLength int) ([]byte, *OpError) {
	if byteOffset < 0 || byteLength < 0 {
		return nil, TypeErrorf("negative view bounds")
	}
	if byteOffset+byteLength > len(backing) {
		return nil, TypeErrorf("view [%d, %d) exceeds backing store of %d bytes",
			byteOffset, byteOffset+byteLength, len(backing))
	}
	return backing[byteOffset : byteOffset+byteLength], nil
}
