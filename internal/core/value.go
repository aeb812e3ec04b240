package core

import (
	"fmt"
	"math"
	"math/big"
)

// Kind identifies the payload of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindInt32
	KindUint32
	KindFloat64
	KindBigInt
	KindString
	KindBuffer
	KindExternal
	KindResource
	KindObject // structured data carried as wire JSON
)

// String returns the lowercase kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindFloat64:
		return "float64"
	case KindBigInt:
		return "bigint"
	case KindString:
		return "string"
	case KindBuffer:
		return "buffer"
	case KindExternal:
		return "external"
	case KindResource:
		return "resource"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is the boundary representation of an engine value: a tagged union
// with one scalar word and pointer payloads. Values are passed by value;
// the common scalar kinds allocate nothing.
type Value struct {
	kind Kind
	num  float64 // bool (0/1), int32, uint32, float64, resource id
	str  string  // string payload; wire JSON for KindObject
	big  *big.Int
	buf  *Slice
	ext  *ExternalHandle
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{kind: KindUndefined} }

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Int32 returns a small-integer value. This is the unboxed fast path; it
// round-trips losslessly with the boxed Float64 form.
func Int32(n int32) Value { return Value{kind: KindInt32, num: float64(n)} }

// Uint32 returns an unsigned 32-bit value.
func Uint32(n uint32) Value { return Value{kind: KindUint32, num: float64(n)} }

// Float64 returns a double value.
func Float64(f float64) Value { return Value{kind: KindFloat64, num: f} }

// Number returns the small-integer form when f is exactly representable as
// an int32, otherwise the boxed double. Negative zero stays a double; the
// int32 form cannot carry its sign.
func Number(f float64) Value {
	if i := int32(f); float64(i) == f && !(f == 0 && math.Signbit(f)) {
		return Int32(i)
	}
	return Float64(f)
}

// BigInt returns an arbitrary-precision integer value. The caller must not
// mutate n afterwards.
func BigInt(n *big.Int) Value { return Value{kind: KindBigInt, big: n} }

// Int64 returns the exact transport form of a 64-bit integer.
func Int64(n int64) Value { return Value{kind: KindBigInt, big: big.NewInt(n)} }

// Uint64 returns the exact transport form of an unsigned 64-bit integer.
func Uint64(n uint64) Value { return Value{kind: KindBigInt, big: new(big.Int).SetUint64(n)} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Buffer returns a byte-buffer value.
func Buffer(s *Slice) Value { return Value{kind: KindBuffer, buf: s} }

// External returns an external-pointer value.
func External(h *ExternalHandle) Value { return Value{kind: KindExternal, ext: h} }

// Resource returns a host-object reference value.
func Resource(rid ResourceID) Value { return Value{kind: KindResource, num: float64(rid)} }

// Object returns a structured value carried as wire JSON.
func Object(wireJSON string) Value { return Value{kind: KindObject, str: wireJSON} }

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNullish reports whether the value is null or undefined.
func (v Value) IsNullish() bool { return v.kind == KindNull || v.kind == KindUndefined }

// AsBool returns the boolean payload. Valid only for KindBool.
func (v Value) AsBool() bool { return v.num != 0 }

// AsInt32 returns the int32 payload. Valid only for KindInt32.
func (v Value) AsInt32() int32 { return int32(v.num) }

// AsUint32 returns the uint32 payload. Valid only for KindUint32.
func (v Value) AsUint32() uint32 { return uint32(v.num) }

// AsFloat64 returns the numeric payload of any of the number kinds.
func (v Value) AsFloat64() float64 { return v.num }

// AsBigInt returns the arbitrary-precision payload. Valid only for KindBigInt.
func (v Value) AsBigInt() *big.Int { return v.big }

// AsString returns the string payload. Valid only for KindString and
// KindObject (where it is the wire JSON).
func (v Value) AsString() string { return v.str }

// AsBuffer returns the buffer payload. Valid only for KindBuffer.
func (v Value) AsBuffer() *Slice { return v.buf }

// AsExternal returns the external-handle payload. Valid only for KindExternal.
func (v Value) AsExternal() *ExternalHandle { return v.ext }

// AsResource returns the resource id payload. Valid only for KindResource.
func (v Value) AsResource() ResourceID { return ResourceID(v.num) }
