package core

import "math/big"

var (
	minI64 = big.NewInt(-(1 << 63))
	maxI64 = new(big.Int).SetUint64(1<<63 - 1)
	maxU64 = new(big.Int).SetUint64(1<<64 - 1)
	zero   = big.NewInt(0)
)

// MarshalArg coerces an incoming engine value to its declared contract.
// 32-bit kinds wrap like JS ToInt32/ToUint32, 64-bit kinds honor the
// exact/lossy contract, everything else is strict — a mismatch is always a
// synchronous type error, never a silent coercion. forAsync copies
// borrowed buffers, because a borrowed backing store is only stable for a
// bounded synchronous call.
func MarshalArg(sc *CallScope, spec ArgSpec, v Value, forAsync bool) (Value, *OpError) {
	switch spec.Kind {
	case ArgI32:
		f, err := numberArg(v)
		if err != nil {
			return Value{}, err
		}
		return Int32(ToInt32(f)), nil

	case ArgU32:
		f, err := numberArg(v)
		if err != nil {
			return Value{}, err
		}
		return Uint32(ToUint32(f)), nil

	case ArgF64:
		f, err := numberArg(v)
		if err != nil {
			return Value{}, err
		}
		return Float64(f), nil

	case ArgBool:
		if v.Kind() != KindBool {
			return Value{}, TypeErrorf("expected boolean, got %s", v.Kind())
		}
		return v, nil

	case ArgI64Exact:
		n, err := exactArg(v)
		if err != nil {
			return Value{}, err
		}
		if n.Cmp(minI64) < 0 || n.Cmp(maxI64) > 0 {
			return Value{}, TypeErrorf("bigint out of int64 range")
		}
		return BigInt(n), nil

	case ArgU64Exact:
		n, err := exactArg(v)
		if err != nil {
			return Value{}, err
		}
		if n.Cmp(zero) < 0 || n.Cmp(maxU64) > 0 {
			return Value{}, TypeErrorf("bigint out of uint64 range")
		}
		return BigInt(n), nil

	case ArgI64Lossy, ArgU64Lossy:
		// Lossy 64-bit transport is a double; a bigint here is a contract
		// violation, not something to fold silently.
		f, err := numberArg(v)
		if err != nil {
			return Value{}, err
		}
		return Float64(f), nil

	case ArgString:
		if v.IsNullish() && spec.AllowNull {
			return Null(), nil
		}
		if v.Kind() != KindString {
			return Value{}, TypeErrorf("expected string, got %s", v.Kind())
		}
		return v, nil

	case ArgBufOwned:
		b, err := bufferArg(spec, v)
		if err != nil || b == nil {
			return Null(), err
		}
		raw, berr := b.Bytes()
		if berr != nil {
			return Value{}, berr
		}
		return Buffer(OwnedSlice(raw)), nil

	case ArgBufBorrowed:
		b, err := bufferArg(spec, v)
		if err != nil || b == nil {
			return Null(), err
		}
		raw, berr := b.Bytes()
		if berr != nil {
			return Value{}, berr
		}
		if forAsync {
			return Buffer(OwnedSlice(raw)), nil
		}
		if sc == nil {
			return Value{}, TypeErrorf("borrowed buffer requires a call scope")
		}
		return Buffer(sc.Borrow(raw)), nil

	case ArgBufDetach:
		b, err := bufferArg(spec, v)
		if err != nil || b == nil {
			return Null(), err
		}
		if b.Mode() != SliceDetachable {
			return Value{}, TypeErrorf("buffer is not detachable")
		}
		if b.Detached() {
			return Value{}, TypeErrorf("buffer has been detached")
		}
		return Buffer(b), nil

	case ArgBufAny:
		b, err := bufferArg(spec, v)
		if err != nil || b == nil {
			return Null(), err
		}
		raw, berr := b.Bytes()
		if berr != nil {
			return Value{}, berr
		}
		if forAsync {
			return Buffer(OwnedSlice(raw)), nil
		}
		if sc == nil {
			return Value{}, TypeErrorf("buffer view requires a call scope")
		}
		return Buffer(sc.Borrow(raw)), nil

	case ArgExternal:
		if v.Kind() != KindExternal {
			return Value{}, TypeErrorf("expected external pointer, got %s", v.Kind())
		}
		h := v.AsExternal()
		if h.IsNull() {
			if spec.AllowNull {
				return v, nil
			}
			return Value{}, TypeErrorf("unexpected null external pointer")
		}
		if _, err := h.Unwrap(spec.Tag); err != nil {
			return Value{}, err
		}
		return v, nil

	case ArgResource:
		switch v.Kind() {
		case KindResource:
			return v, nil
		case KindInt32, KindUint32, KindFloat64:
			f := v.AsFloat64()
			if !integral(f) || f < 0 {
				return Value{}, TypeErrorf("invalid resource id")
			}
			return Resource(ResourceID(f)), nil
		}
		return Value{}, TypeErrorf("expected resource id, got %s", v.Kind())

	case ArgValue:
		return v, nil
	}
	return Value{}, TypeErrorf("unsupported argument kind %d", spec.Kind)
}

func numberArg(v Value) (float64, *OpError) {
	switch v.Kind() {
	case KindInt32, KindUint32, KindFloat64:
		return v.AsFloat64(), nil
	}
	return 0, TypeErrorf("expected number, got %s", v.Kind())
}

func exactArg(v Value) (*big.Int, *OpError) {
	switch v.Kind() {
	case KindBigInt:
		return v.AsBigInt(), nil
	case KindInt32:
		return big.NewInt(int64(v.AsInt32())), nil
	case KindUint32:
		return new(big.Int).SetUint64(uint64(v.AsUint32())), nil
	case KindFloat64:
		f := v.AsFloat64()
		if !integral(f) {
			return nil, TypeErrorf("expected integer, got non-integral number")
		}
		n, _ := big.NewFloat(f).Int(nil)
		return n, nil
	}
	return nil, TypeErrorf("expected bigint or integer, got %s", v.Kind())
}

func bufferArg(spec ArgSpec, v Value) (*Slice, *OpError) {
	if v.IsNullish() {
		if spec.AllowNull {
			return nil, nil
		}
		return nil, TypeErrorf("unexpected null buffer")
	}
	if v.Kind() != KindBuffer {
		return nil, TypeErrorf("expected buffer, got %s", v.Kind())
	}
	return v.AsBuffer(), nil
}

// MarshalRet validates the op's return value against its declared contract
// and produces the outgoing engine value.
func MarshalRet(kind RetKind, v Value) (Value, *OpError) {
	switch kind {
	case RetVoid:
		return Undefined(), nil
	case RetI32:
		f, err := numberArg(v)
		if err != nil {
			return Value{}, retErr(err)
		}
		return Int32(ToInt32(f)), nil
	case RetU32:
		f, err := numberArg(v)
		if err != nil {
			return Value{}, retErr(err)
		}
		return Uint32(ToUint32(f)), nil
	case RetF64, RetI64Lossy, RetU64Lossy:
		f, err := numberArg(v)
		if err != nil {
			return Value{}, retErr(err)
		}
		return Float64(f), nil
	case RetBool:
		if v.Kind() != KindBool {
			return Value{}, TypeErrorf("op returned %s, want bool", v.Kind())
		}
		return v, nil
	case RetI64Exact, RetU64Exact:
		n, err := exactArg(v)
		if err != nil {
			return Value{}, retErr(err)
		}
		return BigInt(n), nil
	case RetString:
		if v.Kind() != KindString {
			return Value{}, TypeErrorf("op returned %s, want string", v.Kind())
		}
		return v, nil
	case RetBuf:
		if v.Kind() != KindBuffer {
			return Value{}, TypeErrorf("op returned %s, want buffer", v.Kind())
		}
		b, err := v.AsBuffer().Bytes()
		if err != nil {
			return Value{}, err
		}
		// Gifted to the JS heap as an owned store.
		return Buffer(OwnedSliceNoCopy(b)), nil
	case RetExternal:
		if v.Kind() != KindExternal {
			return Value{}, TypeErrorf("op returned %s, want external", v.Kind())
		}
		return v, nil
	case RetResource:
		if v.Kind() != KindResource {
			return Value{}, TypeErrorf("op returned %s, want resource", v.Kind())
		}
		return v, nil
	case RetValue:
		return v, nil
	}
	return Value{}, TypeErrorf("unsupported return kind %d", kind)
}

func retErr(err *OpError) *OpError {
	return TypeErrorf("op returned wrong type: %s", err.Message)
}
