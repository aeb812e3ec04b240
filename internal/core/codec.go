package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"
)

// Wire forms exchanged with the JS dispatch prelude. Plain JSON scalars
// map directly; everything without a JSON shape rides a one-key marker
// object:
//
//	{"$big":"123"}                                  bigint
//	{"$bytes":"<base64>"}                           buffer (owned copy)
//	{"$detach":"<base64>"}                          buffer moved out of the JS heap
//	{"$view":{"bytes":…,"offset":n,"length":n}}     any-buffer view, byte-addressed
//	{"$ext":n}                                      external pointer id (0 = null)
//	{"$rid":n}                                      host resource id
//
// Any other object or array is structured data and passes through as raw
// JSON.

// DecodeArgsJSON parses a JS-side argument array into engine values.
func DecodeArgsJSON(s string, maxArgs int) ([]Value, *OpError) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, TypeErrorf("malformed argument payload: %v", err)
	}
	if maxArgs > 0 && len(raw) > maxArgs {
		return nil, TypeErrorf("too many arguments: %d > %d", len(raw), maxArgs)
	}
	args := make([]Value, len(raw))
	for i, r := range raw {
		v, err := DecodeWireValue(r)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// DecodeWireValue converts one decoded JSON element (UseNumber form) into
// an engine value.
func DecodeWireValue(raw any) (Value, *OpError) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return decodeNumber(t)
	case map[string]any:
		if v, ok, err := decodeMarker(t); ok || err != nil {
			return v, err
		}
		return reencode(t)
	case []any:
		return reencode(t)
	}
	return Value{}, TypeErrorf("unsupported wire value %T", raw)
}

// reencode turns a decoded structured element (object or array) back into
// wire JSON carried by a KindObject value. UseNumber decoding keeps the
// numeric literals intact through the round trip.
func reencode(raw any) (Value, *OpError) {
	b, err := json.Marshal(raw)
	if err != nil {
		return Value{}, TypeErrorf("re-encoding structured value: %v", err)
	}
	return Object(string(b)), nil
}

func decodeNumber(n json.Number) (Value, *OpError) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			if int64(int32(i)) == i {
				return Int32(int32(i)), nil
			}
			return Float64(float64(i)), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, TypeErrorf("malformed number %q", s)
	}
	return Number(f), nil
}

func decodeMarker(m map[string]any) (Value, bool, *OpError) {
	if len(m) != 1 {
		return Value{}, false, nil
	}
	for key, payload := range m {
		switch key {
		case "$big":
			s, ok := payload.(string)
			if !ok {
				return Value{}, true, TypeErrorf("malformed bigint payload")
			}
			n, ok := new(big.Int).SetString(s, 10)
			if !ok {
				return Value{}, true, TypeErrorf("malformed bigint %q", s)
			}
			return BigInt(n), true, nil
		case "$bytes":
			b, err := markerBytes(payload)
			if err != nil {
				return Value{}, true, err
			}
			return Buffer(OwnedSliceNoCopy(b)), true, nil
		case "$detach":
			b, err := markerBytes(payload)
			if err != nil {
				return Value{}, true, err
			}
			return Buffer(DetachableSlice(b)), true, nil
		case "$view":
			v, err := decodeView(payload)
			return v, true, err
		case "$ext":
			id, err := markerID(payload)
			if err != nil {
				return Value{}, true, err
			}
			// Resolution to a handle happens in the frontend, which owns
			// the external table; carry the id as a resource-like scalar.
			return Value{kind: KindExternal, ext: nil, num: float64(id)}, true, nil
		case "$rid":
			id, err := markerID(payload)
			if err != nil {
				return Value{}, true, err
			}
			return Resource(ResourceID(id)), true, nil
		}
		// Single-key object without a marker: structured data.
		return Value{}, false, nil
	}
	return Value{}, false, nil
}

func decodeView(payload any) (Value, *OpError) {
	m, ok := payload.(map[string]any)
	if !ok {
		return Value{}, TypeErrorf("malformed view payload")
	}
	backing, err := markerBytes(m["bytes"])
	if err != nil {
		return Value{}, err
	}
	off, err := viewInt(m["offset"])
	if err != nil {
		return Value{}, err
	}
	length, err := viewInt(m["length"])
	if err != nil {
		return Value{}, err
	}
	view, err := NormalizeView(backing, off, length)
	if err != nil {
		return Value{}, err
	}
	return Buffer(OwnedSliceNoCopy(view)), nil
}

func viewInt(v any) (int, *OpError) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, TypeErrorf("malformed view bounds")
	}
	i, err := n.Int64()
	if err != nil {
		return 0, TypeErrorf("malformed view bounds: %v", err)
	}
	return int(i), nil
}

func markerBytes(payload any) ([]byte, *OpError) {
	s, ok := payload.(string)
	if !ok {
		return nil, TypeErrorf("malformed buffer payload")
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, TypeErrorf("malformed buffer payload: %v", err)
	}
	return b, nil
}

func markerID(payload any) (uint32, *OpError) {
	n, ok := payload.(json.Number)
	if !ok {
		return 0, TypeErrorf("malformed id payload")
	}
	i, err := n.Int64()
	if err != nil || i < 0 {
		return 0, TypeErrorf("malformed id payload")
	}
	return uint32(i), nil
}

// WireExternalID extracts the raw external id carried by a decoded
// external wire value whose handle has not been resolved yet.
func WireExternalID(v Value) (uint32, bool) {
	if v.Kind() != KindExternal || v.ext != nil {
		return 0, false
	}
	return uint32(v.num), true
}

// ResolveExternal replaces a wire external id with its handle.
func ResolveExternal(v Value, h *ExternalHandle) Value {
	v.ext = h
	v.num = 0
	return v
}

// EncodeValueJSON renders an outgoing engine value as wire JSON. exts
// assigns ids to external handles crossing to JS; it may be nil when the
// value cannot contain externals.
func EncodeValueJSON(v Value, exts *ExternalTable) (string, *OpError) {
	var buf bytes.Buffer
	if err := encodeWire(&buf, v, exts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeWire(buf *bytes.Buffer, v Value, exts *ExternalTable) *OpError {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	switch v.Kind() {
	case KindUndefined, KindNull:
		buf.WriteString("null")
		return nil
	case KindBool:
		if v.AsBool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case KindInt32, KindUint32, KindFloat64:
		if err := enc.Encode(v.AsFloat64()); err != nil {
			return TypeErrorf("encoding number: %v", err)
		}
		trimNewline(buf)
		return nil
	case KindBigInt:
		buf.WriteString(`{"$big":"`)
		buf.WriteString(v.AsBigInt().String())
		buf.WriteString(`"}`)
		return nil
	case KindString:
		if encodePlainJSONString(buf, v.AsString()) {
			return nil
		}
		if err := enc.Encode(v.AsString()); err != nil {
			return TypeErrorf("encoding string: %v", err)
		}
		trimNewline(buf)
		return nil
	case KindBuffer:
		b, err := v.AsBuffer().Bytes()
		if err != nil {
			return err
		}
		buf.WriteString(`{"$bytes":"`)
		buf.WriteString(base64.StdEncoding.EncodeToString(b))
		buf.WriteString(`"}`)
		return nil
	case KindExternal:
		var id uint32
		if h := v.AsExternal(); !h.IsNull() {
			if exts == nil {
				return TypeErrorf("external pointer not representable here")
			}
			id = exts.Add(h)
		}
		if err := enc.Encode(map[string]uint32{"$ext": id}); err != nil {
			return TypeErrorf("encoding external: %v", err)
		}
		trimNewline(buf)
		return nil
	case KindResource:
		if err := enc.Encode(map[string]ResourceID{"$rid": v.AsResource()}); err != nil {
			return TypeErrorf("encoding resource: %v", err)
		}
		trimNewline(buf)
		return nil
	case KindObject:
		raw := v.AsString()
		if !json.Valid([]byte(raw)) {
			return TypeErrorf("structured value is not valid JSON")
		}
		buf.WriteString(raw)
		return nil
	}
	return TypeErrorf("unsupported value kind %s", v.Kind())
}

// encodePlainJSONString quotes s directly when its single-byte encoding is
// printable ASCII with nothing to escape, which covers most op names,
// resource keys, and short payloads. Returns false when the string needs
// the full encoder.
func encodePlainJSONString(buf *bytes.Buffer, s string) bool {
	scratch := getScratch(0)
	defer putScratch(scratch)
	b, single := EncodeString(s, *scratch)
	if !single || !plainASCII(b) {
		return false
	}
	buf.WriteByte('"')
	buf.Write(b)
	buf.WriteByte('"')
	return true
}

func plainASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return false
		}
	}
	return true
}

func trimNewline(buf *bytes.Buffer) {
	b := buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == '\n' {
		buf.Truncate(len(b) - 1)
	}
}
