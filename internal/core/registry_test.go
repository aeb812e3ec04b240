package core

import (
	"strings"
	"testing"
)

func syncNop(sc *CallScope, args []Value) (Value, *OpError) { return Undefined(), nil }

func ext(name string, ops ...OpDecl) Extension {
	return Extension{Name: name, Ops: ops}
}

func TestRegistryAssignsDenseIDs(t *testing.T) {
	reg, err := BuildRegistry([]Extension{
		ext("a",
			OpDecl{Name: "one", Sync: syncNop},
			OpDecl{Name: "two", Sync: syncNop},
		),
		ext("b", OpDecl{Name: "three", Sync: syncNop}),
	})
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	if reg.Len() != 3 {
		t.Fatalf("Len = %d, want 3", reg.Len())
	}
	for i, name := range []string{"one", "two", "three"} {
		id, ok := reg.Lookup(name)
		if !ok || int(id) != i {
			t.Errorf("Lookup(%q) = %d, %v; want %d", name, id, ok, i)
		}
		if op := reg.ByID(id); op == nil || op.Name != name {
			t.Errorf("ByID(%d) = %v", id, op)
		}
	}
	if reg.ByID(99) != nil {
		t.Error("out-of-range id resolved")
	}
}

func TestDuplicateDetectionIsOrderIndependent(t *testing.T) {
	a := ext("alpha", OpDecl{Name: "clash", Sync: syncNop})
	b := ext("beta", OpDecl{Name: "clash", Sync: syncNop})

	_, err1 := BuildRegistry([]Extension{a, b})
	_, err2 := BuildRegistry([]Extension{b, a})
	if err1 == nil || err2 == nil {
		t.Fatal("duplicate op name accepted")
	}
	// The failure names the op and every declaring extension, and reads
	// the same regardless of registration order.
	for _, err := range []error{err1, err2} {
		msg := err.Error()
		if !strings.Contains(msg, "clash") || !strings.Contains(msg, "alpha") || !strings.Contains(msg, "beta") {
			t.Errorf("duplicate error %q missing op or extension names", msg)
		}
	}
	if err1.Error() != err2.Error() {
		t.Errorf("duplicate error depends on order:\n  %q\n  %q", err1, err2)
	}
}

func TestDisabledOpsAreAbsent(t *testing.T) {
	reg, err := BuildRegistry([]Extension{
		ext("a",
			OpDecl{Name: "kept", Sync: syncNop},
			OpDecl{Name: "gone", Sync: syncNop, Disabled: true},
		),
	})
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
	if _, ok := reg.Lookup("gone"); ok {
		t.Error("disabled op is visible")
	}
}

func TestDisabledDuplicateStillRejected(t *testing.T) {
	// Disabled ops keep their name reserved; two extensions may not both
	// claim it even when one is disabled.
	_, err := BuildRegistry([]Extension{
		ext("a", OpDecl{Name: "clash", Sync: syncNop, Disabled: true}),
		ext("b", OpDecl{Name: "clash", Sync: syncNop}),
	})
	if err == nil {
		t.Error("duplicate involving a disabled op accepted")
	}
}

func TestExactlyOneImplementation(t *testing.T) {
	if _, err := BuildRegistry([]Extension{ext("a", OpDecl{Name: "none"})}); err == nil {
		t.Error("op with neither Sync nor Async accepted")
	}
	both := OpDecl{Name: "both", Sync: syncNop, Async: func(sc *CallScope, args []Value) AsyncResult {
		return Ready(Undefined())
	}}
	if _, err := BuildRegistry([]Extension{ext("a", both)}); err == nil {
		t.Error("op with both Sync and Async accepted")
	}
}

func TestFastCallEligibility(t *testing.T) {
	scalarArgs := []ArgSpec{{Kind: ArgI32}, {Kind: ArgF64}, {Kind: ArgU32}}
	cases := []struct {
		name string
		decl OpDecl
		want bool
	}{
		{"scalar sync", OpDecl{Name: "x", Args: scalarArgs, Ret: RetF64, Sync: syncNop}, true},
		{"zero arity", OpDecl{Name: "x", Ret: RetVoid, Sync: syncNop}, true},
		{"lossy 64-bit is scalar", OpDecl{Name: "x", Args: []ArgSpec{{Kind: ArgI64Lossy}}, Ret: RetU64Lossy, Sync: syncNop}, true},
		{"four args", OpDecl{Name: "x", Args: append(scalarArgs, ArgSpec{Kind: ArgI32}), Ret: RetF64, Sync: syncNop}, false},
		{"string arg", OpDecl{Name: "x", Args: []ArgSpec{{Kind: ArgString}}, Ret: RetF64, Sync: syncNop}, false},
		// A numeric slot cannot distinguish a boolean from a number, so
		// bool arguments disqualify; a bool return does not.
		{"bool arg", OpDecl{Name: "x", Args: []ArgSpec{{Kind: ArgBool}}, Ret: RetF64, Sync: syncNop}, false},
		{"bool ret", OpDecl{Name: "x", Args: []ArgSpec{{Kind: ArgI32}}, Ret: RetBool, Sync: syncNop}, true},
		{"exact 64-bit arg", OpDecl{Name: "x", Args: []ArgSpec{{Kind: ArgI64Exact}}, Ret: RetF64, Sync: syncNop}, false},
		{"nullable arg", OpDecl{Name: "x", Args: []ArgSpec{{Kind: ArgI32, AllowNull: true}}, Ret: RetF64, Sync: syncNop}, false},
		{"buffer ret", OpDecl{Name: "x", Args: []ArgSpec{{Kind: ArgI32}}, Ret: RetBuf, Sync: syncNop}, false},
		{"scope access", OpDecl{Name: "x", Args: []ArgSpec{{Kind: ArgI32}}, Ret: RetF64, Sync: syncNop, ScopeAccess: true}, false},
		{"async", OpDecl{Name: "x", Args: []ArgSpec{{Kind: ArgI32}}, Ret: RetF64, Async: func(sc *CallScope, args []Value) AsyncResult {
			return Ready(Undefined())
		}}, false},
	}
	for _, c := range cases {
		reg, err := BuildRegistry([]Extension{ext("t", c.decl)})
		if err != nil {
			t.Fatalf("%s: BuildRegistry: %v", c.name, err)
		}
		if got := reg.ByID(0).FastCallable; got != c.want {
			t.Errorf("%s: FastCallable = %v, want %v", c.name, got, c.want)
		}
	}
}
