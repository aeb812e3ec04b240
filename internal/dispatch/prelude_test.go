package dispatch

import (
	"strings"
	"testing"

	"github.com/cryguy/opcall/internal/core"
)

func TestBuildBootstrapJS(t *testing.T) {
	exts := []core.Extension{
		{Name: "m", Ops: []core.OpDecl{
			{
				Name: "add",
				Args: []core.ArgSpec{{Kind: core.ArgI32}, {Kind: core.ArgI32}},
				Ret:  core.RetI32,
				Sync: func(sc *core.CallScope, args []core.Value) (core.Value, *core.OpError) {
					return core.Undefined(), nil
				},
			},
			{
				Name: "read",
				Args: []core.ArgSpec{{Kind: core.ArgResource}, {Kind: core.ArgBufBorrowed}},
				Ret:  core.RetString,
				Async: func(sc *core.CallScope, args []core.Value) core.AsyncResult {
					return core.Ready(core.String(""))
				},
			},
			{
				Name:     "hidden",
				Ret:      core.RetVoid,
				Disabled: true,
				Sync: func(sc *core.CallScope, args []core.Value) (core.Value, *core.OpError) {
					return core.Undefined(), nil
				},
			},
		}},
	}
	reg, err := core.BuildRegistry(exts)
	if err != nil {
		t.Fatalf("BuildRegistry: %v", err)
	}
	errs := core.NewErrorClassRegistry(map[string]string{"Busy": "BusyError"})

	js, err := BuildBootstrapJS(reg, errs)
	if err != nil {
		t.Fatalf("BuildBootstrapJS: %v", err)
	}

	// The injected table carries per-op dispatch metadata.
	if !strings.Contains(js, `"name":"add"`) || !strings.Contains(js, `"fast":true`) {
		t.Error("fast-eligible op missing from the table")
	}
	if !strings.Contains(js, `"name":"read"`) || !strings.Contains(js, `"args":["res","borrow"]`) {
		t.Error("async op arg kinds missing from the table")
	}
	if strings.Contains(js, "hidden") {
		t.Error("disabled op leaked into the prelude")
	}
	if !strings.Contains(js, `"Busy":"BusyError"`) {
		t.Error("error constructor map missing")
	}
	// Both placeholders must be substituted.
	if strings.Contains(js, "__OP_TABLE_JSON__") || strings.Contains(js, "__ERR_CTORS_JSON__") {
		t.Error("unsubstituted placeholder in the prelude")
	}
	// The reject hook accepts the structured-data argument EncodeSettlement
	// emits and hands it to the error factory.
	if !strings.Contains(js, "__opReject = function(pid, cls, ctor, message, data)") {
		t.Error("reject hook does not take structured data")
	}
	if !strings.Contains(js, "p.reject(makeErr(cls, ctor, message, data))") {
		t.Error("reject hook drops structured data")
	}
}

func TestArgKindNamesCoverAllKinds(t *testing.T) {
	kinds := []core.ArgKind{
		core.ArgI32, core.ArgU32, core.ArgF64, core.ArgBool,
		core.ArgI64Exact, core.ArgU64Exact, core.ArgI64Lossy, core.ArgU64Lossy,
		core.ArgString, core.ArgBufOwned, core.ArgBufBorrowed, core.ArgBufDetach,
		core.ArgBufAny, core.ArgExternal, core.ArgResource, core.ArgValue,
	}
	for _, k := range kinds {
		if argKindNames[k] == "" {
			t.Errorf("arg kind %d has no wire name", k)
		}
	}
}
