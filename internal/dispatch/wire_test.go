package dispatch

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cryguy/opcall/internal/core"
	"github.com/cryguy/opcall/internal/driver"
)

func TestCallSyncJSONEnvelopes(t *testing.T) {
	f := testFrontend(t, addExt())
	id, _ := f.Registry().Lookup("add")

	env, err := f.CallSyncJSON(int(id), `[2, 3]`)
	if err != nil {
		t.Fatalf("CallSyncJSON: %v", err)
	}
	if env != `{"value":5}` {
		t.Errorf("value envelope = %s", env)
	}

	env, err = f.CallSyncJSON(int(id), `[2]`)
	if err != nil {
		t.Fatalf("CallSyncJSON: %v", err)
	}
	var out struct {
		Err *wireError `json:"err"`
	}
	if jerr := json.Unmarshal([]byte(env), &out); jerr != nil || out.Err == nil {
		t.Fatalf("error envelope = %s", env)
	}
	if out.Err.Class != core.ClassTypeError || out.Err.Ctor != "TypeError" {
		t.Errorf("error envelope class/ctor = %s/%s", out.Err.Class, out.Err.Ctor)
	}

	// Malformed payloads become error envelopes, never Go errors.
	env, err = f.CallSyncJSON(int(id), `not json`)
	if err != nil || !strings.Contains(env, `"err"`) {
		t.Errorf("malformed payload = %s, %v", env, err)
	}
}

func TestCallAsyncJSONEnvelopes(t *testing.T) {
	ext := core.Extension{Name: "async", Ops: []core.OpDecl{
		{
			Name: "ready",
			Ret:  core.RetI32,
			Async: func(sc *core.CallScope, args []core.Value) core.AsyncResult {
				return core.Ready(core.Int32(9))
			},
		},
		{
			Name:   "queued",
			Ret:    core.RetVoid,
			Policy: core.PolicyDeferred,
			Async: func(sc *core.CallScope, args []core.Value) core.AsyncResult {
				return core.Ready(core.Undefined())
			},
		},
	}}
	f := testFrontend(t, ext)

	readyID, _ := f.Registry().Lookup("ready")
	env, err := f.CallAsyncJSON(int(readyID), `[]`)
	if err != nil || env != `{"value":9}` {
		t.Errorf("eager envelope = %s, %v", env, err)
	}

	queuedID, _ := f.Registry().Lookup("queued")
	env, err = f.CallAsyncJSON(int(queuedID), `[]`)
	if err != nil {
		t.Fatalf("CallAsyncJSON: %v", err)
	}
	var promise struct {
		Promise driver.PromiseID `json:"promise"`
	}
	if jerr := json.Unmarshal([]byte(env), &promise); jerr != nil || promise.Promise == 0 {
		t.Fatalf("promise envelope = %s", env)
	}

	res := f.Driver().Poll()
	if len(res) != 1 || res[0].Promise != promise.Promise {
		t.Fatalf("Poll = %+v", res)
	}
	if got := f.EncodeSettlement(res[0]); got != `__opResolve(1, "null")` {
		t.Errorf("settlement = %s", got)
	}
}

func TestCallFastF64ErrorSmuggling(t *testing.T) {
	ext := core.Extension{Name: "m", Ops: []core.OpDecl{{
		Name: "checked",
		Args: []core.ArgSpec{{Kind: core.ArgI32}},
		Ret:  core.RetI32,
		Sync: func(sc *core.CallScope, args []core.Value) (core.Value, *core.OpError) {
			if args[0].AsInt32() < 0 {
				return core.Value{}, core.Errorf(core.ClassRangeError, "negative input")
			}
			return args[0], nil
		},
	}}}
	f := testFrontend(t, ext)
	id, _ := f.Registry().Lookup("checked")

	out, err := f.CallFastF64(int(id), 7)
	if err != nil || out != 7 {
		t.Fatalf("CallFastF64 = %v, %v", out, err)
	}

	// An op failure travels as a Go error carrying the marked envelope.
	_, err = f.CallFastF64(int(id), -1)
	if err == nil {
		t.Fatal("op failure not reported")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, fastErrPrefix) {
		t.Fatalf("error message %q lacks the fast-path mark", msg)
	}
	var env struct {
		Err wireError `json:"err"`
	}
	if jerr := json.Unmarshal([]byte(strings.TrimPrefix(msg, fastErrPrefix)), &env); jerr != nil {
		t.Fatalf("unparseable smuggled envelope %q", msg)
	}
	if env.Err.Class != core.ClassRangeError || env.Err.Message != "negative input" {
		t.Errorf("smuggled envelope = %+v", env.Err)
	}

	// Arity mismatch reports the deoptimization marker instead.
	_, err = f.CallFastF64(int(id))
	if err == nil || !strings.Contains(err.Error(), `"notfast":true`) {
		t.Errorf("deoptimization error = %v", err)
	}
}

func TestEncodeSettlementReject(t *testing.T) {
	f := testFrontend(t)
	got := f.EncodeSettlement(driver.ScheduledResult{
		Promise: 4,
		Err:     core.Errorf("NoSuchClass", `so "quoted"`),
	})
	// Unmapped classes fail closed to the Error constructor; the class tag
	// still travels. Without structured data the last argument stays
	// undefined, matching the sync envelope's omitted field.
	want := `__opReject(4, "NoSuchClass", "Error", "so \"quoted\"", undefined)`
	if got != want {
		t.Errorf("EncodeSettlement = %s, want %s", got, want)
	}

	oerr := core.Errorf("Busy", "locked")
	oerr.Data = map[string]any{"rid": 3}
	got = f.EncodeSettlement(driver.ScheduledResult{Promise: 7, Err: oerr})
	// Structured data rides along as a JSON literal for makeErr to attach
	// as e.data.
	want = `__opReject(7, "Busy", "Error", "locked", {"rid":3})`
	if got != want {
		t.Errorf("EncodeSettlement = %s, want %s", got, want)
	}
}
