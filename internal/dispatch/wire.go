package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cryguy/opcall/internal/core"
	"github.com/cryguy/opcall/internal/driver"
)

// The binding-facing entry points speak wire JSON: an argument array in,
// an envelope out. Envelopes:
//
//	{"value": <wire>}                                 settled success
//	{"err": {"class","ctor","message","data"}}        settled failure
//	{"promise": <id>}                                 owned by the driver

// fastErrPrefix marks a fast-path op failure smuggled through the
// binding's thrown-error message; the prelude unwraps it and rethrows
// with the proper constructor.
const fastErrPrefix = "\x1fop:"

// CallSyncJSON dispatches a slow-path synchronous call.
func (f *Frontend) CallSyncJSON(id int, argsJSON string) (string, error) {
	args, derr := core.DecodeArgsJSON(argsJSON, f.cfg.MaxOpArgs)
	if derr != nil {
		return f.errEnvelope(derr), nil
	}
	v, oerr := f.Invoke(core.OpID(id), args)
	if oerr != nil {
		return f.errEnvelope(oerr), nil
	}
	return f.valueEnvelope(v)
}

// CallAsyncJSON dispatches an asynchronous call.
func (f *Frontend) CallAsyncJSON(id int, argsJSON string) (string, error) {
	args, derr := core.DecodeArgsJSON(argsJSON, f.cfg.MaxOpArgs)
	if derr != nil {
		return f.errEnvelope(derr), nil
	}
	sub := f.InvokeAsync(core.OpID(id), args)
	if sub.Settled {
		if sub.Err != nil {
			return f.errEnvelope(sub.Err), nil
		}
		return f.valueEnvelope(sub.Value)
	}
	return fmt.Sprintf(`{"promise":%d}`, sub.Promise), nil
}

// CallFastF64 dispatches a fast-path call from numeric slots. An op
// failure is reported as a Go error carrying the envelope in its message;
// the prelude unwraps it. ErrNotFast reaches the caller as-is.
func (f *Frontend) CallFastF64(id int, args ...float64) (float64, error) {
	slots := make([]FastSlot, len(args))
	for i, a := range args {
		slots[i] = F64Slot(a)
	}
	out, oerr := f.InvokeFast(core.OpID(id), slots)
	if oerr == ErrNotFast {
		return 0, errNotFastGo
	}
	if oerr != nil {
		return 0, errors.New(fastErrPrefix + f.errEnvelope(oerr))
	}
	return slotF64(out), nil
}

var errNotFastGo = errors.New(fastErrPrefix + `{"err":{"class":"TypeError","ctor":"TypeError","message":"fast path unavailable","notfast":true}}`)

func slotF64(s FastSlot) float64 {
	return f64FromSlot(s)
}

// SetRef flips a pending op's liveness contribution from JS.
func (f *Frontend) SetRef(pid uint64, on bool) {
	if on {
		f.drv.Ref(driver.PromiseID(pid))
	} else {
		f.drv.Unref(driver.PromiseID(pid))
	}
}

// EncodeSettlement renders one driver result for __opResolve/__opReject.
func (f *Frontend) EncodeSettlement(r driver.ScheduledResult) (js string) {
	if r.Err != nil {
		return f.rejectCall(r.Promise, r.Err)
	}
	payload, err := core.EncodeValueJSON(r.Value, f.exts)
	if err != nil {
		return f.rejectCall(r.Promise, err)
	}
	return fmt.Sprintf("__opResolve(%d, %s)", r.Promise, jsString(payload))
}

// rejectCall renders a __opReject call. Data, when present, is inlined as
// a JSON literal; json.Marshal escapes U+2028/U+2029, so the literal is
// also a valid JS expression.
func (f *Frontend) rejectCall(pid driver.PromiseID, oerr *core.OpError) string {
	e := f.wireError(oerr)
	data := "undefined"
	if len(e.Data) > 0 {
		data = string(e.Data)
	}
	return fmt.Sprintf("__opReject(%d, %s, %s, %s, %s)",
		pid, jsString(e.Class), jsString(e.Ctor), jsString(e.Message), data)
}

type wireError struct {
	Class   string          `json:"class"`
	Ctor    string          `json:"ctor"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (f *Frontend) wireError(e *core.OpError) wireError {
	w := wireError{
		Class:   e.Class,
		Ctor:    f.errs.Resolve(e.Class),
		Message: e.Message,
	}
	if e.Data != nil {
		if raw, err := json.Marshal(e.Data); err == nil {
			w.Data = raw
		}
	}
	return w
}

func (f *Frontend) errEnvelope(e *core.OpError) string {
	raw, err := json.Marshal(struct {
		Err wireError `json:"err"`
	}{f.wireError(e)})
	if err != nil {
		return `{"err":{"class":"Error","ctor":"Error","message":"unencodable error"}}`
	}
	return string(raw)
}

func (f *Frontend) valueEnvelope(v core.Value) (string, error) {
	payload, err := core.EncodeValueJSON(v, f.exts)
	if err != nil {
		return f.errEnvelope(err), nil
	}
	return `{"value":` + payload + `}`, nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
