//go:build !v8

package quickjs

import (
	"encoding/json"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/cryguy/opcall/internal/core"
	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// qjsRuntime implements core.JSRuntime for the QuickJS engine.
type qjsRuntime struct {
	vm  *quickjs.VM
	tls *libc.TLS // cached from VM internals for direct C API access
	ctx uintptr   // cached JSContext pointer for direct C API access

	// useFallback is set when direct C API extraction fails (e.g. if
	// modernc.org/quickjs changes its unexported struct layout). The
	// fallback paths go through JS instead of the C API.
	useFallback bool
}

var _ core.JSRuntime = (*qjsRuntime)(nil)
var _ core.BufferDetacher = (*qjsRuntime)(nil)

func newQJSRuntime(vm *quickjs.VM) *qjsRuntime {
	r := &qjsRuntime{vm: vm}
	if err := r.tryExtractVMInternals(); err != nil {
		r.useFallback = true
		return r
	}
	// Smoke-test: a trivial C API call to verify the pointers are valid.
	glob := lib.XJS_GetGlobalObject(r.tls, r.ctx)
	lib.XFreeValue(r.tls, r.ctx, glob)
	return r
}

// Eval evaluates JavaScript and discards the result.
func (r *qjsRuntime) Eval(js string) error {
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *qjsRuntime) EvalString(js string) (string, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (r *qjsRuntime) EvalBool(js string) (bool, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", result)
	}
	return b, nil
}

// EvalInt evaluates JavaScript and returns the result as a Go int.
func (r *qjsRuntime) EvalInt(js string) (int, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected int, got %T", result)
	}
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Multi-value Go returns (T, error) are automatically unwrapped: on success
// returns T, on error throws a TypeError. This is necessary because the
// QuickJS Go wrapper returns multi-value results as JS arrays.
func (r *qjsRuntime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}
	wrapJS := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new TypeError("calling %s: " + r[1]);
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, name, rawName)
	return r.Eval(wrapJS)
}

// RunMicrotasks pumps the QuickJS microtask queue.
func (r *qjsRuntime) RunMicrotasks() {
	executePendingJobs(r.vm)
}

// VM returns the underlying QuickJS VM for engine-specific operations.
func (r *qjsRuntime) VM() *quickjs.VM {
	return r.vm
}

// tryExtractVMInternals uses reflect+unsafe to cache the VM's tls and ctx.
func (r *qjsRuntime) tryExtractVMInternals() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic extracting VM internals: %v", p)
		}
	}()

	vmType := reflect.TypeOf(r.vm).Elem()
	vmPtr := uintptr(unsafe.Pointer(r.vm))

	// cContext is the first field of VM (offset 0).
	r.ctx = *(*uintptr)(unsafe.Pointer(vmPtr))
	if r.ctx == 0 {
		return fmt.Errorf("JSContext is nil")
	}

	// Get runtime pointer via its reflected field offset.
	rtField, ok := vmType.FieldByName("runtime")
	if !ok {
		return fmt.Errorf("quickjs.VM missing 'runtime' field")
	}
	rtPtr := *(*uintptr)(unsafe.Pointer(vmPtr + rtField.Offset))
	if rtPtr == 0 {
		return fmt.Errorf("runtime pointer is nil")
	}

	// tls is the second field in runtime (after cRuntime uintptr).
	r.tls = *(**libc.TLS)(unsafe.Pointer(rtPtr + unsafe.Sizeof(uintptr(0))))
	if r.tls == nil {
		return fmt.Errorf("TLS is nil")
	}

	return nil
}

// DetachAndRead copies out the contents of the ArrayBuffer stored at the
// given global variable name and then detaches it in-engine, so JS sees
// byteLength 0 afterwards. Uses the QuickJS C API (JS_GetArrayBuffer +
// JS_DetachArrayBuffer) when the internal pointers could be extracted.
func (r *qjsRuntime) DetachAndRead(globalName string) ([]byte, error) {
	if r.useFallback {
		return r.detachFallback(globalName)
	}

	cName, err := libc.CString(globalName)
	if err != nil {
		return nil, fmt.Errorf("allocating property name: %w", err)
	}

	glob := lib.XJS_GetGlobalObject(r.tls, r.ctx)
	jsVal := lib.XJS_GetPropertyStr(r.tls, r.ctx, glob, cName)
	lib.XFreeValue(r.tls, r.ctx, glob)
	libc.Xfree(r.tls, cName)

	var size lib.Tsize_t
	dataPtr := lib.XJS_GetArrayBuffer(r.tls, r.ctx, uintptr(unsafe.Pointer(&size)), jsVal)
	if dataPtr == 0 {
		lib.XFreeValue(r.tls, r.ctx, jsVal)
		return nil, fmt.Errorf("%s is not an ArrayBuffer", globalName)
	}

	// Copy out, then detach. Detaching frees the backing store and flips
	// the buffer's byteLength to 0 for every view over it.
	out := make([]byte, size)
	if size > 0 {
		copy(out, unsafe.Slice((*byte)(unsafe.Pointer(dataPtr)), size))
	}
	lib.XJS_DetachArrayBuffer(r.tls, r.ctx, jsVal)
	lib.XFreeValue(r.tls, r.ctx, jsVal)

	return out, nil
}

// detachFallback reads the buffer contents through JSON. It cannot truly
// detach without the C API, so it shrinks what it can by dropping the
// global reference. Engines whose ArrayBuffer.prototype.transfer exists
// never reach this path.
func (r *qjsRuntime) detachFallback(globalName string) ([]byte, error) {
	s, err := r.EvalString(fmt.Sprintf(`(function() {
		var b = globalThis[%q];
		delete globalThis[%q];
		if (!(b instanceof ArrayBuffer)) return "";
		return JSON.stringify(Array.from(new Uint8Array(b)));
	})()`, globalName, globalName))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", globalName, err)
	}
	if s == "" {
		return nil, fmt.Errorf("%s is not an ArrayBuffer", globalName)
	}
	var nums []int
	if err := json.Unmarshal([]byte(s), &nums); err != nil {
		return nil, fmt.Errorf("decoding %s contents: %w", globalName, err)
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		out[i] = byte(n)
	}
	return out, nil
}
