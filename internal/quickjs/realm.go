//go:build !v8

package quickjs

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cryguy/opcall/internal/core"
	"github.com/cryguy/opcall/internal/dispatch"
	"github.com/cryguy/opcall/internal/driver"
	"github.com/cryguy/opcall/internal/eventloop"
	"modernc.org/quickjs"
)

// timersJS is the JavaScript polyfill for setTimeout/setInterval/clearTimeout/
// clearInterval. It stores callbacks in globalThis.__timerCallbacks and
// delegates scheduling to Go via __timerRegister/__timerClear.
const timersJS = `
(function() {
	globalThis.__timerCallbacks = {};
	globalThis.setTimeout = function(fn, delay) {
		if (arguments.length === 0 || typeof fn !== 'function') {
			return 0;
		}
		var args = [];
		for (var i = 2; i < arguments.length; i++) args.push(arguments[i]);
		var id = __timerRegister(delay || 0, false);
		globalThis.__timerCallbacks[id] = { fn: fn, args: args };
		return id;
	};
	globalThis.setInterval = function(fn, interval) {
		if (arguments.length === 0 || typeof fn !== 'function') {
			return 0;
		}
		var args = [];
		for (var i = 2; i < arguments.length; i++) args.push(arguments[i]);
		var id = __timerRegister(interval || 0, true);
		globalThis.__timerCallbacks[id] = { fn: fn, args: args, interval: true };
		return id;
	};
	globalThis.clearTimeout = globalThis.clearInterval = function(id) {
		if (arguments.length === 0 || typeof id !== 'number') {
			return;
		}
		__timerClear(id);
		delete globalThis.__timerCallbacks[id];
	};
})();
`

// Realm is a QuickJS VM wired to an op registry, driver, and event loop.
// It implements core.EngineBackend. All methods must be called from a
// single goroutine; only op futures run elsewhere.
type Realm struct {
	vm   *quickjs.VM
	rt   *qjsRuntime
	fe   *dispatch.Frontend
	loop *eventloop.EventLoop
	cfg  core.RuntimeConfig
}

var _ core.EngineBackend = (*Realm)(nil)

// NewRealm creates a QuickJS VM, builds the op registry from the given
// extensions, and installs the dispatch surface plus each extension's
// glue script.
func NewRealm(ctx context.Context, cfg core.RuntimeConfig, exts []core.Extension) (*Realm, error) {
	cfg = cfg.WithDefaults()

	reg, err := core.BuildRegistry(exts)
	if err != nil {
		return nil, err
	}
	classes := map[string]string{}
	for _, e := range exts {
		for cls, ctor := range e.ErrorClasses {
			classes[cls] = ctor
		}
	}
	errs := core.NewErrorClassRegistry(classes)

	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}

	rt := newQJSRuntime(vm)
	drv := driver.New(ctx, cfg.CompletionBuffer)
	fe := dispatch.New(reg, drv, core.NewResourceTable(), errs, cfg)
	loop := eventloop.New()

	r := &Realm{vm: vm, rt: rt, fe: fe, loop: loop, cfg: cfg}
	if err := r.install(exts); err != nil {
		vm.Close()
		drv.Teardown()
		return nil, err
	}
	return r, nil
}

// install registers the host entry points and evaluates the dispatch
// prelude followed by each extension's glue script.
func (r *Realm) install(exts []core.Extension) error {
	fe := r.fe
	funcs := map[string]any{
		"__opcall_sync":  fe.CallSyncJSON,
		"__opcall_async": fe.CallAsyncJSON,
		"__opcall_fast0": func(id int) (float64, error) {
			return fe.CallFastF64(id)
		},
		"__opcall_fast1": func(id int, a float64) (float64, error) {
			return fe.CallFastF64(id, a)
		},
		"__opcall_fast2": func(id int, a, b float64) (float64, error) {
			return fe.CallFastF64(id, a, b)
		},
		"__opcall_fast3": func(id int, a, b, c float64) (float64, error) {
			return fe.CallFastF64(id, a, b, c)
		},
		"__opref": func(pid float64, on bool) {
			fe.SetRef(uint64(pid), on)
		},
		"__opdropres": func(rid int) (bool, error) {
			err := fe.Resources().Close(core.ResourceID(rid))
			return err == nil, err
		},
		"__opdetach": func() (string, error) {
			data, err := r.rt.DetachAndRead("__op_detach_buf")
			if err != nil {
				return "", err
			}
			return base64.StdEncoding.EncodeToString(data), nil
		},
		"__timerRegister": func(delayMs int, isInterval bool) int {
			return r.loop.RegisterTimer(time.Duration(delayMs)*time.Millisecond, isInterval)
		},
		"__timerClear": func(id int) {
			r.loop.ClearTimer(id)
		},
	}
	for name, fn := range funcs {
		if err := r.rt.RegisterFunc(name, fn); err != nil {
			return fmt.Errorf("registering %s: %w", name, err)
		}
	}

	if err := r.Eval(timersJS); err != nil {
		return fmt.Errorf("installing timers: %w", err)
	}
	boot, err := dispatch.BuildBootstrapJS(fe.Registry(), fe.ErrorClasses())
	if err != nil {
		return err
	}
	if err := r.Eval(boot); err != nil {
		return fmt.Errorf("installing dispatch prelude: %w", err)
	}
	for _, e := range exts {
		if e.GlueJS == "" {
			continue
		}
		if err := r.Eval(e.GlueJS); err != nil {
			return fmt.Errorf("installing %s glue: %w", e.Name, err)
		}
	}
	return nil
}

// Frontend exposes the dispatch frontend for host-side op invocation.
func (r *Realm) Frontend() *dispatch.Frontend { return r.fe }

func (r *Realm) Eval(js string) error { return r.rt.Eval(js) }

func (r *Realm) EvalString(js string) (string, error) { return r.rt.EvalString(js) }

func (r *Realm) EvalBool(js string) (bool, error) { return r.rt.EvalBool(js) }

func (r *Realm) EvalInt(js string) (int, error) { return r.rt.EvalInt(js) }

func (r *Realm) RegisterFunc(name string, fn any) error { return r.rt.RegisterFunc(name, fn) }

func (r *Realm) RunMicrotasks() { r.rt.RunMicrotasks() }

// PollOnce delivers any settlements that are ready right now. Returns
// true if anything was delivered.
func (r *Realm) PollOnce() bool {
	return r.loop.PumpOps(r.rt, r.fe)
}

// Drain pumps settlements and timers until quiescent or the deadline.
func (r *Realm) Drain(deadline time.Time) {
	r.loop.Drain(r.rt, r.fe, deadline)
}

// Quiescent reports whether no referenced async work remains.
func (r *Realm) Quiescent() bool {
	return r.fe.Driver().Quiescent() && !r.loop.HasPending()
}

// Teardown cancels in-flight ops, closes live resources, and frees the VM.
func (r *Realm) Teardown() {
	r.fe.Driver().Teardown()
	r.fe.Resources().CloseAll()
	r.fe.Externals().ReleaseAll()
	r.loop.Reset()
	r.vm.Close()
}
