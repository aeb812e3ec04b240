package opcall

import (
	"context"
	"time"

	"github.com/cryguy/opcall/internal/core"
	"github.com/cryguy/opcall/internal/dispatch"
)

// backend is what an engine binding provides: the JSRuntime surface plus
// loop control and the dispatch frontend.
type backend interface {
	core.EngineBackend
	Frontend() *dispatch.Frontend
}

// Runtime is a single JS realm with a set of extensions installed. All
// methods except op futures must be called from one goroutine; the
// underlying engines are single-threaded.
type Runtime struct {
	be  backend
	cfg RuntimeConfig
}

// New creates a runtime with the configured engine backend, builds the
// op registry from the given extensions, and installs the dispatch
// surface and extension glue scripts. The context bounds every async op
// the runtime ever starts; canceling it cancels in-flight ops.
func New(ctx context.Context, cfg RuntimeConfig, exts ...Extension) (*Runtime, error) {
	be, err := newBackend(ctx, cfg, exts)
	if err != nil {
		return nil, err
	}
	return &Runtime{be: be, cfg: cfg.WithDefaults()}, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *Runtime) Eval(js string) error { return r.be.Eval(js) }

// EvalString evaluates JavaScript and returns the result as a string.
func (r *Runtime) EvalString(js string) (string, error) { return r.be.EvalString(js) }

// EvalBool evaluates JavaScript and returns the result as a bool.
func (r *Runtime) EvalBool(js string) (bool, error) { return r.be.EvalBool(js) }

// EvalInt evaluates JavaScript and returns the result as an int.
func (r *Runtime) EvalInt(js string) (int, error) { return r.be.EvalInt(js) }

// RegisterFunc registers a Go function as a global JS function, in
// addition to whatever ops the extensions declared.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	return r.be.RegisterFunc(name, fn)
}

// RunMicrotasks pumps the engine's microtask queue.
func (r *Runtime) RunMicrotasks() { r.be.RunMicrotasks() }

// PollOnce delivers async op settlements that are ready right now,
// running a microtask checkpoint after each. Returns true if anything
// was delivered.
func (r *Runtime) PollOnce() bool { return r.be.PollOnce() }

// Drain pumps settlements and timers until no referenced work remains
// or the timeout elapses.
func (r *Runtime) Drain(timeout time.Duration) {
	r.be.Drain(time.Now().Add(timeout))
}

// Quiescent reports whether no referenced async work or timers remain.
func (r *Runtime) Quiescent() bool { return r.be.Quiescent() }

// Invoke calls a registered op from Go by name, through the same
// validation path JS calls take.
func (r *Runtime) Invoke(name string, args ...Value) (Value, error) {
	fe := r.be.Frontend()
	id, ok := fe.Registry().Lookup(name)
	if !ok {
		return Undefined(), core.TypeErrorf("unknown op %q", name)
	}
	v, oerr := fe.Invoke(id, args)
	if oerr != nil {
		return Undefined(), oerr
	}
	return v, nil
}

// Resources exposes the runtime's resource table, for host code that
// needs to pre-register resources before running scripts.
func (r *Runtime) Resources() *ResourceTable { return r.be.Frontend().Resources() }

// Close cancels in-flight ops, closes live resources, and frees the
// engine realm. The runtime must not be used afterwards.
func (r *Runtime) Close() { r.be.Teardown() }
