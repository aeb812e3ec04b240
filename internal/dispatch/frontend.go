// Package dispatch is the callable surface reachable from JS: it routes
// each invocation through the fast or slow call path, marshals arguments
// and returns, and hands async submissions to the op driver.
package dispatch

import (
	"math"

	"github.com/cryguy/opcall/internal/core"
	"github.com/cryguy/opcall/internal/driver"
)

// FastSlot is a raw argument slot on the fast call path: the bit pattern
// of a double, or a widened 32-bit integer, with no boxing and no scope.
type FastSlot uint64

// F64Slot packs a double into a raw slot.
func F64Slot(f float64) FastSlot { return FastSlot(math.Float64bits(f)) }

// I32Slot packs a 32-bit integer into a raw slot.
func I32Slot(n int32) FastSlot { return FastSlot(math.Float64bits(float64(n))) }

func f64FromSlot(s FastSlot) float64 { return math.Float64frombits(uint64(s)) }

// fastStub is the generated per-op stub: raw slots in, raw slot out,
// no intermediate allocation.
type fastStub func(slots []FastSlot) (FastSlot, *core.OpError)

// Frontend routes op calls for one realm.
type Frontend struct {
	reg  *core.Registry
	drv  *driver.Driver
	res  *core.ResourceTable
	exts *core.ExternalTable
	errs *core.ErrorClassRegistry
	cfg  core.RuntimeConfig
	fast []fastStub // indexed by OpID; nil where not fast-callable
}

// New builds the frontend and generates fast stubs for every eligible op.
func New(reg *core.Registry, drv *driver.Driver, res *core.ResourceTable, errs *core.ErrorClassRegistry, cfg core.RuntimeConfig) *Frontend {
	f := &Frontend{
		reg:  reg,
		drv:  drv,
		res:  res,
		exts: core.NewExternalTable(),
		errs: errs,
		cfg:  cfg.WithDefaults(),
		fast: make([]fastStub, reg.Len()),
	}
	for _, op := range reg.Ops() {
		if op.FastCallable {
			f.fast[op.ID] = buildFastStub(op)
		}
	}
	return f
}

// Registry returns the realm's op table.
func (f *Frontend) Registry() *core.Registry { return f.reg }

// Driver returns the realm's op driver.
func (f *Frontend) Driver() *driver.Driver { return f.drv }

// Resources returns the realm's resource table.
func (f *Frontend) Resources() *core.ResourceTable { return f.res }

// Externals returns the realm's external-pointer table.
func (f *Frontend) Externals() *core.ExternalTable { return f.exts }

// ErrorClasses returns the realm's error-class registry.
func (f *Frontend) ErrorClasses() *core.ErrorClassRegistry { return f.errs }

// Invoke is the slow path for a synchronous op: open a scope, marshal,
// call, marshal the return, close the scope. Closing invalidates every
// borrow handed out during the call.
func (f *Frontend) Invoke(id core.OpID, args []core.Value) (core.Value, *core.OpError) {
	op := f.reg.ByID(id)
	if op == nil {
		return core.Value{}, core.TypeErrorf("unknown op id %d", id)
	}
	if op.Async {
		return core.Value{}, core.TypeErrorf("op %s is asynchronous", op.Name)
	}
	sc := core.NewCallScope(f.res, f.cfg.StringScratchSize)
	defer sc.Close()

	marshaled, err := f.marshalArgs(sc, op, args, false)
	if err != nil {
		return core.Value{}, err
	}
	ret, err := op.Decl.Sync(sc, marshaled)
	if err != nil {
		return core.Value{}, err
	}
	return core.MarshalRet(op.Decl.Ret, ret)
}

// ErrNotFast distinguishes "this call must take the slow path" from an op
// failure; the binding falls back on it. The engine may de-optimize any
// call site at any time, so this is a normal condition.
var ErrNotFast = core.TypeErrorf("fast path unavailable")

// InvokeFast is the fast path: raw slots in, raw slot out, no scope, no
// boxing. Behavior is identical to Invoke for the same arguments.
func (f *Frontend) InvokeFast(id core.OpID, slots []FastSlot) (FastSlot, *core.OpError) {
	if int(id) >= len(f.fast) || f.fast[id] == nil {
		return 0, ErrNotFast
	}
	op := f.reg.ByID(id)
	if len(slots) != op.Arity {
		return 0, ErrNotFast
	}
	return f.fast[id](slots)
}

// InvokeAsync marshals and submits an asynchronous call. The returned
// submission either carries the already-settled value (Eager ops whose
// future resolved synchronously) or the promise id now owned by the
// driver.
func (f *Frontend) InvokeAsync(id core.OpID, args []core.Value) driver.Submission {
	op := f.reg.ByID(id)
	if op == nil {
		return driver.Submission{Settled: true, Err: core.TypeErrorf("unknown op id %d", id)}
	}
	if !op.Async {
		return driver.Submission{Settled: true, Err: core.TypeErrorf("op %s is synchronous", op.Name)}
	}
	sc := core.NewCallScope(f.res, f.cfg.StringScratchSize)
	defer sc.Close()

	marshaled, err := f.marshalArgs(sc, op, args, true)
	if err != nil {
		return driver.Submission{Settled: true, Err: err}
	}
	res := op.Decl.Async(sc, marshaled)
	return f.drv.Submit(id, op.Policy, res)
}

func (f *Frontend) marshalArgs(sc *core.CallScope, op *core.OpContext, args []core.Value, forAsync bool) ([]core.Value, *core.OpError) {
	if len(args) != op.Arity {
		return nil, core.TypeErrorf("op %s expects %d argument(s), got %d", op.Name, op.Arity, len(args))
	}
	marshaled := make([]core.Value, len(args))
	for i, spec := range op.Decl.Args {
		v := args[i]
		// Wire externals arrive as bare ids; resolve through the realm
		// table before the contract check.
		if eid, ok := core.WireExternalID(v); ok {
			h, err := f.exts.Get(eid)
			if err != nil {
				return nil, err
			}
			v = core.ResolveExternal(v, h)
		}
		m, err := core.MarshalArg(sc, spec, v, forAsync)
		if err != nil {
			return nil, core.TypeErrorf("op %s argument %d: %s", op.Name, i, err.Message)
		}
		marshaled[i] = m
	}
	return marshaled, nil
}

// buildFastStub generates the no-allocation call stub for an eligible op.
// Slot decoding applies the same numeric coercions as the slow path, so
// both paths produce identical results and side effects.
func buildFastStub(op *core.OpContext) fastStub {
	specs := op.Decl.Args
	ret := op.Decl.Ret
	fn := op.Decl.Sync
	return func(slots []FastSlot) (FastSlot, *core.OpError) {
		var argv [3]core.Value
		for i, spec := range specs {
			f := math.Float64frombits(uint64(slots[i]))
			switch spec.Kind {
			case core.ArgI32:
				argv[i] = core.Int32(core.ToInt32(f))
			case core.ArgU32:
				argv[i] = core.Uint32(core.ToUint32(f))
			case core.ArgF64, core.ArgI64Lossy, core.ArgU64Lossy:
				argv[i] = core.Float64(f)
			default:
				return 0, ErrNotFast
			}
		}
		v, err := fn(nil, argv[:len(specs)])
		if err != nil {
			return 0, err
		}
		out, err := core.MarshalRet(ret, v)
		if err != nil {
			return 0, err
		}
		switch ret {
		case core.RetVoid:
			return F64Slot(0), nil
		case core.RetBool:
			if out.AsBool() {
				return F64Slot(1), nil
			}
			return F64Slot(0), nil
		default:
			return F64Slot(out.AsFloat64()), nil
		}
	}
}
