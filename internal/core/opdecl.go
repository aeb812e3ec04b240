package core

import "context"

// ArgKind declares the marshaling contract of one op argument.
type ArgKind uint8

const (
	ArgI32 ArgKind = iota
	ArgU32
	ArgF64
	ArgBool
	// ArgI64Exact and ArgU64Exact transport as arbitrary-precision
	// integers; ArgI64Lossy and ArgU64Lossy transport as doubles, losing
	// precision above 2^53. The choice is a per-argument contract and the
	// two are never interchangeable.
	ArgI64Exact
	ArgU64Exact
	ArgI64Lossy
	ArgU64Lossy
	ArgString
	// Buffer families.
	ArgBufOwned    // independent copy
	ArgBufBorrowed // zero-copy view, valid only for the call
	ArgBufDetach   // backing store transferred natively; JS alias zeroed
	ArgBufAny      // array buffer / typed array / data view, byte-normalized
	ArgExternal
	ArgResource
	ArgValue // passthrough
)

// RetKind declares the marshaling contract of an op return value.
type RetKind uint8

const (
	RetVoid RetKind = iota
	RetI32
	RetU32
	RetF64
	RetBool
	RetI64Exact
	RetU64Exact
	RetI64Lossy
	RetU64Lossy
	RetString
	RetBuf // owned bytes gifted to the JS heap
	RetExternal
	RetResource
	RetValue
)

// ArgSpec is one argument's contract.
type ArgSpec struct {
	Kind ArgKind
	// AllowNull admits the explicit null sentinel for ArgExternal and
	// null/undefined for buffer and string kinds.
	AllowNull bool
	// Tag is the required external tag for ArgExternal.
	Tag ExternalTag
}

// SchedulingPolicy selects how an async op's completion reaches JS.
type SchedulingPolicy uint8

const (
	// PolicyEager probes the result once synchronously at submission; a
	// ready result is returned directly with no promise machinery.
	PolicyEager SchedulingPolicy = iota
	// PolicyDeferred forces resolution through the next turn even when
	// the result is ready at submission, preserving ordering with other
	// pending work.
	PolicyDeferred
	// PolicyLazy starts the future on the driver's next poll turn instead
	// of probing at submission.
	PolicyLazy
)

// SyncFn is a synchronous op implementation. Fast-callable ops receive a
// nil scope; their eligibility rules guarantee they never need one.
type SyncFn func(sc *CallScope, args []Value) (Value, *OpError)

// FutureFunc is the async computation the driver owns after suspension.
// It runs off the JS thread; ctx is cancelled cooperatively on teardown or
// explicit cancel, and the future checks it at its own suspension points.
type FutureFunc func(ctx context.Context) (Value, *OpError)

// AsyncResult is what an async op produces at submission: either an
// immediately ready outcome, or a future for the driver to drive.
type AsyncResult struct {
	ready bool
	val   Value
	err   *OpError
	fut   FutureFunc
}

// Ready reports a synchronously-completed success.
func Ready(v Value) AsyncResult { return AsyncResult{ready: true, val: v} }

// Fail reports a synchronously-completed failure.
func Fail(err *OpError) AsyncResult { return AsyncResult{ready: true, err: err} }

// Await hands the driver a future to own.
func Await(f FutureFunc) AsyncResult { return AsyncResult{fut: f} }

// IsReady reports whether the result completed at submission.
func (r AsyncResult) IsReady() bool { return r.ready }

// Outcome returns the ready value and error.
func (r AsyncResult) Outcome() (Value, *OpError) { return r.val, r.err }

// Future returns the unstarted future, nil when ready.
func (r AsyncResult) Future() FutureFunc { return r.fut }

// AsyncFn is an asynchronous op implementation. It runs on the JS thread
// up to the point it returns; only the returned future runs elsewhere.
// Borrowed buffer arguments are copied before an async op sees them, since
// the backing store is not stable across a suspension point.
type AsyncFn func(sc *CallScope, args []Value) AsyncResult

// OpDecl declares one operation of an extension.
type OpDecl struct {
	Name string
	Args []ArgSpec
	Ret  RetKind

	// Exactly one of Sync and Async is set.
	Sync  SyncFn
	Async AsyncFn

	Policy SchedulingPolicy

	// ScopeAccess declares that the op touches engine internals (scope,
	// resources, borrows) even though its shape would otherwise be
	// fast-callable; it forces the slow path.
	ScopeAccess bool

	// Disabled ops are entirely absent from the JS-visible namespace.
	Disabled bool
}

// Extension is a named group of ops registered together at bootstrap,
// optionally with JS glue evaluated after the dispatch prelude.
type Extension struct {
	Name   string
	Ops    []OpDecl
	GlueJS string
	// ErrorClasses contributes class→constructor mappings to the realm's
	// error-class registry.
	ErrorClasses map[string]string
}
