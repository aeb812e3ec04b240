package core

import "time"

// JSRuntime abstracts the JavaScript engine (QuickJS or V8) behind the
// surface the dispatch layer consumes: script evaluation, registered Go
// functions, and the microtask pump. Engine bindings implement it.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// EvalInt evaluates JavaScript and returns the result as a Go int.
	EvalInt(js string) (int, error)

	// RegisterFunc registers a Go function as a global JavaScript
	// function. On error return the JS side throws instead of receiving
	// a multi-value array.
	RegisterFunc(name string, fn any) error

	// RunMicrotasks pumps the engine's microtask queue.
	RunMicrotasks()
}

// BufferDetacher is an optional interface for bindings that can transfer
// an ArrayBuffer's backing store out of the JS heap directly, leaving the
// JS-side alias permanently zero-length. Bindings without it rely on the
// prelude's ArrayBuffer.prototype.transfer path.
type BufferDetacher interface {
	// DetachAndRead reads the ArrayBuffer stored at the given global
	// variable name, detaches it, and returns the moved-out bytes.
	DetachAndRead(globalName string) ([]byte, error)
}

// EngineBackend is what the root opcall.Runtime facade drives. One
// implementation exists per engine, selected by build tags.
type EngineBackend interface {
	JSRuntime

	// PollOnce runs one iteration of outstanding futures: drains driver
	// completions into promise settlements and fires due timers. Reports
	// whether any work was applied.
	PollOnce() bool

	// Drain pumps until the realm is quiescent or the deadline passes.
	Drain(deadline time.Time)

	// Quiescent reports whether nothing ref'd keeps the loop alive.
	Quiescent() bool

	// Teardown drops outstanding ops unsettled, closes resources, and
	// destroys the isolate.
	Teardown()
}
