// Package opcall embeds a JavaScript engine (QuickJS by default, V8
// with the v8 build tag) and exposes Go functions to scripts as "ops":
// declaratively typed operations with validated arguments, mapped error
// classes, and an async driver that settles promises on the JS thread.
//
// Extensions bundle op declarations, error-class mappings, and optional
// glue JavaScript. A Runtime builds a registry from its extensions at
// startup and installs a frozen globalThis.ops namespace; scripts call
// ops synchronously, through a numeric fast path, or asynchronously via
// promises that settle when the runtime is polled or drained.
package opcall
