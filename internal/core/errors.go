package core

import "fmt"

// Error class tags with fixed meaning on the JS side.
const (
	ClassError      = "Error"
	ClassTypeError  = "TypeError"
	ClassRangeError = "RangeError"
)

// OpError is a native operation failure crossing the boundary: a class tag
// selecting the JS error constructor, a message, and optional structured
// data. Marshaling failures always use ClassTypeError.
type OpError struct {
	Class   string
	Message string
	Data    any
}

func (e *OpError) Error() string {
	return e.Class + ": " + e.Message
}

// Errorf builds an OpError with the given class tag.
func Errorf(class, format string, args ...any) *OpError {
	return &OpError{Class: class, Message: fmt.Sprintf(format, args...)}
}

// TypeErrorf builds the fixed type-error-class failure used for all
// marshaling errors: type mismatch, detached reuse, unexpected null.
func TypeErrorf(format string, args ...any) *OpError {
	return Errorf(ClassTypeError, format, args...)
}

// ErrorClassRegistry maps class tags to JS error constructor names. It is
// built once at bootstrap and never mutated afterwards; dispatch reads it
// concurrently without locking.
type ErrorClassRegistry struct {
	byClass map[string]string
}

// NewErrorClassRegistry copies the host-provided class map. The built-in
// Error/TypeError/RangeError classes resolve to themselves without being
// listed.
func NewErrorClassRegistry(classes map[string]string) *ErrorClassRegistry {
	m := map[string]string{
		ClassError:      "Error",
		ClassTypeError:  "TypeError",
		ClassRangeError: "RangeError",
	}
	for class, ctor := range classes {
		m[class] = ctor
	}
	return &ErrorClassRegistry{byClass: m}
}

// Resolve returns the JS constructor name for a class tag. Unmapped
// classes fail closed to the generic "Error" constructor; the original
// class tag still travels with the thrown error so no information is lost.
func (r *ErrorClassRegistry) Resolve(class string) string {
	if r != nil {
		if ctor, ok := r.byClass[class]; ok {
			return ctor
		}
	}
	return "Error"
}

// Constructors returns the class→constructor table for prelude injection.
func (r *ErrorClassRegistry) Constructors() map[string]string {
	out := make(map[string]string, len(r.byClass))
	for k, v := range r.byClass {
		out[k] = v
	}
	return out
}
