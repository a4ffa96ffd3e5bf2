// Package parse converts raw text read from a permit detail page into typed
// values. Parsers never fail loudly: a value that cannot be read is absent,
// optionally with a diagnostic explaining why.
package parse

import (
	"fmt"
)

// Result holds either a value or its absence plus an optional diagnostic.
type Result[T any] struct {
	value T
	ok    bool
	diag  string
}

// Some wraps a present value.
func Some[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// None returns an absent result. diag may be empty when absence is expected
// (for example, blank input).
func None[T any](diag string) Result[T] {
	return Result[T]{diag: diag}
}

// Get returns the value and whether it is present.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

// OK reports whether a value is present.
func (r Result[T]) OK() bool {
	return r.ok
}

// Or returns the value, or fallback when absent.
func (r Result[T]) Or(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.value
}

// Ptr returns a pointer to a copy of the value, or nil when absent.
func (r Result[T]) Ptr() *T {
	if !r.ok {
		return nil
	}
	v := r.value
	return &v
}

// Diagnostic explains an absent result. Empty when present or when absence
// needed no explanation.
func (r Result[T]) Diagnostic() string {
	return r.diag
}

// Try runs fn and captures its outcome. Errors and panics both become an
// absent result carrying the failure as diagnostic.
func Try[T any](fn func() (T, error)) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			res = None[T](fmt.Sprintf("panic: %v", p))
		}
	}()

	v, err := fn()
	if err != nil {
		return None[T](err.Error())
	}
	return Some(v)
}
