package compose

import "errors"

var (
	errNotInt  = errors.New("compose: argument composition strategy expects an Int value")
	errNotList = errors.New("compose: argument composition strategy expects a list value")
)

// Error is a fatal composition error: a type-kind mismatch, a non-mergeable
// return type, a missing required key, and similar conditions that abort
// composition (core spec §4.1 step 5, "fatal divergences").
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Hint is a non-fatal composition divergence (default value resolved by a
// merge strategy, inconsistent description, and similar conditions).
type Hint struct {
	Code    string
	Message string
}
