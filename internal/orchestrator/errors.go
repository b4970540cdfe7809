package orchestrator

import "errors"

// fatalError marks an error that must terminate Run with a non-zero
// process exit: a reducer-invariant violation (MapEnd without MapStart,
// SampleInstant outside a closure) or a CSV sink write failure. It
// propagates all the way to cmd/metric-collector/main.go.
type fatalError struct{ err error }

// fatal wraps err as fatal, or returns nil if err is nil.
func fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// softError marks an error that is logged at its call site and
// otherwise ignored — the run continues. Wrapping with soft is purely
// documentary: a softError is never returned up the call stack, only
// passed to a logger.
type softError struct{ err error }

// soft wraps err as soft, or returns nil if err is nil.
func soft(err error) error {
	if err == nil {
		return nil
	}
	return &softError{err: err}
}

func (e *softError) Error() string { return e.err.Error() }
func (e *softError) Unwrap() error { return e.err }

// isFatal reports whether err (or anything it wraps) is a fatalError.
func isFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}
