package ml

import (
	"errors"
	"fmt"
)

// ErrWorkerPanic wraps a panic raised inside a training worker.
var ErrWorkerPanic = errors.New("training worker panicked")

// guard turns a panic in fn into an error returned through errgroup.Wait.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
			}
		}()
		return fn()
	}
}
