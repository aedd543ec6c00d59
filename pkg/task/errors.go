package task

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrKeyNotFound is matched by errors returned from Predict for an
	// input the fitted model does not contain.
	ErrKeyNotFound = errors.New("task: key not found")

	// ErrPersistence is matched by errors from writing or reading state.
	ErrPersistence = errors.New("task: persistence failed")
)

// KeyNotFoundError names the input that ended a Predict batch.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("task: no such id %q in the fitted model", e.Key)
}

func (e *KeyNotFoundError) Is(target error) bool { return target == ErrKeyNotFound }

// PersistenceError wraps a storage or codec failure during Fit.
type PersistenceError struct {
	Op   string
	Root string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("task: %s state at %s: %v", e.Op, e.Root, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
