package engine

import "fmt"

// CollectionError is returned when the fact source could not be read.
type CollectionError struct {
	Err error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect facts: %v", e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// CheckpointError is returned when a submission succeeded but the new
// checkpoint could not be persisted.
type CheckpointError struct {
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("persist checkpoint: %v", e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }
