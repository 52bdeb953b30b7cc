package supervisor

import (
	"errors"
	"fmt"
)

var (
	ErrConfigDirectory      = errors.New("config directory not readable")
	ErrRegistrySealed       = errors.New("registry sealed")
	ErrDuplicateWorker      = errors.New("duplicate worker")
	ErrWorkerStopped        = errors.New("worker stopped unexpectedly")
	ErrWorkerAlreadyStarted = errors.New("worker already started")
	ErrInvalidInterval      = errors.New("invalid check interval")
)

// WorkerConstructionError reports a worker that could not be created
// from its configuration file.
type WorkerConstructionError struct {
	Descriptor Descriptor
	Err        error
}

func (e *WorkerConstructionError) Error() string {
	return fmt.Sprintf("worker %s: %v", e.Descriptor.ID, e.Err)
}

func (e *WorkerConstructionError) Unwrap() error {
	return e.Err
}
