package persistence

import (
	"errors"
	"fmt"
)

var (
	ErrWorkflowNotFound      = errors.New("workflow not found")
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")
	ErrForbiddenPatchKey     = errors.New("patch changes an immutable field")
	ErrUnknownPatchKey       = errors.New("patch names an unknown field")
	ErrInvalidPatch          = errors.New("patch does not produce a valid workflow")
	ErrPersistenceFailed     = errors.New("persistence failed")
)

// WorkflowError wraps errors with the gateway operation and workflow context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s workflow %s: %v", e.Op, e.WorkflowID, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// Failed wraps a storage or transport fault so that it matches ErrPersistenceFailed
// while keeping the underlying cause reachable.
func Failed(op, workflowID string, err error) error {
	return NewWorkflowError(op, workflowID, fmt.Errorf("%w: %w", ErrPersistenceFailed, err))
}

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsWorkflowAlreadyExists(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyExists)
}

// IsInvalidPatch matches forbidden, unknown and undecodable patches.
func IsInvalidPatch(err error) bool {
	return errors.Is(err, ErrForbiddenPatchKey) ||
		errors.Is(err, ErrUnknownPatchKey) ||
		errors.Is(err, ErrInvalidPatch)
}

func IsPersistenceFailed(err error) bool {
	return errors.Is(err, ErrPersistenceFailed)
}
