// Package services provides the workflow orchestrator and its error kinds.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/dukex/forgestate/pkg/synthesizer"
	"github.com/dukex/forgestate/pkg/templates"
)

// Error kinds returned by the orchestrator. They are the sentinels of the
// packages that detect them, re-exported so callers need only this package.
var (
	// Not found (404).
	ErrTemplateNotFound = templates.ErrTemplateNotFound
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

	// Client errors (400).
	ErrTemplateParameterInvalid = templates.ErrTemplateParameterInvalid
	ErrNoSynthesisSource        = synthesizer.ErrNoSynthesisSource
	ErrInvalidRequest           = errors.New("invalid request")
	ErrValidationFailed         = errors.New("workflow failed validation")

	// Upstream LLM errors (502).
	ErrLLMUnavailable       = synthesizer.ErrLLMUnavailable
	ErrLLMMalformedResponse = synthesizer.ErrLLMMalformedResponse

	// Storage errors (500).
	ErrPersistenceFailed = persistence.ErrPersistenceFailed
)

// ServiceError wraps service-level errors with the operation that produced them.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newServiceError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Err: err}
}

// ValidationFailedError carries the report of a rejected candidate. Nothing was persisted.
type ValidationFailedError struct {
	Report models.ValidationReport
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("workflow failed validation with %d errors", e.Report.ErrorCount())
}

func (e *ValidationFailedError) Unwrap() error {
	return ErrValidationFailed
}

// ValidationReport extracts the report from a ValidationFailedError anywhere in err's chain.
func ValidationReport(err error) (models.ValidationReport, bool) {
	var failed *ValidationFailedError
	if errors.As(err, &failed) {
		return failed.Report, true
	}

	return models.ValidationReport{}, false
}

func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) || errors.Is(err, ErrWorkflowNotFound)
}

// IsBadRequest checks if an error is a client error that should return HTTP 400.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrTemplateParameterInvalid) ||
		errors.Is(err, ErrNoSynthesisSource) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrValidationFailed) ||
		persistence.IsInvalidPatch(err)
}

// IsUpstreamError checks if an error came from the LLM provider and should return HTTP 502.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrLLMUnavailable) || errors.Is(err, ErrLLMMalformedResponse)
}

// IsPersistenceFailed checks if the workflow store failed; such errors return HTTP 500.
func IsPersistenceFailed(err error) bool {
	return errors.Is(err, ErrPersistenceFailed)
}
