package synthesizer

import (
	"errors"
	"fmt"
)

var (
	// ErrLLMUnavailable is returned when no client is configured or the provider call fails or times out.
	ErrLLMUnavailable = errors.New("llm unavailable")

	// ErrLLMMalformedResponse is returned when the reply is not a JSON object.
	ErrLLMMalformedResponse = errors.New("llm returned a malformed response")

	// ErrNoSynthesisSource is returned when AI enhancement is disabled and no other source was given.
	ErrNoSynthesisSource = errors.New("no synthesis source: ai enhancement is disabled")
)

// CallError describes a failed provider call.
type CallError struct {
	Op    string
	Model string
	Err   error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s (model %s): %v", e.Op, e.Model, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func (e *CallError) Is(target error) bool {
	return target == ErrLLMUnavailable
}

func IsLLMUnavailable(err error) bool {
	return errors.Is(err, ErrLLMUnavailable)
}

func IsLLMMalformedResponse(err error) bool {
	return errors.Is(err, ErrLLMMalformedResponse)
}
