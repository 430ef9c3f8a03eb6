package mocks

import (
	"context"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/synthesizer"
	"github.com/stretchr/testify/mock"
)

// MockSynthesizer is a mock implementation of services.Generator.
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Available() bool {
	args := m.Called()

	return args.Bool(0)
}

func (m *MockSynthesizer) Generate(
	ctx context.Context,
	description string,
	options models.StateGenerationOptions,
) (*synthesizer.Result, error) {
	args := m.Called(ctx, description, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*synthesizer.Result), args.Error(1)
}

// MockClassifier is a mock implementation of services.PatternClassifier.
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, state *models.WorkflowState) models.Pattern {
	args := m.Called(ctx, state)

	return args.Get(0).(models.Pattern)
}
