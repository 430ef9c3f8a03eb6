package synthesizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout   = 60 * time.Second
	generationTokens = 4000
	generationTemp   = 0.3
)

// Result is a normalized candidate state and the suggestions the model returned with it.
type Result struct {
	Document    json.RawMessage
	Suggestions []string
}

// Decode returns the candidate as a workflow state.
func (r *Result) Decode() (*models.WorkflowState, error) {
	var state models.WorkflowState

	err := json.Unmarshal(r.Document, &state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMMalformedResponse, err)
	}

	state.Normalize()

	return &state, nil
}

// Synthesizer prompts the LLM for workflow states.
type Synthesizer struct {
	client  MessagesClient
	model   string
	timeout time.Duration
	now     func() time.Time
	tracer  trace.Tracer
	logger  *slog.Logger
}

type Option func(*Synthesizer)

func WithModel(model string) Option {
	return func(s *Synthesizer) {
		if model != "" {
			s.model = model
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Synthesizer) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Synthesizer) { s.tracer = tracer }
}

// New returns a synthesizer. A nil client disables every LLM-backed operation.
func New(client MessagesClient, logger *slog.Logger, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		client:  client,
		model:   DefaultModel,
		timeout: DefaultTimeout,
		now:     time.Now,
		tracer:  otelhelper.Noop("forgestate-synthesizer"),
		logger:  logger.With("module", "synthesizer"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Available reports whether an LLM client is configured.
func (s *Synthesizer) Available() bool {
	return s.client != nil
}

func (s *Synthesizer) Model() string {
	return s.model
}

// Generate asks the model for a workflow state matching description. Provider
// faults and timeouts are returned as ErrLLMUnavailable, unparseable replies as
// ErrLLMMalformedResponse; both are logged here.
func (s *Synthesizer) Generate(ctx context.Context, description string, options models.StateGenerationOptions) (*Result, error) {
	if !options.UseAIEnhancement {
		return nil, ErrNoSynthesisSource
	}

	if s.client == nil {
		s.logger.WarnContext(ctx, "State generation requested without an LLM client")

		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not configured", ErrLLMUnavailable)
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "synthesizer.generate",
		attribute.String(otelhelper.ModelKey, s.model))
	defer span.End()

	text, err := s.complete(ctx, "generate workflow state", anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: generationTokens,
		System: []anthropic.TextBlockParam{
			{Text: SystemDirective},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(description, options))),
		},
		Temperature: anthropic.Float(generationTemp),
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	s.logger.DebugContext(ctx, "LLM reply received", "characters", len(text))

	reply, err := ParseReply(text)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to parse LLM reply as JSON", "error", err, "reply", truncate(text, 500))
		otelhelper.SetError(span, err)

		return nil, err
	}

	state, suggestions := Normalize(reply, s.now())
	if !options.IncludeSuggestions {
		suggestions = nil
	}

	document, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMMalformedResponse, err)
	}

	return &Result{Document: document, Suggestions: suggestions}, nil
}

func (s *Synthesizer) complete(ctx context.Context, op string, params anthropic.MessageNewParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	message, err := s.client.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.ErrorContext(ctx, "LLM call timed out", "op", op, "timeout", s.timeout)
		} else {
			s.logger.ErrorContext(ctx, "LLM call failed", "op", op, "error", err)
		}

		return "", &CallError{Op: op, Model: s.model, Err: err}
	}

	return textContent(message), nil
}

// truncate cuts text to at most limit bytes without splitting a rune.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	return text[:cut] + "..."
}
