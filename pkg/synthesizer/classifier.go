package synthesizer

import (
	"context"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

const classificationTokens = 50

// Classifier labels a workflow state with one pattern of the closed vocabulary.
type Classifier struct {
	synthesizer *Synthesizer
	cache       PatternCache
	logger      *slog.Logger
}

// NewClassifier classifies through s when it has a client and through keyword
// rules otherwise. cache may be nil.
func NewClassifier(s *Synthesizer, cache PatternCache, logger *slog.Logger) *Classifier {
	return &Classifier{
		synthesizer: s,
		cache:       cache,
		logger:      logger.With("module", "classifier"),
	}
}

// Classify never fails: provider faults fall back to the heuristic and anything
// outside the vocabulary is unknown.
func (c *Classifier) Classify(ctx context.Context, state *models.WorkflowState) models.Pattern {
	if pattern := models.ParsePattern(state.Metadata.Pattern); pattern != models.PatternUnknown {
		return pattern
	}

	key, err := Fingerprint(state)
	if err != nil {
		c.logger.WarnContext(ctx, "Classifying without cache", "error", err)
	}

	if key != "" && c.cache != nil {
		if pattern, ok := c.cache.Get(ctx, key); ok {
			c.logger.DebugContext(ctx, "Pattern cache hit", "pattern", pattern)

			return pattern
		}
	}

	pattern, answered := c.classify(ctx, state)

	// Heuristic fallbacks are not cached so the next call asks the model again.
	if answered && key != "" && c.cache != nil {
		c.cache.Set(ctx, key, pattern)
	}

	return pattern
}

// classify reports whether the pattern came from the model.
func (c *Classifier) classify(ctx context.Context, state *models.WorkflowState) (models.Pattern, bool) {
	s := c.synthesizer
	if s == nil || !s.Available() {
		return ClassifyHeuristically(state), false
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "synthesizer.classify",
		attribute.String(otelhelper.ModelKey, s.model))
	defer span.End()

	text, err := s.complete(ctx, "classify workflow pattern", anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: classificationTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildClassificationPrompt(state))),
		},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		otelhelper.SetError(span, err)
		c.logger.WarnContext(ctx, "Falling back to heuristic classification", "error", err)

		return ClassifyHeuristically(state), false
	}

	pattern := models.ParsePattern(text)
	span.SetAttributes(attribute.String(otelhelper.PatternKey, string(pattern)))

	return pattern, true
}
