package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukex/forgestate/pkg/eventbus"
	"github.com/dukex/forgestate/pkg/events"
	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/otelhelper"
	"github.com/dukex/forgestate/pkg/persistence"
	"github.com/dukex/forgestate/pkg/synthesizer"
	"github.com/dukex/forgestate/pkg/templates"
	"github.com/dukex/forgestate/pkg/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultDatabaseTimeout caps every gateway call.
	DefaultDatabaseTimeout = 60 * time.Second

	// DefaultOwner is used when a request names no owner.
	DefaultOwner = "system"

	maxPromptNameLength = 80
)

// Generator produces candidate states from free-text descriptions.
type Generator interface {
	Available() bool
	Generate(ctx context.Context, description string, options models.StateGenerationOptions) (*synthesizer.Result, error)
}

// PatternClassifier labels a state with a workflow pattern. It never fails.
type PatternClassifier interface {
	Classify(ctx context.Context, state *models.WorkflowState) models.Pattern
}

// Generated is an accepted, persisted workflow and the report that admitted it.
type Generated struct {
	Workflow   *models.Workflow        `json:"workflow"`
	Validation models.ValidationReport `json:"validation"`
}

type CreateFromTemplateRequest struct {
	Name   string
	Params map[string]any
	Owner  string
}

type CreateFromPromptRequest struct {
	Prompt  string
	Owner   string
	Options models.StateGenerationOptions
}

// Health is the combined readiness of the gateway and the LLM provider.
type Health struct {
	Database     string `json:"database"`
	DatabaseOK   bool   `json:"database_ok"`
	LLMAvailable bool   `json:"llm_available"`
}

// Orchestrator drives candidates from the template library or the synthesizer
// through the validation pipeline and, when they are valid, into the gateway.
type Orchestrator struct {
	library     *templates.Library
	generator   Generator
	classifier  PatternClassifier
	pipeline    *validation.Pipeline
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() (string, error)
	dbTimeout   time.Duration
	logger      *slog.Logger
}

type Option func(*Orchestrator)

// WithPublisher publishes lifecycle events after every write.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = publisher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDGenerator(newID func() (string, error)) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

func WithDatabaseTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.dbTimeout = timeout
		}
	}
}

// NewOrchestrator creates the orchestrator. generator and classifier may be nil, which
// disables prompt synthesis and pattern analysis respectively.
func NewOrchestrator(
	logger *slog.Logger,
	library *templates.Library,
	generator Generator,
	classifier PatternClassifier,
	pipeline *validation.Pipeline,
	persistence persistence.Persistence,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		library:     library,
		generator:   generator,
		classifier:  classifier,
		pipeline:    pipeline,
		persistence: persistence,
		tracer:      otelhelper.Noop("forgestate-orchestrator"),
		now:         time.Now,
		newID:       newWorkflowID,
		dbTimeout:   DefaultDatabaseTimeout,
		logger:      logger.With("module", "orchestrator"),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// CreateFromTemplate instantiates a template for owner and persists it when the
// pipeline accepts it. A rejected candidate returns a ValidationFailedError.
func (o *Orchestrator) CreateFromTemplate(ctx context.Context, req CreateFromTemplateRequest) (*Generated, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.create_from_template",
		attribute.String(otelhelper.TemplateNameKey, req.Name))
	defer span.End()

	workflow, err := o.library.Instantiate(req.Name, req.Params)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, newServiceError("CreateFromTemplate", err)
	}

	workflow.UserID = owner(req.Owner)

	subject := validation.ForWorkflow(workflow)

	return o.admit(ctx, span, subject, events.SourceTemplate, req.Name)
}

// CreateFromPrompt asks the synthesizer for a state matching req.Prompt, wraps it in a
// new workflow for owner and persists it when the pipeline accepts it.
func (o *Orchestrator) CreateFromPrompt(ctx context.Context, req CreateFromPromptRequest) (*Generated, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.create_from_prompt")
	defer span.End()

	if strings.TrimSpace(req.Prompt) == "" {
		return nil, newServiceError("CreateFromPrompt", fmt.Errorf("%w: prompt is required", ErrInvalidRequest))
	}

	if !req.Options.UseAIEnhancement {
		return nil, newServiceError("CreateFromPrompt", ErrNoSynthesisSource)
	}

	if o.generator == nil || !o.generator.Available() {
		return nil, newServiceError("CreateFromPrompt", fmt.Errorf("%w: no LLM client configured", ErrLLMUnavailable))
	}

	result, err := o.generator.Generate(ctx, req.Prompt, req.Options)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, newServiceError("CreateFromPrompt", err)
	}

	id, err := o.newID()
	if err != nil {
		return nil, newServiceError("CreateFromPrompt", fmt.Errorf("failed to generate workflow ID: %w", err))
	}

	prompt := strings.TrimSpace(req.Prompt)
	workflow := models.NewWorkflow(id, owner(req.Owner), promptName(prompt), o.now())
	workflow.Description = &prompt

	subject := &validation.Subject{
		Document:    result.Document,
		Workflow:    workflow,
		Suggestions: result.Suggestions,
	}

	return o.admit(ctx, span, subject, events.SourcePrompt, "")
}

// admit validates the subject, classifies it and inserts the workflow. The schema
// validator decodes prompt documents, so the workflow state is taken from the subject.
func (o *Orchestrator) admit(
	ctx context.Context,
	span trace.Span,
	subject *validation.Subject,
	source events.Source,
	templateName string,
) (*Generated, error) {
	workflow := subject.Workflow

	report := o.pipeline.Validate(ctx, subject)
	otelhelper.SetValidation(span, report.OverallValid, report.ErrorCount())

	if !report.OverallValid {
		o.logger.InfoContext(ctx, "Candidate workflow rejected",
			"source", source,
			"template", templateName,
			"errors", report.ErrorCount())
		o.publishRejected(ctx, workflow, source, templateName, report)

		return nil, &ValidationFailedError{Report: report}
	}

	if subject.State != nil && subject.State != &workflow.State {
		workflow.State = *subject.State
	}

	if workflow.State.Metadata.Pattern == "" && o.classifier != nil {
		workflow.State.Metadata.Pattern = string(o.classifier.Classify(ctx, &workflow.State))
	}

	span.SetAttributes(
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.PatternKey, workflow.State.Metadata.Pattern),
	)

	workflow.Touch(o.now())

	dbCtx, cancel := context.WithTimeout(ctx, o.dbTimeout)
	defer cancel()

	err := o.persistence.InsertWorkflow(dbCtx, workflow)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to persist workflow", "workflow_id", workflow.ID, "error", err)
		otelhelper.SetError(span, err)

		return nil, newServiceError("InsertWorkflow", err)
	}

	o.logger.InfoContext(ctx, "Workflow created",
		"workflow_id", workflow.ID,
		"source", source,
		"pattern", workflow.State.Metadata.Pattern,
		"blocks", len(workflow.State.Blocks))

	o.publish(ctx, workflow.ID, events.WorkflowCreated{
		BaseEvent:    events.NewBaseEvent(events.WorkflowCreatedEvent, workflow.ID, workflow.UserID),
		Name:         workflow.Name,
		Source:       source,
		TemplateName: templateName,
		Pattern:      workflow.State.Metadata.Pattern,
		BlockCount:   len(workflow.State.Blocks),
	})

	return &Generated{Workflow: workflow, Validation: report}, nil
}

// Revalidate runs the pipeline over a stored workflow. Nothing is written.
func (o *Orchestrator) Revalidate(ctx context.Context, id string) (models.ValidationReport, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.revalidate",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	workflow, err := o.Get(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return models.ValidationReport{}, err
	}

	report := o.pipeline.Validate(ctx, validation.ForWorkflow(workflow))
	otelhelper.SetValidation(span, report.OverallValid, report.ErrorCount())

	return report, nil
}

// Validate runs the pipeline over a raw state document.
func (o *Orchestrator) Validate(ctx context.Context, document []byte) models.ValidationReport {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.validate")
	defer span.End()

	report := o.pipeline.Validate(ctx, validation.ForDocument(document))
	otelhelper.SetValidation(span, report.OverallValid, report.ErrorCount())

	return report
}

func (o *Orchestrator) Get(ctx context.Context, id string) (*models.Workflow, error) {
	dbCtx, cancel := context.WithTimeout(ctx, o.dbTimeout)
	defer cancel()

	workflow, err := o.persistence.WorkflowByID(dbCtx, id)
	if err != nil {
		return nil, newServiceError("GetWorkflow", err)
	}

	return workflow, nil
}

func (o *Orchestrator) List(ctx context.Context, filter persistence.ListFilter) ([]*models.Workflow, error) {
	dbCtx, cancel := context.WithTimeout(ctx, o.dbTimeout)
	defer cancel()

	workflows, err := o.persistence.Workflows(dbCtx, filter.Normalized())
	if err != nil {
		return nil, newServiceError("ListWorkflows", err)
	}

	return workflows, nil
}

// Update applies patch to a copy of the stored workflow, validates the result and
// writes it through the gateway. updated_at and the state's updatedAt are always bumped.
func (o *Orchestrator) Update(ctx context.Context, id string, patch persistence.Patch) (*Generated, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.update",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	err := patch.Validate()
	if err != nil {
		return nil, newServiceError("UpdateWorkflow", err)
	}

	if len(patch) == 0 {
		return nil, newServiceError("UpdateWorkflow", fmt.Errorf("%w: empty patch", ErrInvalidRequest))
	}

	current, err := o.Get(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	candidate, err := persistence.ApplyPatch(current, patch)
	if err != nil {
		return nil, newServiceError("UpdateWorkflow", err)
	}

	candidate.Touch(o.now())

	report := o.pipeline.Validate(ctx, validation.ForWorkflow(candidate))
	otelhelper.SetValidation(span, report.OverallValid, report.ErrorCount())

	if !report.OverallValid {
		o.publishRejected(ctx, candidate, events.SourceUpdate, "", report)

		return nil, &ValidationFailedError{Report: report}
	}

	fields := patch.Keys()

	write := make(persistence.Patch, len(patch)+1)
	for key, value := range patch {
		write[key] = value
	}

	// Touch bumped both updated_at and state.metadata.updatedAt, so the state is
	// written even when the patch did not name it.
	write["updated_at"] = candidate.UpdatedAt
	write["state"] = candidate.State

	dbCtx, cancel := context.WithTimeout(ctx, o.dbTimeout)
	defer cancel()

	updated, err := o.persistence.UpdateWorkflow(dbCtx, id, write)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to update workflow", "workflow_id", id, "error", err)
		otelhelper.SetError(span, err)

		return nil, newServiceError("UpdateWorkflow", err)
	}

	o.publish(ctx, id, events.WorkflowUpdated{
		BaseEvent: events.NewBaseEvent(events.WorkflowUpdatedEvent, id, updated.UserID),
		Fields:    fields,
	})

	return &Generated{Workflow: updated, Validation: report}, nil
}

// Delete removes a workflow. A missing workflow is ErrWorkflowNotFound.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	dbCtx, cancel := context.WithTimeout(ctx, o.dbTimeout)
	defer cancel()

	deleted, err := o.persistence.DeleteWorkflow(dbCtx, id)
	if err != nil {
		return newServiceError("DeleteWorkflow", err)
	}

	if !deleted {
		return newServiceError("DeleteWorkflow", persistence.NewWorkflowError("DeleteWorkflow", id, ErrWorkflowNotFound))
	}

	o.publish(ctx, id, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, id, ""),
	})

	return nil
}

// Analyze returns the pattern of a stored workflow.
func (o *Orchestrator) Analyze(ctx context.Context, id string) (models.Pattern, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.analyze",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	workflow, err := o.Get(ctx, id)
	if err != nil {
		return "", err
	}

	pattern := models.PatternUnknown
	if o.classifier != nil {
		pattern = o.classifier.Classify(ctx, &workflow.State)
	}

	span.SetAttributes(attribute.String(otelhelper.PatternKey, string(pattern)))

	return pattern, nil
}

func (o *Orchestrator) Templates(filter templates.Filter) []models.TemplateDescriptor {
	return o.library.List(filter)
}

func (o *Orchestrator) Template(name string) (models.TemplateDescriptor, error) {
	descriptor, err := o.library.Get(name)
	if err != nil {
		return models.TemplateDescriptor{}, newServiceError("GetTemplate", err)
	}

	return descriptor, nil
}

// HealthCheck checks the health of the persistence layer and whether an LLM is configured.
func (o *Orchestrator) HealthCheck(ctx context.Context) Health {
	health := Health{
		LLMAvailable: o.generator != nil && o.generator.Available(),
	}

	if o.persistence == nil {
		health.Database = "Persistence layer not initialized"

		return health
	}

	dbCtx, cancel := context.WithTimeout(ctx, o.dbTimeout)
	defer cancel()

	err := o.persistence.HealthCheck(dbCtx)
	if err != nil {
		health.Database = "Persistence layer is unhealthy: " + err.Error()

		return health
	}

	health.Database = "Persistence layer is healthy"
	health.DatabaseOK = true

	return health
}

func (o *Orchestrator) publishRejected(
	ctx context.Context,
	workflow *models.Workflow,
	source events.Source,
	templateName string,
	report models.ValidationReport,
) {
	warnings := 0
	for _, result := range report.ValidationResults {
		warnings += len(result.Warnings)
	}

	o.publish(ctx, workflow.ID, events.WorkflowRejected{
		BaseEvent:    events.NewBaseEvent(events.WorkflowRejectedEvent, workflow.ID, workflow.UserID),
		Source:       source,
		TemplateName: templateName,
		ErrorCount:   report.ErrorCount(),
		WarningCount: warnings,
	})
}

// publish never fails the caller; the write it reports has already happened.
func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.Publish(ctx, key, event)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to publish workflow event",
			"event_type", event.GetType(),
			"workflow_id", key,
			"error", err)
	}
}

func owner(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultOwner
	}

	return value
}

// promptName uses the first line of the prompt, shortened to fit the editor sidebar.
func promptName(prompt string) string {
	name, _, _ := strings.Cut(prompt, "\n")
	name = strings.TrimSpace(name)

	if utf8.RuneCountInString(name) <= maxPromptNameLength {
		return name
	}

	runes := []rune(name)

	return strings.TrimSpace(string(runes[:maxPromptNameLength-3])) + "..."
}

func newWorkflowID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}
