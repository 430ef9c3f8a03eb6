// Package templates provides the registry of parameterized Agent Forge workflow templates.
package templates

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrTemplateNotFound indicates no template is registered under the requested name.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateParameterInvalid indicates a parameter is missing or has the wrong type.
	ErrTemplateParameterInvalid = errors.New("template parameter invalid")
)

// Blueprint is what a template produces before it is wrapped into a Workflow.
type Blueprint struct {
	Name        string
	Description string
	Color       string
	Blocks      []*models.Block
	Edges       []models.Edge
	Variables   map[string]any
}

// Template is a named factory for a workflow. Build receives parameters that
// already passed the schema check and carry every default.
type Template struct {
	Name        string
	DisplayName string
	Description string
	Category    string
	Complexity  models.TemplateComplexity
	Pattern     models.Pattern // empty leaves the label to the classifier
	Tags        []string
	Schema      *models.JSONSchema
	Build       func(params Params) *Blueprint
}

// Descriptor returns the public description of the template.
func (t *Template) Descriptor() models.TemplateDescriptor {
	return models.TemplateDescriptor{
		Name:            t.Name,
		DisplayName:     t.DisplayName,
		Description:     t.Description,
		Category:        t.Category,
		Complexity:      t.Complexity,
		Tags:            slices.Clone(t.Tags),
		ParameterSchema: t.Schema,
	}
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Category   string
	Complexity string
	Query      string
}

// Library is the template registry. It is populated at construction and only read afterwards,
// so it is safe for concurrent use.
type Library struct {
	templates map[string]*Template
	order     []string
	now       func() time.Time
	newID     func() (string, error)
}

// Option configures a Library.
type Option func(*Library)

// WithClock replaces the time source used for workflow timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Library) {
		l.now = now
	}
}

// WithIDGenerator replaces the workflow id generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(l *Library) {
		l.newID = newID
	}
}

// NewLibrary registers the given templates in order.
func NewLibrary(templates []*Template, opts ...Option) *Library {
	library := &Library{
		templates: make(map[string]*Template, len(templates)),
		order:     make([]string, 0, len(templates)),
		now:       time.Now,
		newID:     newWorkflowID,
	}

	for _, opt := range opts {
		opt(library)
	}

	for _, template := range templates {
		if _, exists := library.templates[template.Name]; !exists {
			library.order = append(library.order, template.Name)
		}

		library.templates[template.Name] = template
	}

	return library
}

// Default returns a library holding every built-in template.
func Default(opts ...Option) *Library {
	return NewLibrary(Builtin(), opts...)
}

// List returns the descriptors matching filter in registration order.
func (l *Library) List(filter Filter) []models.TemplateDescriptor {
	descriptors := make([]models.TemplateDescriptor, 0, len(l.order))

	for _, name := range l.order {
		template := l.templates[name]
		if !filter.matches(template) {
			continue
		}

		descriptors = append(descriptors, template.Descriptor())
	}

	return descriptors
}

// Get returns the descriptor of the named template.
func (l *Library) Get(name string) (models.TemplateDescriptor, error) {
	template, ok := l.templates[name]
	if !ok {
		return models.TemplateDescriptor{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	return template.Descriptor(), nil
}

// Instantiate validates params against the template schema, applies defaults and builds
// a candidate workflow. The workflow has no owner; the caller assigns one.
func (l *Library) Instantiate(name string, params map[string]any) (*models.Workflow, error) {
	template, ok := l.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	resolved, err := resolveParams(template, params)
	if err != nil {
		return nil, err
	}

	blueprint := template.Build(resolved)

	id, err := l.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate workflow ID: %w", err)
	}

	workflow := models.NewWorkflow(id, "", blueprint.Name, l.now())

	if blueprint.Description != "" {
		description := blueprint.Description
		workflow.Description = &description
	}

	if blueprint.Color != "" {
		workflow.Color = blueprint.Color
	}

	for _, block := range blueprint.Blocks {
		workflow.State.Blocks[block.ID] = block
	}

	workflow.State.Edges = append(workflow.State.Edges, blueprint.Edges...)

	if blueprint.Variables != nil {
		workflow.State.Variables = blueprint.Variables
	}

	workflow.State.Metadata.Pattern = string(template.Pattern)
	workflow.State.Metadata.GeneratedBy = "template"

	return workflow, nil
}

func (f Filter) matches(template *Template) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, template.Category) {
		return false
	}

	if f.Complexity != "" && !strings.EqualFold(f.Complexity, string(template.Complexity)) {
		return false
	}

	if f.Query == "" {
		return true
	}

	query := strings.ToLower(f.Query)
	haystack := strings.ToLower(strings.Join(append([]string{
		template.Name,
		template.DisplayName,
		template.Description,
	}, template.Tags...), " "))

	return strings.Contains(haystack, query)
}

func newWorkflowID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}
