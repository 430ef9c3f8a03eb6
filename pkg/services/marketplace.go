package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukex/forgestate/pkg/models"
	"github.com/dukex/forgestate/pkg/otelhelper"
	"github.com/dukex/forgestate/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

const (
	ExportFormatJSON = "json"
	ExportFormatYAML = "yaml"

	exportDocumentFormat  = "agent-forge-workflow"
	exportDocumentVersion = "1.0.0"

	noDescription = "No description provided"
)

// MarketplacePreview is how a stored workflow would be listed in the marketplace.
type MarketplacePreview struct {
	WorkflowID       string       `json:"workflow_id"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	Categories       []string     `json:"categories"`
	Tags             []string     `json:"tags"`
	Complexity       string       `json:"complexity"`
	Stats            PreviewStats `json:"stats"`
	MarketplaceReady bool         `json:"marketplace_ready"`
	PricingModel     string       `json:"pricing_model"`
}

type PreviewStats struct {
	AgentCount       int    `json:"agent_count"`
	APICount         int    `json:"api_count"`
	TotalBlocks      int    `json:"total_blocks"`
	EstimatedRuntime string `json:"estimated_runtime"`
}

// ExportDocument is the json export of a workflow and its block rows.
type ExportDocument struct {
	Format     string           `json:"format"`
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Workflow   ExportedWorkflow `json:"workflow"`
}

type ExportedWorkflow struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description *string                `json:"description"`
	State       models.WorkflowState   `json:"state"`
	Blocks      []persistence.BlockRow `json:"blocks"`
	Metadata    ExportMetadata         `json:"metadata"`
}

type ExportMetadata struct {
	BlockCount int       `json:"block_count"`
	AgentCount int       `json:"agent_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// YAMLExport wraps the yaml rendering of a workflow's blocks.
type YAMLExport struct {
	Format string `json:"format"`
	Data   string `json:"data"`
}

type yamlWorkflow struct {
	Name        string      `yaml:"name"`
	Description *string     `yaml:"description"`
	Blocks      []yamlBlock `yaml:"blocks"`
}

type yamlBlock struct {
	ID     string                     `yaml:"id"`
	Type   string                     `yaml:"type"`
	Name   string                     `yaml:"name"`
	Config map[string]models.SubBlock `yaml:"config"`
}

// marketplaceRule adds a category and its tags when the lowercased workflow
// content mentions any of the keywords.
type marketplaceRule struct {
	keywords []string
	category string
	tags     []string
}

var contentRules = []marketplaceRule{
	{[]string{"web3", "crypto", "defi"}, "Web3 Automation", []string{"web3", "crypto"}},
	{[]string{"trading", "market"}, "Trading Bots", []string{"trading", "finance"}},
	{[]string{"email", "notification"}, "Communication", []string{"notifications"}},
}

// MarketplacePreview categorizes a stored workflow from its block rows and content.
func (o *Orchestrator) MarketplacePreview(ctx context.Context, id string) (*MarketplacePreview, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.marketplace_preview",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	workflow, rows, err := o.workflowWithBlocks(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	agents := countBlocks(rows, "agent")
	apis := countBlocks(rows, "api")

	preview := &MarketplacePreview{
		WorkflowID:       workflow.ID,
		Name:             workflow.Name,
		Description:      noDescription,
		Categories:       make([]string, 0),
		Tags:             make([]string, 0),
		Complexity:       "Simple",
		MarketplaceReady: workflow.IsPublished,
		PricingModel:     "free",
		Stats: PreviewStats{
			AgentCount:       agents,
			APICount:         apis,
			TotalBlocks:      len(rows),
			EstimatedRuntime: "On-demand",
		},
	}

	if workflow.Description != nil {
		preview.Description = *workflow.Description
	}

	if countBlocks(rows, "starter") > 0 {
		preview.Stats.EstimatedRuntime = "24/7"
	}

	if agents > 0 {
		preview.add("AI Agents", "ai")
		preview.PricingModel = "usage-based"
	}

	if agents >= 3 {
		preview.add("Multi-Agent Teams", "multi-agent")
	}

	content := workflowContent(workflow)
	for _, rule := range contentRules {
		if containsAny(content, rule.keywords) {
			preview.add(rule.category, rule.tags...)
		}
	}

	if apis > 0 {
		preview.add("API Integration", "integration")
	}

	if len(preview.Categories) == 0 {
		preview.add("Automation", "automation")
	}

	if agents >= 2 || apis >= 2 {
		preview.Complexity = "Medium"
	}

	if agents >= 3 || (agents >= 1 && apis >= 3) {
		preview.Complexity = "Complex"
	}

	return preview, nil
}

func (p *MarketplacePreview) add(category string, tags ...string) {
	p.Categories = append(p.Categories, category)
	p.Tags = append(p.Tags, tags...)
}

// Export renders a stored workflow as an ExportDocument for json, or a YAMLExport for yaml.
func (o *Orchestrator) Export(ctx context.Context, id, format string) (any, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.export",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	if format != ExportFormatJSON && format != ExportFormatYAML {
		return nil, newServiceError("ExportWorkflow",
			fmt.Errorf("%w: unsupported format %q, use json or yaml", ErrInvalidRequest, format))
	}

	workflow, rows, err := o.workflowWithBlocks(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if format == ExportFormatJSON {
		return &ExportDocument{
			Format:     exportDocumentFormat,
			Version:    exportDocumentVersion,
			ExportedAt: o.now().UTC(),
			Workflow: ExportedWorkflow{
				ID:          workflow.ID,
				Name:        workflow.Name,
				Description: workflow.Description,
				State:       workflow.State,
				Blocks:      rows,
				Metadata: ExportMetadata{
					BlockCount: len(rows),
					AgentCount: countBlocks(rows, "agent"),
					CreatedAt:  workflow.CreatedAt,
					UpdatedAt:  workflow.UpdatedAt,
				},
			},
		}, nil
	}

	document := yamlWorkflow{
		Name:        workflow.Name,
		Description: workflow.Description,
		Blocks:      make([]yamlBlock, 0, len(rows)),
	}

	for _, row := range rows {
		document.Blocks = append(document.Blocks, yamlBlock{
			ID:     row.ID,
			Type:   row.Type,
			Name:   row.Name,
			Config: row.SubBlocks,
		})
	}

	data, err := yaml.Marshal(document)
	if err != nil {
		return nil, newServiceError("ExportWorkflow", fmt.Errorf("failed to render yaml: %w", err))
	}

	return &YAMLExport{Format: ExportFormatYAML, Data: string(data)}, nil
}

// workflowWithBlocks loads a workflow and its block rows. Gateways without a block
// table get rows derived from the state.
func (o *Orchestrator) workflowWithBlocks(ctx context.Context, id string) (*models.Workflow, []persistence.BlockRow, error) {
	workflow, err := o.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	reader, ok := o.persistence.(persistence.BlockReader)
	if !ok {
		return workflow, persistence.BlockRows(workflow), nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, o.dbTimeout)
	defer cancel()

	rows, err := reader.WorkflowBlocks(dbCtx, workflow.ID)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to read block rows", "workflow_id", id, "error", err)

		return nil, nil, newServiceError("WorkflowBlocks", err)
	}

	return workflow, rows, nil
}

func countBlocks(rows []persistence.BlockRow, blockType string) int {
	count := 0

	for _, row := range rows {
		if row.Type == blockType {
			count++
		}
	}

	return count
}

func workflowContent(workflow *models.Workflow) string {
	data, err := json.Marshal(workflow)
	if err != nil {
		return strings.ToLower(workflow.Name)
	}

	return strings.ToLower(string(data))
}

func containsAny(content string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(content, keyword) {
			return true
		}
	}

	return false
}
