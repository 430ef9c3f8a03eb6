package persistence

import (
	"sort"
	"time"

	"github.com/dukex/forgestate/pkg/models"
)

// BlockRow is the runtime's per-block row, written next to the workflow row.
type BlockRow struct {
	ID                string                     `json:"id"`
	WorkflowID        string                     `json:"workflow_id"`
	Type              string                     `json:"type"`
	Name              string                     `json:"name"`
	PositionX         float64                    `json:"position_x"`
	PositionY         float64                    `json:"position_y"`
	Enabled           bool                       `json:"enabled"`
	HorizontalHandles bool                       `json:"horizontal_handles"`
	IsWide            bool                       `json:"is_wide"`
	AdvancedMode      bool                       `json:"advanced_mode"`
	Height            float64                    `json:"height"`
	SubBlocks         map[string]models.SubBlock `json:"sub_blocks"`
	Outputs           map[string]any             `json:"outputs"`
	Data              map[string]any             `json:"data,omitempty"`
	ParentID          *string                    `json:"parent_id,omitempty"`
	Extent            *string                    `json:"extent,omitempty"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// BlockRows flattens the workflow's state into block rows ordered by id.
// Rows carry the workflow's created_at and updated_at.
func BlockRows(workflow *models.Workflow) []BlockRow {
	ids := make([]string, 0, len(workflow.State.Blocks))
	for id, block := range workflow.State.Blocks {
		if block != nil {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	rows := make([]BlockRow, 0, len(ids))

	for _, id := range ids {
		block := workflow.State.Blocks[id]

		subBlocks := block.SubBlocks
		if subBlocks == nil {
			subBlocks = map[string]models.SubBlock{}
		}

		outputs := block.Outputs
		if outputs == nil {
			outputs = map[string]any{}
		}

		rows = append(rows, BlockRow{
			ID:                id,
			WorkflowID:        workflow.ID,
			Type:              block.Type,
			Name:              block.Name,
			PositionX:         block.Position.X,
			PositionY:         block.Position.Y,
			Enabled:           block.Enabled,
			HorizontalHandles: block.HorizontalHandles,
			IsWide:            block.IsWide,
			AdvancedMode:      block.AdvancedMode,
			Height:            block.Height,
			SubBlocks:         subBlocks,
			Outputs:           outputs,
			Data:              block.Data,
			ParentID:          block.ParentID,
			Extent:            block.Extent,
			CreatedAt:         workflow.CreatedAt,
			UpdatedAt:         workflow.UpdatedAt,
		})
	}

	return rows
}
