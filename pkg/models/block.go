package models

import (
	"encoding/json"
	"sort"
)

const (
	DefaultSourceHandle = "output"
	DefaultTargetHandle = "input"

	// BlockTypeStarter marks the workflow entry point.
	BlockTypeStarter = "starter"
)

// Position is the block's location on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SubBlock is a single configuration value attached to a block.
type SubBlock struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Block is a node of the workflow graph.
type Block struct {
	ID                string              `json:"id"`
	Type              string              `json:"type"`
	Name              string              `json:"name"`
	Position          Position            `json:"position"`
	Enabled           bool                `json:"enabled"`
	HorizontalHandles bool                `json:"horizontal_handles"`
	IsWide            bool                `json:"is_wide"`
	Height            float64             `json:"height"`
	SubBlocks         map[string]SubBlock `json:"sub_blocks"`
	Outputs           map[string]any      `json:"outputs"`
	AdvancedMode      bool                `json:"advanced_mode,omitempty"`
	Data              map[string]any      `json:"data,omitempty"`
	ParentID          *string             `json:"parent_id,omitempty"`
	Extent            *string             `json:"extent,omitempty"`
}

// UnmarshalJSON treats missing enabled and horizontal_handles flags as true, the editor's defaults.
func (b *Block) UnmarshalJSON(data []byte) error {
	type blockAlias Block

	alias := blockAlias{
		Enabled:           true,
		HorizontalHandles: true,
	}

	err := json.Unmarshal(data, &alias)
	if err != nil {
		return err
	}

	*b = Block(alias)

	return nil
}

// SubBlockValue returns the value of the named sub-block and whether it is set.
func (b *Block) SubBlockValue(id string) (any, bool) {
	sub, ok := b.SubBlocks[id]
	if !ok {
		return nil, false
	}

	return sub.Value, true
}

// SubBlockString returns the named sub-block value when it is a string.
func (b *Block) SubBlockString(id string) string {
	value, ok := b.SubBlockValue(id)
	if !ok {
		return ""
	}

	s, _ := value.(string)

	return s
}

// Edge is a directed connection between two blocks' handles.
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle"`
	TargetHandle string `json:"target_handle"`
}

// UnmarshalJSON applies the default output/input handles when they are omitted.
func (e *Edge) UnmarshalJSON(data []byte) error {
	type edgeAlias Edge

	alias := edgeAlias{
		SourceHandle: DefaultSourceHandle,
		TargetHandle: DefaultTargetHandle,
	}

	err := json.Unmarshal(data, &alias)
	if err != nil {
		return err
	}

	*e = Edge(alias)

	if e.SourceHandle == "" {
		e.SourceHandle = DefaultSourceHandle
	}

	if e.TargetHandle == "" {
		e.TargetHandle = DefaultTargetHandle
	}

	return nil
}

// NewEdge connects source to target through the default handles.
func NewEdge(source, target string) Edge {
	return Edge{
		ID:           source + "-" + target,
		Source:       source,
		Target:       target,
		SourceHandle: DefaultSourceHandle,
		TargetHandle: DefaultTargetHandle,
	}
}

// SortedBlockIDs returns the keys of blocks in lexical order.
func SortedBlockIDs(blocks map[string]*Block) []string {
	ids := make([]string, 0, len(blocks))
	for id := range blocks {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
