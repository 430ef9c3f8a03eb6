package templates

import (
	"regexp"
	"strings"

	"github.com/dukex/forgestate/pkg/blocks"
	"github.com/dukex/forgestate/pkg/models"
)

const (
	columnWidth = 250
	rowHeight   = 180
	originX     = 100
	originY     = 100
)

// Builtin returns the templates shipped with the generator, in catalog order.
func Builtin() []*Template {
	return []*Template{
		leadGeneration(),
		tradingBot(),
		multiAgentResearch(),
		customerSupport(),
		web3Automation(),
		dataPipeline(),
		contentGeneration(),
		notificationSystem(),
	}
}

// at returns the canvas coordinates of a grid cell.
func at(column, row int) (float64, float64) {
	return float64(originX + column*columnWidth), float64(originY + row*rowHeight)
}

func block(id, blockType, name string, column, row int, values map[string]any) *models.Block {
	x, y := at(column, row)

	return blocks.NewBlock(id, blockType, name, x, y, values)
}

// chain connects ids pairwise through the default handles.
func chain(ids ...string) []models.Edge {
	edges := make([]models.Edge, 0, len(ids))

	for i := 1; i < len(ids); i++ {
		edges = append(edges, models.NewEdge(ids[i-1], ids[i]))
	}

	return edges
}

func branch(source, target, handle string) models.Edge {
	edge := models.NewEdge(source, target)
	edge.ID = source + "-" + handle + "-" + target
	edge.SourceHandle = handle

	return edge
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slug(value string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(value), "-"), "-")
}
