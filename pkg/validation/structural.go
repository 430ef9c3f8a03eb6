package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/forgestate/pkg/models"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// Handle prefixes used by loop and parallel containers for their internal wiring.
var subflowHandlePrefixes = []string{"loop-", "parallel-"}

// StructuralValidator inspects the shape of the graph: starters, reachability,
// islands, cycles and disabled blocks feeding enabled ones.
type StructuralValidator struct{}

func NewStructuralValidator() *StructuralValidator {
	return &StructuralValidator{}
}

func (v *StructuralValidator) Name() string {
	return StructuralValidatorName
}

func (v *StructuralValidator) Validate(_ context.Context, subject *Subject) *models.ValidationResult {
	result := models.NewValidationResult(v.Name())
	if !requireState(subject, result) {
		return result
	}

	state := subject.State
	if len(state.Blocks) == 0 {
		result.AddWarning("workflow has no blocks yet")
		result.SetMetadata("stub", true)

		return result
	}

	starters := state.BlocksOfType(models.BlockTypeStarter)
	sort.Strings(starters)

	switch {
	case len(starters) == 0:
		result.AddError("workflow has no starter block")
	case len(starters) > 1:
		result.AddWarning(fmt.Sprintf("workflow has %d starter blocks (%s); exactly one is expected",
			len(starters), strings.Join(starters, ", ")))
	}

	g := newBlockGraph(state)

	if len(starters) > 0 {
		for _, id := range g.unreachable(starters) {
			result.AddWarning(fmt.Sprintf("block %q is not reachable from a starter block", id))
		}
	}

	islands := g.islands()
	if len(islands) > 1 {
		groups := make([]string, 0, len(islands))
		for _, island := range islands {
			groups = append(groups, "["+strings.Join(island, ", ")+"]")
		}

		result.AddWarning(fmt.Sprintf("workflow has %d disconnected islands: %s", len(islands), strings.Join(groups, " ")))
	}

	cycles := g.cycles()
	for _, cycle := range cycles {
		if len(cycle) == 1 {
			result.AddWarning(fmt.Sprintf("block %q has an edge to itself", cycle[0]))

			continue
		}

		result.AddWarning(fmt.Sprintf("cycle detected among blocks %s", strings.Join(cycle, ", ")))
	}

	for _, edge := range state.Edges {
		source, target := state.Blocks[edge.Source], state.Blocks[edge.Target]
		if source == nil || target == nil {
			continue
		}

		if !source.Enabled && target.Enabled {
			result.AddWarning(fmt.Sprintf("disabled block %q feeds enabled block %q", edge.Source, edge.Target))
		}
	}

	result.SetMetadata("starter_count", len(starters))
	result.SetMetadata("island_count", len(islands))
	result.SetMetadata("cycle_count", len(cycles))

	return result
}

// blockGraph maps block ids onto gonum node ids in lexical order, so every walk is deterministic.
type blockGraph struct {
	ids       []string
	index     map[string]int64
	flow      *simple.DirectedGraph
	links     *simple.UndirectedGraph
	selfLoops map[string]bool
}

func newBlockGraph(state *models.WorkflowState) *blockGraph {
	g := &blockGraph{
		ids:       models.SortedBlockIDs(state.Blocks),
		index:     make(map[string]int64, len(state.Blocks)),
		flow:      simple.NewDirectedGraph(),
		links:     simple.NewUndirectedGraph(),
		selfLoops: make(map[string]bool),
	}

	for i, id := range g.ids {
		g.index[id] = int64(i)
		g.flow.AddNode(simple.Node(i))
		g.links.AddNode(simple.Node(i))
	}

	for _, edge := range state.Edges {
		from, okFrom := g.index[edge.Source]
		to, okTo := g.index[edge.Target]

		if !okFrom || !okTo {
			continue
		}

		if from == to {
			g.selfLoops[edge.Source] = true

			continue
		}

		g.links.SetEdge(g.links.NewEdge(simple.Node(from), simple.Node(to)))

		if isSubflowEdge(state, edge) {
			continue
		}

		g.flow.SetEdge(g.flow.NewEdge(simple.Node(from), simple.Node(to)))
	}

	for _, id := range g.ids {
		block := state.Blocks[id]
		if block == nil || block.ParentID == nil {
			continue
		}

		parent, ok := g.index[*block.ParentID]
		if !ok || parent == g.index[id] {
			continue
		}

		g.links.SetEdge(g.links.NewEdge(simple.Node(parent), simple.Node(g.index[id])))
	}

	return g
}

func (g *blockGraph) name(n graph.Node) string {
	return g.ids[n.ID()]
}

func (g *blockGraph) unreachable(starters []string) []string {
	reached := make(map[int64]bool, len(g.ids))

	bfs := traverse.BreadthFirst{
		Visit: func(n graph.Node) { reached[n.ID()] = true },
	}

	for _, starter := range starters {
		node := simple.Node(g.index[starter])
		reached[node.ID()] = true

		bfs.Walk(g.flow, node, func(graph.Node, int) bool { return false })
	}

	// blocks linked to a reached block only through containment run inside it
	changed := true
	for changed {
		changed = false

		for _, n := range graph.NodesOf(g.links.Nodes()) {
			if reached[n.ID()] {
				continue
			}

			for _, neighbour := range graph.NodesOf(g.links.From(n.ID())) {
				if reached[neighbour.ID()] && !g.flow.HasEdgeBetween(n.ID(), neighbour.ID()) {
					reached[n.ID()] = true
					changed = true

					break
				}
			}
		}
	}

	missing := make([]string, 0)

	for i, id := range g.ids {
		if !reached[int64(i)] {
			missing = append(missing, id)
		}
	}

	return missing
}

func (g *blockGraph) islands() [][]string {
	components := topo.ConnectedComponents(g.links)
	islands := make([][]string, 0, len(components))

	for _, component := range components {
		names := make([]string, 0, len(component))
		for _, n := range component {
			names = append(names, g.name(n))
		}

		sort.Strings(names)
		islands = append(islands, names)
	}

	sort.Slice(islands, func(i, j int) bool { return islands[i][0] < islands[j][0] })

	return islands
}

func (g *blockGraph) cycles() [][]string {
	cycles := make([][]string, 0)

	for _, component := range topo.TarjanSCC(g.flow) {
		if len(component) < 2 {
			continue
		}

		names := make([]string, 0, len(component))
		for _, n := range component {
			names = append(names, g.name(n))
		}

		sort.Strings(names)
		cycles = append(cycles, names)
	}

	for id := range g.selfLoops {
		cycles = append(cycles, []string{id})
	}

	sort.Slice(cycles, func(i, j int) bool {
		if cycles[i][0] != cycles[j][0] {
			return cycles[i][0] < cycles[j][0]
		}

		return len(cycles[i]) < len(cycles[j])
	})

	return cycles
}

func isSubflowEdge(state *models.WorkflowState, edge models.Edge) bool {
	for _, prefix := range subflowHandlePrefixes {
		if strings.HasPrefix(edge.SourceHandle, prefix) || strings.HasPrefix(edge.TargetHandle, prefix) {
			return true
		}
	}

	if _, ok := state.Subflows[edge.Source]; ok {
		return true
	}

	if target := state.Blocks[edge.Target]; target != nil && target.ParentID != nil && *target.ParentID == edge.Source {
		return true
	}

	return false
}
