package synthesizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/forgestate/pkg/models"
)

var patternKeywords = []struct {
	pattern  models.Pattern
	keywords []string
}{
	{models.PatternTradingBot, []string{"trading", "trade", "crypto", "market", "stop_loss", "take_profit", "exchange"}},
	{models.PatternLeadGeneration, []string{"lead", "sales", "crm", "prospect", "qualification"}},
	{models.PatternMultiAgentResearch, []string{"research", "researcher", "multi-agent", "coordinator"}},
	{models.PatternCustomerSupport, []string{"support", "ticket", "customer", "escalation", "escalate"}},
	{models.PatternWeb3Automation, []string{"web3", "blockchain", "defi", "contract_address", "chain_id", "wallet"}},
	{models.PatternDataPipeline, []string{"etl", "pipeline", "transform", "ingestion", "extract"}},
	{models.PatternContentGeneration, []string{"content", "blog", "article", "writer", "seo"}},
}

// ClassifyHeuristically scores each pattern by keyword hits over block types,
// names, sub-block values and variables. Ties go to the earlier pattern in the
// vocabulary; no hits yields unknown.
func ClassifyHeuristically(state *models.WorkflowState) models.Pattern {
	corpus := strings.ToLower(heuristicCorpus(state))

	best, bestScore := models.PatternUnknown, 0

	for _, rule := range patternKeywords {
		score := 0
		for _, keyword := range rule.keywords {
			score += strings.Count(corpus, keyword)
		}

		if score > bestScore {
			best, bestScore = rule.pattern, score
		}
	}

	return best
}

func heuristicCorpus(state *models.WorkflowState) string {
	parts := make([]string, 0)

	for _, id := range models.SortedBlockIDs(state.Blocks) {
		block := state.Blocks[id]
		if block == nil {
			continue
		}

		parts = append(parts, block.Type, block.Name)

		keys := make([]string, 0, len(block.SubBlocks))
		for key := range block.SubBlocks {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		for _, key := range keys {
			if s, ok := block.SubBlocks[key].Value.(string); ok {
				parts = append(parts, s)
			}
		}
	}

	keys := make([]string, 0, len(state.Variables))
	for key := range state.Variables {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		parts = append(parts, key, fmt.Sprint(state.Variables[key]))
	}

	return strings.Join(parts, " ")
}
