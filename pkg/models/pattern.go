package models

import "strings"

// Pattern is a coarse label for a workflow's intent.
type Pattern string

const (
	PatternLeadGeneration     Pattern = "lead_generation"
	PatternTradingBot         Pattern = "trading_bot"
	PatternMultiAgentResearch Pattern = "multi_agent_research"
	PatternCustomerSupport    Pattern = "customer_support"
	PatternWeb3Automation     Pattern = "web3_automation"
	PatternDataPipeline       Pattern = "data_pipeline"
	PatternContentGeneration  Pattern = "content_generation"
	PatternUnknown            Pattern = "unknown"
)

// Patterns is the closed vocabulary, excluding unknown.
var Patterns = []Pattern{
	PatternLeadGeneration,
	PatternTradingBot,
	PatternMultiAgentResearch,
	PatternCustomerSupport,
	PatternWeb3Automation,
	PatternDataPipeline,
	PatternContentGeneration,
}

// ParsePattern trims and lowercases raw; anything outside the vocabulary is unknown.
func ParsePattern(raw string) Pattern {
	candidate := Pattern(strings.ToLower(strings.TrimSpace(raw)))

	for _, p := range Patterns {
		if p == candidate {
			return p
		}
	}

	return PatternUnknown
}
