package templates

import (
	"fmt"
	"strings"

	"github.com/dukex/forgestate/pkg/models"
)

type exchangeAPI struct {
	base   string
	ticker string
	order  string
	symbol func(pair string) string
}

var exchanges = map[string]exchangeAPI{
	"binance": {
		base:   "https://api.binance.com",
		ticker: "/api/v3/ticker/price",
		order:  "/api/v3/order",
		symbol: func(pair string) string { return strings.ReplaceAll(strings.ToUpper(pair), "/", "") },
	},
	"coinbase": {
		base:   "https://api.exchange.coinbase.com",
		ticker: "/products/{symbol}/ticker",
		order:  "/orders",
		symbol: func(pair string) string { return strings.ReplaceAll(strings.ToUpper(pair), "/", "-") },
	},
	"kraken": {
		base:   "https://api.kraken.com",
		ticker: "/0/public/Ticker",
		order:  "/0/private/AddOrder",
		symbol: func(pair string) string { return strings.ReplaceAll(strings.ToUpper(pair), "/", "") },
	},
}

func tradingBot() *Template {
	return &Template{
		Name:        "trading_bot",
		DisplayName: "Crypto Trading Bot",
		Pattern:     models.PatternTradingBot,
		Description: "Automated cryptocurrency trading with stop-loss and take-profit guards",
		Category:    "Web3 Trading",
		Complexity:  models.ComplexityAdvanced,
		Tags:        []string{"crypto", "trading", "defi", "automation"},
		Schema: objectSchema("Trading bot parameters", nil, map[string]*models.Property{
			"trading_pair":           stringParam("Pair to trade, e.g. BTC/USD", "BTC/USD"),
			"stop_loss":              numberParam("Stop-loss threshold in percent (negative)", -5),
			"take_profit":            numberParam("Take-profit threshold in percent", 10),
			"exchange":               enumParam("Exchange API to trade on", "binance", "binance", "coinbase", "kraken"),
			"check_interval_minutes": rangeParam("integer", "Minutes between market checks", 5, 1, 59),
		}),
		Build: buildTradingBot,
	}
}

func buildTradingBot(p Params) *Blueprint {
	pair := p.String("trading_pair")
	stopLoss := p.Number("stop_loss")
	takeProfit := p.Number("take_profit")
	exchange := exchanges[p.String("exchange")]
	symbol := exchange.symbol(pair)

	tickerURL := exchange.base + strings.ReplaceAll(exchange.ticker, "{symbol}", symbol)

	return &Blueprint{
		Name:        "Trading Bot - " + pair,
		Description: fmt.Sprintf("Automated trading bot for %s with %s%% stop-loss", pair, formatNumber(stopLoss)),
		Color:       "#FF6B6B",
		Blocks: []*models.Block{
			block("starter_1", "starter", "Market Monitor", 0, 0, map[string]any{
				"startWorkflow":  "schedule",
				"scheduleType":   "cron",
				"cronExpression": fmt.Sprintf("*/%d * * * *", p.Int("check_interval_minutes")),
			}),
			block("api_1", "api", "Price Feed", 1, 0, map[string]any{
				"url":    tickerURL,
				"method": "GET",
				"params": map[string]any{"symbol": symbol},
			}),
			block("agent_1", "agent", "Trading Decision", 2, 0, map[string]any{
				"model": "gpt-4",
				"systemPrompt": fmt.Sprintf(
					"You are a disciplined crypto trader for %s. Analyze the price feed and technical indicators. "+
						"Exit when the position reaches %s%% (stop-loss) or %s%% (take-profit). "+
						"Answer with a JSON decision: buy, sell or hold.",
					pair, formatNumber(stopLoss), formatNumber(takeProfit)),
				"temperature": 0.3,
			}),
			block("api_2", "api", "Execute Trade", 3, 0, map[string]any{
				"url":     exchange.base + exchange.order,
				"method":  "POST",
				"headers": map[string]any{"X-API-KEY": "{{env.EXCHANGE_API_KEY}}"},
			}),
			block("output_1", "output", "Trade Report", 4, 0, map[string]any{
				"outputType":  "log",
				"destination": "trades",
			}),
		},
		Edges: chain("starter_1", "api_1", "agent_1", "api_2", "output_1"),
		Variables: map[string]any{
			"TRADING_PAIR": pair,
			"STOP_LOSS":    stopLoss,
			"TAKE_PROFIT":  takeProfit,
		},
	}
}

var chainIDs = map[string]int{
	"ethereum": 1,
	"polygon":  137,
	"arbitrum": 42161,
}

func web3Automation() *Template {
	addressPattern := stringParam("Contract to monitor", "0x0000000000000000000000000000000000000000")
	addressPattern.Pattern = "^0x[0-9a-fA-F]{40}$"

	return &Template{
		Name:        "web3_automation",
		DisplayName: "Web3 DeFi Automation",
		Pattern:     models.PatternWeb3Automation,
		Description: "Monitor smart contracts and act on DeFi opportunities",
		Category:    "Blockchain",
		Complexity:  models.ComplexityAdvanced,
		Tags:        []string{"web3", "defi", "blockchain", "smart-contracts"},
		Schema: objectSchema("Web3 automation parameters", nil, map[string]*models.Property{
			"chain":                  enumParam("Network to monitor", "ethereum", "ethereum", "polygon", "arbitrum"),
			"contract_address":       addressPattern,
			"slippage_tolerance":     rangeParam("number", "Maximum slippage in percent", 0.5, 0, 5),
			"check_interval_minutes": rangeParam("integer", "Minutes between contract checks", 5, 1, 59),
		}),
		Build: buildWeb3Automation,
	}
}

func buildWeb3Automation(p Params) *Blueprint {
	network := p.String("chain")
	address := p.String("contract_address")

	return &Blueprint{
		Name:        "Web3 Automation - " + network,
		Description: fmt.Sprintf("Monitors %s on %s and executes DeFi actions", address, network),
		Color:       "#F39C12",
		Blocks: []*models.Block{
			block("starter_1", "starter", "Contract Monitor", 0, 0, map[string]any{
				"startWorkflow":  "schedule",
				"scheduleType":   "cron",
				"cronExpression": fmt.Sprintf("*/%d * * * *", p.Int("check_interval_minutes")),
			}),
			block("api_1", "api", "Blockchain Query", 1, 0, map[string]any{
				"url":     "{{env.WEB3_RPC_URL}}",
				"method":  "POST",
				"headers": map[string]any{"Content-Type": "application/json"},
				"body": map[string]any{
					"jsonrpc": "2.0",
					"method":  "eth_call",
					"params":  []any{map[string]any{"to": address}, "latest"},
				},
			}),
			block("agent_1", "agent", "DeFi Analyst", 2, 0, map[string]any{
				"model":        "gpt-4",
				"systemPrompt": "You are a DeFi protocol expert. Analyze smart contract data and identify opportunities or risks.",
				"temperature":  0.3,
			}),
			block("tool_1", "tool", "Transaction Builder", 3, 0, map[string]any{
				"toolType":      "web3_transaction",
				"configuration": map[string]any{"gasSettings": "auto", "chainId": chainIDs[network]},
			}),
			block("output_1", "output", "Execution Log", 4, 0, map[string]any{
				"outputType":  "log",
				"destination": "web3-executions",
			}),
		},
		Edges: chain("starter_1", "api_1", "agent_1", "tool_1", "output_1"),
		Variables: map[string]any{
			"CONTRACT_ADDRESS":   address,
			"CHAIN_ID":           chainIDs[network],
			"GAS_LIMIT":          200000,
			"SLIPPAGE_TOLERANCE": p.Number("slippage_tolerance"),
		},
	}
}
