package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/poolmind/poolmind/internal/intent"
)

// poolMetricsSummary picks the fields the assistant comments on out of the
// opaque metrics document. Unknown fields pass through untouched in PoolData.
type poolMetricsSummary struct {
	TVL       float64 `json:"tvl"`
	Volume24h float64 `json:"volume24h"`
	APY       float64 `json:"apy"`
	Price     float64 `json:"price"`
	TokenPair string  `json:"tokenPair"`
}

// NewAssistantRouter wires the nine intent handlers around the pool service.
// Handlers stay thin: fetch, shape a reply, attach the raw document.
func NewAssistantRouter(pools *PoolService, logger *zap.SugaredLogger) *intent.Router {
	static := func(reply string) intent.HandlerFunc {
		return func(ctx context.Context, req intent.Request) (*intent.Response, error) {
			return &intent.Response{Reply: reply}, nil
		}
	}

	metricsReply := func(ctx context.Context, req intent.Request, premium bool) (*intent.Response, error) {
		if req.PoolAddress == "" {
			return &intent.Response{Reply: "Which pool should I look at? Share a pool address and I'll pull its metrics."}, nil
		}

		raw, err := pools.Metrics(ctx, req.PoolAddress)
		if err != nil {
			return nil, fmt.Errorf("pool metrics for %s: %w", req.PoolAddress, err)
		}

		var summary poolMetricsSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			logger.Warnw("pool metrics payload not summarisable", "pool", req.PoolAddress, "error", err)
		}

		var b strings.Builder
		pair := summary.TokenPair
		if pair == "" {
			pair = req.PoolAddress
		}
		fmt.Fprintf(&b, "Here is the latest for %s:\n", pair)
		fmt.Fprintf(&b, "- TVL: $%.2f\n", summary.TVL)
		fmt.Fprintf(&b, "- 24h volume: $%.2f\n", summary.Volume24h)
		fmt.Fprintf(&b, "- APY: %.2f%%", summary.APY)
		if premium {
			b.WriteString("\n\nPremium read: volume-to-TVL ratio ")
			if summary.TVL > 0 {
				fmt.Fprintf(&b, "is %.3f — ", summary.Volume24h/summary.TVL)
				if summary.Volume24h/summary.TVL >= 0.1 {
					b.WriteString("fee income is carrying this APY, which tends to hold up better than incentives.")
				} else {
					b.WriteString("fees are thin here; check how much of the APY is incentive emissions before sizing in.")
				}
			} else {
				b.WriteString("cannot be computed without TVL data.")
			}
		}

		return &intent.Response{Reply: b.String(), PoolData: raw}, nil
	}

	return intent.NewRouter(intent.Handlers{
		PremiumAnalysis: func(ctx context.Context, req intent.Request) (*intent.Response, error) {
			return metricsReply(ctx, req, true)
		},
		PoolMetrics: func(ctx context.Context, req intent.Request) (*intent.Response, error) {
			return metricsReply(ctx, req, false)
		},
		MCPData: func(ctx context.Context, req intent.Request) (*intent.Response, error) {
			if req.PoolAddress == "" {
				return &intent.Response{Reply: "Tell me which pool you want raw data for and I'll fetch it."}, nil
			}
			raw, err := pools.Metrics(ctx, req.PoolAddress)
			if err != nil {
				return nil, fmt.Errorf("mcp data for %s: %w", req.PoolAddress, err)
			}
			return &intent.Response{
				Reply:    "Raw pool data attached below.",
				PoolData: raw,
			}, nil
		},
		Automation: static("Automation rules (rebalance triggers, range exits) are configured from the positions dashboard. Open a position and pick \"Automate\" to set thresholds."),
		Swap:       static("I can't execute swaps, but your connected wallet can: open the swap panel, pick the token pair, and review price impact before confirming."),
		Educational: static("Liquidity pools earn fees from traders in exchange for price risk: when the pair diverges, your position rebalances into the weaker asset (impermanent loss). " +
			"APY shown on dashboards mixes trading fees and incentive emissions, and the two behave very differently over time."),
		AlternativePool: static("To compare alternatives, look for pools with the same pair but deeper liquidity or a steadier fee-to-TVL ratio. Share a pool address and ask for metrics to compare side by side."),
		PoolRequest:     static("Paste the pool address you want tracked and it will appear in your dashboard after the next metrics sync."),
		GeneralChat:     static("I'm your pool assistant: ask about pool metrics, position automation, swaps, or how liquidity provision works."),
	})
}
