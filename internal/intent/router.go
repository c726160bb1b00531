// Package intent dispatches chat messages to exactly one handler based on a
// precomputed set of intent flags.
package intent

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNoHandler = errors.New("intent: no handler available")

// Flags are the precomputed intent signals for one message. Multiple flags
// may be set; routing picks a single winner by priority.
type Flags struct {
	PremiumAnalysis bool `json:"premiumAnalysis"`
	PoolMetrics     bool `json:"poolMetrics"`
	MCPData         bool `json:"mcpData"`
	Automation      bool `json:"automation"`
	Swap            bool `json:"swap"`
	Educational     bool `json:"educational"`
	AlternativePool bool `json:"alternativePool"`
	PoolRequest     bool `json:"poolRequest"`
}

// Request carries the message being routed plus whatever pool context the
// caller resolved up front.
type Request struct {
	WalletAddress string
	Content       string
	PoolAddress   string
}

// Response is a handler's reply. PoolData is an opaque document attached to
// the persisted assistant message when present.
type Response struct {
	Reply    string
	PoolData json.RawMessage
	Handler  string
}

// HandlerFunc handles a single routed message.
type HandlerFunc func(ctx context.Context, req Request) (*Response, error)

// Handlers holds one slot per intent. Nil slots are skipped and routing falls
// through to the next priority; GeneralChat is the required fallback.
type Handlers struct {
	PremiumAnalysis HandlerFunc
	PoolMetrics     HandlerFunc
	MCPData         HandlerFunc
	Automation      HandlerFunc
	Swap            HandlerFunc
	Educational     HandlerFunc
	AlternativePool HandlerFunc
	PoolRequest     HandlerFunc
	GeneralChat     HandlerFunc
}

// Router picks one handler per message. No retries, no fan-out: the first
// matching intent in priority order wins.
type Router struct {
	handlers Handlers
}

func NewRouter(handlers Handlers) *Router {
	return &Router{handlers: handlers}
}

type candidate struct {
	name    string
	matched bool
	fn      HandlerFunc
}

// Route dispatches req to the highest-priority matching handler. The priority
// order is fixed: premium analysis, pool metrics, MCP data, automation, swap,
// educational, alternative pool, pool request, then general chat.
func (r *Router) Route(ctx context.Context, flags Flags, req Request) (*Response, error) {
	chain := []candidate{
		{"premium_analysis", flags.PremiumAnalysis, r.handlers.PremiumAnalysis},
		{"pool_metrics", flags.PoolMetrics, r.handlers.PoolMetrics},
		{"mcp_data", flags.MCPData, r.handlers.MCPData},
		{"automation", flags.Automation, r.handlers.Automation},
		{"swap", flags.Swap, r.handlers.Swap},
		{"educational", flags.Educational, r.handlers.Educational},
		{"alternative_pool", flags.AlternativePool, r.handlers.AlternativePool},
		{"pool_request", flags.PoolRequest, r.handlers.PoolRequest},
	}

	for _, c := range chain {
		if !c.matched || c.fn == nil {
			continue
		}
		return r.invoke(ctx, c.name, c.fn, req)
	}

	if r.handlers.GeneralChat == nil {
		return nil, ErrNoHandler
	}
	return r.invoke(ctx, "general_chat", r.handlers.GeneralChat, req)
}

func (r *Router) invoke(ctx context.Context, name string, fn HandlerFunc, req Request) (*Response, error) {
	resp, err := fn(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &Response{}
	}
	resp.Handler = name
	return resp, nil
}
