package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// Subscription is the decoded check_subscription payload.
type Subscription struct {
	Active    bool   `json:"active"`
	Plan      string `json:"plan,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// Balance is the decoded get_credit_balance payload.
type Balance struct {
	Balance int64 `json:"balance"`
}

// UseCreditsResult is the decoded use_credits payload.
type UseCreditsResult struct {
	Success   bool  `json:"success"`
	Remaining int64 `json:"remaining"`
}

// PurchaseResult is the decoded purchase_credits payload.
type PurchaseResult struct {
	Success      bool  `json:"success"`
	CreditsAdded int64 `json:"creditsAdded"`
	NewBalance   int64 `json:"newBalance"`
}

func (c *Client) CheckSubscription(ctx context.Context, walletAddress string) (*Subscription, error) {
	raw, err := c.Call(ctx, "check_subscription", map[string]any{"walletAddress": walletAddress})
	if err != nil {
		return nil, err
	}

	var sub Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	return &sub, nil
}

func (c *Client) GetCreditBalance(ctx context.Context, walletAddress string) (int64, error) {
	raw, err := c.Call(ctx, "get_credit_balance", map[string]any{"walletAddress": walletAddress})
	if err != nil {
		return 0, err
	}

	var bal Balance
	if err := json.Unmarshal(raw, &bal); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	return bal.Balance, nil
}

func (c *Client) UseCredits(ctx context.Context, walletAddress string, amount int64, action string) (*UseCreditsResult, error) {
	raw, err := c.Call(ctx, "use_credits", map[string]any{
		"walletAddress": walletAddress,
		"amount":        amount,
		"action":        action,
	})
	if err != nil {
		return nil, err
	}

	var result UseCreditsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode use_credits: %w", err)
	}
	return &result, nil
}

func (c *Client) PurchaseCredits(ctx context.Context, walletAddress, packageName string, credits int64, signature string) (*PurchaseResult, error) {
	raw, err := c.Call(ctx, "purchase_credits", map[string]any{
		"walletAddress":        walletAddress,
		"package":              packageName,
		"credits":              credits,
		"transactionSignature": signature,
	})
	if err != nil {
		return nil, err
	}

	var result PurchaseResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode purchase_credits: %w", err)
	}
	return &result, nil
}

// GetPoolMetrics returns the raw metrics document for a pool; the shape is
// owned by the MCP server and passed through to clients untouched.
func (c *Client) GetPoolMetrics(ctx context.Context, poolAddress string) (json.RawMessage, error) {
	return c.Call(ctx, "get_pool_metrics", map[string]any{"poolAddress": poolAddress})
}
