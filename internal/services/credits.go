package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/poolmind/poolmind/internal/mcp"
	"github.com/poolmind/poolmind/internal/models"
)

// ErrLedgerFailed marks a purchase where payment was already verified but the
// credit ledger write failed. Callers must not retry automatically: the ledger
// has no idempotency guarantee, and a blind retry could double-credit.
var ErrLedgerFailed = errors.New("credits: ledger write failed after verified payment")

const (
	ReasonInsufficientCredits = "insufficient_credits"
	WarningDeductionFailed    = "credit_deduction_failed"
)

// creditLedger is the slice of the MCP server the credits service uses.
type creditLedger interface {
	CheckSubscription(ctx context.Context, walletAddress string) (*mcp.Subscription, error)
	GetCreditBalance(ctx context.Context, walletAddress string) (int64, error)
	UseCredits(ctx context.Context, walletAddress string, amount int64, action string) (*mcp.UseCreditsResult, error)
	PurchaseCredits(ctx context.Context, walletAddress, packageName string, credits int64, signature string) (*mcp.PurchaseResult, error)
}

// AccessStatus combines subscription state and credit balance.
type AccessStatus struct {
	SubscriptionActive bool  `json:"subscriptionActive"`
	CreditsBalance     int64 `json:"creditsBalance"`
	HasAccess          bool  `json:"hasAccess"`
}

// AccessResult is the outcome of a verify-access check.
type AccessResult struct {
	HasAccess bool   `json:"hasAccess"`
	Reason    string `json:"reason,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// CreditsService implements the access and purchase rules over the remote
// credit ledger.
type CreditsService struct {
	ledger creditLedger
	logger *zap.SugaredLogger
}

func NewCreditsService(ledger creditLedger, logger *zap.SugaredLogger) *CreditsService {
	return &CreditsService{ledger: ledger, logger: logger}
}

// CheckAccess reads subscription state and credit balance fresh from the
// ledger. Access is granted by either an active subscription or a positive
// balance.
func (s *CreditsService) CheckAccess(ctx context.Context, walletAddress string) (*AccessStatus, error) {
	sub, err := s.ledger.CheckSubscription(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("check subscription: %w", err)
	}

	balance, err := s.ledger.GetCreditBalance(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("get credit balance: %w", err)
	}

	return &AccessStatus{
		SubscriptionActive: sub.Active,
		CreditsBalance:     balance,
		HasAccess:          sub.Active || balance > 0,
	}, nil
}

// VerifyAccess re-checks status fresh and, when no subscription is active,
// requires and deducts requireCredits for the given action.
//
// Deliberate policy: an active subscription grants access with no deduction,
// and a failed use_credits call still grants access. The failure is logged
// and surfaced as a warning instead of blocking the user mid-session.
func (s *CreditsService) VerifyAccess(ctx context.Context, walletAddress string, requireCredits int64, action string) (*AccessResult, error) {
	status, err := s.CheckAccess(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	if status.SubscriptionActive {
		return &AccessResult{HasAccess: true}, nil
	}

	if status.CreditsBalance < requireCredits {
		return &AccessResult{HasAccess: false, Reason: ReasonInsufficientCredits}, nil
	}

	if _, err := s.ledger.UseCredits(ctx, walletAddress, requireCredits, action); err != nil {
		s.logger.Warnw("credit deduction failed, granting access anyway",
			"wallet", walletAddress,
			"action", action,
			"credits", requireCredits,
			"error", err,
		)
		return &AccessResult{HasAccess: true, Warning: WarningDeductionFailed}, nil
	}

	return &AccessResult{HasAccess: true}, nil
}

// Purchase credits the wallet with the package amount after payment has been
// verified upstream. A ledger failure here is wrapped in ErrLedgerFailed so
// the API layer can return the support-contact remediation.
func (s *CreditsService) Purchase(ctx context.Context, walletAddress string, pkg models.CreditPackage, signature string) (*mcp.PurchaseResult, error) {
	result, err := s.ledger.PurchaseCredits(ctx, walletAddress, pkg.Name, pkg.Credits, signature)
	if err != nil {
		s.logger.Errorw("purchase_credits failed after verified payment",
			"wallet", walletAddress,
			"package", pkg.Name,
			"signature", signature,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrLedgerFailed, err)
	}

	return result, nil
}
