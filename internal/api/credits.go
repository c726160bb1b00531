package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/poolmind/poolmind/internal/apierrors"
	"github.com/poolmind/poolmind/internal/models"
	"github.com/poolmind/poolmind/internal/payment"
	"github.com/poolmind/poolmind/internal/services"
)

const purchaseContextKey = "purchaseRequest"

type purchaseRequest struct {
	WalletAddress        string `json:"walletAddress"`
	Package              string `json:"package"`
	TransactionSignature string `json:"transactionSignature"`

	pkg models.CreditPackage
}

// validatePurchase rejects malformed bodies and unknown packages before the
// payment middleware runs, so no verification handshake is spent on a request
// that can never succeed.
func (h *Handler) validatePurchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, apierrors.Validation("body", "invalid JSON payload"))
		c.Abort()
		return
	}

	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	if req.WalletAddress == "" {
		writeAPIError(c, apierrors.Validation("walletAddress", "walletAddress is required"))
		c.Abort()
		return
	}

	pkg, ok := models.PackageByName(strings.TrimSpace(req.Package))
	if !ok {
		writeAPIError(c, apierrors.Validation("package",
			"unknown package, expected one of: "+strings.Join(models.PackageNames(), ", ")))
		c.Abort()
		return
	}
	req.pkg = pkg

	req.TransactionSignature = strings.TrimSpace(req.TransactionSignature)
	if req.TransactionSignature == "" {
		writeAPIError(c, apierrors.Validation("transactionSignature", "transactionSignature is required"))
		c.Abort()
		return
	}

	c.Set(purchaseContextKey, &req)
	c.Next()
}

// requirePayment performs the external payment-verification handshake.
func (h *Handler) requirePayment(c *gin.Context) {
	req := c.MustGet(purchaseContextKey).(*purchaseRequest)

	err := h.verifier.Verify(c.Request.Context(), req.TransactionSignature)
	if err == nil {
		c.Next()
		return
	}

	switch {
	case errors.Is(err, payment.ErrNotConfirmed):
		writeAPIError(c, apierrors.Unauthorized("payment transaction not confirmed"))
	case errors.Is(err, payment.ErrTransactionErr):
		writeAPIError(c, apierrors.Unauthorized("payment transaction failed on chain"))
	case errors.Is(err, payment.ErrAlreadyUsed):
		writeAPIError(c, apierrors.Unauthorized("transaction signature already redeemed"))
	default:
		h.writeInternal(c, "payment verification unavailable", err)
	}
	c.Abort()
}

func (h *Handler) handlePurchase(c *gin.Context) {
	req := c.MustGet(purchaseContextKey).(*purchaseRequest)

	result, err := h.credits.Purchase(c.Request.Context(), req.WalletAddress, req.pkg, req.TransactionSignature)
	if err != nil {
		if errors.Is(err, services.ErrLedgerFailed) {
			// Payment already went through; never retry the ledger write
			// automatically. The signature is the user's proof of payment.
			writeAPIError(c, &apierrors.APIError{
				Code:   apierrors.CodeInternal,
				Status: http.StatusInternalServerError,
				Message: fmt.Sprintf(
					"payment verified but credit grant failed; contact support with transaction signature %s",
					req.TransactionSignature),
			})
			return
		}
		h.writeInternal(c, "failed to complete purchase", err)
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"package":      req.pkg.Name,
		"usdPrice":     req.pkg.USDPrice,
		"creditsAdded": result.CreditsAdded,
		"newBalance":   result.NewBalance,
	})
}

func (h *Handler) handleBalance(c *gin.Context) {
	wallet := strings.TrimSpace(c.Query("walletAddress"))
	if wallet == "" {
		writeAPIError(c, apierrors.Validation("walletAddress", "walletAddress is required"))
		return
	}

	status, err := h.credits.CheckAccess(c.Request.Context(), wallet)
	if err != nil {
		h.writeInternal(c, "failed to check access", err)
		return
	}

	respondData(c, http.StatusOK, status)
}
