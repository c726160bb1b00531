// Package payment verifies purchase transaction signatures against the chain
// RPC before any credits are granted.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/poolmind/poolmind/internal/utils"
)

var (
	ErrNotConfirmed   = errors.New("payment: transaction not confirmed")
	ErrTransactionErr = errors.New("payment: transaction failed on chain")
	ErrAlreadyUsed    = errors.New("payment: transaction signature already used")
)

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Verifier checks transaction signatures through the payment RPC. A signature
// is accepted once: replays are rejected for the lifetime of the process.
type Verifier struct {
	rpcURL string
	client httpDoer
	logger *zap.SugaredLogger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewVerifier(cfg utils.PaymentConfig, logger *zap.SugaredLogger) *Verifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Verifier{
		rpcURL: strings.TrimRight(cfg.RPCURL, "/"),
		client: &http.Client{Timeout: timeout},
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Verify confirms that signature identifies a successful on-chain transaction
// and has not been presented before. It first asks for the signature status;
// when the status endpoint has no record (nodes prune status history) it falls
// back to fetching the full transaction.
func (v *Verifier) Verify(ctx context.Context, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrNotConfirmed
	}

	// Reserve the signature before going to the RPC so a concurrent request
	// presenting the same signature is rejected while this one is in flight.
	v.mu.Lock()
	if _, used := v.seen[signature]; used {
		v.mu.Unlock()
		return ErrAlreadyUsed
	}
	v.seen[signature] = struct{}{}
	v.mu.Unlock()

	if err := v.verifyOnChain(ctx, signature); err != nil {
		v.mu.Lock()
		delete(v.seen, signature)
		v.mu.Unlock()
		return err
	}

	return nil
}

func (v *Verifier) verifyOnChain(ctx context.Context, signature string) error {
	confirmed, err := v.checkStatus(ctx, signature)
	if err != nil {
		if errors.Is(err, ErrTransactionErr) {
			return err
		}
		v.logger.Warnw("signature status check failed, falling back to getTransaction",
			"signature", signature, "error", err)
		confirmed = false
	}

	if !confirmed {
		return v.checkTransaction(ctx, signature)
	}
	return nil
}

type statusResponse struct {
	Result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

type transactionResponse struct {
	Result *struct {
		Meta struct {
			Err json.RawMessage `json:"err"`
		} `json:"meta"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (v *Verifier) checkStatus(ctx context.Context, signature string) (bool, error) {
	body, err := v.post(ctx, "getSignatureStatuses", []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	})
	if err != nil {
		return false, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("decode status response: %w", err)
	}
	if resp.Error != nil {
		return false, fmt.Errorf("status rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	if len(resp.Result.Value) == 0 || resp.Result.Value[0] == nil {
		return false, nil
	}

	status := resp.Result.Value[0]
	if len(status.Err) > 0 && string(status.Err) != "null" {
		return false, ErrTransactionErr
	}

	switch status.ConfirmationStatus {
	case "confirmed", "finalized":
		return true, nil
	}
	return false, nil
}

func (v *Verifier) checkTransaction(ctx context.Context, signature string) error {
	body, err := v.post(ctx, "getTransaction", []any{
		signature,
		map[string]any{"encoding": "json", "commitment": "confirmed"},
	})
	if err != nil {
		return fmt.Errorf("fetch transaction: %w", err)
	}

	var resp transactionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode transaction response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("transaction rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	if resp.Result == nil {
		return ErrNotConfirmed
	}
	if len(resp.Result.Meta.Err) > 0 && string(resp.Result.Meta.Err) != "null" {
		return ErrTransactionErr
	}

	return nil
}

func (v *Verifier) post(ctx context.Context, method string, params []any) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call payment rpc: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read payment rpc response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, fmt.Errorf("payment rpc returned %d: %s", resp.StatusCode, snippet)
	}

	return body, nil
}
