// services/settlement_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementNetwork is the external value-transfer network. It is an
// unsynchronized, possibly slow dependency and is never called while a
// ledger transaction is open.
type SettlementNetwork interface {
	// ResolveTokenAccount returns the reward-token account owned by a
	// wallet on the network.
	ResolveTokenAccount(ctx context.Context, ownerWallet string) (string, error)
	// SubmitTransfer moves baseAmount (already scaled to the token's
	// base units) between two token accounts and returns the
	// transaction signature. reference is an idempotency key: the
	// network deduplicates a resubmission carrying the same reference,
	// so an at-least-once caller can never double-pay.
	SubmitTransfer(ctx context.Context, fromTokenAccount, toTokenAccount string, baseAmount uint64, reference string) (string, error)
	// AwaitConfirmation blocks until the network confirms the
	// signature, the context expires, or the implementation gives up.
	// It must return in bounded time so a stuck confirmation feeds
	// the caller's retry path instead of wedging it.
	AwaitConfirmation(ctx context.Context, signature string) error
}

// SettlementClientConfig is loaded once at process start; a missing
// required value is fatal before any job touches an account.
type SettlementClientConfig struct {
	RPCURL        string
	PoolWallet    string
	TokenMint     string
	TokenDecimals int32
	ServiceToken  string
}

// LoadSettlementConfig reads the settlement network configuration from
// the environment. The token decimal precision is validated here, once,
// rather than assumed at each call site.
func LoadSettlementConfig() (*SettlementClientConfig, error) {
	cfg := &SettlementClientConfig{
		RPCURL:       os.Getenv("SETTLEMENT_RPC_URL"),
		PoolWallet:   os.Getenv("SETTLEMENT_POOL_WALLET"),
		TokenMint:    os.Getenv("REWARD_TOKEN_MINT"),
		ServiceToken: os.Getenv("SETTLEMENT_SERVICE_TOKEN"),
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("SETTLEMENT_RPC_URL environment variable not set")
	}
	if cfg.PoolWallet == "" {
		return nil, fmt.Errorf("SETTLEMENT_POOL_WALLET environment variable not set")
	}
	if cfg.TokenMint == "" {
		return nil, fmt.Errorf("REWARD_TOKEN_MINT environment variable not set")
	}

	decimalsStr := os.Getenv("REWARD_TOKEN_DECIMALS")
	if decimalsStr == "" {
		return nil, fmt.Errorf("REWARD_TOKEN_DECIMALS environment variable not set")
	}
	decimals, err := strconv.Atoi(decimalsStr)
	if err != nil || decimals < 0 || decimals > 18 {
		return nil, fmt.Errorf("REWARD_TOKEN_DECIMALS must be an integer in [0,18], got %q", decimalsStr)
	}
	cfg.TokenDecimals = int32(decimals)
	return cfg, nil
}

// ToBaseUnits scales a token amount by the configured decimal precision,
// truncating any sub-base-unit remainder.
func (c *SettlementClientConfig) ToBaseUnits(amount decimal.Decimal) uint64 {
	return amount.Shift(c.TokenDecimals).Truncate(0).BigInt().Uint64()
}

// HTTPSettlementClient talks JSON-RPC to the settlement network gateway.
type HTTPSettlementClient struct {
	Config       *SettlementClientConfig
	HTTPClient   *http.Client
	PollInterval time.Duration
	// ConfirmTimeout caps one AwaitConfirmation call. A transfer the
	// network keeps reporting "pending" past this ceiling is handed
	// back as an error for redelivery to retry.
	ConfirmTimeout time.Duration
}

func NewHTTPSettlementClient(cfg *SettlementClientConfig) *HTTPSettlementClient {
	return &HTTPSettlementClient{
		Config: cfg,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		PollInterval:   2 * time.Second,
		ConfirmTimeout: 90 * time.Second,
	}
}

type rpcRequest struct {
	ID     int         `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *HTTPSettlementClient) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Config.RPCURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Config.ServiceToken != "" {
		req.Header.Set("X-Service-Token", c.Config.ServiceToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("settlement network call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("settlement network returned status %d for %s: %s", resp.StatusCode, method, string(raw))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("settlement network error on %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *HTTPSettlementClient) ResolveTokenAccount(ctx context.Context, ownerWallet string) (string, error) {
	var result struct {
		TokenAccount string `json:"token_account"`
	}
	params := map[string]string{"owner": ownerWallet, "mint": c.Config.TokenMint}
	if err := c.call(ctx, "resolveTokenAccount", params, &result); err != nil {
		return "", err
	}
	if result.TokenAccount == "" {
		return "", fmt.Errorf("no token account for wallet %s", ownerWallet)
	}
	return result.TokenAccount, nil
}

func (c *HTTPSettlementClient) SubmitTransfer(ctx context.Context, fromTokenAccount, toTokenAccount string, baseAmount uint64, reference string) (string, error) {
	var result struct {
		Signature string `json:"signature"`
	}
	params := map[string]interface{}{
		"from":      fromTokenAccount,
		"to":        toTokenAccount,
		"amount":    baseAmount,
		"mint":      c.Config.TokenMint,
		"reference": reference,
	}
	if err := c.call(ctx, "submitTransfer", params, &result); err != nil {
		return "", err
	}
	if result.Signature == "" {
		return "", fmt.Errorf("settlement network returned empty signature")
	}
	return result.Signature, nil
}

// AwaitConfirmation polls the network until the transfer is finalized
// or ConfirmTimeout elapses.
func (c *HTTPSettlementClient) AwaitConfirmation(ctx context.Context, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, c.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		var result struct {
			Status string `json:"status"` // pending | confirmed | failed
		}
		params := map[string]string{"signature": signature}
		if err := c.call(ctx, "getConfirmation", params, &result); err != nil {
			return err
		}
		switch result.Status {
		case "confirmed":
			return nil
		case "failed":
			return fmt.Errorf("transfer %s failed on the settlement network", signature)
		}

		log.Printf("⏳ [SETTLEMENT_NET] Waiting for confirmation of %s...", signature)
		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting for confirmation of %s: %w", signature, ctx.Err())
		case <-ticker.C:
		}
	}
}
