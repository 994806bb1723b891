// services/accounting_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UnstakeNotifier tells the downstream accounting collaborator that an
// unstake settled on the network.
type UnstakeNotifier interface {
	NotifyUnstakeSettled(ctx context.Context, stakeID, txSignature string) error
}

// AccountingClient posts settlement confirmations to the accounting
// service. One POST per completed unstake.
type AccountingClient struct {
	BaseURL      string
	ServiceToken string
	HTTPClient   *http.Client
}

func NewAccountingClient(baseURL, serviceToken string) *AccountingClient {
	return &AccountingClient{
		BaseURL:      baseURL,
		ServiceToken: serviceToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *AccountingClient) NotifyUnstakeSettled(ctx context.Context, stakeID, txSignature string) error {
	payload, err := json.Marshal(map[string]string{
		"stake_id":     stakeID,
		"tx_signature": txSignature,
	})
	if err != nil {
		return fmt.Errorf("failed to encode unstake notification: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/internal/unstakes/settled", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create unstake notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.ServiceToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call accounting service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("accounting service returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
