// Package provider is the HTTP client for the external transfer rail.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/msantanna/splitledger/internal/engine"
	"github.com/msantanna/splitledger/internal/logging"
)

type Client struct {
	baseURL    string
	currency   string
	httpClient *http.Client
}

func NewClient(baseURL, currency string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		currency: currency,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type transferPayload struct {
	BeneficiaryRef string `json:"beneficiary_ref"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

type transferResponse struct {
	TransferID string `json:"transfer_id"`
}

// Transfer submits one payout. Amounts go over the wire already rounded to
// cents; the rail is a cent-denominated system.
func (c *Client) Transfer(ctx context.Context, beneficiaryRef string, amount decimal.Decimal) (*engine.TransferResult, error) {
	log := logging.FromContext(ctx)

	payload := transferPayload{
		BeneficiaryRef: beneficiaryRef,
		Amount:         amount.RoundBank(2).StringFixed(2),
		Currency:       c.currency,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("Transfer: marshal: %w", err)
	}

	url := c.baseURL + "/transfers"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Transfer: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Transfer: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("transfer provider responded",
		"status", resp.StatusCode,
		"beneficiary", beneficiaryRef,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Transfer: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("Transfer: decode response: %w", err)
	}

	return &engine.TransferResult{ExternalRef: result.TransferID}, nil
}
