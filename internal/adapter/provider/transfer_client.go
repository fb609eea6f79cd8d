// Package provider holds the client for the external funds-transfer
// provider the withdrawal orchestrator pays out through.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"salon-magik-hub/config"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/pkg/apperror"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransferClient implements ports.TransferProvider against the provider's
// HTTP API. Every call is bounded by the configured timeout; a timeout is a
// synchronous rejection the orchestrator compensates for.
type TransferClient struct {
	baseURL    string
	secretKey  string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewTransferClient creates a transfer client from provider config.
func NewTransferClient(cfg config.ProviderConfig, log zerolog.Logger) *TransferClient {
	return &TransferClient{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// NewTransferClientWithHTTPClient creates a transfer client with a custom
// HTTP client.
func NewTransferClientWithHTTPClient(baseURL, secretKey string, httpClient HTTPClient, log zerolog.Logger) *TransferClient {
	return &TransferClient{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: httpClient,
		log:        log,
	}
}

// transferPayload is the provider's transfer initiation request body.
type transferPayload struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason,omitempty"`
}

// transferResponse is the provider's synchronous response envelope.
type transferResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		TransferCode string `json:"transfer_code"`
	} `json:"data"`
}

// InitiateTransfer posts a transfer to the provider. Acceptance here only
// means the provider took the transfer; the settled outcome arrives later
// via webhook.
func (c *TransferClient) InitiateTransfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	payload := transferPayload{
		Source:    "balance",
		Amount:    req.Amount,
		Recipient: req.Recipient,
		Reference: req.Reference,
		Currency:  req.Currency,
		Reason:    req.Reason,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal transfer payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfer", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build transfer request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperror.ErrProviderRejected(fmt.Sprintf("transfer call failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperror.ErrProviderRejected(fmt.Sprintf("read transfer response: %v", err))
	}

	var result transferResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, apperror.ErrProviderRejected(fmt.Sprintf("unparseable transfer response (HTTP %d)", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK || !result.Status {
		reason := result.Message
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		c.log.Warn().
			Int("status_code", resp.StatusCode).
			Str("reference", req.Reference).
			Str("reason", reason).
			Msg("transfer provider rejected transfer")
		return nil, apperror.ErrProviderRejected(reason)
	}

	c.log.Info().
		Str("reference", req.Reference).
		Str("transfer_code", result.Data.TransferCode).
		Msg("transfer accepted by provider")

	return &ports.TransferResult{TransferCode: result.Data.TransferCode}, nil
}
