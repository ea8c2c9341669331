// Package wallet talks to the marketplace wallet service, the only
// party that moves money. The engine drives it exclusively through
// hold, release, and refund calls keyed for safe retries.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
)

// Client is the REST client for the wallet service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new wallet REST client.
//
// baseURL is the API root, e.g. "https://wallet.internal/api".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// HoldFunds places a hold on the buyer's available balance. Replaying
// the same idempotency key returns the original hold transaction.
func (c *Client) HoldFunds(ctx context.Context, account string, amount int64, idempotencyKey string) (string, error) {
	req := holdRequest{
		Account:        account,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/holds", req)
	if err != nil {
		return "", fmt.Errorf("wallet: hold funds for %s: %w", account, err)
	}

	var resp holdResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("wallet: decode hold response: %w", err)
	}
	return resp.TxID, nil
}

// ReleaseHeldFunds releases a hold to the seller minus the platform
// fee.
func (c *Client) ReleaseHeldFunds(ctx context.Context, txID, sellerAccount string, feeRate float64) (domain.WalletRelease, error) {
	req := releaseRequest{
		SellerAccount: sellerAccount,
		FeeRate:       feeRate,
	}
	path := fmt.Sprintf("/v1/holds/%s/release", url.PathEscape(txID))

	body, err := c.doRequest(ctx, http.MethodPost, path, req)
	if err != nil {
		return domain.WalletRelease{}, fmt.Errorf("wallet: release hold %s: %w", txID, err)
	}

	var resp releaseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.WalletRelease{}, fmt.Errorf("wallet: decode release response: %w", err)
	}
	return domain.WalletRelease{
		Net:  resp.NetAmount,
		Fee:  resp.FeeAmount,
		TxID: resp.TxID,
	}, nil
}

// RefundHeldFunds returns the full held amount to the buyer.
func (c *Client) RefundHeldFunds(ctx context.Context, txID string) (string, error) {
	path := fmt.Sprintf("/v1/holds/%s/refund", url.PathEscape(txID))

	body, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return "", fmt.Errorf("wallet: refund hold %s: %w", txID, err)
	}

	var resp refundResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("wallet: decode refund response: %w", err)
	}
	return resp.TxID, nil
}

// doRequest builds, sends, and reads an HTTP request against the wallet
// service.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to domain errors so the
// settlement layer can branch on the sentinel.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, apiErr.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, apiErr.Message)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, apiErr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr.Message)
	default:
		return fmt.Errorf("HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}

// Compile-time interface check.
var _ domain.WalletClient = (*Client)(nil)
