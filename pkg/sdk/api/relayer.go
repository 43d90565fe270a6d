// Package api provides clients for the swap relay and the position indexer.
// The relay executes signed swap orders gaslessly and reports completion
// asynchronously through a task identifier.
package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/betbot/swapcore/pkg/ratelimit"
)

const (
	// DefaultChainID is Polygon mainnet
	DefaultChainID = 137
)

// RelayCreds holds the relay API credentials for HMAC-signed requests
type RelayCreds struct {
	Key        string
	Secret     string
	Passphrase string
}

// RelayClient talks to the fee-relay service. It never holds signing keys:
// orders arrive already signed, the client only submits and polls.
type RelayClient struct {
	baseURL    string
	chainID    int
	creds      *RelayCreds
	httpClient *http.Client
	limiter    *ratelimit.TokenBucket
}

// SwapOrderRequest is the request body for submitting a signed swap order
type SwapOrderRequest struct {
	Type            string `json:"type"` // always "SWAP"
	From            string `json:"from"`
	InputAsset      string `json:"inputAsset"`
	OutputAsset     string `json:"outputAsset"`
	InputAmount     string `json:"inputAmount"`
	MinOutputAmount string `json:"minOutputAmount"`
	FeeBps          int    `json:"feeBps"`
	FeeRecipient    string `json:"feeRecipient"`
	Deadline        int64  `json:"deadline"`
	Salt            string `json:"salt"`
	Signature       string `json:"signature"`
	Metadata        string `json:"metadata,omitempty"`
}

// RelayTaskResponse is the response from submitting an order
type RelayTaskResponse struct {
	TaskID          string `json:"taskId"`
	State           string `json:"state"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Error           string `json:"error,omitempty"`
}

// NewRelayClient creates a new relay client
func NewRelayClient(baseURL string, chainID int, creds *RelayCreds) *RelayClient {
	if chainID <= 0 {
		chainID = DefaultChainID
	}
	return &RelayClient{
		baseURL: baseURL,
		chainID: chainID,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// client-side throttle, roughly matching the relay's published limits
		limiter: ratelimit.NewTokenBucket(10, 5),
	}
}

// generateAuthHeaders creates HMAC-signed headers for authentication.
// Message: timestamp + method + path + body, HMAC-SHA256 with the base64 secret.
func (c *RelayClient) generateAuthHeaders(method, path string, body []byte) (map[string]string, error) {
	if c.creds == nil {
		return nil, nil
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	message := timestamp + method + path
	if len(body) > 0 {
		message += string(body)
	}

	secretBytes, err := base64.URLEncoding.DecodeString(c.creds.Secret)
	if err != nil {
		// Try standard base64 if URL encoding fails
		secretBytes, err = base64.StdEncoding.DecodeString(c.creds.Secret)
		if err != nil {
			return nil, fmt.Errorf("failed to decode relay secret: %w", err)
		}
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	return map[string]string{
		"RELAY_API_KEY":    c.creds.Key,
		"RELAY_PASSPHRASE": c.creds.Passphrase,
		"RELAY_SIGNATURE":  signature,
		"RELAY_TIMESTAMP":  timestamp,
	}, nil
}

// SubmitOrder posts a signed swap order. On acceptance the relay returns a
// task ID; settlement is asynchronous and must be observed via TaskStatus.
func (c *RelayClient) SubmitOrder(ctx context.Context, order SwapOrderRequest) (*RelayTaskResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	path := "/v1/orders"
	url := c.baseURL + path

	order.Type = "SWAP"
	body, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	headers, err := c.generateAuthHeaders("POST", path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 && resp.StatusCode != 201 {
		return nil, fmt.Errorf("submit failed: %d %s", resp.StatusCode, string(respBody))
	}

	var result RelayTaskResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if result.Error != "" {
		return nil, fmt.Errorf("relay rejected order: %s", result.Error)
	}
	return &result, nil
}

// TaskStatus fetches the current state of an async relay task
func (c *RelayClient) TaskStatus(ctx context.Context, taskID string) (*RelayTaskResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	path := "/v1/tasks/" + taskID
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	headers, err := c.generateAuthHeaders("GET", path, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("task status failed: %d %s", resp.StatusCode, string(body))
	}

	var result RelayTaskResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
