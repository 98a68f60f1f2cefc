package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/tiered-staking/internal/circuitbreaker"
)

// ClientConfig configures the remote ledger client
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient talks to a remote ledger service over JSON/HTTP
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient(timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return c
}

// NewHTTPClient creates a ledger client. A nil breaker disables fail-fast.
func NewHTTPClient(cfg ClientConfig, breaker *circuitbreaker.CircuitBreaker) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("ledger base URL not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if breaker != nil {
		// only outages count; a refused transfer is a healthy ledger
		breaker.WithFailureFilter(func(err error) bool { return errors.Is(err, ErrUnavailable) })
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: newRetryClient(cfg.Timeout),
		breaker:    breaker,
	}, nil
}

type transferRequest struct {
	Pool    string `json:"pool"`
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TransferIn implements Ledger.
func (c *HTTPClient) TransferIn(ctx context.Context, pool string, from common.Address, amount uint64) error {
	return c.call(ctx, "/v1/transfers/in", transferRequest{Pool: pool, Account: from.Hex(), Amount: amount})
}

// TransferOut implements Ledger.
func (c *HTTPClient) TransferOut(ctx context.Context, pool string, to common.Address, amount uint64) error {
	return c.call(ctx, "/v1/transfers/out", transferRequest{Pool: pool, Account: to.Hex(), Amount: amount})
}

// Mint implements Ledger.
func (c *HTTPClient) Mint(ctx context.Context, pool string, to common.Address, amount uint64) error {
	return c.call(ctx, "/v1/mint", transferRequest{Pool: pool, Account: to.Hex(), Amount: amount})
}

// call posts one request. The idempotency key comes from ctx when the caller
// attached one, so a replayed operation reuses it. Retries always reuse it.
func (c *HTTPClient) call(ctx context.Context, path string, body transferRequest) error {
	if c.breaker == nil {
		return c.do(ctx, path, body)
	}
	err := c.breaker.Execute(func() error { return c.do(ctx, path, body) })
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *HTTPClient) do(ctx context.Context, path string, body transferRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error encoding ledger request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	key, ok := IdempotencyKey(ctx)
	if !ok {
		key = uuid.NewString()
	}
	req.Header.Set("Idempotency-Key", key)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"pool":   body.Pool,
		"amount": body.Amount,
	}).Debug("Calling ledger")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d, body: %s", ErrUnavailable, resp.StatusCode, string(raw))
	}

	var e errorResponse
	_ = json.Unmarshal(raw, &e)
	if e.Code == "insufficient_balance" {
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, e.Message)
	}
	return fmt.Errorf("%w: status %d, body: %s", ErrRejected, resp.StatusCode, string(raw))
}
