// Package catalog is the HTTP client the prescription service uses to reach
// the catalog service.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/medisync/go-pharma/internal/domain/prescription"
	"github.com/medisync/go-pharma/pkg/circuitbreaker"
)

// Config holds client settings.
type Config struct {
	BaseURL string
	// Timeout bounds each individual request attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RetryDelay is the base delay between attempts (grows linearly).
	RetryDelay time.Duration
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:8081",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
	}
}

// Client answers batch existence queries via the catalog service HTTP API.
// Calls go through a circuit breaker; persistent failure surfaces as
// prescription.ErrCatalogUnavailable so callers can distinguish an unreachable
// catalog from a bad request.
type Client struct {
	config  Config
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates a catalog client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Client{
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("catalog-service"), logger),
		logger:  logger,
	}
}

type batchRequest struct {
	Names []string `json:"names"`
}

type batchResponse struct {
	Existing    []string `json:"existing"`
	NonExisting []string `json:"non_existing"`
}

// ExistsBatch asks the catalog which of the given names exist.
func (c *Client) ExistsBatch(ctx context.Context, names []string) (*prescription.CatalogBatch, error) {
	body, err := json.Marshal(batchRequest{Names: names})
	if err != nil {
		return nil, fmt.Errorf("encode batch request: %w", err)
	}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.doWithRetry(ctx, body)
	})
	if err != nil {
		if circuitbreaker.IsBreakerOpen(err) {
			return nil, fmt.Errorf("%w: circuit open", prescription.ErrCatalogUnavailable)
		}
		return nil, err
	}

	return result.(*prescription.CatalogBatch), nil
}

// doWithRetry performs the request with bounded linear-backoff retries.
// Retries cover transport errors and 5xx responses; a 4xx is final.
func (c *Client) doWithRetry(ctx context.Context, body []byte) (*prescription.CatalogBatch, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", prescription.ErrCatalogUnavailable, ctx.Err())
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			c.logger.Warn("retrying catalog request",
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))
		}

		batch, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return batch, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", prescription.ErrCatalogUnavailable, lastErr)
}

func (c *Client) doOnce(ctx context.Context, body []byte) (*prescription.CatalogBatch, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/find-medicines", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("catalog returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("catalog returned %d", resp.StatusCode)
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, false, fmt.Errorf("decode catalog response: %w", err)
	}

	return &prescription.CatalogBatch{
		Existing:    decoded.Existing,
		NonExisting: decoded.NonExisting,
	}, false, nil
}

// BreakerState exposes the breaker state for health reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.GetState()
}
