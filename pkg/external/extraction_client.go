package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/gc-eligibility-server/internal/domain"
)

const (
	extractPath          = "/v1/extract"
	maxExtractionPayload = 1 << 20
)

// ExtractionClient calls the external structured-extraction service. It
// never retries: each call is a single attempt guarded by a rate limiter and
// a circuit breaker, with responses cached by request hash.
type ExtractionClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *ResponseCache
	logger     *logrus.Logger
}

// NewExtractionClient creates a new extraction service client. cache may be nil.
func NewExtractionClient(config domain.ExtractionConfig, cache *ResponseCache, logger *logrus.Logger) (*ExtractionClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("extraction service base URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 5
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	breakerConfig := DefaultCircuitBreakerConfig()
	breakerConfig.FailureThreshold = config.FailureThreshold
	breakerConfig.Timeout = config.BreakerTimeout

	return &ExtractionClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:   NewCircuitBreaker("ExtractionService", breakerConfig, logger),
		cache:     cache,
		logger:    logger,
	}, nil
}

var _ domain.AIExtractionClient = (*ExtractionClient)(nil)

// Extract sends a de-identified request and returns the raw JSON response.
// validate may be nil, in which case any well-formed JSON is accepted.
func (c *ExtractionClient) Extract(ctx context.Context, req domain.AIExtractionRequest, validate domain.ResponseValidator) ([]byte, bool, error) {
	if validate == nil {
		validate = requireJSON
	}

	key := CacheKey(req)
	if c.cache != nil {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.WithError(err).Warn("Extraction cache lookup failed")
		}
		if ok {
			if err := validate(data); err == nil {
				return data, true, nil
			}
			c.logger.WithField("key", key).Warn("Discarding cached extraction response that no longer validates")
		}
	}

	if !c.rateLimit.Allow() {
		return nil, false, domain.ErrRateLimited
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, req)
	})
	if err != nil {
		return nil, false, breakerError(err)
	}
	payload := result.([]byte)

	if err := validate(payload); err != nil {
		return nil, false, fmt.Errorf("extraction response rejected: %w", err)
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, payload, 0); err != nil {
			c.logger.WithError(err).Warn("Failed to cache extraction response")
		}
	}
	return payload, false, nil
}

func requireJSON(payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("extraction response is not valid JSON")
	}
	return nil
}

func (c *ExtractionClient) post(ctx context.Context, req domain.AIExtractionRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+extractPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxExtractionPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}
	return payload, nil
}

// State reports the circuit breaker state for health checks.
func (c *ExtractionClient) State() string {
	return c.breaker.State().String()
}
