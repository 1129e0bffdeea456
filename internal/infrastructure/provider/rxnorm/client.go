// Package rxnorm resolves free-text drug names to canonical RxNorm
// concepts via the National Library of Medicine's RxNav REST API.
package rxnorm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/trupharma/drug-safety-rag/internal/infrastructure/resilience"
)

const (
	defaultBaseURL = "https://rxnav.nlm.nih.gov/REST"
	defaultUA      = "trupharma-rag/1.0"

	// RxNav allows roughly 20 requests per second per IP; stay at half.
	defaultRatePerSecond = 10
)

type Config struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond int
	Policy        resilience.Policy
}

// Client is the RxNav transport shared by every resolver lookup: rate
// limited, retried, and circuit broken like the other upstreams.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	exec       *resilience.Executor
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUA
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRatePerSecond
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond),
		exec:       resilience.NewExecutor("rxnorm", cfg.Policy, classifyError, nil),
	}
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "rxnorm status error"
	}
	return fmt.Sprintf("rxnorm %s status: %s", e.Operation, e.Status)
}

// getJSON fetches one RxNav endpoint. path is relative to the REST base,
// e.g. "/rxcui.json" or "/rxcui/5640/related.json".
func (c *Client) getJSON(ctx context.Context, path, operation string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	return c.exec.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("rxnorm %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return &HTTPStatusError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
			}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	})
}

func classifyError(err error) resilience.Verdict {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Verdict{}
	}
	if resilience.CircuitOpen(err) {
		return resilience.Verdict{Retry: true, CountAgainstBreaker: true}
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Verdict{Retry: true, CountAgainstBreaker: true}
		}
		// A 404 is an unknown concept, not a broken upstream.
		return resilience.Verdict{}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retry: true, CountAgainstBreaker: true}
	}
	return resilience.Verdict{CountAgainstBreaker: true}
}
