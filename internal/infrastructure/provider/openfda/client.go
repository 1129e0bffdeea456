// Package openfda fetches drug label records and adverse event summaries
// from the openFDA API.
package openfda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/trupharma/drug-safety-rag/internal/infrastructure/resilience"
)

const (
	defaultLabelURL = "https://api.fda.gov/drug/label.json"
	defaultEventURL = "https://api.fda.gov/drug/event.json"
	defaultNDCURL   = "https://api.fda.gov/drug/ndc.json"
	defaultUA       = "trupharma-rag/1.0"

	// Unauthenticated openFDA quota is 240 requests per minute per IP;
	// stay under half of it so a burst of queries cannot exhaust it.
	defaultRatePerMinute = 120
)

type ClientConfig struct {
	LabelURL      string
	EventURL      string
	NDCURL        string
	APIKey        string
	UserAgent     string
	Timeout       time.Duration
	RatePerMinute int
	Policy        resilience.Policy
}

// Client is the shared openFDA transport: rate limited, retried, and
// circuit broken. The label provider, the FAERS summarizer, and the NDC
// product summarizer all go through it.
type Client struct {
	labelURL   string
	eventURL   string
	ndcURL     string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	exec       *resilience.Executor
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.LabelURL == "" {
		cfg.LabelURL = defaultLabelURL
	}
	if cfg.EventURL == "" {
		cfg.EventURL = defaultEventURL
	}
	if cfg.NDCURL == "" {
		cfg.NDCURL = defaultNDCURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUA
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = defaultRatePerMinute
	}
	perSecond := rate.Limit(float64(cfg.RatePerMinute) / 60.0)
	return &Client{
		labelURL:   strings.TrimRight(cfg.LabelURL, "/"),
		eventURL:   strings.TrimRight(cfg.EventURL, "/"),
		ndcURL:     strings.TrimRight(cfg.NDCURL, "/"),
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(perSecond, cfg.RatePerMinute/10+1),
		exec:       resilience.NewExecutor("openfda", cfg.Policy, classifyError, nil),
	}
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "openfda status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("openfda %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("openfda %s status: %s: %s", e.Operation, e.Status, body)
}

// apiError is the error envelope openFDA returns inside a 2xx body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) getJSON(ctx context.Context, baseURL, operation string, params url.Values, out any) error {
	if c.apiKey != "" {
		params = cloneValues(params)
		params.Set("api_key", c.apiKey)
	}
	reqURL := baseURL
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
			return fmt.Errorf("openfda %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &HTTPStatusError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(body),
			}
		}

		var envelope struct {
			Error *apiError `json:"error"`
		}
		payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return fmt.Errorf("read %s response: %w", operation, err)
		}
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		if envelope.Error != nil {
			return fmt.Errorf("openfda %s api error: %s", operation, envelope.Error.Message)
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	})
}

func cloneValues(in url.Values) url.Values {
	out := make(url.Values, len(in)+1)
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
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
		// A 404 means no matching labels, not a broken upstream.
		return resilience.Verdict{}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retry: true, CountAgainstBreaker: true}
	}
	return resilience.Verdict{CountAgainstBreaker: true}
}

// IsNotFound reports whether err is the openFDA "no matches" response.
func IsNotFound(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
