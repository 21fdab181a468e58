// Package scanapi is the adapter for the remote full-scan service: start a
// scan, poll its status, fetch its report and look up the latest scan of a
// domain. It does request/response marshaling and error surfacing only.
package scanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/webclient"
)

const DefaultBaseURL = "https://apex.allsecurex.com"

var ErrMissingScanID = errors.New("scan service returned no scanId")

// Config configures the adapter.
type Config struct {
	BaseURL string

	// RatePerSecond paces outbound calls. Zero disables pacing.
	RatePerSecond float64
	Burst         int
}

// Client talks to the full-scan endpoints through a webclient.
type Client struct {
	wc      webclient.WebClient
	baseURL string
	limiter *rate.Limiter
	logger  logging.Logger
}

func New(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid scan api base url %q: %w", cfg.BaseURL, err)
	}

	c := &Client{
		wc:      wc,
		baseURL: base,
		logger:  logger.With(logging.Field{Key: "component", Value: "scanapi"}),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return c, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string { return c.baseURL }

// StartScan asks the service to scan domain and returns the new scanId.
func (c *Client) StartScan(ctx context.Context, domain string) (string, error) {
	body, err := json.Marshal(startScanRequest{Domain: domain})
	if err != nil {
		return "", fmt.Errorf("encode start request: %w", err)
	}
	resp, err := c.do(ctx, "start scan", http.MethodPost, "/api/fullScan/scan", body)
	if err != nil {
		return "", err
	}

	var out startScanResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("decode start response: %w", err)
	}
	if out.ScanID == "" {
		return "", ErrMissingScanID
	}
	c.logger.Info("scan started",
		logging.Field{Key: "domain", Value: domain},
		logging.Field{Key: "scan_id", Value: out.ScanID})
	return out.ScanID, nil
}

// Status returns the current status of scanID.
func (c *Client) Status(ctx context.Context, scanID string) (*ScanStatus, error) {
	resp, err := c.do(ctx, "scan status", http.MethodGet, "/api/fullScan/status/"+url.PathEscape(scanID), nil)
	if err != nil {
		return nil, err
	}
	var out ScanStatus
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &out, nil
}

// Report returns the raw report body of a completed scan.
func (c *Client) Report(ctx context.Context, scanID string) (json.RawMessage, error) {
	resp, err := c.do(ctx, "scan report", http.MethodGet, "/api/fullScan/report/"+url.PathEscape(scanID), nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("scan report %s: body is not valid JSON", scanID)
	}
	return json.RawMessage(resp.Body), nil
}

// Latest returns the most recent scan for domain, or nil when the service
// has none (404, empty body or no scanId).
func (c *Client) Latest(ctx context.Context, domain string) (*LatestScan, error) {
	resp, err := c.do(ctx, "latest scan", http.MethodGet, "/api/fullScan/latest/"+url.PathEscape(domain), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var out LatestScan
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("decode latest response: %w", err)
	}
	if out.ScanID == "" {
		return nil, nil
	}
	return &out, nil
}

// DashboardSummary returns the service's aggregate dashboard payload verbatim.
func (c *Client) DashboardSummary(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.do(ctx, "dashboard summary", http.MethodGet, "/api/dashboard-summary", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*webclient.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit wait: %w", op, err)
		}
	}

	req := &webclient.Request{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: http.Header{"Accept": []string{"application/json"}},
		Body:    body,
	}
	if body != nil {
		req.Headers.Set("Content-Type", "application/json")
	}

	resp, err := c.wc.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		apiErr := newAPIError(op, resp)
		c.logger.Warn("scan api returned error status",
			logging.Field{Key: "op", Value: op},
			logging.Field{Key: "status", Value: resp.StatusCode},
			logging.Field{Key: "message", Value: apiErr.Message})
		return nil, apiErr
	}
	return resp, nil
}
