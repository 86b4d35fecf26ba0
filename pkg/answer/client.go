// Package answer is the HTTP boundary to the remote disclosure-analysis
// service. It only speaks the wire protocol; retries and user-facing failure
// handling belong to the caller.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://regulens-2q8t.onrender.com"
	DefaultTimeout = 60 * time.Second

	analysisPath = "/disclosure-analysis"
	healthPath   = "/health"
	userAgent    = "sec-policy-lens"

	maxBodyBytes = 1 << 20
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     log.Logger.With().Str("component", "answer-client").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ask sends one query and decodes the answer. A response without a usable
// answer is reported as ErrMalformedResponse.
func (c *Client) Ask(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	requestID := uuid.NewString()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analysisPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)

	logger := c.logger.With().Str("request_id", requestID).Logger()
	start := time.Now()
	logger.Debug().Str("mode", req.Mode).Bool("version_set", req.Version != nil).Msg("sending disclosure analysis request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "post disclosure analysis")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("elapsed", time.Since(start)).
		Msg("received disclosure analysis response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(raw)), 256)}
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "decode: %v", err)
	}
	if out.Answer == nil {
		return nil, errors.Wrap(ErrMalformedResponse, "missing answer field")
	}
	if strings.TrimSpace(*out.Answer) == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "empty answer")
	}
	return &out, nil
}

// Health calls GET /health and fails unless the service reports "ok".
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return errors.Wrap(err, "build health request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "get health")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read health body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(raw)), 256)}
	}

	var h healthResponse
	if err := json.Unmarshal(raw, &h); err != nil {
		return errors.Wrapf(ErrMalformedResponse, "decode health: %v", err)
	}
	if h.Status != "ok" {
		return errors.Errorf("service reported status %q", h.Status)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
