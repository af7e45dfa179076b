// Package transport performs JSON requests against an OpenAI-compatible HTTP API.
//
// Non-2xx responses are returned as go-openai error values so that callers can inspect
// the status code and the error object sent by the service. Cancellation of the caller's
// context is reported as the context error and never as an HTTP failure.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-go-golems/assistant-runs/pkg/helpers"
	"github.com/go-go-golems/assistant-runs/pkg/security"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL    = "https://api.openai.com"
	DefaultBetaHeader = "assistants=v1"
	DefaultUserAgent  = "go-go-golems/assistant-runs"

	RequestIDHeader = "X-Request-Id"
)

// Client issues GET and POST requests relative to a base URL and decodes JSON responses.
// It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	organization string
	betaHeader   string
	userAgent    string
	urlOptions   security.OutboundURLOptions
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

func WithOrganization(organization string) Option {
	return func(c *Client) {
		c.organization = organization
	}
}

// WithBetaHeader overrides the OpenAI-Beta header. An empty value drops the header.
func WithBetaHeader(betaHeader string) Option {
	return func(c *Client) {
		c.betaHeader = betaHeader
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func WithURLOptions(opts security.OutboundURLOptions) Option {
	return func(c *Client) {
		c.urlOptions = opts
	}
}

// New creates a transport for baseURL. The base URL is validated once here; an empty
// baseURL selects DefaultBaseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{},
		betaHeader: DefaultBetaHeader,
		userAgent:  DefaultUserAgent,
	}
	for _, option := range options {
		option(c)
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	normalized, err := security.NormalizeBaseURL(baseURL, c.urlOptions)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base URL")
	}
	c.baseURL = normalized

	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET request to path and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request to path with body encoded as JSON and decodes the JSON
// response into out. A nil body sends an empty request body.
func (c *Client) Post(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) setHeaders(req *http.Request, requestID string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
	if c.betaHeader != "" {
		req.Header.Set("OpenAI-Beta", c.betaHeader)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

func (c *Client) do(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	requestID := helpers.RequestIDFromContext(ctx)
	c.setHeaders(req, requestID)

	start := time.Now()
	log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Msg("Sending request")

	// #nosec G107 -- base URL is validated in New.
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.WithStack(ctxErr)
		}
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.WithStack(ctxErr)
		}
		return errors.Wrap(err, "failed to read response body")
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Received response")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "failed to decode response body")
	}
	return nil
}

func decodeError(statusCode int, body []byte) error {
	var errResp openai.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		errResp.Error.HTTPStatusCode = statusCode
		return errResp.Error
	}

	return &openai.RequestError{
		HTTPStatusCode: statusCode,
		Err:            errors.Errorf("unexpected response: %s", bytes.TrimSpace(body)),
	}
}
