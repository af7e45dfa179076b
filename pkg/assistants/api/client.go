// Package api is a typed client for the runs and run steps of the assistants API.
//
// Every method validates its identifiers, builds the endpoint path and issues exactly
// one request through the Transport. There is no retry, caching or polling: callers that
// wait for a run to finish do so themselves.
package api

import (
	"context"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/endpoints"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/settings"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/transport"
	"github.com/go-go-golems/assistant-runs/pkg/helpers"
	"github.com/go-go-golems/assistant-runs/pkg/security"
)

// Transport performs a request and decodes the JSON response into out.
// HTTP and network errors are returned unchanged to the caller.
type Transport interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body interface{}, out interface{}) error
}

// Endpoints builds request paths. See endpoints.Provider.
type Endpoints interface {
	RunCreate(threadID string) string
	RunRetrieve(threadID, runID string) string
	RunCancel(threadID, runID string) string
	RunSubmitToolOutputs(threadID, runID string) string
	RunStepList(threadID, runID string, pagination *endpoints.PaginationRequest) string
	RunStepRetrieve(threadID, runID, stepID string) string
	CreateAnswer() string
}

var _ Endpoints = (*endpoints.Provider)(nil)
var _ Transport = (*transport.Client)(nil)

// Client is safe for concurrent use. Its configuration is fixed at construction.
type Client struct {
	transport      Transport
	endpoints      Endpoints
	defaultModelID string
}

type ClientOption func(*Client)

func WithEndpoints(e Endpoints) ClientOption {
	return func(c *Client) {
		c.endpoints = e
	}
}

// WithDefaultModelID sets the model used when neither the call nor the request names one.
func WithDefaultModelID(modelID string) ClientOption {
	return func(c *Client) {
		c.defaultModelID = modelID
	}
}

func NewClient(t Transport, options ...ClientOption) *Client {
	c := &Client{
		transport: t,
		endpoints: endpoints.NewProvider(endpoints.DefaultAPIVersion),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// NewClientFromSettings builds the HTTP transport and client described by s.
func NewClientFromSettings(s *settings.ClientSettings) (*Client, error) {
	options := []transport.Option{
		transport.WithAPIKey(helpers.ValueOr(s.APIKey, "")),
		transport.WithOrganization(helpers.ValueOr(s.Organization, "")),
		transport.WithUserAgent(helpers.ValueOr(s.UserAgent, transport.DefaultUserAgent)),
		transport.WithURLOptions(security.OutboundURLOptions{
			AllowHTTP:          s.AllowHTTP,
			AllowLocalNetworks: s.AllowLocalNetworks,
		}),
	}
	if s.Timeout != nil {
		options = append(options, transport.WithTimeout(*s.Timeout))
	}

	t, err := transport.New(helpers.ValueOr(s.BaseURL, transport.DefaultBaseURL), options...)
	if err != nil {
		return nil, err
	}

	return NewClient(t,
		WithDefaultModelID(helpers.ValueOr(s.DefaultModel, "")),
		WithEndpoints(endpoints.NewProvider(helpers.ValueOr(s.APIVersion, endpoints.DefaultAPIVersion))),
	), nil
}

func (c *Client) DefaultModelID() string {
	return c.defaultModelID
}
