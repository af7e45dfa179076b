// Package endpoints builds the request paths of the assistants runs API.
//
// Paths are returned relative to the API host and always start with "/<version>".
// Identifiers are path-escaped but otherwise not validated: an empty identifier
// yields an empty path segment.
package endpoints

import (
	"fmt"
	"net/url"
	"strconv"
)

const DefaultAPIVersion = "v1"

// Order is the sort order accepted by list endpoints.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// PaginationRequest holds the cursor parameters of list endpoints.
// Zero values are left out of the query string.
type PaginationRequest struct {
	Limit  int
	Order  Order
	After  string
	Before string
}

// Query encodes the pagination parameters. A nil request encodes to "".
func (p *PaginationRequest) Query() string {
	if p == nil {
		return ""
	}
	values := url.Values{}
	if p.Limit > 0 {
		values.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Order != "" {
		values.Set("order", string(p.Order))
	}
	if p.After != "" {
		values.Set("after", p.After)
	}
	if p.Before != "" {
		values.Set("before", p.Before)
	}
	return values.Encode()
}

type Provider struct {
	APIVersion string
}

func NewProvider(apiVersion string) *Provider {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Provider{APIVersion: apiVersion}
}

func (p *Provider) prefix() string {
	if p == nil || p.APIVersion == "" {
		return "/" + DefaultAPIVersion
	}
	return "/" + p.APIVersion
}

func (p *Provider) runs(threadID string) string {
	return fmt.Sprintf("%s/threads/%s/runs", p.prefix(), url.PathEscape(threadID))
}

func (p *Provider) RunCreate(threadID string) string {
	return p.runs(threadID)
}

func (p *Provider) RunRetrieve(threadID, runID string) string {
	return p.runs(threadID) + "/" + url.PathEscape(runID)
}

func (p *Provider) RunCancel(threadID, runID string) string {
	return p.RunRetrieve(threadID, runID) + "/cancel"
}

func (p *Provider) RunSubmitToolOutputs(threadID, runID string) string {
	return p.RunRetrieve(threadID, runID) + "/submit_tool_outputs"
}

func (p *Provider) RunStepList(threadID, runID string, pagination *PaginationRequest) string {
	path := p.RunRetrieve(threadID, runID) + "/steps"
	if q := pagination.Query(); q != "" {
		path += "?" + q
	}
	return path
}

func (p *Provider) RunStepRetrieve(threadID, runID, stepID string) string {
	return p.RunRetrieve(threadID, runID) + "/steps/" + url.PathEscape(stepID)
}

// CreateAnswer is the legacy answers endpoint.
func (p *Provider) CreateAnswer() string {
	return p.prefix() + "/answers"
}
