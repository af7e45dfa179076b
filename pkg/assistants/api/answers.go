package api

import (
	"context"

	"github.com/pkg/errors"
)

// CreateAnswerRequest is the body of the legacy answers endpoint.
type CreateAnswerRequest struct {
	Model           string     `json:"model,omitempty"`
	Question        string     `json:"question"`
	Examples        [][]string `json:"examples"`
	ExamplesContext string     `json:"examples_context"`
	Documents       []string   `json:"documents,omitempty"`
	File            string     `json:"file,omitempty"`
	SearchModel     string     `json:"search_model,omitempty"`
	MaxRerank       *int       `json:"max_rerank,omitempty"`
	Temperature     *float64   `json:"temperature,omitempty"`
	MaxTokens       *int       `json:"max_tokens,omitempty"`
	Stop            []string   `json:"stop,omitempty"`
	N               *int       `json:"n,omitempty"`
	ReturnMetadata  bool       `json:"return_metadata,omitempty"`
	User            string     `json:"user,omitempty"`
}

type SelectedDocument struct {
	Document int    `json:"document"`
	Text     string `json:"text"`
}

// CreateAnswerResponse is returned by the legacy answers endpoint.
type CreateAnswerResponse struct {
	BaseResponse
	Answers           []string           `json:"answers"`
	Completion        string             `json:"completion"`
	Model             string             `json:"model"`
	SearchModel       string             `json:"search_model"`
	SelectedDocuments []SelectedDocument `json:"selected_documents"`
}

// CreateAnswer calls the legacy answers endpoint. Unlike CreateRun, a model id is
// mandatory: if none can be resolved, ErrMissingModelID is returned and no request
// is sent.
func (c *Client) CreateAnswer(ctx context.Context, request CreateAnswerRequest, modelID ...string) (*CreateAnswerResponse, error) {
	if err := requireID("question", request.Question); err != nil {
		return nil, err
	}

	request.Model = ResolveModelID(firstModelID(modelID), request.Model, c.defaultModelID)
	if request.Model == "" {
		return nil, errors.WithStack(ErrMissingModelID)
	}

	var answer CreateAnswerResponse
	if err := c.transport.Post(ctx, c.endpoints.CreateAnswer(), request, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}
