package api

import (
	"context"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/endpoints"
)

// CreateRun starts a run of an assistant on threadID.
//
// The model sent is the optional modelID argument if given, otherwise request.Model,
// otherwise the client default. All three may be empty, in which case the field is
// omitted and the server falls back to the assistant's model. The caller's request is
// not modified.
func (c *Client) CreateRun(ctx context.Context, threadID string, request RunCreateRequest, modelID ...string) (*RunResponse, error) {
	if err := requireID("threadID", threadID); err != nil {
		return nil, err
	}

	request.Model = ResolveModelID(firstModelID(modelID), request.Model, c.defaultModelID)

	var run RunResponse
	if err := c.transport.Post(ctx, c.endpoints.RunCreate(threadID), request, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// RetrieveRun fetches a run. A run unknown to the service yields an error for
// which transport.IsNotFound is true.
func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (*RunResponse, error) {
	if err := requireID("threadID", threadID); err != nil {
		return nil, err
	}
	if err := requireID("runID", runID); err != nil {
		return nil, err
	}

	var run RunResponse
	if err := c.transport.Get(ctx, c.endpoints.RunRetrieve(threadID, runID), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// CancelRun cancels an in-progress run and returns it with its updated status.
//
// Only threadID is checked; runID is forwarded as-is, so an empty runID produces a
// request to a path with an empty segment.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (*RunResponse, error) {
	if err := requireID("threadID", threadID); err != nil {
		return nil, err
	}

	var run RunResponse
	if err := c.transport.Post(ctx, c.endpoints.RunCancel(threadID, runID), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// SubmitToolOutputs resumes a run in the requires_action state. The service requires
// the outputs of all pending tool calls in a single request.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, request SubmitToolOutputsRequest) (*RunResponse, error) {
	if err := requireID("threadID", threadID); err != nil {
		return nil, err
	}
	if err := requireID("runID", runID); err != nil {
		return nil, err
	}

	var run RunResponse
	if err := c.transport.Post(ctx, c.endpoints.RunSubmitToolOutputs(threadID, runID), request, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRunSteps returns the first page of steps of a run with the service's default
// pagination.
func (c *Client) ListRunSteps(ctx context.Context, threadID, runID string) (*RunStepListResponse, error) {
	return c.ListRunStepsPage(ctx, threadID, runID, nil)
}

// ListRunStepsPage is ListRunSteps with explicit pagination. A nil pagination applies
// no filter.
func (c *Client) ListRunStepsPage(ctx context.Context, threadID, runID string, pagination *endpoints.PaginationRequest) (*RunStepListResponse, error) {
	if err := requireID("threadID", threadID); err != nil {
		return nil, err
	}
	if err := requireID("runID", runID); err != nil {
		return nil, err
	}

	var steps RunStepListResponse
	if err := c.transport.Get(ctx, c.endpoints.RunStepList(threadID, runID, pagination), &steps); err != nil {
		return nil, err
	}
	return &steps, nil
}

// RetrieveRunStep fetches a single step. stepID is forwarded without validation.
func (c *Client) RetrieveRunStep(ctx context.Context, threadID, runID, stepID string) (*RunStepResponse, error) {
	if err := requireID("threadID", threadID); err != nil {
		return nil, err
	}
	if err := requireID("runID", runID); err != nil {
		return nil, err
	}

	var step RunStepResponse
	if err := c.transport.Get(ctx, c.endpoints.RunStepRetrieve(threadID, runID, stepID), &step); err != nil {
		return nil, err
	}
	return &step, nil
}
