package cmds

import (
	"context"
	"strings"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/api"
	"github.com/go-go-golems/glazed/pkg/types"
)

// rowSink is the part of the glazed processor the commands write to.
type rowSink interface {
	AddRow(ctx context.Context, row types.Row) error
}

func timestampOrNil(ts *int64) interface{} {
	if ts == nil {
		return nil
	}
	return *ts
}

func addRunRow(ctx context.Context, gp rowSink, run *api.RunResponse) error {
	var lastError interface{}
	if run.LastError != nil {
		lastError = run.LastError.Code + ": " + run.LastError.Message
	}
	var totalTokens interface{}
	if run.Usage != nil {
		totalTokens = run.Usage.TotalTokens
	}

	pending := []string{}
	for _, call := range run.PendingToolCalls() {
		pending = append(pending, call.ID)
	}

	return gp.AddRow(ctx, types.NewRow(
		types.MRP("id", run.ID),
		types.MRP("thread_id", run.ThreadID),
		types.MRP("assistant_id", run.AssistantID),
		types.MRP("status", string(run.Status)),
		types.MRP("model", run.Model),
		types.MRP("created_at", run.CreatedAt),
		types.MRP("started_at", timestampOrNil(run.StartedAt)),
		types.MRP("completed_at", timestampOrNil(run.CompletedAt)),
		types.MRP("cancelled_at", timestampOrNil(run.CancelledAt)),
		types.MRP("failed_at", timestampOrNil(run.FailedAt)),
		types.MRP("expires_at", timestampOrNil(run.ExpiresAt)),
		types.MRP("pending_tool_calls", strings.Join(pending, ",")),
		types.MRP("last_error", lastError),
		types.MRP("total_tokens", totalTokens),
	))
}

// addStepRows adds one row per step, in the order given.
func addStepRows(ctx context.Context, gp rowSink, steps []api.RunStepResponse) error {
	for _, step := range steps {
		var messageID interface{}
		if step.StepDetails.MessageCreation != nil {
			messageID = step.StepDetails.MessageCreation.MessageID
		}

		toolCalls := []string{}
		for _, call := range step.StepDetails.ToolCalls {
			toolCalls = append(toolCalls, call.ID)
		}

		err := gp.AddRow(ctx, types.NewRow(
			types.MRP("id", step.ID),
			types.MRP("run_id", step.RunID),
			types.MRP("type", string(step.Type)),
			types.MRP("status", string(step.Status)),
			types.MRP("created_at", step.CreatedAt),
			types.MRP("completed_at", timestampOrNil(step.CompletedAt)),
			types.MRP("message_id", messageID),
			types.MRP("tool_calls", strings.Join(toolCalls, ",")),
		))
		if err != nil {
			return err
		}
	}
	return nil
}

// addAnswerRows adds one row per answer.
func addAnswerRows(ctx context.Context, gp rowSink, answer *api.CreateAnswerResponse) error {
	for i, text := range answer.Answers {
		err := gp.AddRow(ctx, types.NewRow(
			types.MRP("index", i),
			types.MRP("answer", text),
			types.MRP("model", answer.Model),
			types.MRP("search_model", answer.SearchModel),
			types.MRP("completion", answer.Completion),
		))
		if err != nil {
			return err
		}
	}
	return nil
}
