package api

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// BaseResponse carries the metadata shared by every response object.
type BaseResponse struct {
	Object string           `json:"object"`
	Error  *openai.APIError `json:"error,omitempty"`
}

// RunCreateRequest is the body of a run creation request.
// An empty Model lets the server use the assistant's model.
type RunCreateRequest struct {
	AssistantID            string                 `json:"assistant_id"`
	Model                  string                 `json:"model,omitempty"`
	Instructions           *string                `json:"instructions,omitempty"`
	AdditionalInstructions *string                `json:"additional_instructions,omitempty"`
	Tools                  []openai.AssistantTool `json:"tools,omitempty"`
	Metadata               map[string]interface{} `json:"metadata,omitempty"`
}

// ToolOutput is the result of one tool call. Unlike the go-openai type, Output
// is always a string.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// SubmitToolOutputsRequest answers every pending tool call of a run in one request.
type SubmitToolOutputsRequest struct {
	ToolOutputs []ToolOutput `json:"tool_outputs"`
}

const RequiredActionTypeSubmitToolOutputs = "submit_tool_outputs"

type RequiredAction struct {
	Type              string             `json:"type"`
	SubmitToolOutputs *SubmitToolOutputs `json:"submit_tool_outputs,omitempty"`
}

type SubmitToolOutputs struct {
	ToolCalls []openai.ToolCall `json:"tool_calls"`
}

type LastError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunResponse mirrors a run object. Status is passed through as sent by the service.
// Nullable fields are kept without omitempty so that a decoded run re-encodes to the
// same keys.
type RunResponse struct {
	BaseResponse
	ID             string                 `json:"id"`
	CreatedAt      int64                  `json:"created_at"`
	ThreadID       string                 `json:"thread_id"`
	AssistantID    string                 `json:"assistant_id"`
	Status         openai.RunStatus       `json:"status"`
	RequiredAction *RequiredAction        `json:"required_action"`
	LastError      *LastError             `json:"last_error"`
	ExpiresAt      *int64                 `json:"expires_at"`
	StartedAt      *int64                 `json:"started_at"`
	CancelledAt    *int64                 `json:"cancelled_at"`
	FailedAt       *int64                 `json:"failed_at"`
	CompletedAt    *int64                 `json:"completed_at"`
	Model          string                 `json:"model"`
	Instructions   string                 `json:"instructions"`
	Tools          []openai.AssistantTool `json:"tools"`
	FileIDs        []string               `json:"file_ids"`
	Metadata       map[string]interface{} `json:"metadata"`
	Usage          *openai.Usage          `json:"usage"`
}

// PendingToolCalls returns the tool calls the run is waiting on, if any.
func (r *RunResponse) PendingToolCalls() []openai.ToolCall {
	if r == nil || r.RequiredAction == nil || r.RequiredAction.SubmitToolOutputs == nil {
		return nil
	}
	if r.RequiredAction.Type != RequiredActionTypeSubmitToolOutputs {
		return nil
	}
	return r.RequiredAction.SubmitToolOutputs.ToolCalls
}

func (r RunResponse) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", r.ID)
	e.Str("thread_id", r.ThreadID)
	e.Str("assistant_id", r.AssistantID)
	e.Str("status", string(r.Status))
	if r.Model != "" {
		e.Str("model", r.Model)
	}
	if calls := r.PendingToolCalls(); len(calls) > 0 {
		e.Int("pending_tool_calls", len(calls))
	}
	if r.LastError != nil {
		e.Str("last_error", r.LastError.Code+": "+r.LastError.Message)
	}
	if r.Usage != nil {
		e.Int("total_tokens", r.Usage.TotalTokens)
	}
}

var _ zerolog.LogObjectMarshaler = RunResponse{}

type RunStepType string

const (
	RunStepTypeMessageCreation RunStepType = "message_creation"
	RunStepTypeToolCalls       RunStepType = "tool_calls"
)

type RunStepStatus string

const (
	RunStepStatusInProgress RunStepStatus = "in_progress"
	RunStepStatusCancelled  RunStepStatus = "cancelled"
	RunStepStatusFailed     RunStepStatus = "failed"
	RunStepStatusCompleted  RunStepStatus = "completed"
	RunStepStatusExpired    RunStepStatus = "expired"
)

type StepDetails struct {
	Type            RunStepType      `json:"type"`
	MessageCreation *MessageCreation `json:"message_creation,omitempty"`
	ToolCalls       []StepToolCall   `json:"tool_calls,omitempty"`
}

type MessageCreation struct {
	MessageID string `json:"message_id"`
}

// StepToolCall is a tool call recorded in a run step. Exactly one of the
// type-specific fields is set, matching Type.
type StepToolCall struct {
	ID              string               `json:"id"`
	Type            string               `json:"type"`
	Function        *StepFunctionCall    `json:"function,omitempty"`
	CodeInterpreter *CodeInterpreterCall `json:"code_interpreter,omitempty"`
	// Retrieval is kept verbatim; the service currently sends an empty object.
	Retrieval *json.RawMessage `json:"retrieval,omitempty"`
}

type StepFunctionCall struct {
	Name      string  `json:"name"`
	Arguments string  `json:"arguments"`
	Output    *string `json:"output"`
}

type CodeInterpreterCall struct {
	Input   string                  `json:"input"`
	Outputs []CodeInterpreterOutput `json:"outputs"`
}

type CodeInterpreterOutput struct {
	Type  string                `json:"type"`
	Logs  string                `json:"logs,omitempty"`
	Image *CodeInterpreterImage `json:"image,omitempty"`
}

type CodeInterpreterImage struct {
	FileID string `json:"file_id"`
}

type RunStepResponse struct {
	BaseResponse
	ID          string                 `json:"id"`
	CreatedAt   int64                  `json:"created_at"`
	AssistantID string                 `json:"assistant_id"`
	ThreadID    string                 `json:"thread_id"`
	RunID       string                 `json:"run_id"`
	Type        RunStepType            `json:"type"`
	Status      RunStepStatus          `json:"status"`
	StepDetails StepDetails            `json:"step_details"`
	LastError   *LastError             `json:"last_error"`
	ExpiredAt   *int64                 `json:"expired_at"`
	CancelledAt *int64                 `json:"cancelled_at"`
	FailedAt    *int64                 `json:"failed_at"`
	CompletedAt *int64                 `json:"completed_at"`
	Metadata    map[string]interface{} `json:"metadata"`
	Usage       *openai.Usage          `json:"usage"`
}

func (s RunStepResponse) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", s.ID)
	e.Str("run_id", s.RunID)
	e.Str("type", string(s.Type))
	e.Str("status", string(s.Status))
	if s.StepDetails.MessageCreation != nil {
		e.Str("message_id", s.StepDetails.MessageCreation.MessageID)
	}
	if len(s.StepDetails.ToolCalls) > 0 {
		e.Int("tool_calls", len(s.StepDetails.ToolCalls))
	}
}

var _ zerolog.LogObjectMarshaler = RunStepResponse{}

// RunStepListResponse is one page of run steps, in the order returned by the service.
type RunStepListResponse struct {
	BaseResponse
	Data    []RunStepResponse `json:"data"`
	FirstID string            `json:"first_id"`
	LastID  string            `json:"last_id"`
	HasMore bool              `json:"has_more"`
}
