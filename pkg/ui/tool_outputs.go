package ui

import (
	"fmt"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/tcnksm/go-input"
)

// AskToolOutputs prompts on the terminal for the output of every tool call.
func AskToolOutputs(calls []openai.ToolCall) ([]api.ToolOutput, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	tty_, err := OpenTTY()
	if err != nil {
		return nil, errors.Wrap(err, "could not open terminal")
	}
	defer func() {
		if err := tty_.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close tty")
		}
	}()

	return AskToolOutputsWith(&input.UI{
		Writer: tty_,
		Reader: tty_,
	}, calls)
}

// AskToolOutputsWith asks ui for one output per call, in the order of calls.
func AskToolOutputsWith(ui *input.UI, calls []openai.ToolCall) ([]api.ToolOutput, error) {
	outputs := make([]api.ToolOutput, 0, len(calls))
	for _, call := range calls {
		query := fmt.Sprintf("\nOutput for %s (%s %s):", call.ID, call.Function.Name, call.Function.Arguments)
		answer, err := ui.Ask(query, &input.Options{
			Required: true,
			Loop:     true,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "could not read output for tool call %s", call.ID)
		}
		outputs = append(outputs, api.ToolOutput{
			ToolCallID: call.ID,
			Output:     answer,
		})
	}
	return outputs, nil
}
