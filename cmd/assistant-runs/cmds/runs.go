package cmds

import (
	"context"
	"strings"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/api"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/requestschema"
	"github.com/go-go-golems/assistant-runs/pkg/render"
	"github.com/go-go-golems/assistant-runs/pkg/ui"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRunsCommand() *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Create, inspect and cancel assistant runs",
	}

	createCmd, err := NewCreateRunCommand()
	cobra.CheckErr(err)
	getCmd, err := NewGetRunCommand()
	cobra.CheckErr(err)
	cancelCmd, err := NewCancelRunCommand()
	cobra.CheckErr(err)
	submitCmd, err := NewSubmitToolOutputsCommand()
	cobra.CheckErr(err)

	runsCmd.AddCommand(
		buildCobraCommand(createCmd),
		buildCobraCommand(getCmd),
		buildCobraCommand(cancelCmd),
		buildCobraCommand(submitCmd),
		newShowRunCommand(),
	)

	return runsCmd
}

type CreateRunSettings struct {
	ThreadID    string `glazed.parameter:"thread-id"`
	File        string `glazed.parameter:"file"`
	AssistantID string `glazed.parameter:"assistant-id"`
	Model       string `glazed.parameter:"model"`
}

type CreateRunCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*CreateRunCommand)(nil)

func NewCreateRunCommand() (*CreateRunCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &CreateRunCommand{
		CommandDescription: cmds.NewCommandDescription(
			"create",
			cmds.WithShort("Start a run of an assistant on a thread"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"file",
					parameters.ParameterTypeString,
					parameters.WithHelp("Run request file (JSON or YAML, - for stdin)"),
				),
				parameters.NewParameterDefinition(
					"assistant-id",
					parameters.ParameterTypeString,
					parameters.WithHelp("Assistant to run, overrides the request file"),
				),
				parameters.NewParameterDefinition(
					"model",
					parameters.ParameterTypeString,
					parameters.WithHelp("Model to use, overrides the request file and the default model"),
				),
			),
			cmds.WithArguments(threadIDArgument()),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *CreateRunCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &CreateRunSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	client, err := NewClient()
	if err != nil {
		return err
	}

	ctx = commandContext(ctx)
	run, err := createRun(ctx, client, s)
	if err != nil {
		return err
	}
	return addRunRow(ctx, gp, run)
}

// createRun sends one run creation request built from the request file and the flags.
func createRun(ctx context.Context, client *api.Client, s *CreateRunSettings) (*api.RunResponse, error) {
	overrides := map[string]interface{}{}
	if s.AssistantID != "" {
		overrides["assistant_id"] = s.AssistantID
	}

	request := api.RunCreateRequest{}
	if err := loadRequest(requestschema.CreateRun, s.File, overrides, &request); err != nil {
		return nil, err
	}
	if request.AssistantID == "" {
		return nil, errors.New("an assistant id is required, pass --assistant-id or --file")
	}

	run, err := client.CreateRun(ctx, s.ThreadID, request, s.Model)
	if err != nil {
		return nil, err
	}
	log.Debug().Object("run", run).Msg("Created run")
	return run, nil
}

type RunSettings struct {
	ThreadID string `glazed.parameter:"thread-id"`
	RunID    string `glazed.parameter:"run-id"`
}

type runAction func(ctx context.Context, client *api.Client, threadID, runID string) (*api.RunResponse, error)

// RunCommand applies one action to an existing run and prints the run it returns.
type RunCommand struct {
	*cmds.CommandDescription
	action runAction
}

var _ cmds.GlazeCommand = (*RunCommand)(nil)

func newRunCommand(name, short string, action runAction) (*RunCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &RunCommand{
		CommandDescription: cmds.NewCommandDescription(
			name,
			cmds.WithShort(short),
			cmds.WithArguments(threadIDArgument(), runIDArgument()),
			cmds.WithLayersList(glazedParameterLayer),
		),
		action: action,
	}, nil
}

func NewGetRunCommand() (*RunCommand, error) {
	return newRunCommand("get", "Retrieve a run",
		func(ctx context.Context, client *api.Client, threadID, runID string) (*api.RunResponse, error) {
			return client.RetrieveRun(ctx, threadID, runID)
		})
}

func NewCancelRunCommand() (*RunCommand, error) {
	return newRunCommand("cancel", "Cancel an in-progress run",
		func(ctx context.Context, client *api.Client, threadID, runID string) (*api.RunResponse, error) {
			return client.CancelRun(ctx, threadID, runID)
		})
}

func (c *RunCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &RunSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	client, err := NewClient()
	if err != nil {
		return err
	}

	ctx = commandContext(ctx)
	run, err := c.action(ctx, client, s.ThreadID, s.RunID)
	if err != nil {
		return err
	}
	log.Debug().Object("run", run).Msg("Received run")
	return addRunRow(ctx, gp, run)
}

type SubmitToolOutputsSettings struct {
	ThreadID    string   `glazed.parameter:"thread-id"`
	RunID       string   `glazed.parameter:"run-id"`
	File        string   `glazed.parameter:"file"`
	OutputFor   []string `glazed.parameter:"output-for"`
	Interactive bool     `glazed.parameter:"interactive"`
}

type SubmitToolOutputsCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*SubmitToolOutputsCommand)(nil)

func NewSubmitToolOutputsCommand() (*SubmitToolOutputsCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &SubmitToolOutputsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"submit-tool-outputs",
			cmds.WithShort("Submit the outputs of the tool calls a run is waiting on"),
			cmds.WithLong(`Submit the outputs of the tool calls a run is waiting on.

The outputs are read from a request file, from --output-for call_id=value flags, or asked
for on the terminal with --interactive. All outputs are submitted in one request.`),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"file",
					parameters.ParameterTypeString,
					parameters.WithHelp("Tool outputs request file (JSON or YAML, - for stdin)"),
				),
				parameters.NewParameterDefinition(
					"output-for",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Output of a tool call, as call_id=value (repeatable)"),
				),
				parameters.NewParameterDefinition(
					"interactive",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Ask for the output of every pending tool call"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithArguments(threadIDArgument(), runIDArgument()),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *SubmitToolOutputsCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &SubmitToolOutputsSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	ctx = commandContext(ctx)
	run, err := submitToolOutputs(ctx, NewClient, s)
	if err != nil {
		return err
	}
	return addRunRow(ctx, gp, run)
}

// submitToolOutputs collects the outputs from exactly one source and submits them in one
// request. The client is only built once the sources have been checked.
func submitToolOutputs(ctx context.Context, newClient func() (*api.Client, error), s *SubmitToolOutputsSettings) (*api.RunResponse, error) {
	modes := 0
	for _, set := range []bool{s.File != "", len(s.OutputFor) > 0, s.Interactive} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return nil, errors.New("exactly one of --file, --output-for and --interactive is required")
	}

	client, err := newClient()
	if err != nil {
		return nil, err
	}

	request := api.SubmitToolOutputsRequest{}
	switch {
	case s.File != "":
		if err := loadRequest(requestschema.SubmitToolOutputs, s.File, nil, &request); err != nil {
			return nil, err
		}

	case len(s.OutputFor) > 0:
		request.ToolOutputs, err = parseOutputsFor(s.OutputFor)
		if err != nil {
			return nil, err
		}

	case s.Interactive:
		run, err := client.RetrieveRun(ctx, s.ThreadID, s.RunID)
		if err != nil {
			return nil, err
		}
		calls := run.PendingToolCalls()
		if len(calls) == 0 {
			return nil, errors.Errorf("run %s is %s and is not waiting for tool outputs", run.ID, run.Status)
		}
		request.ToolOutputs, err = ui.AskToolOutputs(calls)
		if err != nil {
			return nil, err
		}
	}

	run, err := client.SubmitToolOutputs(ctx, s.ThreadID, s.RunID, request)
	if err != nil {
		return nil, err
	}
	log.Debug().Object("run", run).Msg("Submitted tool outputs")
	return run, nil
}

// parseOutputsFor turns call_id=value pairs into tool outputs, keeping their order.
func parseOutputsFor(values []string) ([]api.ToolOutput, error) {
	outputs := make([]api.ToolOutput, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		id, output, ok := strings.Cut(v, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, errors.Errorf("invalid tool output %q, expected call_id=value", v)
		}
		if seen[id] {
			return nil, errors.Errorf("duplicate output for tool call %s", id)
		}
		seen[id] = true
		outputs = append(outputs, api.ToolOutput{
			ToolCallID: id,
			Output:     output,
		})
	}
	return outputs, nil
}

func newShowRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <thread-id> <run-id>",
		Short: "Retrieve a run and print it as markdown",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewClient()
			if err != nil {
				return err
			}

			run, err := client.RetrieveRun(commandContext(cmd.Context()), args[0], args[1])
			if err != nil {
				return err
			}
			md, err := render.RunMarkdown(run)
			if err != nil {
				return err
			}
			return render.Write(cmd.OutOrStdout(), md)
		},
	}
}
