package cmds

import (
	"context"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/api"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/endpoints"
	"github.com/go-go-golems/assistant-runs/pkg/render"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewStepsCommand() *cobra.Command {
	stepsCmd := &cobra.Command{
		Use:   "steps",
		Short: "Inspect the steps of a run",
	}

	listCmd, err := NewListStepsCommand()
	cobra.CheckErr(err)
	getCmd, err := NewGetStepsCommand()
	cobra.CheckErr(err)

	stepsCmd.AddCommand(
		buildCobraCommand(listCmd),
		buildCobraCommand(getCmd),
		newShowStepsCommand(),
	)

	return stepsCmd
}

type ListStepsSettings struct {
	ThreadID string `glazed.parameter:"thread-id"`
	RunID    string `glazed.parameter:"run-id"`
	IDGlob   string `glazed.parameter:"id"`
	Limit    int    `glazed.parameter:"limit"`
	Order    string `glazed.parameter:"order"`
	After    string `glazed.parameter:"after"`
	Before   string `glazed.parameter:"before"`
}

type ListStepsCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*ListStepsCommand)(nil)

func NewListStepsCommand() (*ListStepsCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ListStepsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"list",
			cmds.WithShort("List one page of the steps of a run"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"id",
					parameters.ParameterTypeString,
					parameters.WithHelp("Glob to match step ids"),
				),
				parameters.NewParameterDefinition(
					"limit",
					parameters.ParameterTypeInteger,
					parameters.WithHelp("Maximum number of steps to return"),
					parameters.WithDefault(0),
				),
				parameters.NewParameterDefinition(
					"order",
					parameters.ParameterTypeString,
					parameters.WithHelp("Sort order by creation time (asc, desc)"),
				),
				parameters.NewParameterDefinition(
					"after",
					parameters.ParameterTypeString,
					parameters.WithHelp("Return steps after this step id"),
				),
				parameters.NewParameterDefinition(
					"before",
					parameters.ParameterTypeString,
					parameters.WithHelp("Return steps before this step id"),
				),
			),
			cmds.WithArguments(threadIDArgument(), runIDArgument()),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *ListStepsCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &ListStepsSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	client, err := NewClient()
	if err != nil {
		return err
	}

	ctx = commandContext(ctx)
	steps, err := listSteps(ctx, client, s)
	if err != nil {
		return err
	}
	return addStepRows(ctx, gp, steps)
}

// listSteps fetches one page of steps and keeps those matching the id glob.
func listSteps(ctx context.Context, client *api.Client, s *ListStepsSettings) ([]api.RunStepResponse, error) {
	var pagination *endpoints.PaginationRequest
	if s.Limit > 0 || s.Order != "" || s.After != "" || s.Before != "" {
		pagination = &endpoints.PaginationRequest{
			Limit:  s.Limit,
			Order:  endpoints.Order(s.Order),
			After:  s.After,
			Before: s.Before,
		}
	}

	page, err := client.ListRunStepsPage(ctx, s.ThreadID, s.RunID, pagination)
	if err != nil {
		return nil, err
	}
	return filterSteps(page.Data, s.IDGlob)
}

// filterSteps keeps the steps whose id matches idGlob. An empty glob keeps every step.
func filterSteps(steps []api.RunStepResponse, idGlob string) ([]api.RunStepResponse, error) {
	if idGlob == "" {
		return steps, nil
	}

	ret := []api.RunStepResponse{}
	for _, step := range steps {
		matching, err := glob.Match(idGlob, step.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid id glob %q", idGlob)
		}
		if matching {
			ret = append(ret, step)
		}
	}
	return ret, nil
}

type GetStepsSettings struct {
	ThreadID    string   `glazed.parameter:"thread-id"`
	RunID       string   `glazed.parameter:"run-id"`
	StepIDs     []string `glazed.parameter:"step-ids"`
	All         bool     `glazed.parameter:"all"`
	Concurrency int      `glazed.parameter:"concurrency"`
}

type GetStepsCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*GetStepsCommand)(nil)

func NewGetStepsCommand() (*GetStepsCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &GetStepsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"get",
			cmds.WithShort("Retrieve run steps by id, or every step of the run with --all"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"all",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Retrieve every step of the run"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"concurrency",
					parameters.ParameterTypeInteger,
					parameters.WithHelp("Maximum number of concurrent requests"),
					parameters.WithDefault(4),
				),
			),
			cmds.WithArguments(
				threadIDArgument(),
				runIDArgument(),
				parameters.NewParameterDefinition(
					"step-ids",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Steps to retrieve"),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *GetStepsCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &GetStepsSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	client, err := NewClient()
	if err != nil {
		return err
	}

	ctx = commandContext(ctx)
	steps, err := getSteps(ctx, client, s)
	if err != nil {
		return err
	}
	return addStepRows(ctx, gp, steps)
}

// getSteps retrieves the named steps, or every step of the run when s.All is set.
func getSteps(ctx context.Context, client *api.Client, s *GetStepsSettings) ([]api.RunStepResponse, error) {
	stepIDs := s.StepIDs
	if s.All == (len(stepIDs) > 0) {
		return nil, errors.New("pass either step ids or --all")
	}

	if s.All {
		var err error
		stepIDs, err = listAllStepIDs(ctx, client, s.ThreadID, s.RunID)
		if err != nil {
			return nil, err
		}
	}

	return retrieveSteps(ctx, client, s.ThreadID, s.RunID, stepIDs, s.Concurrency)
}

// listAllStepIDs follows the pagination cursor until the last page. A page that does not
// move the cursor ends the listing.
func listAllStepIDs(ctx context.Context, client *api.Client, threadID, runID string) ([]string, error) {
	ids := []string{}
	pagination := &endpoints.PaginationRequest{Order: endpoints.OrderAsc}
	for {
		page, err := client.ListRunStepsPage(ctx, threadID, runID, pagination)
		if err != nil {
			return nil, err
		}
		if pagination.After != "" && page.LastID == pagination.After {
			log.Warn().Str("last_id", page.LastID).Msg("Step listing did not advance, stopping")
			return ids, nil
		}
		for _, step := range page.Data {
			ids = append(ids, step.ID)
		}
		if !page.HasMore || page.LastID == "" || len(page.Data) == 0 {
			return ids, nil
		}
		pagination.After = page.LastID
	}
}

// retrieveSteps fetches the steps concurrently. The result keeps the order of stepIDs and
// the first error cancels the remaining requests.
func retrieveSteps(
	ctx context.Context,
	client *api.Client,
	threadID, runID string,
	stepIDs []string,
	concurrency int,
) ([]api.RunStepResponse, error) {
	steps := make([]api.RunStepResponse, len(stepIDs))

	eg, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}
	for i, stepID := range stepIDs {
		i, stepID := i, stepID
		eg.Go(func() error {
			step, err := client.RetrieveRunStep(ctx, threadID, runID, stepID)
			if err != nil {
				return errors.Wrapf(err, "could not retrieve step %s", stepID)
			}
			log.Debug().Object("step", step).Msg("Retrieved step")
			steps[i] = *step
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return steps, nil
}

func newShowStepsCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "show <thread-id> <run-id> [step-id...]",
		Short: "Print run steps as markdown, every step of the run when no id is given",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewClient()
			if err != nil {
				return err
			}

			steps, err := getSteps(commandContext(cmd.Context()), client, &GetStepsSettings{
				ThreadID:    args[0],
				RunID:       args[1],
				StepIDs:     args[2:],
				All:         len(args) == 2,
				Concurrency: concurrency,
			})
			if err != nil {
				return err
			}
			md, err := render.StepsMarkdown(steps)
			if err != nil {
				return err
			}
			return render.Write(cmd.OutOrStdout(), md)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum number of concurrent requests")

	return cmd
}
