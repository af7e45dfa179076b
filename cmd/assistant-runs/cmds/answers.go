package cmds

import (
	"context"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/api"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/requestschema"
	"github.com/go-go-golems/assistant-runs/pkg/render"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewAnswersCommand() *cobra.Command {
	answersCmd := &cobra.Command{
		Use:   "answers",
		Short: "Legacy question answering over documents",
	}

	createCmd, err := NewCreateAnswerCommand()
	cobra.CheckErr(err)

	answersCmd.AddCommand(
		buildCobraCommand(createCmd),
		newAskCommand(),
	)
	return answersCmd
}

type CreateAnswerSettings struct {
	File            string   `glazed.parameter:"file"`
	Question        string   `glazed.parameter:"question"`
	Documents       []string `glazed.parameter:"document"`
	ExamplesContext string   `glazed.parameter:"examples-context"`
	SearchModel     string   `glazed.parameter:"search-model"`
	Model           string   `glazed.parameter:"model"`
}

func answerFlags() []*parameters.ParameterDefinition {
	return []*parameters.ParameterDefinition{
		parameters.NewParameterDefinition(
			"file",
			parameters.ParameterTypeString,
			parameters.WithHelp("Answer request file (JSON or YAML, - for stdin)"),
		),
		parameters.NewParameterDefinition(
			"question",
			parameters.ParameterTypeString,
			parameters.WithHelp("Question to answer"),
		),
		parameters.NewParameterDefinition(
			"document",
			parameters.ParameterTypeStringList,
			parameters.WithHelp("Document to search (repeatable)"),
		),
		parameters.NewParameterDefinition(
			"examples-context",
			parameters.ParameterTypeString,
			parameters.WithHelp("Background text for the examples"),
		),
		parameters.NewParameterDefinition(
			"search-model",
			parameters.ParameterTypeString,
			parameters.WithHelp("Model used to rank the documents"),
		),
		parameters.NewParameterDefinition(
			"model",
			parameters.ParameterTypeString,
			parameters.WithHelp("Model used to answer, overrides the default model"),
		),
	}
}

type CreateAnswerCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*CreateAnswerCommand)(nil)

func NewCreateAnswerCommand() (*CreateAnswerCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &CreateAnswerCommand{
		CommandDescription: cmds.NewCommandDescription(
			"create",
			cmds.WithShort("Answer a question using the given documents"),
			cmds.WithFlags(answerFlags()...),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *CreateAnswerCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &CreateAnswerSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "error initializing settings")
	}

	client, err := NewClient()
	if err != nil {
		return err
	}

	ctx = commandContext(ctx)
	answer, err := createAnswer(ctx, client, s)
	if err != nil {
		return err
	}
	return addAnswerRows(ctx, gp, answer)
}

// createAnswer sends one answer request built from the request file and the flags.
func createAnswer(ctx context.Context, client *api.Client, s *CreateAnswerSettings) (*api.CreateAnswerResponse, error) {
	overrides := map[string]interface{}{}
	if s.Question != "" {
		overrides["question"] = s.Question
	}
	if len(s.Documents) > 0 {
		overrides["documents"] = s.Documents
	}
	if s.ExamplesContext != "" {
		overrides["examples_context"] = s.ExamplesContext
	}
	if s.SearchModel != "" {
		overrides["search_model"] = s.SearchModel
	}

	request := api.CreateAnswerRequest{}
	if err := loadRequest(requestschema.CreateAnswer, s.File, overrides, &request); err != nil {
		return nil, err
	}

	return client.CreateAnswer(ctx, request, s.Model)
}

func newAskCommand() *cobra.Command {
	s := &CreateAnswerSettings{}

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer a question using the given documents and print it as markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := NewClient()
			if err != nil {
				return err
			}

			answer, err := createAnswer(commandContext(cmd.Context()), client, s)
			if err != nil {
				return err
			}
			md, err := render.AnswerMarkdown(answer)
			if err != nil {
				return err
			}
			return render.Write(cmd.OutOrStdout(), md)
		},
	}

	cmd.Flags().StringVar(&s.File, "file", "", "Answer request file (JSON or YAML, - for stdin)")
	cmd.Flags().StringVar(&s.Question, "question", "", "Question to answer")
	cmd.Flags().StringArrayVar(&s.Documents, "document", nil, "Document to search (repeatable)")
	cmd.Flags().StringVar(&s.ExamplesContext, "examples-context", "", "Background text for the examples")
	cmd.Flags().StringVar(&s.SearchModel, "search-model", "", "Model used to rank the documents")
	cmd.Flags().StringVar(&s.Model, "model", "", "Model used to answer, overrides the default model")

	return cmd
}
