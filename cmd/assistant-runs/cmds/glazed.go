package cmds

import (
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/middlewares"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/spf13/cobra"
)

func getMiddlewares(
	_ *cli.GlazedCommandSettings,
	cmd *cobra.Command,
	args []string,
) ([]middlewares.Middleware, error) {
	return []middlewares.Middleware{
		middlewares.ParseFromCobraCommand(cmd),
		middlewares.GatherArguments(args),
		middlewares.SetFromDefaults(),
	}, nil
}

func buildCobraCommand(command cmds.GlazeCommand) *cobra.Command {
	cobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(command,
		cli.WithCobraMiddlewaresFunc(getMiddlewares),
	)
	cobra.CheckErr(err)
	return cobraCmd
}

func threadIDArgument() *parameters.ParameterDefinition {
	return parameters.NewParameterDefinition(
		"thread-id",
		parameters.ParameterTypeString,
		parameters.WithHelp("Thread the run belongs to"),
		parameters.WithRequired(true),
	)
}

func runIDArgument() *parameters.ParameterDefinition {
	return parameters.NewParameterDefinition(
		"run-id",
		parameters.ParameterTypeString,
		parameters.WithHelp("Run id"),
		parameters.WithRequired(true),
	)
}
