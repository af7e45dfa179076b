package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/go-go-golems/assistant-runs/cmd/assistant-runs/cmds"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/settings"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/transport"
	clay "github.com/go-go-golems/clay/pkg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "assistant-runs",
	Short:         "assistant-runs drives the runs of OpenAI assistants",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		err := clay.InitLogger()
		cobra.CheckErr(err)
	},
}

func initRootCmd() error {
	flags := rootCmd.PersistentFlags()

	flags.String(cmds.ClientSettingsKey, "", "Path to a YAML file with client settings")
	flags.String(cmds.RequestIDKey, "", "Request id sent with every API request")

	flags.String(settings.APIKeyKey, "", "OpenAI API key")
	flags.String(settings.BaseURLKey, "", "OpenAI API base URL (default https://api.openai.com)")
	flags.String(settings.APIVersionKey, "", "API version path segment (default v1)")
	flags.String(settings.OrganizationKey, "", "OpenAI organization")
	flags.String(settings.DefaultModelKey, "", "Model used when a request does not name one (default "+settings.DefaultModel+")")
	flags.Int(settings.TimeoutKey, 0, "Request timeout in seconds (default 60)")
	flags.String(settings.UserAgentKey, "", "User agent sent with every request")
	flags.Bool(settings.AllowHTTPKey, false, "Allow a plain http base URL")
	flags.Bool(settings.AllowLocalNetworksKey, false, "Allow a base URL on a local network")

	// binds the persistent flags above, so they have to be defined first
	err := clay.InitViper("assistant-runs", rootCmd)
	if err != nil {
		return err
	}
	// ASSISTANT_RUNS_OPENAI_API_KEY and co
	viper.SetEnvPrefix("assistant_runs")

	err = clay.InitLogger()
	if err != nil {
		return err
	}

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	rootCmd.AddCommand(
		cmds.NewRunsCommand(),
		cmds.NewStepsCommand(),
		cmds.NewAnswersCommand(),
		cmds.NewSchemaCommand(),
	)

	return nil
}

func main() {
	err := initRootCmd()
	cobra.CheckErr(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		switch {
		case transport.IsCanceled(err):
			log.Warn().Msg("Interrupted")
		case transport.IsNotFound(err):
			log.Error().Err(err).Msg("Thread, run or step not found")
		default:
			log.Error().Err(err).Msg("Command failed")
		}
		stop()
		os.Exit(1)
	}
}
