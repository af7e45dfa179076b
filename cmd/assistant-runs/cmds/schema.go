package cmds

import (
	"encoding/json"

	"github.com/go-go-golems/assistant-runs/pkg/assistants/requestschema"
	"github.com/spf13/cobra"
)

func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "schema <request>",
		Short:     "Print the JSON schema of a request file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: requestschema.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := requestschema.ByName(args[0])
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(schema)
		},
	}
}
