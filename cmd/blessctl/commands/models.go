package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List server-side models",
	Long: `List the server-side models whose API keys are configured.

Examples:
  blessctl models
  blessctl models --json | jq '.[].id'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, stack, err := loadStack()
		if err != nil {
			return err
		}

		available := stack.Resolver.Pool().AvailableModels()
		out := cmd.OutOrStdout()
		if jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(available)
		}

		if len(available) == 0 {
			fmt.Fprintln(out, "No server-side models configured; set a provider key or use --api-key/--base-url/--model.")
			return nil
		}
		for _, m := range available {
			fmt.Fprintf(out, "%-20s %s\n", m.ID, m.Name)
		}
		return nil
	},
}
