package commands

import (
	"encoding/json"
	"fmt"

	"github.com/Conceptual-Machines/blessing-api/internal/models"
	"github.com/spf13/cobra"
)

var (
	exRelationship string
	exStyle        string
	exLength       string
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Show the few-shot examples for a request",
	Long: `Show which corpus examples would be placed in the prompt, and how far
the search had to relax to find them.

Examples:
  blessctl examples -r friend -s abstract -l short`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := models.NewGenerationRequest(exRelationship, exStyle, exLength, "", "", "")
		if err != nil {
			return err
		}

		_, stack, err := loadStack()
		if err != nil {
			return err
		}

		fewShot := stack.Selector.Select(req.Relationship, req.Style, req.Length)
		out := cmd.OutOrStdout()
		if jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(fewShot)
		}

		if fewShot.Empty() {
			fmt.Fprintln(out, "No examples found.")
			return nil
		}
		fmt.Fprintf(out, "match: %s\n", fewShot.MatchLevel)
		for i, ex := range fewShot.Examples {
			fmt.Fprintf(out, "%d. %s\n", i+1, ex)
		}
		return nil
	},
}

func init() {
	examplesCmd.Flags().StringVarP(&exRelationship, "relationship", "r", "", "who the greeting is for")
	examplesCmd.Flags().StringVarP(&exStyle, "style", "s", string(models.StyleNormal), "variant: normal, literary or abstract")
	examplesCmd.Flags().StringVarP(&exLength, "length", "l", string(models.LengthShort), "short, medium or long")
	_ = examplesCmd.MarkFlagRequired("relationship")
}
