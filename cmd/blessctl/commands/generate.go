package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/generation"
	"github.com/Conceptual-Machines/blessing-api/internal/models"
	"github.com/spf13/cobra"
)

var (
	genRelationship string
	genLength       string
	genName         string
	genNote         string
	genReference    string
	genAPIKey       string
	genBaseURL      string
	genModel        string
	genTimeout      time.Duration
	genStream       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate all three variants for one request",
	Long: `Run one round: the normal, literary and abstract variants are generated
in parallel and printed when every variant has finished.

With --api-key, --base-url and --model all set, your own provider is used
for every variant. Otherwise --model picks a server-side model.

Examples:
  blessctl generate -r friend -l short --model deepseek-chat
  blessctl generate -r leader -l long --note "今年一起拿下了大项目" --stream
  blessctl generate -r partner -l medium --api-key sk-... --base-url https://api.deepseek.com --model deepseek-chat`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := models.NewGenerationRequest(genRelationship, string(models.StyleNormal), genLength, genName, genNote, genReference)
		if err != nil {
			return err
		}

		var explicit *models.Credentials
		if genAPIKey != "" || genBaseURL != "" {
			explicit = &models.Credentials{APIKey: genAPIKey, BaseURL: genBaseURL, ModelID: genModel, Source: models.SourceUser}
			if !explicit.Complete() {
				return fmt.Errorf("--api-key, --base-url and --model must be given together")
			}
		}

		out := cmd.OutOrStdout()
		var listeners []generation.Listener
		if genStream && !jsonOut {
			var mu sync.Mutex
			listeners = append(listeners, func(ev generation.Event) {
				if ev.Type != generation.EventToken {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "[%s] %s\n", ev.Variant, ev.Token)
			})
		}

		cfg, stack, err := loadStack(listeners...)
		if err != nil {
			return err
		}
		modelID := genModel
		if modelID == "" {
			modelID = cfg.DefaultModel
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), genTimeout)
		defer cancel()

		orch := stack.NewOrchestrator()
		roundID, err := orch.StartRound(ctx, generation.RoundInput{
			Request:  req,
			Explicit: explicit,
			ModelID:  modelID,
		})
		if err != nil {
			return err
		}
		printVerbose(cmd, "round %s started (model: %s)", roundID, modelID)

		if err := orch.Wait(ctx); err != nil {
			orch.CancelRound()
			return fmt.Errorf("round did not finish within %s: %w", genTimeout, err)
		}

		states := orch.Snapshot()
		if jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"round_id": roundID,
				"status":   generation.Aggregate(states),
				"variants": states,
			})
		}

		for _, s := range states {
			fmt.Fprintf(out, "== %s (%s) [%s] %s\n", s.Label, s.Variant, s.Status, s.Model)
			if s.Error != "" {
				fmt.Fprintf(out, "error: %s\n\n", s.Error)
				continue
			}
			fmt.Fprintf(out, "%s\n\n", s.Text)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&genRelationship, "relationship", "r", "", "elder, colleague, leader, friend, partner or customer")
	generateCmd.Flags().StringVarP(&genLength, "length", "l", string(models.LengthShort), "short, medium or long")
	generateCmd.Flags().StringVar(&genName, "name", "", "recipient name")
	generateCmd.Flags().StringVar(&genNote, "note", "", "something to mention")
	generateCmd.Flags().StringVar(&genReference, "reference", "", "a greeting to take inspiration from")
	generateCmd.Flags().StringVar(&genAPIKey, "api-key", "", "your own provider key")
	generateCmd.Flags().StringVar(&genBaseURL, "base-url", "", "your own provider base URL")
	generateCmd.Flags().StringVarP(&genModel, "model", "m", "", "model id (server-side, or your provider's with --api-key)")
	generateCmd.Flags().DurationVar(&genTimeout, "timeout", 2*time.Minute, "give up after this long")
	generateCmd.Flags().BoolVar(&genStream, "stream", false, "print tokens as they arrive")
	_ = generateCmd.MarkFlagRequired("relationship")
}
