package commands

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Conceptual-Machines/blessing-api/internal/config"
	"github.com/Conceptual-Machines/blessing-api/internal/generation"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose  bool
	envFile  string
	policy   string
	jsonOut  bool
	lookupFn = os.LookupEnv
)

var rootCmd = &cobra.Command{
	Use:   "blessctl",
	Short: "Generate Year of the Horse greetings from the terminal",
	Long: `blessctl - run the greeting generator without the HTTP server.

Server-side models are enabled by their key variables
(DEEPSEEK_API_KEY, OPENAI_API_KEY, ZHIPU_API_KEY, MOONSHOT_API_KEY,
DASHSCOPE_API_KEY, SILICONFLOW_API_KEY), or bring your own provider
with --api-key, --base-url and --model.

Examples:
  blessctl models
  blessctl generate -r friend -l short --model deepseek-chat
  blessctl generate -r elder -l medium --name 王阿姨 --json
  blessctl examples -r colleague -s literary -l long`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			printVerbose(cmd, "could not load %s: %v", envFile, err)
		}
		// The library logs through the standard logger; keep it quiet unless asked
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load")
	rootCmd.PersistentFlags().StringVar(&policy, "policy", "", "credential policy: model or random (default from CREDENTIAL_POLICY)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(examplesCmd)
}

// loadStack builds the same collaborators the server uses
func loadStack(listeners ...generation.Listener) (*config.Config, *generation.Stack, error) {
	cfg := config.Load()
	if policy != "" {
		if policy != config.PolicyModel && policy != config.PolicyRandom {
			return nil, nil, fmt.Errorf("invalid --policy %q: want %s or %s", policy, config.PolicyModel, config.PolicyRandom)
		}
		cfg.CredentialPolicy = policy
	}

	stack, err := generation.NewStack(cfg, lookupFn, listeners...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, stack, nil
}

func printVerbose(cmd *cobra.Command, format string, args ...any) {
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[verbose] "+format+"\n", args...)
	}
}
