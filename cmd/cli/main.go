// Command crysense classifies infant cry recordings from the command line.
//
// Usage:
//
//	crysense [flags] <command> [args]
//
// Commands:
//
//	classify <audio>        - Predict the cry type of a recording
//	features <audio>        - Print the named feature vector
//	inspect-model <path>    - Describe a model artifact
//	history                 - List past classifications
//	register-model <path>   - Record a model artifact in the history database
//
// Every flag can also be set through a CRYSENSE_* environment variable or a
// crysense.yaml config file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/CrySense/internal/cliconfig"
	"github.com/himanishpuri/CrySense/pkg/crysense"
)

var rootCmd = &cobra.Command{
	Use:   "crysense",
	Short: "Infant cry classification CLI",
	Long: `CrySense - classify an infant's cry into a cry type.

Examples:
  # Classify a recording
  crysense --model models/baseline.msgpack classify cry.wav

  # Keep a history of results
  crysense --history --model models/baseline.msgpack classify cry.m4a
  crysense --history history --limit 5

  # Dump the feature vector as JSON
  crysense features cry.wav --json > features.json
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !outputJSON {
			printBanner()
		}
	},
}

var outputJSON bool

func init() {
	cliconfig.AddFlags(rootCmd)
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print machine-readable JSON")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(inspectModelCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(registerModelCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
  ____            ____                      
 / ___|_ __ _   _/ ___|  ___ _ __  ___  ___ 
| |   | '__| | | \___ \ / _ \ '_ \/ __|/ _ \
| |___| |  | |_| |___) |  __/ | | \__ \  __/
 \____|_|   \__, |____/ \___|_| |_|___/\___|
            |___/                           
          Infant Cry Classification
`
	fmt.Println(banner)
}

// createService resolves the settings and builds the service. forceHistory
// enables the history store regardless of --history.
func createService(cmd *cobra.Command, forceHistory bool) (crysense.Service, cliconfig.Settings, crysense.Logger, error) {
	settings, _, err := cliconfig.Load(cmd)
	if err != nil {
		return nil, settings, nil, err
	}
	log, err := settings.NewLogger()
	if err != nil {
		return nil, settings, nil, err
	}
	if forceHistory {
		settings.History = true
	}
	svc, err := crysense.NewService(settings.ServiceOptions(log)...)
	if err != nil {
		return nil, settings, nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, settings, log, nil
}
