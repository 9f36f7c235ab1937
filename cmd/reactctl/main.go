package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HammerMeetNail/socialreact/internal/config"
	"github.com/HammerMeetNail/socialreact/internal/logging"
)

var output = "text" // "text" or "json"

var rootCmd = &cobra.Command{
	Use:   "reactctl",
	Short: "reactctl - operate the reaction store",
	Long: `reactctl runs schema migrations, rebuilds cached reaction counters and
inspects reaction tallies directly against the database.

Configuration is read from the same environment (and .env file) as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if output != "text" && output != "json" {
			return fmt.Errorf("unknown output format %q (want text or json)", output)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig is swapped out in tests.
var loadConfig = config.Load

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.Error("reactctl failed", map[string]interface{}{"error": err.Error()})
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
