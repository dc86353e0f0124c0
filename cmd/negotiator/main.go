// cmd/negotiator/main.go
package main

import (
	"fmt"
	"os"

	"github.com/jason-s-yu/negotiator/internal/config"
	"github.com/jason-s-yu/negotiator/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "negotiator",
	Short: "Bilateral negotiation party driven by a frequency opponent model",
	Long: `negotiator runs a negotiation party that models its opponent from the
frequency of the values it offers, proposes bids that favor itself over the
estimated opponent utility, and concedes linearly toward a fixed threshold.

Use "simulate" to run local sessions between two profiles and "serve" to let a
remote platform drive a party over websocket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		return logging.Setup(cfg.Logging)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "negotiator.yaml", "Config file (missing file uses defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
