// Alpaca-sim runs a simulated ASCOM Alpaca server.
//
// It answers Alpaca discovery probes and serves the management API with a
// configurable description and device list, so discovery can be exercised
// without observatory hardware.
//
// Usage:
//
//	alpaca-sim [flags]
//
// See 'alpaca-sim --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/alpaca/internal/logging"
	"github.com/muurk/alpaca/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "alpaca-sim",
	Short: "Simulated ASCOM Alpaca Server",
	Long: `Run a simulated ASCOM Alpaca server.

The simulator answers discovery probes on the Alpaca discovery port and
serves the management API (api versions, description and configured
devices). It stops on Ctrl-C.`,
	Example: `  # Simulate the default telescope and camera
  alpaca-sim

  # Custom server with three devices on another HTTP port
  alpaca-sim --name "Roof Observatory" --http-port 8080 \
    --device Telescope:Mount --device Camera:Imager --device Focuser:Focuser

  # Serve the management API over HTTPS
  alpaca-sim --tls

  # Load the device description from a YAML file
  alpaca-sim --file observatory.yaml`,
	Version:      version.Get().Version,
	SilenceUsage: true,
	RunE:         runSimulator,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "alpaca-sim %s\n", version.Full())
	},
}
