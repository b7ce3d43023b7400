// Alpaca-discover finds ASCOM Alpaca devices on the local network.
//
// It broadcasts Alpaca discovery probes over UDP, queries every responding
// server's management API and prints the servers and the ASCOM devices they
// expose. A live view shows results as they arrive.
//
// Usage:
//
//	alpaca-discover [command] [flags]
//
// Running without arguments performs a single scan.
// See 'alpaca-discover --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/alpaca/internal/logging"
	"github.com/muurk/alpaca/internal/urls"
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
	Use:   "alpaca-discover",
	Short: "ASCOM Alpaca Device Discovery",
	Long: `Discover ASCOM Alpaca servers and devices on the local network.

Discovery sends UDP probes to the Alpaca discovery port (32227 by default)
on every IPv4 broadcast address and, optionally, the IPv6 link-local
multicast group. Each responding server is then queried over its management
API for supported versions, a description and its configured devices.

Defaults can be stored in a YAML configuration file; see 'alpaca-discover
config init'. Command line flags override the file.

If no command is specified, a single scan is performed.

Protocol reference: ` + urls.AlpacaAPI,
	Version:           version.Get().Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runScan,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	registerSettingsFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{annotationNoConfig: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "alpaca-discover %s\n", version.Full())
	},
}
