package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/alpaca/internal/config"
	"github.com/muurk/alpaca/internal/management"
	"github.com/muurk/alpaca/internal/session"
	"github.com/muurk/alpaca/internal/tui"
	"github.com/muurk/alpaca/internal/ui"
)

// Command flags
var (
	deviceType string
	force      bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)

	devicesCmd.Flags().StringVarP(&deviceType, "type", "t", "", "Only list devices of this ASCOM type (e.g. Telescope, Camera)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file without asking")
}

// scanCmd runs one discovery session
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the network for Alpaca servers",
	Long: `Run one discovery session and print every Alpaca server that answered.

Each server is queried for its supported API versions, its description and
its configured devices. Servers that do not finish within --duration are
reported as timed out.`,
	Example: `  # Scan with the defaults (2 probes, 2 second window)
  alpaca-discover scan

  # Longer scan over IPv4 and IPv6 with host names
  alpaca-discover scan --duration 5s --ipv6 --dns

  # One line per server
  alpaca-discover scan --format compact

  # JSON output for scripting
  alpaca-discover scan --format json`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	d := settings.Discovery
	format := settings.Output.Format
	printer := ui.NewPrinter(cmd.OutOrStdout())

	if format == config.FormatTable {
		printer.PrintHeader("Alpaca Discovery", cmd.CommandPath(), headerParams(d)...)
	}

	records, err := session.Discover(ctx, d.Params(), sessionOptions(d)...)
	if err != nil && !errors.Is(err, context.Canceled) {
		if format == config.FormatTable {
			printer.PrintError("Discovery failed", err, ui.DiscoveryTroubleshooting)
		}
		return err
	}

	switch format {
	case config.FormatJSON:
		return writeJSON(cmd.OutOrStdout(), records)
	case config.FormatCompact:
		printer.PrintDeviceTable(records)
	default:
		printer.PrintDevices(records)
		if len(records) > 0 {
			printer.PrintSuccess("Discovery complete", summarize(records)...)
		}
	}
	return nil
}

// summarize counts records by outcome
func summarize(records []session.DeviceRecord) []ui.Param {
	var ready, failed, timedOut, devices int
	for _, rec := range records {
		switch rec.State {
		case session.StateReady:
			ready++
		case session.StateFailed:
			failed++
		case session.StateTimedOut:
			timedOut++
		}
		devices += len(rec.ConfiguredDevices)
	}

	details := []ui.Param{
		{Key: "Servers", Value: strconv.Itoa(len(records))},
		{Key: "Ready", Value: strconv.Itoa(ready)},
		{Key: "Devices", Value: strconv.Itoa(devices)},
	}
	if failed > 0 {
		details = append(details, ui.Param{Key: "Failed", Value: strconv.Itoa(failed)})
	}
	if timedOut > 0 {
		details = append(details, ui.Param{Key: "Timed out", Value: strconv.Itoa(timedOut)})
	}
	return details
}

// devicesCmd lists configured ASCOM devices
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the ASCOM devices of every Alpaca server found",
	Long: `Run one discovery session and list every configured ASCOM device.

A server that supports several interface versions lists each device once
per version.`,
	Example: `  # All devices
  alpaca-discover devices

  # Only telescopes, as JSON
  alpaca-discover devices --type telescope --format json`,
	RunE: runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	var filter *management.DeviceType
	if deviceType != "" {
		t, err := management.ParseDeviceType(deviceType)
		if err != nil {
			return err
		}
		filter = &t
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	d := settings.Discovery
	format := settings.Output.Format
	printer := ui.NewPrinter(cmd.OutOrStdout())

	if format == config.FormatTable {
		params := headerParams(d)
		if filter != nil {
			params = append(params, ui.Param{Key: "Type", Value: filter.String()})
		}
		printer.PrintHeader("ASCOM Devices", cmd.CommandPath(), params...)
	}

	devices, err := session.DiscoverAscomDevices(ctx, d.Params(), filter, sessionOptions(d)...)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if format == config.FormatJSON {
		return writeJSON(cmd.OutOrStdout(), devices)
	}
	printer.PrintAscomDevices(devices)
	return nil
}

// watchCmd shows the live view
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch discovery results live",
	Long: `Show a live view of a discovery session.

Servers appear as they answer and their enrichment stages update in place.
Press 'r' to scan again and 'q' to quit.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return errors.New("watch requires an interactive terminal; use 'scan' instead")
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	d := settings.Discovery
	sess := session.New(sessionOptions(d)...)
	defer sess.Close()

	records, err := tui.Run(ctx, sess, d.Params())
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, context.Canceled) {
		return err
	}

	if len(records) > 0 {
		ui.NewPrinter(cmd.OutOrStdout()).PrintDeviceTable(records)
	}
	return nil
}

// configCmd groups configuration file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration in effect for this invocation: the file's
values (or the defaults) with any command line flags applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a configuration file with the default settings",
	Annotations: map[string]string{annotationNoConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !force {
			ok := ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), ui.GetTerminalWidth(),
				"Overwrite configuration",
				[]string{"A configuration file already exists at " + path, "Its settings will be replaced by the defaults"},
				"Overwrite it?",
			)
			if !ok {
				return nil
			}
		}

		if err := config.WriteDefault(path, true); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Configuration written", ui.Param{Key: "Path", Value: path})
		return nil
	},
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// signalContext cancels on Ctrl-C or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
