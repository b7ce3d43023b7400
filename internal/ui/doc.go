// Package ui provides terminal output components for the alpaca-discover CLI.
//
// This package uses Lipgloss to render styled, run-once output: commands
// print a header, run a discovery session, then print the results and exit.
// The interactive live view lives in package tui.
//
// # Architecture
//
// The package provides these component types:
//
//   - Header: Command banner showing the command and effective settings
//   - Result: Success/failure/warning boxes with details and tips
//   - Device cards: One bordered card per discovered server with its
//     enrichment stages and configured devices
//   - Tables: Compact server and ASCOM device listings
//
// A Printer ties them to an io.Writer and a render width.
//
// Example:
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("Alpaca Discovery", "alpaca-discover scan",
//	    ui.Param{Key: "Port", Value: "32227"},
//	)
//	records, err := session.Discover(ctx, params)
//	if err != nil {
//	    p.PrintError("Discovery failed", err, nil)
//	    return err
//	}
//	p.PrintDevices(records)
//
// # Logging Integration
//
// Logging is controlled via the ALPACA_LOG_LEVEL environment variable or the
// --log-level flag. When unset, zap logging is silent so the styled output
// is displayed cleanly.
package ui
