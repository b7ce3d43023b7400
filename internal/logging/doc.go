// Package logging provides structured logging for the Alpaca discovery tools.
//
// This package wraps a zap logger. Commands initialize the global logger
// once at startup; library packages never reach for it and instead take a
// *zap.Logger through their options, deriving child loggers with fields
// such as session_id and endpoint.
//
// # Log Levels
//
//   - Debug: Probe bursts, datagrams, per-stage enrichment results
//   - Info: Session start and completion, discovered devices
//   - Warn: Per-interface socket failures
//   - Error: Failures that stop a command
//
// # Configuration
//
// Logging is silent unless a level is given, either explicitly or through
// the ALPACA_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize(flagLogLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	s := session.New(session.WithLogger(logging.GetLogger()))
//
// # Output Format
//
// Logs are written to stderr in console format so they never mix with
// command output on stdout:
//
//	2026-03-14T21:04:11.532+0000  INFO  session/session.go:168  Discovery started  {"session_id": "6f1c...", "port": 32227}
package logging
