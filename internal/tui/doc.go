// Package tui implements the live terminal view for alpaca-discover watch.
//
// Built using the Bubble Tea framework, it follows the Elm architecture with
// immutable state updates and a Model-Update-View pattern. The WatchModel
// starts a discovery run, listens on a session Subscription and redraws the
// server list whenever the session publishes an update.
//
// # Framework Components
//
//   - bubbles/spinner: Scanning indicator
//   - bubbles/progress: Elapsed share of the response window
//   - bubbles/list: Server list with filtering
//   - bubbles/help: Context-aware key help
//   - lipgloss: Styling and layout
//
// # Usage Example
//
//	sess := session.New(session.WithLogger(logger))
//	defer sess.Close()
//
//	records, err := tui.Run(ctx, sess, params)
package tui
