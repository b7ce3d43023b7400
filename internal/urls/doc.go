// Package urls provides the reference URLs printed by the commands.
//
// Usage:
//
//	import "github.com/muurk/alpaca/internal/urls"
//
//	fmt.Printf("Protocol reference: %s\n", urls.AlpacaAPI)
package urls
