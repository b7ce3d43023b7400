// Package config provides user configuration management for alpaca-discover.
//
// This package manages a YAML configuration file holding discovery defaults
// (port, poll count and interval, duration, address families, service type)
// and output preferences. Command line flags override file values. The file
// never stores discovery results: each session starts from an empty
// registry.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/alpaca-discover/config.yaml or $HOME/.config/alpaca-discover/config.yaml
//   - macOS: $HOME/.config/alpaca-discover/config.yaml
//   - Windows: %LOCALAPPDATA%\alpaca-discover\config.yaml
//
// # File Format
//
//	version: 1
//	discovery:
//	    port: 32227
//	    polls: 2
//	    interval: 100ms
//	    duration: 2s
//	    resolve_dns: false
//	    ipv4: true
//	    ipv6: false
//	    https: false
//	    strict_marker: false
//	output:
//	    format: table
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	params := cfg.Discovery.Params()
package config
