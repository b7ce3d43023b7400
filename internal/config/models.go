package config

import (
	"fmt"
	"time"

	"github.com/muurk/alpaca/internal/management"
	"github.com/muurk/alpaca/internal/session"
)

// Output formats understood by the CLI
const (
	FormatTable   = "table"
	FormatCompact = "compact"
	FormatJSON    = "json"
)

// Config represents the entire user configuration file.
// It holds discovery defaults and output preferences; discovery results
// are never persisted.
type Config struct {
	Version   int        `yaml:"version"`
	Discovery *Discovery `yaml:"discovery,omitempty"`
	Output    *Output    `yaml:"output,omitempty"`
}

// Discovery mirrors session.Params plus Finder settings
type Discovery struct {
	Port         int           `yaml:"port"`                 // UDP discovery port
	Polls        int           `yaml:"polls"`                // Probe bursts per run (1-5)
	Interval     time.Duration `yaml:"interval"`             // Pause between bursts
	Duration     time.Duration `yaml:"duration"`             // Whole-run deadline
	ResolveDNS   bool          `yaml:"resolve_dns"`          // Reverse-resolve device addresses
	IPv4         bool          `yaml:"ipv4"`                 // Probe IPv4 broadcast
	IPv6         bool          `yaml:"ipv6"`                 // Probe IPv6 multicast
	HTTPS        bool          `yaml:"https"`                // Query the management API over HTTPS
	StrictMarker bool          `yaml:"strict_marker"`        // Case-sensitive response marker
	Interfaces   []string      `yaml:"interfaces,omitempty"` // Restrict probing to these interfaces
}

// Output holds display preferences
type Output struct {
	Format string `yaml:"format"` // table, compact or json
}

// New creates a Config with default values
func New() *Config {
	p := session.DefaultParams()
	return &Config{
		Version: 1,
		Discovery: &Discovery{
			Port:       p.Port,
			Polls:      p.PollCount,
			Interval:   p.PollInterval,
			Duration:   p.Duration,
			ResolveDNS: p.ResolveDNS,
			IPv4:       p.UseIPv4,
			IPv6:       p.UseIPv6,
			HTTPS:      p.ServiceType == management.ServiceHTTPS,
		},
		Output: &Output{Format: FormatTable},
	}
}

// Params converts the discovery section to session parameters
func (d *Discovery) Params() session.Params {
	service := management.ServiceHTTP
	if d.HTTPS {
		service = management.ServiceHTTPS
	}
	return session.Params{
		PollCount:    d.Polls,
		PollInterval: d.Interval,
		Port:         d.Port,
		Duration:     d.Duration,
		ResolveDNS:   d.ResolveDNS,
		UseIPv4:      d.IPv4,
		UseIPv6:      d.IPv6,
		ServiceType:  service,
	}
}

// Validate checks the file contents
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}
	if err := c.Discovery.Params().Validate(); err != nil {
		return fmt.Errorf("invalid discovery settings: %w", err)
	}
	switch c.Output.Format {
	case FormatTable, FormatCompact, FormatJSON:
	default:
		return fmt.Errorf("invalid output format %q (expected table, compact or json)", c.Output.Format)
	}
	return nil
}
