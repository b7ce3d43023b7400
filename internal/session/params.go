package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/management"
)

// Parameter bounds enforced by Validate
const (
	MinPollCount    = 1
	MaxPollCount    = 5
	MinPollInterval = 10 * time.Millisecond
	MaxPollInterval = 60 * time.Second
	MinPort         = 1025
	MaxPort         = 65535
)

var (
	// ErrAlreadyRunning is returned by Start while the previous run is not complete
	ErrAlreadyRunning = errors.New("a discovery session is already running")

	// ErrClosed is returned by Start after Close
	ErrClosed = errors.New("discovery session is closed")
)

// ValidationError reports an invalid Start parameter.
// No network I/O happens when Start returns one.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Params configures one discovery run
type Params struct {
	// PollCount is the number of probe bursts sent (1-5)
	PollCount int `yaml:"poll_count" json:"poll_count"`

	// PollInterval is the pause between bursts (10ms-60s)
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// Port is the UDP discovery port (1025-65535)
	Port int `yaml:"port" json:"port"`

	// Duration bounds the whole run; it is also the timeout of each
	// management API call
	Duration time.Duration `yaml:"duration" json:"duration"`

	// ResolveDNS enables reverse lookups of discovered addresses
	ResolveDNS bool `yaml:"resolve_dns" json:"resolve_dns"`

	UseIPv4 bool `yaml:"use_ipv4" json:"use_ipv4"`
	UseIPv6 bool `yaml:"use_ipv6" json:"use_ipv6"`

	// ServiceType selects http or https for the management API
	ServiceType management.ServiceType `yaml:"-" json:"service_type"`
}

// DefaultParams returns the parameters used when nothing is configured
func DefaultParams() Params {
	return Params{
		PollCount:    2,
		PollInterval: 100 * time.Millisecond,
		Port:         discovery.DefaultPort,
		Duration:     2 * time.Second,
		UseIPv4:      true,
		ServiceType:  management.ServiceHTTP,
	}
}

// Validate checks every parameter against its allowed range
func (p Params) Validate() error {
	switch {
	case p.PollCount < MinPollCount || p.PollCount > MaxPollCount:
		return &ValidationError{Field: "poll count", Value: p.PollCount,
			Reason: fmt.Sprintf("must be between %d and %d", MinPollCount, MaxPollCount)}
	case p.PollInterval < MinPollInterval || p.PollInterval > MaxPollInterval:
		return &ValidationError{Field: "poll interval", Value: p.PollInterval,
			Reason: fmt.Sprintf("must be between %s and %s", MinPollInterval, MaxPollInterval)}
	case p.Port < MinPort || p.Port > MaxPort:
		return &ValidationError{Field: "discovery port", Value: p.Port,
			Reason: fmt.Sprintf("must be between %d and %d", MinPort, MaxPort)}
	case p.Duration < 0:
		return &ValidationError{Field: "duration", Value: p.Duration, Reason: "must not be negative"}
	case !p.UseIPv4 && !p.UseIPv6:
		return &ValidationError{Field: "address families", Value: "none",
			Reason: "at least one of IPv4 or IPv6 must be enabled"}
	case !p.ServiceType.Valid():
		return &ValidationError{Field: "service type", Value: p.ServiceType, Reason: "must be Http or Https"}
	}
	return nil
}

// IsValidationError reports whether err is a *ValidationError
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
