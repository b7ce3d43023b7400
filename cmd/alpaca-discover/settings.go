package main

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/muurk/alpaca/internal/config"
	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/logging"
	"github.com/muurk/alpaca/internal/session"
	"github.com/muurk/alpaca/internal/ui"
)

// Persistent flags. Values only take effect when set on the command line;
// otherwise the configuration file (or its defaults) wins.
var (
	configPath   string
	logLevel     string
	insecure     bool
	port         int
	polls        int
	interval     time.Duration
	duration     time.Duration
	resolveDNS   bool
	useIPv4      bool
	useIPv6      bool
	useHTTPS     bool
	strict       bool
	interfaces   []string
	outputFormat string
)

// settings is the effective configuration, filled in by setup
var settings *config.Config

// annotationNoConfig marks commands that must run without reading the
// configuration file, so a broken file can still be replaced
const annotationNoConfig = "no-config"

func registerSettingsFlags(flags *pflag.FlagSet) {
	flags.StringVar(&configPath, "config", "", "Configuration file (default is the per-user config path)")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)
	flags.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification for --https")
	flags.IntVar(&port, "port", session.DefaultParams().Port, "UDP discovery port")
	flags.IntVar(&polls, "polls", session.DefaultParams().PollCount, "Probe bursts per scan (1-5)")
	flags.DurationVar(&interval, "interval", session.DefaultParams().PollInterval, "Pause between probe bursts")
	flags.DurationVar(&duration, "duration", session.DefaultParams().Duration, "How long to wait for devices to respond")
	flags.BoolVar(&resolveDNS, "dns", false, "Reverse-resolve device host names")
	flags.BoolVar(&useIPv4, "ipv4", true, "Probe IPv4 broadcast addresses")
	flags.BoolVar(&useIPv6, "ipv6", false, "Probe the IPv6 link-local multicast group")
	flags.BoolVar(&useHTTPS, "https", false, "Query the management API over HTTPS")
	flags.BoolVar(&strict, "strict", false, "Require the exact-case AlpacaPort key in discovery responses")
	flags.StringSliceVar(&interfaces, "interface", nil, "Only probe these network interfaces (repeatable)")
	flags.StringVarP(&outputFormat, "format", "o", config.FormatTable, "Output format (table, compact, json)")
}

// setup initializes logging and resolves the effective settings
func setup(cmd *cobra.Command, args []string) error {
	if logLevel != "" {
		if err := logging.Initialize(logLevel); err != nil {
			return err
		}
	} else if err := logging.InitializeFromEnv(); err != nil {
		return err
	}

	if cmd.Annotations[annotationNoConfig] != "" {
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	settings, err = applyFlags(cfg, cmd.Flags())
	return err
}

// applyFlags copies explicitly set flags over cfg and validates the result.
// cfg itself is not modified.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet) (*config.Config, error) {
	out := *cfg
	d := *cfg.Discovery
	o := *cfg.Output
	out.Discovery, out.Output = &d, &o

	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "port":
			d.Port = port
		case "polls":
			d.Polls = polls
		case "interval":
			d.Interval = interval
		case "duration":
			d.Duration = duration
		case "dns":
			d.ResolveDNS = resolveDNS
		case "ipv4":
			d.IPv4 = useIPv4
		case "ipv6":
			d.IPv6 = useIPv6
		case "https":
			d.HTTPS = useHTTPS
		case "strict":
			d.StrictMarker = strict
		case "interface":
			d.Interfaces = interfaces
		case "format":
			o.Format = outputFormat
		}
	})

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// sessionOptions builds the session wiring for the effective settings
func sessionOptions(d *config.Discovery) []session.Option {
	logger := logging.GetLogger()

	finderOpts := []discovery.FinderOption{
		discovery.WithLogger(logger),
		discovery.WithStrictMarker(d.StrictMarker),
	}
	if len(d.Interfaces) > 0 {
		finderOpts = append(finderOpts, discovery.WithInterfaceFilter(discovery.InterfaceNamed(d.Interfaces...)))
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithFinderOptions(finderOpts...),
	}
	if d.HTTPS && insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
		opts = append(opts, session.WithTransport(transport))
	}
	return opts
}

// headerParams lists the effective settings for command headers
func headerParams(d *config.Discovery) []ui.Param {
	families := "IPv4"
	switch {
	case d.IPv4 && d.IPv6:
		families = "IPv4, IPv6"
	case d.IPv6:
		families = "IPv6"
	}
	service := "HTTP"
	if d.HTTPS {
		service = "HTTPS"
	}

	params := []ui.Param{
		{Key: "Port", Value: strconv.Itoa(d.Port)},
		{Key: "Probes", Value: fmt.Sprintf("%d every %s", d.Polls, d.Interval)},
		{Key: "Duration", Value: d.Duration.String()},
		{Key: "Networks", Value: families},
		{Key: "Service", Value: service},
	}
	if d.ResolveDNS {
		params = append(params, ui.Param{Key: "DNS", Value: "reverse lookup"})
	}
	if len(d.Interfaces) > 0 {
		params = append(params, ui.Param{Key: "Interfaces", Value: fmt.Sprint(d.Interfaces)})
	}
	return params
}
