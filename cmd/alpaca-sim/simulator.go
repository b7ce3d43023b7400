package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/logging"
	"github.com/muurk/alpaca/internal/management"
	"github.com/muurk/alpaca/internal/simulator"
	"github.com/muurk/alpaca/internal/ui"
)

// Simulator flags
var (
	host          string
	httpPort      int
	discoveryPort int
	advertisePort int
	enableIPv6    bool
	useTLS        bool
	serverName    string
	location      string
	devices       []string
	deviceFile    string
	logLevel      string
)

func init() {
	defaults := simulator.DefaultConfig()

	flags := rootCmd.Flags()
	flags.StringVar(&host, "host", "", "HTTP listen address (empty = all interfaces)")
	flags.IntVar(&httpPort, "http-port", 11111, "Management API port")
	flags.IntVar(&discoveryPort, "discovery-port", discovery.DefaultPort, "UDP discovery port")
	flags.IntVar(&advertisePort, "advertise-port", 0, "Port announced in discovery responses (default is --http-port)")
	flags.BoolVar(&enableIPv6, "ipv6", false, "Also answer IPv6 multicast probes")
	flags.BoolVar(&useTLS, "tls", false, "Serve the management API over HTTPS with a self-signed certificate")
	flags.StringVar(&serverName, "name", defaults.Description.ServerName, "Server name")
	flags.StringVar(&location, "location", defaults.Description.Location, "Server location")
	flags.StringArrayVar(&devices, "device", nil, `Configured device as "Type:Name" (repeatable; default is a telescope and a camera)`)
	flags.StringVarP(&deviceFile, "file", "f", "", "YAML file with the description and device list")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// deviceFileContents is the --file format
type deviceFileContents struct {
	APIVersions []int                         `yaml:"api_versions"`
	Description management.ServerDescription  `yaml:"description"`
	Devices     []management.ConfiguredDevice `yaml:"devices"`
}

func runSimulator(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	sim, err := simulator.New(config)
	if err != nil {
		return fmt.Errorf("failed to start simulator: %w", err)
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("Alpaca Simulator", cmd.CommandPath(),
		ui.Param{Key: "Server", Value: config.Description.ServerName},
		ui.Param{Key: "API", Value: sim.URL()},
		ui.Param{Key: "Discovery", Value: "udp/" + strconv.Itoa(sim.DiscoveryPort())},
		ui.Param{Key: "Devices", Value: strconv.Itoa(len(config.Devices))},
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return sim.Run(ctx)
}

// buildConfig turns flags (and --file) into a simulator configuration
func buildConfig(cmd *cobra.Command) (simulator.Config, error) {
	config := simulator.DefaultConfig()
	config.Host = host
	config.HTTPPort = httpPort
	config.DiscoveryPort = discoveryPort
	config.AdvertisedPort = advertisePort
	config.EnableIPv6 = enableIPv6
	config.TLS = useTLS
	config.Logger = logging.GetLogger()

	if deviceFile != "" {
		data, err := os.ReadFile(deviceFile)
		if err != nil {
			return config, fmt.Errorf("failed to read device file: %w", err)
		}
		var contents deviceFileContents
		if err := yaml.Unmarshal(data, &contents); err != nil {
			return config, fmt.Errorf("failed to parse device file: %w", err)
		}
		if len(contents.APIVersions) > 0 {
			config.APIVersions = contents.APIVersions
		}
		if contents.Description != (management.ServerDescription{}) {
			config.Description = contents.Description
		}
		if contents.Devices != nil {
			config.Devices = contents.Devices
		}
	}

	if cmd.Flags().Changed("name") {
		config.Description.ServerName = serverName
	}
	if cmd.Flags().Changed("location") {
		config.Description.Location = location
	}
	if len(devices) > 0 {
		parsed, err := parseDevices(devices)
		if err != nil {
			return config, err
		}
		config.Devices = parsed
	}
	return config, nil
}

// parseDevices converts "Type:Name" specs into configured devices.
// Device numbers count up per type; unique IDs are random.
func parseDevices(specs []string) ([]management.ConfiguredDevice, error) {
	numbers := make(map[management.DeviceType]int)
	out := make([]management.ConfiguredDevice, 0, len(specs))
	for _, spec := range specs {
		typeName, name, ok := strings.Cut(spec, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid device %q (expected Type:Name)", spec)
		}
		t, err := management.ParseDeviceType(typeName)
		if err != nil {
			return nil, err
		}
		out = append(out, management.ConfiguredDevice{
			DeviceName:   strings.TrimSpace(name),
			DeviceType:   t.String(),
			DeviceNumber: numbers[t],
			UniqueID:     uuid.NewString(),
		})
		numbers[t]++
	}
	return out, nil
}
