package session

import (
	"slices"
	"time"

	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/management"
)

// Status messages with special meaning
const (
	// StatusInProgress marks a record whose enrichment has not finished
	StatusInProgress = "Discovery in progress"

	// StatusTimedOut replaces StatusInProgress when the run deadline passes
	StatusTimedOut = "Device did not respond within the discovery response time"

	// StatusOK marks a fully enriched record
	StatusOK = "OK"
)

// State is the enrichment progress of a single device
type State int

const (
	StateDiscovered State = iota
	StateEnrichingVersions
	StateEnrichingDescription
	StateEnrichingConfiguredDevices
	StateReady
	StateFailed
	StateTimedOut
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "Discovered"
	case StateEnrichingVersions:
		return "EnrichingVersions"
	case StateEnrichingDescription:
		return "EnrichingDescription"
	case StateEnrichingConfiguredDevices:
		return "EnrichingConfiguredDevices"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	case StateTimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further enrichment is expected
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateTimedOut
}

// DeviceRecord is everything learned about one discovered endpoint.
// Fields fill in stage by stage and are never reset within a run.
type DeviceRecord struct {
	Endpoint      discovery.Endpoint     `json:"endpoint"`
	ServiceType   management.ServiceType `json:"service_type"`
	State         State                  `json:"state"`
	StatusMessage string                 `json:"status"`

	// Stage 1
	SupportedInterfaceVersions []int `json:"supported_interface_versions"`

	// Stage 2
	ServerName          string `json:"server_name,omitempty"`
	Manufacturer        string `json:"manufacturer,omitempty"`
	ManufacturerVersion string `json:"manufacturer_version,omitempty"`
	Location            string `json:"location,omitempty"`

	// Stage 3
	ConfiguredDevices []management.ConfiguredDevice `json:"configured_devices"`

	// Filled by the DNS worker only
	HostName string `json:"host_name,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at"`
}

// clone returns a deep copy safe to hand to callers
func (r *DeviceRecord) clone() DeviceRecord {
	c := *r
	c.SupportedInterfaceVersions = slices.Clone(r.SupportedInterfaceVersions)
	c.ConfiguredDevices = slices.Clone(r.ConfiguredDevices)
	return c
}

// AscomDevice is one configured device of one discovered server, for one of
// the server's interface versions
type AscomDevice struct {
	Name             string                 `json:"name"`
	Type             management.DeviceType  `json:"type"`
	Number           int                    `json:"number"`
	UniqueID         string                 `json:"unique_id"`
	InterfaceVersion int                    `json:"interface_version"`
	Endpoint         discovery.Endpoint     `json:"endpoint"`
	HostName         string                 `json:"host_name,omitempty"`
	ServiceType      management.ServiceType `json:"service_type"`
	StatusMessage    string                 `json:"status"`
}

// flattenAscomDevices expands records into AscomDevices. A nil filter keeps
// every entry; otherwise only entries whose mapped type equals *filter.
func flattenAscomDevices(records []DeviceRecord, filter *management.DeviceType) []AscomDevice {
	var out []AscomDevice
	for _, rec := range records {
		for _, version := range rec.SupportedInterfaceVersions {
			for _, cd := range rec.ConfiguredDevices {
				t := cd.Type()
				if filter != nil && t != *filter {
					continue
				}
				out = append(out, AscomDevice{
					Name:             cd.DeviceName,
					Type:             t,
					Number:           cd.DeviceNumber,
					UniqueID:         cd.UniqueID,
					InterfaceVersion: version,
					Endpoint:         rec.Endpoint,
					HostName:         rec.HostName,
					ServiceType:      rec.ServiceType,
					StatusMessage:    rec.StatusMessage,
				})
			}
		}
	}
	return out
}
