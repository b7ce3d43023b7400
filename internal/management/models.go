package management

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ServiceType selects the scheme used to reach a device's management API
type ServiceType int

const (
	// ServiceHTTP reaches devices over plain HTTP (the Alpaca default)
	ServiceHTTP ServiceType = iota
	// ServiceHTTPS reaches devices over HTTPS
	ServiceHTTPS
)

// Scheme returns the URL scheme for the service type
func (s ServiceType) Scheme() string {
	if s == ServiceHTTPS {
		return "https"
	}
	return "http"
}

// String returns the display name of the service type
func (s ServiceType) String() string {
	switch s {
	case ServiceHTTP:
		return "Http"
	case ServiceHTTPS:
		return "Https"
	default:
		return fmt.Sprintf("ServiceType(%d)", int(s))
	}
}

// Valid reports whether s is a known service type
func (s ServiceType) Valid() bool {
	return s == ServiceHTTP || s == ServiceHTTPS
}

// MarshalJSON renders the service type by name
func (s ServiceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// DeviceType is the ASCOM device class of a configured device
type DeviceType int

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeCamera
	DeviceTypeCoverCalibrator
	DeviceTypeDome
	DeviceTypeFilterWheel
	DeviceTypeFocuser
	DeviceTypeObservingConditions
	DeviceTypeRotator
	DeviceTypeSafetyMonitor
	DeviceTypeSwitch
	DeviceTypeTelescope
	DeviceTypeVideo
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeUnknown:             "Unknown",
	DeviceTypeCamera:              "Camera",
	DeviceTypeCoverCalibrator:     "CoverCalibrator",
	DeviceTypeDome:                "Dome",
	DeviceTypeFilterWheel:         "FilterWheel",
	DeviceTypeFocuser:             "Focuser",
	DeviceTypeObservingConditions: "ObservingConditions",
	DeviceTypeRotator:             "Rotator",
	DeviceTypeSafetyMonitor:       "SafetyMonitor",
	DeviceTypeSwitch:              "Switch",
	DeviceTypeTelescope:           "Telescope",
	DeviceTypeVideo:               "Video",
}

// String returns the ASCOM name of the device type
func (d DeviceType) String() string {
	if name, ok := deviceTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DeviceType(%d)", int(d))
}

// MarshalJSON renders the device type by name
func (d DeviceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// ParseDeviceType maps an ASCOM device type name to a DeviceType.
// Matching is case-insensitive; unknown names return an error and DeviceTypeUnknown.
func ParseDeviceType(name string) (DeviceType, error) {
	for t, n := range deviceTypeNames {
		if t != DeviceTypeUnknown && strings.EqualFold(n, strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return DeviceTypeUnknown, fmt.Errorf("unknown device type %q", name)
}

// DeviceTypes returns every known device type except Unknown, in declaration order
func DeviceTypes() []DeviceType {
	types := make([]DeviceType, 0, len(deviceTypeNames)-1)
	for t := DeviceTypeCamera; t <= DeviceTypeVideo; t++ {
		types = append(types, t)
	}
	return types
}

// ServerDescription is returned by GET /management/v1/description
type ServerDescription struct {
	ServerName          string `json:"ServerName" yaml:"server_name"`
	Manufacturer        string `json:"Manufacturer" yaml:"manufacturer"`
	ManufacturerVersion string `json:"ManufacturerVersion" yaml:"manufacturer_version"`
	Location            string `json:"Location" yaml:"location"`
}

// ConfiguredDevice is one entry of GET /management/v1/configureddevices
type ConfiguredDevice struct {
	DeviceName   string `json:"DeviceName" yaml:"device_name"`
	DeviceType   string `json:"DeviceType" yaml:"device_type"`
	DeviceNumber int    `json:"DeviceNumber" yaml:"device_number"`
	UniqueID     string `json:"UniqueID" yaml:"unique_id"`
}

// Type maps the reported device type name, returning DeviceTypeUnknown for
// names this client does not know
func (c ConfiguredDevice) Type() DeviceType {
	t, _ := ParseDeviceType(c.DeviceType)
	return t
}

// Response is the envelope every Alpaca management call is wrapped in
type Response[T any] struct {
	Value               T      `json:"Value"`
	ClientTransactionID uint32 `json:"ClientTransactionID"`
	ServerTransactionID uint32 `json:"ServerTransactionID"`
	ErrorNumber         int    `json:"ErrorNumber"`
	ErrorMessage        string `json:"ErrorMessage"`
}
