package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

const (
	// DefaultPort is the UDP port Alpaca devices listen on for discovery probes
	DefaultPort = 32227

	// ProbeMessage is the fixed payload of a discovery probe
	ProbeMessage = "alpacadiscovery1"

	// ResponseMarker must appear in every discovery response
	ResponseMarker = "AlpacaPort"

	// MulticastGroupV6 is the well-known IPv6 group probes are sent to
	MulticastGroupV6 = "ff12::a1:9aca"

	// maxDatagramSize bounds a single response read
	maxDatagramSize = 1024
)

var (
	// ErrNoAddressFamily is returned by Search when neither IPv4 nor IPv6 is requested
	ErrNoAddressFamily = errors.New("at least one of IPv4 or IPv6 must be enabled")

	// ErrInvalidPort is returned when a response carries a zero or out-of-range port
	ErrInvalidPort = errors.New("response carries an invalid port")
)

var multicastGroupV6 = netip.MustParseAddr(MulticastGroupV6)

// response is the JSON body a device sends back to a probe.
// encoding/json matches the field name case-insensitively.
type response struct {
	AlpacaPort int `json:"AlpacaPort"`
}

// ParseResponse extracts the advertised API port from a discovery response.
//
// matched reports whether the datagram carried the response marker at all; a
// datagram without the marker is not an error, it is simply not for us. With
// strict set the marker must match case-sensitively.
func ParseResponse(data []byte, strict bool) (port int, matched bool, err error) {
	text := string(data)
	if strict {
		matched = strings.Contains(text, ResponseMarker)
	} else {
		matched = strings.Contains(strings.ToLower(text), strings.ToLower(ResponseMarker))
	}
	if !matched {
		return 0, false, nil
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return 0, true, fmt.Errorf("failed to parse discovery response: %w", err)
	}
	if r.AlpacaPort <= 0 || r.AlpacaPort > 65535 {
		return 0, true, fmt.Errorf("%w: %d", ErrInvalidPort, r.AlpacaPort)
	}
	return r.AlpacaPort, true, nil
}

// EncodeResponse builds the response a device sends for the given API port.
func EncodeResponse(port int) []byte {
	b, _ := json.Marshal(response{AlpacaPort: port})
	return b
}

// IsProbe reports whether a datagram is a discovery probe.
func IsProbe(data []byte) bool {
	return strings.HasPrefix(string(data), ProbeMessage)
}

// BroadcastAddress returns the directed broadcast address of the subnet ip
// belongs to: the unicast address OR'd with the inverted subnet mask.
// It returns nil when ip is not IPv4 or the mask is not a 4-byte mask.
func BroadcastAddress(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil
	}
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}

	broadcast := make(net.IP, net.IPv4len)
	for i := range ip4 {
		broadcast[i] = ip4[i] | ^mask[i]
	}
	return broadcast
}
