package discovery

import (
	"cmp"
	"net"
	"net/netip"
	"strconv"
)

// Endpoint identifies a discovered device's API base: the address the
// discovery response came from plus the port the device advertised.
// Endpoints are comparable and safe to use as map keys.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// NewEndpoint builds an Endpoint from a UDP sender address and an advertised port.
// IPv4-mapped IPv6 senders are unmapped so dual-stack sockets do not produce
// two keys for the same device.
func NewEndpoint(sender *net.UDPAddr, port int) Endpoint {
	addr, _ := netip.AddrFromSlice(sender.IP)
	addr = addr.Unmap()
	if sender.Zone != "" && addr.Is6() {
		addr = addr.WithZone(sender.Zone)
	}
	return Endpoint{Addr: addr, Port: uint16(port)}
}

// String returns host:port, bracketing IPv6 hosts
func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Addr, e.Port).String()
}

// Host returns the address in the form used inside URLs ("[fe80::1%25eth0]" for IPv6)
func (e Endpoint) Host() string {
	if e.Addr.Is6() {
		host := e.Addr.WithZone("").String()
		if zone := e.Addr.Zone(); zone != "" {
			host += "%25" + zone
		}
		return "[" + host + "]"
	}
	return e.Addr.String()
}

// HostPort returns the endpoint formatted for URL construction
func (e Endpoint) HostPort() string {
	return e.Host() + ":" + strconv.Itoa(int(e.Port))
}

// Compare orders endpoints by address, then port
func (e Endpoint) Compare(other Endpoint) int {
	if c := e.Addr.Compare(other.Addr); c != 0 {
		return c
	}
	return cmp.Compare(e.Port, other.Port)
}

// MarshalText encodes the endpoint as host:port
func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}
