package discovery

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv6"
)

// ErrFinderClosed is returned by Search after Close
var ErrFinderClosed = errors.New("finder is closed")

// Handler is invoked once for every distinct endpoint that answers a probe.
// It runs on a receive goroutine and must not block for long.
type Handler func(Endpoint)

// readRetryPause throttles a receive loop whose socket keeps failing
const readRetryPause = 100 * time.Millisecond

// FinderOption configures a Finder
type FinderOption func(*Finder)

// WithLogger sets the logger used for transport and parse diagnostics
func WithLogger(logger *zap.Logger) FinderOption {
	return func(f *Finder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithStrictMarker requires the response marker to match case-sensitively
func WithStrictMarker(strict bool) FinderOption {
	return func(f *Finder) {
		f.strict = strict
	}
}

// WithInterfaceFilter restricts probing to interfaces accepted by filter
func WithInterfaceFilter(filter func(net.Interface) bool) FinderOption {
	return func(f *Finder) {
		f.filter = filter
	}
}

// InterfaceNamed returns a filter accepting only the named interfaces.
// An empty list accepts every interface.
func InterfaceNamed(names ...string) func(net.Interface) bool {
	if len(names) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return func(iface net.Interface) bool {
		_, ok := allowed[iface.Name]
		return ok
	}
}

// Finder sends discovery probes on every local network and reports each
// responding endpoint once until the cache is cleared.
//
// One UDP socket is kept per local unicast address. Sockets are created on
// the first Search that needs them and reused afterwards; each has its own
// receive goroutine that runs until Close.
type Finder struct {
	handler Handler
	logger  *zap.Logger
	strict  bool
	filter  func(net.Interface) bool

	// interfaces and retryPause are swapped in tests
	interfaces func() ([]net.Interface, error)
	retryPause time.Duration

	mu     sync.Mutex
	conns  map[netip.Addr]*net.UDPConn
	closed bool
	wg     sync.WaitGroup

	cacheMu sync.Mutex
	cache   map[Endpoint]struct{}
}

// NewFinder creates a Finder that reports new endpoints to handler
func NewFinder(handler Handler, opts ...FinderOption) *Finder {
	f := &Finder{
		handler:    handler,
		logger:     zap.NewNop(),
		interfaces: net.Interfaces,
		retryPause: readRetryPause,
		conns:      make(map[netip.Addr]*net.UDPConn),
		cache:      make(map[Endpoint]struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Search sends one probe burst to port over the requested address families.
//
// A failure to bind or send on one interface is logged and does not stop
// probing on the others; only interface enumeration failures are returned.
func (f *Finder) Search(port int, useV4, useV6 bool) error {
	if !useV4 && !useV6 {
		return ErrNoAddressFamily
	}

	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrFinderClosed
	}

	ifaces, err := f.interfaces()
	if err != nil {
		return fmt.Errorf("failed to enumerate network interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if f.filter != nil && !f.filter(iface) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			f.logger.Warn("Failed to list interface addresses",
				zap.String("interface", iface.Name),
				zap.Error(err),
			)
			continue
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ipnet.IP.To4() != nil {
				if useV4 {
					f.probeV4(iface, ipnet, port)
				}
				continue
			}
			if useV6 && iface.Flags&net.FlagMulticast != 0 &&
				ipnet.IP.IsLinkLocalUnicast() && !ipnet.IP.IsLoopback() {
				f.probeV6(iface, ipnet.IP, port)
			}
		}
	}

	return nil
}

// probeV4 broadcasts a probe on the subnet of ipnet
func (f *Finder) probeV4(iface net.Interface, ipnet *net.IPNet, port int) {
	ones, bits := ipnet.Mask.Size()
	if ones == bits {
		// Single-host address, there is no subnet to broadcast on
		return
	}

	local := &net.UDPAddr{IP: ipnet.IP.To4()}
	conn, err := f.socket("udp4", local, iface)
	if err != nil {
		f.logger.Warn("Failed to open IPv4 discovery socket",
			zap.String("interface", iface.Name),
			zap.String("local_addr", local.IP.String()),
			zap.Error(err),
		)
		return
	}

	target := &net.UDPAddr{IP: BroadcastAddress(ipnet.IP, ipnet.Mask), Port: port}
	if _, err := conn.WriteToUDP([]byte(ProbeMessage), target); err != nil {
		f.logger.Warn("Failed to send IPv4 discovery probe",
			zap.String("interface", iface.Name),
			zap.String("target", target.String()),
			zap.Error(err),
		)
		return
	}

	f.logger.Debug("Sent IPv4 discovery probe",
		zap.String("interface", iface.Name),
		zap.String("target", target.String()),
	)
}

// probeV6 multicasts a probe from the link-local address ip
func (f *Finder) probeV6(iface net.Interface, ip net.IP, port int) {
	local := &net.UDPAddr{IP: ip, Zone: iface.Name}
	conn, err := f.socket("udp6", local, iface)
	if err != nil {
		f.logger.Warn("Failed to open IPv6 discovery socket",
			zap.String("interface", iface.Name),
			zap.String("local_addr", local.String()),
			zap.Error(err),
		)
		return
	}

	target := &net.UDPAddr{IP: multicastGroupV6.AsSlice(), Port: port, Zone: iface.Name}
	if _, err := conn.WriteToUDP([]byte(ProbeMessage), target); err != nil {
		f.logger.Warn("Failed to send IPv6 discovery probe",
			zap.String("interface", iface.Name),
			zap.String("target", target.String()),
			zap.Error(err),
		)
		return
	}

	f.logger.Debug("Sent IPv6 discovery probe",
		zap.String("interface", iface.Name),
		zap.String("target", target.String()),
	)
}

// socket returns the socket bound to local, creating it and starting its
// receive loop on first use
func (f *Finder) socket(network string, local *net.UDPAddr, iface net.Interface) (*net.UDPConn, error) {
	key, _ := netip.AddrFromSlice(local.IP)
	key = key.Unmap()
	if local.Zone != "" {
		key = key.WithZone(local.Zone)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFinderClosed
	}
	if conn, ok := f.conns[key]; ok {
		return conn, nil
	}

	conn, err := net.ListenUDP(network, local)
	if err != nil {
		return nil, err
	}

	if network == "udp6" {
		p := ipv6.NewPacketConn(conn)
		if err := p.SetMulticastInterface(&iface); err != nil {
			f.logger.Debug("Failed to set multicast interface",
				zap.String("interface", iface.Name),
				zap.Error(err),
			)
		}
		_ = p.SetMulticastLoopback(true)
	}

	f.conns[key] = conn
	f.wg.Add(1)
	go f.receive(conn)

	f.logger.Debug("Opened discovery socket",
		zap.String("local_addr", conn.LocalAddr().String()),
	)
	return conn, nil
}

// datagramReader is the part of *net.UDPConn the receive loop uses
type datagramReader interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	LocalAddr() net.Addr
}

// receive reads responses until the socket is closed. Read errors restart
// the read on the same socket after a pause; only the first error of a
// streak is logged at warn level.
func (f *Finder) receive(conn datagramReader) {
	defer f.wg.Done()

	buf := make([]byte, maxDatagramSize)
	failures := 0
	for {
		n, sender, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			fields := []zap.Field{
				zap.String("local_addr", conn.LocalAddr().String()),
				zap.Int("consecutive_failures", failures),
				zap.Error(err),
			}
			if failures == 1 {
				f.logger.Warn("Discovery receive failed, continuing", fields...)
			} else {
				f.logger.Debug("Discovery receive still failing", fields...)
			}
			time.Sleep(f.retryPause)
			continue
		}
		if failures > 0 {
			f.logger.Debug("Discovery receive recovered", zap.Int("failures", failures))
			failures = 0
		}
		f.handleDatagram(buf[:n], sender)
	}
}

// handleDatagram parses one datagram and reports its endpoint if it is new
func (f *Finder) handleDatagram(data []byte, sender *net.UDPAddr) {
	port, matched, err := ParseResponse(data, f.strict)
	if !matched {
		return
	}
	if err != nil {
		f.logger.Warn("Discarding malformed discovery response",
			zap.String("sender", sender.String()),
			zap.String("payload", string(data)),
			zap.Error(err),
		)
		return
	}

	ep := NewEndpoint(sender, port)
	if !f.remember(ep) {
		return
	}

	f.logger.Debug("Discovered endpoint", zap.Stringer("endpoint", ep))
	if f.handler != nil {
		f.handler(ep)
	}
}

// remember adds ep to the cache and reports whether it was new
func (f *Finder) remember(ep Endpoint) bool {
	f.cacheMu.Lock()
	defer f.cacheMu.Unlock()

	if _, seen := f.cache[ep]; seen {
		return false
	}
	f.cache[ep] = struct{}{}
	return true
}

// ClearCache forgets every endpoint reported so far. Owners call this at the
// start of a session; the Finder never clears it on its own.
func (f *Finder) ClearCache() {
	f.cacheMu.Lock()
	defer f.cacheMu.Unlock()
	clear(f.cache)
}

// LocalAddrs returns the addresses of the sockets currently open
func (f *Finder) LocalAddrs() []netip.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()

	addrs := make([]netip.Addr, 0, len(f.conns))
	for a := range f.conns {
		addrs = append(addrs, a)
	}
	return addrs
}

// Close closes every socket and waits for the receive loops to exit.
// It is safe to call more than once.
func (f *Finder) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	conns := f.conns
	f.conns = make(map[netip.Addr]*net.UDPConn)
	f.mu.Unlock()

	var errs []error
	for addr, conn := range conns {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			f.logger.Debug("Error closing discovery socket",
				zap.String("local_addr", addr.String()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	f.wg.Wait()
	return errors.Join(errs...)
}
