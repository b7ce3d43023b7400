package discovery

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/ipv6"
)

// ResponderConfig holds the settings for a discovery Responder
type ResponderConfig struct {
	// DiscoveryPort is the UDP port to listen on (0 picks a free port)
	DiscoveryPort int

	// APIPort is the management API port advertised in responses
	APIPort int

	// EnableIPv6 also listens on IPv6 and joins the discovery multicast group
	EnableIPv6 bool

	// Payload overrides the response body. Used to emulate broken devices.
	Payload []byte

	Logger *zap.Logger
}

// Responder answers discovery probes on behalf of a device
type Responder struct {
	config  ResponderConfig
	logger  *zap.Logger
	payload []byte

	conns []*net.UDPConn
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
	probes int
}

// NewResponder binds the discovery port and starts answering probes
func NewResponder(config ResponderConfig) (*Responder, error) {
	r := &Responder{
		config:  config,
		logger:  config.Logger,
		payload: config.Payload,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.payload == nil {
		r.payload = EncodeResponse(config.APIPort)
	}

	conn4, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: config.DiscoveryPort})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on discovery port %d: %w", config.DiscoveryPort, err)
	}
	r.conns = append(r.conns, conn4)

	if config.EnableIPv6 {
		port := conn4.LocalAddr().(*net.UDPAddr).Port
		conn6, err := r.listenV6(port)
		if err != nil {
			// IPv4 keeps working without it
			r.logger.Warn("IPv6 discovery disabled", zap.Error(err))
		} else {
			r.conns = append(r.conns, conn6)
		}
	}

	for _, conn := range r.conns {
		r.wg.Add(1)
		go r.serve(conn)
	}

	r.logger.Info("Discovery responder listening",
		zap.Int("discovery_port", r.Port()),
		zap.Int("api_port", config.APIPort),
	)
	return r, nil
}

// listenV6 opens the IPv6 socket and joins the group on every multicast interface
func (r *Responder) listenV6(port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.IPv6unspecified, Port: port})
	if err != nil {
		return nil, err
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	p := ipv6.NewPacketConn(conn)
	group := &net.UDPAddr{IP: multicastGroupV6.AsSlice()}
	joined := 0
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := p.JoinGroup(&iface, group); err != nil {
			r.logger.Debug("Failed to join discovery group",
				zap.String("interface", iface.Name),
				zap.Error(err),
			)
			continue
		}
		joined++
	}
	if joined == 0 {
		_ = conn.Close()
		return nil, errors.New("no interface could join the discovery multicast group")
	}
	return conn, nil
}

func (r *Responder) serve(conn *net.UDPConn) {
	defer r.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, sender, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Warn("Responder receive failed", zap.Error(err))
			continue
		}
		if !IsProbe(buf[:n]) {
			continue
		}

		r.mu.Lock()
		r.probes++
		r.mu.Unlock()

		if _, err := conn.WriteToUDP(r.payload, sender); err != nil {
			r.logger.Warn("Failed to answer discovery probe",
				zap.String("client", sender.String()),
				zap.Error(err),
			)
			continue
		}
		r.logger.Debug("Answered discovery probe", zap.String("client", sender.String()))
	}
}

// Port returns the UDP port the responder is bound to
func (r *Responder) Port() int {
	return r.conns[0].LocalAddr().(*net.UDPAddr).Port
}

// Probes returns the number of probes received so far
func (r *Responder) Probes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.probes
}

// Close stops answering probes
func (r *Responder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for _, conn := range r.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.wg.Wait()
	return errors.Join(errs...)
}
