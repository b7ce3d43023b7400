package simulator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/logging"
	"github.com/muurk/alpaca/internal/management"
)

// Fault makes one management endpoint misbehave
type Fault struct {
	// Delay is applied before answering
	Delay time.Duration

	// Status, when non-zero, is written instead of a normal response
	Status int

	// Body replaces the JSON response verbatim
	Body string

	// ErrorNumber and ErrorMessage produce an Alpaca error envelope
	ErrorNumber  int
	ErrorMessage string
}

// Config holds the simulated device configuration
type Config struct {
	// Host is the HTTP listen address ("" for all interfaces)
	Host string

	// HTTPPort is the management API port (0 picks a free port)
	HTTPPort int

	// DiscoveryPort is the UDP discovery port (0 picks a free port).
	// Set DisableDiscovery to run the HTTP side only.
	DiscoveryPort    int
	DisableDiscovery bool
	EnableIPv6       bool

	// AdvertisedPort overrides the port announced in discovery responses
	AdvertisedPort int

	// DiscoveryPayload overrides the discovery response body
	DiscoveryPayload []byte

	// TLS serves the management API over HTTPS with a generated certificate
	TLS bool

	APIVersions []int
	Description management.ServerDescription
	Devices     []management.ConfiguredDevice

	// Faults maps a management path to the misbehaviour applied to it
	Faults map[string]Fault

	Logger *zap.Logger
}

// DefaultConfig returns a device with one telescope and one camera
func DefaultConfig() Config {
	return Config{
		Host:        "127.0.0.1",
		APIVersions: []int{1},
		Description: management.ServerDescription{
			ServerName:          "Alpaca Simulator",
			Manufacturer:        "Alpaca Tools",
			ManufacturerVersion: "1.0.0",
			Location:            "Simulated Observatory",
		},
		Devices: []management.ConfiguredDevice{
			{DeviceName: "Simulated Mount", DeviceType: "Telescope", DeviceNumber: 0, UniqueID: "8f1e2c44-0d3b-4d8e-9a52-1f4c8a7b6e01"},
			{DeviceName: "Simulated Camera", DeviceType: "Camera", DeviceNumber: 0, UniqueID: "2b7d9e10-55a1-4c3f-8e6d-0a9b3c2d1e4f"},
		},
	}
}

// Server is a simulated Alpaca device: a management API over HTTP(S)
// and a discovery responder advertising it
type Server struct {
	config    Config
	logger    *zap.Logger
	listener  net.Listener
	http      *http.Server
	tlsConfig *tls.Config
	responder *discovery.Responder

	serverTransactionID atomic.Uint32

	wg       sync.WaitGroup
	mu       sync.Mutex
	requests map[string]int
	closed   bool
}

// New binds the management API listener and, unless disabled, the
// discovery responder. Call Serve to start answering HTTP requests.
func New(config Config) (*Server, error) {
	s := &Server{
		config:   config,
		logger:   config.Logger,
		requests: make(map[string]int),
	}
	if s.logger == nil {
		s.logger = logging.GetLogger()
	}
	if s.config.APIVersions == nil {
		s.config.APIVersions = []int{1}
	}

	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.HTTPPort))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if config.TLS {
		s.tlsConfig, err = NewSelfSignedTLSConfig(DefaultCertParams())
		if err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("failed to generate certificate: %w", err)
		}
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.listener = listener

	s.http = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	if !config.DisableDiscovery {
		advertised := config.AdvertisedPort
		if advertised == 0 {
			advertised = s.HTTPPort()
		}
		s.responder, err = discovery.NewResponder(discovery.ResponderConfig{
			DiscoveryPort: config.DiscoveryPort,
			APIPort:       advertised,
			EnableIPv6:    config.EnableIPv6,
			Payload:       config.DiscoveryPayload,
			Logger:        s.logger.Named("responder"),
		})
		if err != nil {
			_ = listener.Close()
			return nil, err
		}
	}

	return s, nil
}

// Serve answers management requests in the background
func (s *Server) Serve() {
	s.logger.Info("Simulated device listening",
		zap.String("url", s.URL()),
		zap.Int("discovery_port", s.DiscoveryPort()),
		zap.String("server_name", s.config.Description.ServerName),
		zap.Int("configured_devices", len(s.config.Devices)),
	)
	if s.tlsConfig != nil {
		s.logger.Info("TLS configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Management API server stopped", zap.Error(err))
		}
	}()
}

// Run serves until ctx is canceled, then shuts down
func (s *Server) Run(ctx context.Context) error {
	s.Serve()
	<-ctx.Done()

	s.logger.Info("Shutdown requested, stopping simulated device")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the responder and gracefully stops the HTTP server.
// It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if s.responder != nil {
		if err := s.responder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close responder: %w", err))
		}
	}
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down HTTP server: %w", err))
	}
	// Shutdown does not close a listener Serve never ran on
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}
	s.wg.Wait()

	_ = s.logger.Sync()
	return errors.Join(errs...)
}

// Close shuts down immediately
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// HTTPPort returns the bound management API port
func (s *Server) HTTPPort() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// DiscoveryPort returns the bound UDP port, or 0 when discovery is disabled
func (s *Server) DiscoveryPort() int {
	if s.responder == nil {
		return 0
	}
	return s.responder.Port()
}

// Probes returns the number of discovery probes answered
func (s *Server) Probes() int {
	if s.responder == nil {
		return 0
	}
	return s.responder.Probes()
}

// URL returns the management API base URL
func (s *Server) URL() string {
	scheme := "http"
	if s.tlsConfig != nil {
		scheme = "https"
	}
	return scheme + "://" + s.listener.Addr().String()
}

// Requests returns how many requests a management path has received
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}
