package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/management"
)

// minRequestTimeout keeps the HTTP client timeout positive for zero-length runs
const minRequestTimeout = time.Millisecond

// prober sends discovery probe bursts
type prober interface {
	Search(port int, useV4, useV6 bool) error
	ClearCache()
	Close() error
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResolver replaces the DNS resolver used for host name lookups
func WithResolver(resolver Resolver) Option {
	return func(s *Session) {
		if resolver != nil {
			s.resolver = resolver
		}
	}
}

// WithTransport sets the HTTP transport used for management API calls
func WithTransport(transport http.RoundTripper) Option {
	return func(s *Session) {
		s.transport = transport
	}
}

// WithFinderOptions passes options through to the discovery Finder
func WithFinderOptions(opts ...discovery.FinderOption) Option {
	return func(s *Session) {
		s.finderOpts = append(s.finderOpts, opts...)
	}
}

// run is the state of one Start call
type run struct {
	id       uuid.UUID
	params   Params
	started  time.Time
	registry *Registry
	client   *http.Client
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
	timer    *time.Timer

	complete atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

func (r *run) finish() {
	r.doneOnce.Do(func() { close(r.done) })
}

// Session discovers Alpaca devices on the local network and enriches each
// one through its management API. A Session can be started repeatedly;
// each Start begins a fresh run with an empty device list.
type Session struct {
	logger     *zap.Logger
	resolver   Resolver
	transport  http.RoundTripper
	finderOpts []discovery.FinderOption
	finder     prober
	events     *broker

	// workers tracks enrichment and DNS goroutines of every run
	workers errgroup.Group

	closeCtx    context.Context
	closeCancel context.CancelFunc

	// probeMu serialises probe bursts across runs
	probeMu sync.Mutex

	mu     sync.Mutex
	run    *run
	closed bool
}

// New creates an idle Session
func New(opts ...Option) *Session {
	s := &Session{
		logger:   zap.NewNop(),
		resolver: net.DefaultResolver,
		events:   newBroker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	s.closeCtx, s.closeCancel = context.WithCancel(context.Background())

	if s.finder == nil {
		finderOpts := append([]discovery.FinderOption{
			discovery.WithLogger(s.logger.Named("finder")),
		}, s.finderOpts...)
		s.finder = discovery.NewFinder(s.handleDiscovered, finderOpts...)
	}
	return s
}

// Start validates p and begins a new discovery run. It returns once every
// probe burst has been sent; devices keep arriving until p.Duration elapses.
//
// Start fails with a *ValidationError before any network I/O, with
// ErrAlreadyRunning while the previous run is incomplete, and with
// ErrClosed after Close. Canceling ctx stops in-flight enrichment; if it
// happens while bursts are still being sent, Start returns ctx.Err() and
// the run is marked complete at once, so IsComplete is true and a new
// Start is accepted. Its completion event still follows.
func (s *Session) Start(ctx context.Context, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.run != nil && !s.run.complete.Load() {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	r := s.newRun(ctx, p)
	if prev := s.run; prev != nil {
		// previous stragglers only ever touch their own registry
		prev.cancel()
	}
	s.run = r
	s.finder.ClearCache()
	r.timer = time.AfterFunc(p.Duration, func() { s.complete(r) })
	s.mu.Unlock()

	r.logger.Info("Discovery started",
		zap.Int("port", p.Port),
		zap.Int("polls", p.PollCount),
		zap.Duration("poll_interval", p.PollInterval),
		zap.Duration("duration", p.Duration),
		zap.Bool("ipv4", p.UseIPv4),
		zap.Bool("ipv6", p.UseIPv6),
		zap.Bool("dns", p.ResolveDNS),
		zap.Stringer("service", p.ServiceType),
	)

	err := s.probe(ctx, r)
	if err != nil && ctx.Err() != nil {
		s.abort(r, err)
	}
	return err
}

// abort completes r ahead of its deadline. The sweep and completion event
// run on a worker so a slow subscriber cannot hold up Start.
func (s *Session) abort(r *run, cause error) {
	r.timer.Stop()
	if !r.complete.CompareAndSwap(false, true) {
		return
	}
	r.logger.Info("Discovery aborted while probing", zap.Error(cause))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.workers.Go(func() error {
		s.announceComplete(r)
		return nil
	})
}

func (s *Session) newRun(ctx context.Context, p Params) *run {
	id := uuid.New()
	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.closeCtx, cancel)

	return &run{
		id:       id,
		params:   p,
		started:  time.Now(),
		registry: NewRegistry(),
		client: &http.Client{
			Timeout:   max(p.Duration, minRequestTimeout),
			Transport: s.transport,
		},
		ctx: runCtx,
		cancel: func() {
			stop()
			cancel()
		},
		logger: s.logger.With(zap.Stringer("session_id", id)),
		done:   make(chan struct{}),
	}
}

// probe sends the run's bursts, pausing PollInterval between them
func (s *Session) probe(ctx context.Context, r *run) error {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()

	p := r.params
	for i := 0; i < p.PollCount; i++ {
		if i > 0 {
			select {
			case <-time.After(p.PollInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := s.finder.Search(p.Port, p.UseIPv4, p.UseIPv6); err != nil {
			if errors.Is(err, discovery.ErrFinderClosed) {
				return ErrClosed
			}
			r.logger.Warn("Probe burst failed",
				zap.Int("burst", i+1),
				zap.Error(err),
			)
			continue
		}
		r.logger.Debug("Probe burst sent", zap.Int("burst", i+1))
	}
	return nil
}

// handleDiscovered is the Finder callback for each new endpoint
func (s *Session) handleDiscovered(ep discovery.Endpoint) {
	s.mu.Lock()
	r := s.run
	if s.closed || r == nil {
		s.mu.Unlock()
		return
	}
	if !r.registry.Insert(ep, r.params.ServiceType, time.Now()) {
		s.mu.Unlock()
		return
	}

	r.logger.Info("Device discovered", zap.Stringer("endpoint", ep))

	// Go is called under s.mu so Close cannot start waiting in between
	s.workers.Go(func() error {
		s.enrich(r.ctx, r, ep)
		return nil
	})
	if r.params.ResolveDNS {
		s.workers.Go(func() error {
			s.resolveHostName(r.ctx, r, ep)
			return nil
		})
	}
	s.mu.Unlock()

	s.notifyUpdated(r)
}

// complete is the deadline callback of a run
func (s *Session) complete(r *run) {
	if !r.complete.CompareAndSwap(false, true) {
		return
	}
	s.announceComplete(r)
}

// announceComplete sweeps and reports a run already marked complete
func (s *Session) announceComplete(r *run) {
	if swept := r.registry.SweepPending(); swept > 0 {
		r.logger.Debug("Marked unresponsive devices as timed out", zap.Int("count", swept))
		s.notifyUpdated(r)
	}

	r.logger.Info("Discovery completed", zap.Int("devices", r.registry.Len()))
	r.finish()
	s.events.publish(Event{Kind: EventDiscoveryCompleted, SessionID: r.id})
}

func (s *Session) notifyUpdated(r *run) {
	s.events.publish(Event{Kind: EventDevicesUpdated, SessionID: r.id})
}

func (s *Session) current() *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// IsComplete reports whether the most recent run has passed its deadline.
// It is true before the first Start.
func (s *Session) IsComplete() bool {
	r := s.current()
	return r == nil || r.complete.Load()
}

// SessionID returns the identifier of the most recent run, or uuid.Nil
func (s *Session) SessionID() uuid.UUID {
	if r := s.current(); r != nil {
		return r.id
	}
	return uuid.Nil
}

// Done returns a channel closed when the most recent run completes or the
// session is closed. Before the first Start it returns a closed channel.
func (s *Session) Done() <-chan struct{} {
	if r := s.current(); r != nil {
		return r.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Devices returns a snapshot of every device found by the most recent run,
// ordered by endpoint
func (s *Session) Devices() []DeviceRecord {
	r := s.current()
	if r == nil {
		return nil
	}
	return r.registry.Snapshot()
}

// AscomDevices flattens the current devices into one entry per configured
// device and interface version
func (s *Session) AscomDevices() []AscomDevice {
	return flattenAscomDevices(s.Devices(), nil)
}

// AscomDevicesOfType is AscomDevices restricted to one device type
func (s *Session) AscomDevicesOfType(t management.DeviceType) []AscomDevice {
	return flattenAscomDevices(s.Devices(), &t)
}

// Subscribe registers for session events. Close the subscription when done.
func (s *Session) Subscribe() *Subscription {
	return s.events.subscribe()
}

// Close stops the session: probing sockets are released, outstanding
// workers are canceled and awaited, and subscriptions are closed.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	r := s.run
	s.mu.Unlock()

	// release publishers stuck on subscribers that stopped reading before
	// waiting on the goroutines that publish
	s.events.close()

	var errs []error
	if err := s.finder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close finder: %w", err))
	}

	s.closeCancel()
	if r != nil {
		r.timer.Stop()
	}
	if err := s.workers.Wait(); err != nil {
		errs = append(errs, err)
	}
	if r != nil {
		r.finish()
	}

	if t, ok := s.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}

	s.logger.Debug("Discovery session closed")
	return errors.Join(errs...)
}
