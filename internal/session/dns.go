package session

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/alpaca/internal/discovery"
)

const (
	// dnsSafetyMargin is left between a lookup and the run deadline
	dnsSafetyMargin = 100 * time.Millisecond

	// minDNSBudget is the smallest remaining window worth starting a lookup in
	minDNSBudget = 100 * time.Millisecond
)

// Resolver performs reverse and forward DNS lookups. *net.Resolver
// satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// resolveHostName reverse-resolves the endpoint address within what is left
// of the run and records the name only if it also resolves forward
func (s *Session) resolveHostName(ctx context.Context, r *run, ep discovery.Endpoint) {
	logger := r.logger.With(zap.Stringer("endpoint", ep))

	remaining := r.params.Duration - time.Since(r.started) - dnsSafetyMargin
	if remaining < minDNSBudget {
		logger.Debug("Skipping host name lookup, too little time left", zap.Duration("remaining", remaining))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	result := make(chan string, 1)
	go func() {
		result <- s.lookupHostName(ctx, logger, ep)
	}()

	var name string
	select {
	case name = <-result:
	case <-ctx.Done():
		logger.Debug("Host name lookup timed out")
		return
	}
	if name == "" {
		return
	}

	if r.registry.Update(ep, func(rec *DeviceRecord) { rec.HostName = name }) {
		logger.Debug("Host name resolved", zap.String("host_name", name))
		s.notifyUpdated(r)
	}
}

// lookupHostName returns the first PTR name of the endpoint address, or ""
// when there is none or it has no forward addresses (typically a name
// synthesised by a non-DNS resolver)
func (s *Session) lookupHostName(ctx context.Context, logger *zap.Logger, ep discovery.Endpoint) string {
	names, err := s.resolver.LookupAddr(ctx, ep.Addr.WithZone("").String())
	if err != nil || len(names) == 0 {
		logger.Debug("Reverse lookup failed", zap.Error(err))
		return ""
	}

	name := strings.TrimSuffix(names[0], ".")
	addrs, err := s.resolver.LookupHost(ctx, name)
	if err != nil || len(addrs) == 0 {
		logger.Debug("Ignoring host name without forward addresses",
			zap.String("host_name", name),
			zap.Error(err),
		)
		return ""
	}
	return name
}
