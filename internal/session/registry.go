package session

import (
	"slices"
	"sync"
	"time"

	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/management"
)

// Registry holds the DeviceRecords of one discovery run, keyed by endpoint.
// It is safe for concurrent use; readers always receive copies.
type Registry struct {
	mu      sync.RWMutex
	records map[discovery.Endpoint]*DeviceRecord
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{records: make(map[discovery.Endpoint]*DeviceRecord)}
}

// Insert adds a new in-progress record for ep. It returns false if the
// endpoint is already known, leaving the existing record untouched.
func (r *Registry) Insert(ep discovery.Endpoint, service management.ServiceType, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[ep]; exists {
		return false
	}
	r.records[ep] = &DeviceRecord{
		Endpoint:      ep,
		ServiceType:   service,
		State:         StateDiscovered,
		StatusMessage: StatusInProgress,
		DiscoveredAt:  now,
	}
	return true
}

// Update applies fn to the record for ep under the registry lock.
// It returns false if the endpoint is unknown.
func (r *Registry) Update(ep discovery.Endpoint, fn func(*DeviceRecord)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[ep]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// Get returns a copy of the record for ep
func (r *Registry) Get(ep discovery.Endpoint) (DeviceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[ep]
	if !ok {
		return DeviceRecord{}, false
	}
	return rec.clone(), true
}

// Snapshot returns copies of all records ordered by endpoint
func (r *Registry) Snapshot() []DeviceRecord {
	r.mu.RLock()
	out := make([]DeviceRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b DeviceRecord) int {
		return a.Endpoint.Compare(b.Endpoint)
	})
	return out
}

// Len returns the number of known endpoints
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// SweepPending marks every record still in progress as timed out and
// returns how many were changed
func (r *Registry) SweepPending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	swept := 0
	for _, rec := range r.records {
		if rec.StatusMessage != StatusInProgress {
			continue
		}
		rec.StatusMessage = StatusTimedOut
		rec.State = StateTimedOut
		swept++
	}
	return swept
}
