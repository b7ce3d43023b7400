package session

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/management"
)

func endpoint(addr string, port uint16) discovery.Endpoint {
	return discovery.Endpoint{Addr: netip.MustParseAddr(addr), Port: port}
}

func TestRegistry_InsertOncePerEndpoint(t *testing.T) {
	r := NewRegistry()
	ep := endpoint("192.168.1.20", 11111)

	assert.True(t, r.Insert(ep, management.ServiceHTTP, time.Now()))
	assert.False(t, r.Insert(ep, management.ServiceHTTPS, time.Now()))
	assert.True(t, r.Insert(endpoint("192.168.1.20", 11112), management.ServiceHTTP, time.Now()))
	assert.Equal(t, 2, r.Len())

	rec, ok := r.Get(ep)
	require.True(t, ok)
	assert.Equal(t, management.ServiceHTTP, rec.ServiceType, "duplicate insert must not overwrite")
	assert.Equal(t, StatusInProgress, rec.StatusMessage)
	assert.Equal(t, StateDiscovered, rec.State)
}

func TestRegistry_UpdateUnknownEndpoint(t *testing.T) {
	r := NewRegistry()
	called := false
	assert.False(t, r.Update(endpoint("10.0.0.1", 1), func(*DeviceRecord) { called = true }))
	assert.False(t, called)

	_, ok := r.Get(endpoint("10.0.0.1", 1))
	assert.False(t, ok)
}

func TestRegistry_SnapshotSortedAndCopied(t *testing.T) {
	r := NewRegistry()
	for _, ep := range []discovery.Endpoint{
		endpoint("192.168.1.30", 11111),
		endpoint("192.168.1.4", 11111),
		endpoint("192.168.1.4", 80),
	} {
		r.Insert(ep, management.ServiceHTTP, time.Now())
	}
	r.Update(endpoint("192.168.1.4", 80), func(rec *DeviceRecord) {
		rec.SupportedInterfaceVersions = []int{1}
	})

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "192.168.1.4:80", snapshot[0].Endpoint.String())
	assert.Equal(t, "192.168.1.4:11111", snapshot[1].Endpoint.String())
	assert.Equal(t, "192.168.1.30:11111", snapshot[2].Endpoint.String())

	snapshot[0].SupportedInterfaceVersions[0] = 3
	rec, _ := r.Get(endpoint("192.168.1.4", 80))
	assert.Equal(t, []int{1}, rec.SupportedInterfaceVersions)
}

func TestRegistry_SweepPending(t *testing.T) {
	r := NewRegistry()
	pending := endpoint("10.0.0.1", 11111)
	ready := endpoint("10.0.0.2", 11111)
	failed := endpoint("10.0.0.3", 11111)
	for _, ep := range []discovery.Endpoint{pending, ready, failed} {
		r.Insert(ep, management.ServiceHTTP, time.Now())
	}
	r.Update(ready, func(rec *DeviceRecord) { rec.State, rec.StatusMessage = StateReady, StatusOK })
	r.Update(failed, func(rec *DeviceRecord) { rec.State, rec.StatusMessage = StateFailed, "boom" })

	assert.Equal(t, 1, r.SweepPending())
	assert.Zero(t, r.SweepPending(), "sweeping twice changes nothing")

	rec, _ := r.Get(pending)
	assert.Equal(t, StatusTimedOut, rec.StatusMessage)
	assert.Equal(t, StateTimedOut, rec.State)
	rec, _ = r.Get(ready)
	assert.Equal(t, StatusOK, rec.StatusMessage)
	rec, _ = r.Get(failed)
	assert.Equal(t, "boom", rec.StatusMessage)
}

func TestRegistry_ConcurrentInsert(t *testing.T) {
	r := NewRegistry()
	ep := endpoint("10.0.0.9", 11111)

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Insert(ep, management.ServiceHTTP, time.Now()) {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, r.Len())
}

func TestFlattenAscomDevices(t *testing.T) {
	records := []DeviceRecord{
		{
			Endpoint:                   endpoint("10.0.0.1", 11111),
			SupportedInterfaceVersions: []int{1, 2},
			HostName:                   "hub.lan",
			ConfiguredDevices: []management.ConfiguredDevice{
				{DeviceName: "Mount", DeviceType: "Telescope", UniqueID: "a"},
				{DeviceName: "Wheel", DeviceType: "filterwheel", DeviceNumber: 1, UniqueID: "b"},
				{DeviceName: "Widget", DeviceType: "Widget", UniqueID: "c"},
			},
		},
		{
			// no versions yet, nothing to flatten
			Endpoint:          endpoint("10.0.0.2", 11111),
			ConfiguredDevices: []management.ConfiguredDevice{{DeviceName: "Dome", DeviceType: "Dome"}},
		},
	}

	all := flattenAscomDevices(records, nil)
	require.Len(t, all, 6)
	assert.Equal(t, 1, all[0].InterfaceVersion)
	assert.Equal(t, 2, all[3].InterfaceVersion)
	assert.Equal(t, "hub.lan", all[0].HostName)
	assert.Equal(t, management.DeviceTypeUnknown, all[2].Type)

	wheel := management.DeviceTypeFilterWheel
	wheels := flattenAscomDevices(records, &wheel)
	require.Len(t, wheels, 2)
	assert.Equal(t, "Wheel", wheels[0].Name)
	assert.Equal(t, 1, wheels[0].Number)

	dome := management.DeviceTypeDome
	assert.Empty(t, flattenAscomDevices(records, &dome))
	assert.Empty(t, flattenAscomDevices(nil, nil))
}

func TestState(t *testing.T) {
	assert.Equal(t, "EnrichingDescription", StateEnrichingDescription.String())
	assert.True(t, StateTimedOut.Terminal())
	assert.False(t, StateEnrichingVersions.Terminal())

	text, err := StateReady.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Ready", string(text))
}
