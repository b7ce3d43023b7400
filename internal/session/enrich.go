package session

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/management"
)

// enrich queries the management API of a discovered device in three
// stages. Each successful stage is written to the registry immediately; the
// first failure records its message and ends the worker.
func (s *Session) enrich(ctx context.Context, r *run, ep discovery.Endpoint) {
	logger := r.logger.With(zap.Stringer("endpoint", ep))
	client := management.NewClient(r.params.ServiceType, ep.HostPort(), r.client)

	update := func(fn func(*DeviceRecord)) {
		if r.registry.Update(ep, fn) {
			s.notifyUpdated(r)
		}
	}
	fail := func(stage string, err error) {
		logger.Debug("Device enrichment failed",
			zap.String("stage", stage),
			zap.Error(err),
		)
		update(func(rec *DeviceRecord) {
			rec.State = StateFailed
			rec.StatusMessage = err.Error()
		})
	}

	r.registry.Update(ep, func(rec *DeviceRecord) { rec.State = StateEnrichingVersions })

	versions, err := client.APIVersions(ctx)
	if err != nil {
		fail("apiversions", err)
		return
	}
	update(func(rec *DeviceRecord) {
		rec.SupportedInterfaceVersions = slices.Clone(versions)
		rec.State = StateEnrichingDescription
	})

	desc, err := client.Description(ctx)
	if err != nil {
		fail("description", err)
		return
	}
	update(func(rec *DeviceRecord) {
		rec.ServerName = desc.ServerName
		rec.Manufacturer = desc.Manufacturer
		rec.ManufacturerVersion = desc.ManufacturerVersion
		rec.Location = desc.Location
		rec.State = StateEnrichingConfiguredDevices
	})

	devices, err := client.ConfiguredDevices(ctx)
	if err != nil {
		fail("configureddevices", err)
		return
	}
	update(func(rec *DeviceRecord) {
		rec.ConfiguredDevices = slices.Clone(devices)
		rec.State = StateReady
		rec.StatusMessage = StatusOK
	})

	logger.Debug("Device enriched",
		zap.Ints("interface_versions", versions),
		zap.String("server", desc.ServerName),
		zap.Int("configured_devices", len(devices)),
	)
}
