package session

import (
	"context"

	"github.com/muurk/alpaca/internal/management"
)

// Discover runs one complete session and returns every device found.
// If ctx is canceled first, it returns what was found so far with ctx.Err().
func Discover(ctx context.Context, p Params, opts ...Option) ([]DeviceRecord, error) {
	s := New(opts...)
	defer s.Close()

	if err := s.Start(ctx, p); err != nil {
		if isContextError(ctx, err) {
			return s.Devices(), err
		}
		return nil, err
	}

	select {
	case <-s.Done():
		return s.Devices(), nil
	case <-ctx.Done():
		return s.Devices(), ctx.Err()
	}
}

// DiscoverAscomDevices runs one complete session and returns the flattened
// device list, restricted to filter when it is non-nil
func DiscoverAscomDevices(ctx context.Context, p Params, filter *management.DeviceType, opts ...Option) ([]AscomDevice, error) {
	records, err := Discover(ctx, p, opts...)
	return flattenAscomDevices(records, filter), err
}

func isContextError(ctx context.Context, err error) bool {
	return ctx.Err() != nil && err == ctx.Err()
}
