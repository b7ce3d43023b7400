// Package management provides an HTTP client for the Alpaca management API.
//
// Every Alpaca device exposes three self-description endpoints:
//
//	GET /management/apiversions             -> [1]
//	GET /management/v1/description          -> {ServerName, Manufacturer, ...}
//	GET /management/v1/configureddevices    -> [{DeviceName, DeviceType, ...}]
//
// Responses are wrapped in the standard Alpaca envelope; the client unwraps
// Value and turns a non-zero ErrorNumber into a DeviceError of type
// ErrTypeRemote.
//
// # Usage Example
//
//	client := management.NewClient(management.ServiceHTTP, "192.168.1.20:11111", nil)
//
//	versions, err := client.APIVersions(ctx)
//	if err != nil {
//	    log.Fatal(management.ShortMessage(err))
//	}
//
// # Error Handling
//
// All failures are returned as *DeviceError with an ErrorType describing the
// category (timeout, connection refused, HTTP status, parse, remote). Use the
// Is* helpers or errors.As to inspect them.
package management
