// Package simulator implements a simulated ASCOM Alpaca device.
//
// A Server answers discovery probes with a discovery.Responder and serves
// the three management endpoints inside the standard Alpaca response
// envelope:
//
//	GET /management/apiversions
//	GET /management/v1/description
//	GET /management/v1/configureddevices
//
// Faults can be injected per path (delays, HTTP status codes, malformed
// bodies or Alpaca error numbers) to exercise client error handling, and
// the management API can be served over HTTPS with a generated
// self-signed certificate.
//
// # Usage Example
//
//	config := simulator.DefaultConfig()
//	config.DiscoveryPort = 32227
//
//	sim, err := simulator.New(config)
//	if err != nil {
//	    return err
//	}
//	return sim.Run(ctx)
package simulator
