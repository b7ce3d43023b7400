// Package discovery implements the Alpaca UDP discovery protocol.
//
// A client broadcasts the probe "alpacadiscovery1" to port 32227 on every
// local IPv4 subnet and multicasts it to ff12::a1:9aca on every IPv6
// link-local address. Each device answers with a small JSON document naming
// the port of its HTTP management API:
//
//	{"AlpacaPort": 11111}
//
// The sender address of the response plus that port form the device's
// Endpoint.
//
// # Finder
//
// Finder owns one UDP socket per local address and reports every distinct
// Endpoint once until ClearCache is called:
//
//	f := discovery.NewFinder(func(ep discovery.Endpoint) {
//	    fmt.Println("found", ep)
//	}, discovery.WithLogger(logger))
//	defer f.Close()
//
//	if err := f.Search(discovery.DefaultPort, true, false); err != nil {
//	    return err
//	}
//
// Search returns as soon as the probes are sent. Responses arrive on
// background receive goroutines, so the handler must be safe for concurrent
// use. A failure on one interface is logged and never aborts the others.
//
// # Responder
//
// Responder is the device side of the protocol. It is used by the simulator
// and by tests that need a device on the loopback interface.
package discovery
