// Package session runs Alpaca discovery sessions.
//
// A Session probes the local network with discovery.Finder, records each
// responding endpoint in a Registry and enriches it in the background with
// the management API (supported interface versions, server description
// and configured devices), optionally resolving its host name. Every run is
// bounded by a single deadline; when it passes, records still in progress
// are marked as timed out and EventDiscoveryCompleted is published.
//
//	s := session.New(session.WithLogger(logger))
//	defer s.Close()
//
//	sub := s.Subscribe()
//	defer sub.Close()
//
//	if err := s.Start(ctx, session.DefaultParams()); err != nil {
//	    return err
//	}
//	<-s.Done()
//	for _, dev := range s.AscomDevices() {
//	    fmt.Println(dev.Name, dev.Type, dev.Endpoint)
//	}
package session
