package discovery

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func loopbackOnly(iface net.Interface) bool {
	return iface.Flags&net.FlagLoopback != 0
}

// collector records endpoints reported by a Finder
type collector struct {
	mu    sync.Mutex
	seen  []Endpoint
	found chan Endpoint
}

func newCollector() *collector {
	return &collector{found: make(chan Endpoint, 16)}
}

func (c *collector) handle(ep Endpoint) {
	c.mu.Lock()
	c.seen = append(c.seen, ep)
	c.mu.Unlock()
	c.found <- ep
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func TestFinder_SearchRequiresAddressFamily(t *testing.T) {
	f := NewFinder(nil)
	defer f.Close()

	if err := f.Search(DefaultPort, false, false); !errors.Is(err, ErrNoAddressFamily) {
		t.Errorf("Search(false, false) error = %v, want ErrNoAddressFamily", err)
	}
	if len(f.LocalAddrs()) != 0 {
		t.Error("Search with no address family should not open sockets")
	}
}

func TestFinder_SearchInterfaceEnumerationFailure(t *testing.T) {
	f := NewFinder(nil)
	defer f.Close()
	f.interfaces = func() ([]net.Interface, error) {
		return nil, errors.New("netlink unavailable")
	}

	if err := f.Search(DefaultPort, true, false); err == nil {
		t.Error("Search() should fail when interfaces cannot be listed")
	}
}

func TestFinder_SkipsDownInterfaces(t *testing.T) {
	f := NewFinder(nil)
	defer f.Close()
	f.interfaces = func() ([]net.Interface, error) {
		return []net.Interface{{Index: 999999, Name: "down0", Flags: 0}}, nil
	}

	if err := f.Search(DefaultPort, true, true); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(f.LocalAddrs()) != 0 {
		t.Error("no sockets should be opened for down interfaces")
	}
}

func TestFinder_HandleDatagramDeduplicates(t *testing.T) {
	c := newCollector()
	f := NewFinder(c.handle)
	defer f.Close()

	sender := &net.UDPAddr{IP: net.ParseIP("192.168.1.50"), Port: 50000}
	f.handleDatagram([]byte(`{"AlpacaPort":11111}`), sender)
	f.handleDatagram([]byte(`{"AlpacaPort":11111}`), &net.UDPAddr{IP: sender.IP, Port: 50001})

	if got := c.count(); got != 1 {
		t.Fatalf("handler called %d times, want 1", got)
	}

	// A different advertised port is a different endpoint
	f.handleDatagram([]byte(`{"AlpacaPort":22222}`), sender)
	if got := c.count(); got != 2 {
		t.Fatalf("handler called %d times, want 2", got)
	}

	f.ClearCache()
	f.handleDatagram([]byte(`{"AlpacaPort":11111}`), sender)
	if got := c.count(); got != 3 {
		t.Errorf("handler called %d times after ClearCache, want 3", got)
	}
}

func TestFinder_HandleDatagramDiscardsInvalid(t *testing.T) {
	c := newCollector()
	f := NewFinder(c.handle, WithStrictMarker(true))
	defer f.Close()

	sender := &net.UDPAddr{IP: net.ParseIP("192.168.1.50"), Port: 50000}
	for _, payload := range []string{
		`{"AlpacaPort":0}`,
		`{"AlpacaPort":`,
		`{"alpacaport":11111}`,
		`hello`,
		ProbeMessage,
	} {
		f.handleDatagram([]byte(payload), sender)
	}

	if got := c.count(); got != 0 {
		t.Errorf("handler called %d times for invalid datagrams, want 0", got)
	}
}

func TestFinder_CloseIsIdempotent(t *testing.T) {
	f := NewFinder(nil)
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := f.Search(DefaultPort, true, false); !errors.Is(err, ErrFinderClosed) {
		t.Errorf("Search() after Close error = %v, want ErrFinderClosed", err)
	}
}

func TestInterfaceNamed(t *testing.T) {
	if InterfaceNamed() != nil {
		t.Error("InterfaceNamed() with no names should return nil")
	}

	filter := InterfaceNamed("eth0", "wlan0")
	if !filter(net.Interface{Name: "eth0"}) || !filter(net.Interface{Name: "wlan0"}) {
		t.Error("filter should accept listed interfaces")
	}
	if filter(net.Interface{Name: "lo"}) {
		t.Error("filter should reject unlisted interfaces")
	}
}

func TestFinder_LoopbackDiscovery(t *testing.T) {
	r, err := NewResponder(ResponderConfig{APIPort: 11111})
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}
	defer r.Close()

	c := newCollector()
	f := NewFinder(c.handle, WithInterfaceFilter(loopbackOnly))
	defer f.Close()

	// Two bursts from the same sockets must still yield one report
	for i := 0; i < 2; i++ {
		if err := f.Search(r.Port(), true, false); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}

	select {
	case ep := <-c.found:
		if ep.String() != "127.0.0.1:11111" {
			t.Errorf("endpoint = %s, want 127.0.0.1:11111", ep)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no response from loopback responder")
	}

	// Allow the second burst's answer to arrive
	deadline := time.Now().Add(500 * time.Millisecond)
	for r.Probes() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	if got := c.count(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
	if got := len(f.LocalAddrs()); got != 1 {
		t.Errorf("open sockets = %d, want 1 (reused across bursts)", got)
	}
}

func TestFinder_LoopbackIgnoresZeroPort(t *testing.T) {
	r, err := NewResponder(ResponderConfig{Payload: []byte(`{"AlpacaPort":0}`)})
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}
	defer r.Close()

	c := newCollector()
	f := NewFinder(c.handle, WithInterfaceFilter(loopbackOnly))
	defer f.Close()

	if err := f.Search(r.Port(), true, false); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.Probes() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if r.Probes() == 0 {
		t.Fatal("responder never saw the probe")
	}
	time.Sleep(100 * time.Millisecond)

	if got := c.count(); got != 0 {
		t.Errorf("handler called %d times for zero port, want 0", got)
	}
}

// flakyReader fails a fixed number of reads, delivers one response, then
// reports the socket closed
type flakyReader struct {
	failures int
	reads    int
	payload  []byte
}

func (r *flakyReader) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	r.reads++
	switch {
	case r.reads <= r.failures:
		return 0, nil, errors.New("connection refused")
	case r.reads == r.failures+1:
		n := copy(b, r.payload)
		return n, &net.UDPAddr{IP: net.ParseIP("192.168.1.50"), Port: 32227}, nil
	default:
		return 0, nil, net.ErrClosed
	}
}

func (r *flakyReader) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("192.168.1.2"), Port: 50000}
}

func TestFinder_ReceiveThrottlesPersistentErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := newCollector()
	f := NewFinder(c.handle, WithLogger(zap.New(core)))
	f.retryPause = 10 * time.Millisecond

	r := &flakyReader{failures: 5, payload: []byte(`{"AlpacaPort":11111}`)}
	started := time.Now()
	f.wg.Add(1)
	f.receive(r)

	if elapsed := time.Since(started); elapsed < 50*time.Millisecond {
		t.Errorf("receive loop retried without pausing: %d failures took %s", r.failures, elapsed)
	}
	if got := logs.FilterMessage("Discovery receive failed, continuing").Len(); got != 1 {
		t.Errorf("warned %d times for one failure streak, want 1", got)
	}
	if got := logs.FilterMessage("Discovery receive still failing").Len(); got != r.failures-1 {
		t.Errorf("logged %d repeat failures at debug, want %d", got, r.failures-1)
	}
	if got := c.count(); got != 1 {
		t.Errorf("handler called %d times after the socket recovered, want 1", got)
	}
}
