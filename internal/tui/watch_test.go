package tui

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/alpaca/internal/discovery"
	"github.com/muurk/alpaca/internal/management"
	"github.com/muurk/alpaca/internal/session"
)

type fakeSource struct {
	id       uuid.UUID
	records  []session.DeviceRecord
	complete bool
	startErr error
	starts   int
}

func (f *fakeSource) Start(ctx context.Context, p session.Params) error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.id = uuid.New()
	return nil
}

func (f *fakeSource) Devices() []session.DeviceRecord { return f.records }
func (f *fakeSource) SessionID() uuid.UUID            { return f.id }
func (f *fakeSource) IsComplete() bool                { return f.complete }

func testRecord(name string) session.DeviceRecord {
	return session.DeviceRecord{
		Endpoint:      discovery.Endpoint{Addr: netip.MustParseAddr("192.168.1.20"), Port: 11111},
		ServiceType:   management.ServiceHTTP,
		State:         session.StateReady,
		StatusMessage: session.StatusOK,
		ServerName:    name,
	}
}

func newTestModel(src *fakeSource) WatchModel {
	params := session.DefaultParams()
	m := NewWatchModel(context.Background(), src, make(chan session.Event), params)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(WatchModel)
}

func update(t *testing.T, m WatchModel, msg tea.Msg) (WatchModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	wm, ok := updated.(WatchModel)
	require.True(t, ok)
	return wm, cmd
}

// started runs the model's start command and feeds the result back in
func started(t *testing.T, m WatchModel) WatchModel {
	t.Helper()
	msg := m.startScan()()
	m, _ = update(t, m, msg)
	return m
}

func TestWatchModel_StartFailure(t *testing.T) {
	src := &fakeSource{startErr: session.ErrAlreadyRunning}
	m := started(t, newTestModel(src))

	assert.False(t, m.Scanning)
	assert.ErrorIs(t, m.Err, session.ErrAlreadyRunning)
	assert.Contains(t, m.View(), "Scan failed")
}

func TestWatchModel_UpdatesFromEvents(t *testing.T) {
	src := &fakeSource{}
	m := started(t, newTestModel(src))
	require.True(t, m.Scanning)
	assert.Equal(t, src.id, m.SessionID)
	assert.Contains(t, m.View(), "SEARCHING FOR ALPACA SERVERS")

	src.records = []session.DeviceRecord{testRecord("Obs Server")}
	m, cmd := update(t, m, sessionEventMsg{event: session.Event{Kind: session.EventDevicesUpdated, SessionID: src.id}})
	assert.NotNil(t, cmd, "should keep listening for events")
	assert.Len(t, m.Records, 1)
	assert.Len(t, m.DeviceList.Items(), 1)
	assert.True(t, m.Scanning)

	src.complete = true
	m, _ = update(t, m, sessionEventMsg{event: session.Event{Kind: session.EventDiscoveryCompleted, SessionID: src.id}})
	assert.False(t, m.Scanning)

	view := m.View()
	assert.Contains(t, view, "Scan complete: 1 server(s) found")
	assert.Contains(t, view, "Obs Server")
}

func TestWatchModel_IgnoresStaleEvents(t *testing.T) {
	src := &fakeSource{}
	m := started(t, newTestModel(src))

	src.records = []session.DeviceRecord{testRecord("Old Server")}
	m, _ = update(t, m, sessionEventMsg{event: session.Event{Kind: session.EventDiscoveryCompleted, SessionID: uuid.New()}})

	assert.True(t, m.Scanning)
	assert.Empty(t, m.Records)
}

func TestWatchModel_NoServersFound(t *testing.T) {
	src := &fakeSource{}
	m := started(t, newTestModel(src))
	src.complete = true
	m, _ = update(t, m, sessionEventMsg{event: session.Event{Kind: session.EventDiscoveryCompleted, SessionID: src.id}})

	assert.Contains(t, m.View(), "No Alpaca servers found")
}

func TestWatchModel_NoSummaryBeforeFirstScan(t *testing.T) {
	m := newTestModel(&fakeSource{})
	m.Scanning = false

	view := m.View()
	assert.NotContains(t, view, "Scan complete")
	assert.NotContains(t, view, "No Alpaca servers found")
}

func TestWatchModel_Rescan(t *testing.T) {
	src := &fakeSource{}
	m := started(t, newTestModel(src))
	r := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}

	_, cmd := update(t, m, r)
	assert.Nil(t, cmd, "rescan is ignored while scanning")

	src.complete = true
	src.records = []session.DeviceRecord{testRecord("Obs Server")}
	m, _ = update(t, m, sessionEventMsg{event: session.Event{Kind: session.EventDiscoveryCompleted, SessionID: src.id}})
	first := src.id

	m, cmd = update(t, m, r)
	require.NotNil(t, cmd)
	assert.True(t, m.Scanning)
	assert.Empty(t, m.Records)

	src.complete = false
	m = started(t, m)
	assert.Equal(t, 2, src.starts)
	assert.NotEqual(t, first, m.SessionID)
}

func TestWatchModel_Details(t *testing.T) {
	src := &fakeSource{complete: true, records: []session.DeviceRecord{testRecord("Obs Server")}}
	m := started(t, newTestModel(src))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.ShowDetails)
	assert.Contains(t, m.View(), "Status:")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.ShowDetails)
}

func TestWatchModel_Quit(t *testing.T) {
	m := newTestModel(&fakeSource{})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestWatchModel_Progress(t *testing.T) {
	m := newTestModel(&fakeSource{})
	start := time.Now()
	m.ScanStartTime = start
	m.params.Duration = 2 * time.Second

	m.now = func() time.Time { return start.Add(500 * time.Millisecond) }
	assert.InDelta(t, 0.25, m.Progress(), 0.001)

	m.now = func() time.Time { return start.Add(5 * time.Second) }
	assert.Equal(t, 1.0, m.Progress())

	m.Scanning = false
	m.now = func() time.Time { return start }
	assert.Equal(t, 1.0, m.Progress())
}

func TestWaitForEvent(t *testing.T) {
	events := make(chan session.Event, 1)
	id := uuid.New()
	events <- session.Event{Kind: session.EventDevicesUpdated, SessionID: id}

	msg := waitForEvent(events)()
	assert.Equal(t, sessionEventMsg{event: session.Event{Kind: session.EventDevicesUpdated, SessionID: id}}, msg)

	close(events)
	assert.Equal(t, eventsClosedMsg{}, waitForEvent(events)())
}

func TestRenderApplicationContainer(t *testing.T) {
	out := RenderApplicationContainer("body text", "q quit", 80, 0)
	assert.Contains(t, out, AppName)
	assert.Contains(t, out, "body text")
	assert.Contains(t, out, "q quit")
	assert.True(t, strings.Count(out, "\n") >= 4)
}

func TestStartScan_PropagatesError(t *testing.T) {
	src := &fakeSource{startErr: errors.New("boom")}
	msg := NewWatchModel(context.Background(), src, nil, session.DefaultParams()).startScan()()
	assert.EqualError(t, msg.(scanStartedMsg).err, "boom")
}
