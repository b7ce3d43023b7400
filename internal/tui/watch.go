package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/muurk/alpaca/internal/session"
	"github.com/muurk/alpaca/internal/ui"
)

// tickInterval drives the progress bar while a scan is running
const tickInterval = 100 * time.Millisecond

// Source is the part of a discovery session the watch screen drives
type Source interface {
	Start(ctx context.Context, p session.Params) error
	Devices() []session.DeviceRecord
	SessionID() uuid.UUID
	IsComplete() bool
}

// Messages for async operations
type scanStartedMsg struct {
	id  uuid.UUID
	err error
}

type sessionEventMsg struct {
	event session.Event
}

type eventsClosedMsg struct{}

type tickMsg time.Time

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Details key.Binding
	Rescan  key.Binding
	Filter  key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Details, k.Rescan, k.Filter, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Details},
		{k.Rescan, k.Filter, k.Quit},
	}
}

// recordItem wraps a DeviceRecord for use with bubbles/list
type recordItem struct {
	record session.DeviceRecord
}

// FilterValue filters by server name, endpoint, or host name
func (r recordItem) FilterValue() string {
	return r.record.ServerName + " " + r.record.Endpoint.String() + " " + r.record.HostName
}

// recordDelegate renders one record as a compact three-line entry
type recordDelegate struct{}

func (d recordDelegate) Height() int { return 3 }

func (d recordDelegate) Spacing() int { return 1 }

func (d recordDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d recordDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(recordItem)
	if !ok {
		return
	}
	rec := it.record

	name := rec.ServerName
	if name == "" {
		name = "Unknown server"
	}
	title := ui.StateMarker(rec.State) + " " + name + "  " + rec.ServiceType.Scheme() + "://" + rec.Endpoint.HostPort()
	if index == m.Index() {
		title = SelectedItemStyle.Render("→ " + title)
	} else {
		title = "  " + title
	}

	status := lipgloss.NewStyle().Foreground(ui.StateColor(rec.State)).Render(rec.StatusMessage)
	fmt.Fprintf(w, "%s\n    %s\n    %s", title, ui.RenderStages(rec), status)
}

// WatchModel is the live discovery screen. It starts a run on Init and
// redraws as the session publishes updates.
type WatchModel struct {
	ctx    context.Context
	source Source
	events <-chan session.Event
	params session.Params

	// Discovery state
	Scanning      bool
	SessionID     uuid.UUID
	Records       []session.DeviceRecord
	DeviceList    list.Model
	ShowDetails   bool
	Err           error
	ScanStartTime time.Time

	// UI state
	Width       int
	Height      int
	Spinner     spinner.Model
	ProgressBar progress.Model
	Help        help.Model
	Keys        watchKeyMap

	now func() time.Time
}

// NewWatchModel creates the watch screen. events must come from a
// subscription on the same session as source.
func NewWatchModel(ctx context.Context, source Source, events <-chan session.Event, params session.Params) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	deviceList := list.New([]list.Item{}, recordDelegate{}, 0, 0)
	deviceList.Title = "Alpaca Servers"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(true)
	deviceList.Styles.Title = TitleStyle

	keys := watchKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Details: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "details"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return WatchModel{
		ctx:           ctx,
		source:        source,
		events:        events,
		params:        params,
		Scanning:      true,
		ScanStartTime: time.Now(),
		DeviceList:    deviceList,
		Spinner:       s,
		ProgressBar:   progressBar,
		Help:          help.New(),
		Keys:          keys,
		now:           time.Now,
	}
}

// Init starts the first scan
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(
		m.startScan(),
		waitForEvent(m.events),
		m.Spinner.Tick,
	)
}

// startScan runs Start off the UI goroutine; it blocks for the probe bursts
func (m WatchModel) startScan() tea.Cmd {
	return func() tea.Msg {
		err := m.source.Start(m.ctx, m.params)
		return scanStartedMsg{id: m.source.SessionID(), err: err}
	}
}

// waitForEvent delivers the next session event as a message
func waitForEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return sessionEventMsg{event: ev}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetWidth(msg.Width - 6)
		m.DeviceList.SetHeight(max(msg.Height-14, 4)) // Leave room for header, progress, footer
		m.ProgressBar.Width = min(max(msg.Width-20, 10), 60)
		return m, nil

	case scanStartedMsg:
		if msg.err != nil {
			m.Scanning = false
			m.Err = msg.err
			return m, nil
		}
		m.Err = nil
		m.SessionID = msg.id
		m.refresh()
		// The run may already be over when Start returns after a long burst
		if m.Scanning {
			return m, tick()
		}
		return m, nil

	case sessionEventMsg:
		m.handleEvent(msg.event)
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		m.Scanning = false
		return m, nil

	case tickMsg:
		if m.Scanning {
			return m, tick()
		}
		return m, nil

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

// handleEvent applies one session event. Events from earlier runs are ignored.
func (m *WatchModel) handleEvent(ev session.Event) {
	if ev.SessionID != m.SessionID {
		return
	}
	m.refresh()
	if ev.Kind == session.EventDiscoveryCompleted {
		m.Scanning = false
	}
}

// refresh copies the latest snapshot into the list
func (m *WatchModel) refresh() {
	m.Records = m.source.Devices()
	m.Scanning = m.SessionID == m.source.SessionID() && !m.source.IsComplete()
	items := make([]list.Item, len(m.Records))
	for i, rec := range m.Records {
		items[i] = recordItem{record: rec}
	}
	m.DeviceList.SetItems(items)
}

// updateKeys handles keyboard input
func (m WatchModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// Let the list own the keyboard while the filter prompt is open
	if m.DeviceList.FilterState() == list.Filtering {
		m.DeviceList, cmd = m.DeviceList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Details):
		if m.DeviceList.SelectedItem() != nil {
			m.ShowDetails = !m.ShowDetails
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		if m.Scanning {
			return m, nil
		}
		m.Err = nil
		m.ShowDetails = false
		m.Scanning = true
		m.ScanStartTime = m.now()
		m.Records = nil
		m.DeviceList.SetItems([]list.Item{})
		return m, tea.Batch(m.startScan(), m.Spinner.Tick)
	}

	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

// Progress returns the fraction of the run's response window that has elapsed
func (m WatchModel) Progress() float64 {
	if !m.Scanning || m.params.Duration <= 0 {
		return 1
	}
	elapsed := m.now().Sub(m.ScanStartTime)
	return min(1, float64(elapsed)/float64(m.params.Duration))
}

// View renders the watch screen
func (m WatchModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}
	return RenderApplicationContainer(m.renderContent(width), m.Help.View(m.Keys), width, m.Height)
}

func (m WatchModel) renderContent(width int) string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
	}

	if m.Scanning {
		title := fmt.Sprintf("%s SEARCHING FOR ALPACA SERVERS", m.Spinner.View())
		status := lipgloss.JoinVertical(lipgloss.Center,
			TitleStyle.Render(title),
			"",
			m.ProgressBar.ViewAs(m.Progress()),
			"",
			SubtitleStyle.Render(fmt.Sprintf("%d found so far", len(m.Records))),
		)
		b.WriteString(lipgloss.Place(width-4, 0, lipgloss.Center, lipgloss.Top, status))
		b.WriteString("\n\n")
	} else if m.Err == nil && m.SessionID != uuid.Nil {
		b.WriteString(SubtitleStyle.Render(fmt.Sprintf("  Scan complete: %d server(s) found", len(m.Records))))
		b.WriteString("\n\n")
	}

	if m.ShowDetails {
		if it, ok := m.DeviceList.SelectedItem().(recordItem); ok {
			b.WriteString(ui.RenderDeviceCard(it.record, min(width-4, MaxContentWidth)))
			return b.String()
		}
	}

	if len(m.Records) == 0 && !m.Scanning && m.Err == nil && m.SessionID != uuid.Nil {
		warning := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
		b.WriteString("  " + warning.Render("⚠ No Alpaca servers found"))
		b.WriteString("\n\n")
		for _, tip := range ui.DiscoveryTroubleshooting {
			b.WriteString(SubtitleStyle.Render("    • "+tip) + "\n")
		}
		return b.String()
	}

	b.WriteString(m.DeviceList.View())
	return b.String()
}

// Run shows the watch screen until the user quits and returns the records of
// the last run
func Run(ctx context.Context, sess *session.Session, params session.Params, opts ...tea.ProgramOption) ([]session.DeviceRecord, error) {
	sub := sess.Subscribe()
	defer sub.Close()

	model := NewWatchModel(ctx, sess, sub.Events(), params)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(model, opts...).Run()
	if err != nil {
		return nil, err
	}
	if wm, ok := final.(WatchModel); ok && wm.Err != nil {
		return wm.Records, wm.Err
	}
	return sess.Devices(), nil
}
