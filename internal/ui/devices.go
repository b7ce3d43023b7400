package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/alpaca/internal/session"
)

// StateColor returns the accent color for a device state
func StateColor(state session.State) lipgloss.Color {
	switch state {
	case session.StateReady:
		return SuccessColor
	case session.StateFailed:
		return ErrorColor
	case session.StateTimedOut:
		return WarningColor
	default:
		return PrimaryColor
	}
}

// StateMarker returns the single-character marker for a device state
func StateMarker(state session.State) string {
	switch state {
	case session.StateReady:
		return SuccessMarker
	case session.StateFailed:
		return FailureMarker
	case session.StateTimedOut:
		return WarningMarker
	default:
		return StepMarkerRunning
	}
}

// enrichmentStages are rendered as a step list on device cards
var enrichmentStages = []struct {
	name  string
	state session.State
}{
	{"Versions", session.StateEnrichingVersions},
	{"Description", session.StateEnrichingDescription},
	{"Devices", session.StateEnrichingConfiguredDevices},
}

// RenderStages renders the enrichment stage list for a record, e.g.
// "✓ Versions  ● Description  · Devices"
func RenderStages(rec session.DeviceRecord) string {
	reached := stageReached(rec)
	parts := make([]string, 0, len(enrichmentStages))
	for _, stage := range enrichmentStages {
		marker, style := StepMarkerPending, MutedStyle
		switch {
		case rec.State == session.StateReady || stage.state < reached:
			marker, style = StepMarkerComplete, lipgloss.NewStyle().Foreground(SuccessColor)
		case stage.state == reached && rec.State.Terminal():
			marker, style = FailureMarker, lipgloss.NewStyle().Foreground(ErrorColor)
		case stage.state == reached:
			marker, style = StepMarkerRunning, lipgloss.NewStyle().Foreground(WarningColor)
		}
		parts = append(parts, style.Render(marker+" "+stage.name))
	}
	return strings.Join(parts, "  ")
}

// stageReached returns the stage a record is in or stopped at. Failed and
// timed-out records no longer carry their stage, so the data filled by
// earlier stages tells how far they got.
func stageReached(rec session.DeviceRecord) session.State {
	if !rec.State.Terminal() {
		return rec.State
	}
	switch {
	case rec.State == session.StateReady:
		return session.StateReady
	case rec.ServerName != "" || rec.Manufacturer != "" || rec.Location != "":
		return session.StateEnrichingConfiguredDevices
	case len(rec.SupportedInterfaceVersions) > 0:
		return session.StateEnrichingDescription
	default:
		return session.StateEnrichingVersions
	}
}

// RenderDeviceCard renders everything known about one server as a bordered card
func RenderDeviceCard(rec session.DeviceRecord, width int) string {
	width = max(width, MinTerminalWidth)

	name := rec.ServerName
	if name == "" {
		name = "Unknown server"
	}
	title := DeviceTitleStyle.Render(StateMarker(rec.State)+" "+name) + "  " +
		DeviceEndpointStyle.Render(rec.ServiceType.Scheme()+"://"+rec.Endpoint.HostPort())

	details := []Param{{Key: "Status", Value: rec.StatusMessage}}
	if rec.HostName != "" {
		details = append(details, Param{Key: "Host name", Value: rec.HostName})
	}
	if rec.Manufacturer != "" {
		details = append(details, Param{Key: "Manufacturer", Value: strings.TrimSpace(rec.Manufacturer + " " + rec.ManufacturerVersion)})
	}
	if rec.Location != "" {
		details = append(details, Param{Key: "Location", Value: rec.Location})
	}
	if len(rec.SupportedInterfaceVersions) > 0 {
		details = append(details, Param{Key: "API versions", Value: joinInts(rec.SupportedInterfaceVersions)})
	}

	lines := []string{title, RenderStages(rec), ""}
	for _, d := range details {
		lines = append(lines, ResultKeyStyle.Render(d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}

	if len(rec.ConfiguredDevices) > 0 {
		lines = append(lines, "", TableHeaderStyle.Render("Configured devices"))
		for _, cd := range rec.ConfiguredDevices {
			lines = append(lines, fmt.Sprintf("  %-16s #%-3d %s", cd.Type(), cd.DeviceNumber, cd.DeviceName))
		}
	}

	return DeviceCardStyle(width, StateColor(rec.State)).Render(strings.Join(lines, "\n"))
}

// RenderDeviceTable renders records one per line
func RenderDeviceTable(records []session.DeviceRecord) string {
	rows := [][]string{{"", "ENDPOINT", "SERVER", "DEVICES", "STATUS"}}
	for _, rec := range records {
		rows = append(rows, []string{
			StateMarker(rec.State),
			rec.ServiceType.Scheme() + "://" + rec.Endpoint.HostPort(),
			rec.ServerName,
			strconv.Itoa(len(rec.ConfiguredDevices)),
			rec.StatusMessage,
		})
	}
	return renderTable(rows)
}

// RenderAscomDeviceTable renders the flattened device list
func RenderAscomDeviceTable(devices []session.AscomDevice) string {
	rows := [][]string{{"TYPE", "#", "NAME", "API", "ENDPOINT", "UNIQUE ID"}}
	for _, d := range devices {
		rows = append(rows, []string{
			d.Type.String(),
			strconv.Itoa(d.Number),
			d.Name,
			"v" + strconv.Itoa(d.InterfaceVersion),
			d.ServiceType.Scheme() + "://" + d.Endpoint.HostPort(),
			d.UniqueID,
		})
	}
	return renderTable(rows)
}

// renderTable pads columns to their widest cell. The first row is the heading.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, 0, len(rows))
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := lipgloss.NewStyle().Width(widths[i])
			if r == 0 {
				style = TableHeaderStyle.Width(widths[i])
			}
			cells[i] = style.Render(cell)
		}
		lines = append(lines, "  "+strings.TrimRight(strings.Join(cells, "  "), " "))
	}
	return strings.Join(lines, "\n")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
