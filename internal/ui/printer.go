package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/muurk/alpaca/internal/session"
)

// Printer provides methods for printing UI components to a writer.
// This is the primary way commands should output styled content.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	return NewPrinterWithWidth(w, GetTerminalWidth())
}

// NewPrinterWithWidth creates a Printer with a fixed render width
func NewPrinterWithWidth(w io.Writer, width int) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: max(width, MinTerminalWidth),
	}
}

// Width returns the render width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.out
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Param) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Param) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, troubleshooting []string, details ...Param) {
	r := NewWarningResult(title, details...).SetWidth(p.width)
	r.Troubleshooting = troubleshooting
	p.Println(r.Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintDevices prints one card per record, or a warning when there are none
func (p *Printer) PrintDevices(records []session.DeviceRecord) {
	if len(records) == 0 {
		p.PrintWarning("No Alpaca servers found", DiscoveryTroubleshooting)
		return
	}
	for _, rec := range records {
		p.Println(RenderDeviceCard(rec, p.width))
	}
}

// PrintDeviceTable prints records as a compact one-line-per-server table
func (p *Printer) PrintDeviceTable(records []session.DeviceRecord) {
	p.Println(RenderDeviceTable(records))
}

// PrintAscomDevices prints the flattened device list as a table
func (p *Printer) PrintAscomDevices(devices []session.AscomDevice) {
	if len(devices) == 0 {
		p.Println(MutedStyle.Render("  No ASCOM devices found."))
		return
	}
	p.Println(RenderAscomDeviceTable(devices))
}
