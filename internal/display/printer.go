package display

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Options controls how the printer renders output
type Options struct {
	Writer       io.Writer
	ColorEnabled bool
	UseIcons     bool
	Quiet        bool
	Verbose      bool
	Theme        ColorTheme
}

// DefaultOptions returns the standard interactive configuration
func DefaultOptions() Options {
	return Options{
		Writer:       os.Stdout,
		ColorEnabled: true,
		UseIcons:     true,
		Theme:        DefaultColorTheme(),
	}
}

// Printer renders status messages, tables and summaries to the terminal
type Printer struct {
	opts   Options
	colors ColorSystem
	icons  IconSystem
}

// NewPrinter creates a printer with the given options
func NewPrinter(opts Options) *Printer {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	theme := opts.Theme
	if !opts.ColorEnabled {
		theme = PlainTheme()
	}
	return &Printer{
		opts:   opts,
		colors: NewColorSystem(theme),
		icons:  NewIconSystem(),
	}
}

// Writer returns the underlying output writer
func (p *Printer) Writer() io.Writer {
	return p.opts.Writer
}

// Success prints a success status line
func (p *Printer) Success(message string) {
	p.status("success", p.colors.Theme().Success, message)
}

// Warning prints a warning status line
func (p *Printer) Warning(message string) {
	p.status("warning", p.colors.Theme().Warning, message)
}

// Error prints an error status line. Errors are shown even in quiet mode.
func (p *Printer) Error(message string) {
	icon := p.icon("error")
	text := p.colors.Colorize(message, p.colors.Theme().Error)
	if icon != "" {
		fmt.Fprintf(p.opts.Writer, "%s %s\n", icon, text)
		return
	}
	fmt.Fprintln(p.opts.Writer, text)
}

// Info prints an informational status line
func (p *Printer) Info(message string) {
	p.status("info", p.colors.Theme().Info, message)
}

// Verbose prints a line only when verbose mode is enabled
func (p *Printer) Verbose(format string, args ...interface{}) {
	if !p.opts.Verbose || p.opts.Quiet {
		return
	}
	fmt.Fprintf(p.opts.Writer, format+"\n", args...)
}

func (p *Printer) status(iconName string, clr Color, message string) {
	if p.opts.Quiet {
		return
	}
	icon := p.icon(iconName)
	text := p.colors.Colorize(message, clr)
	if icon != "" {
		fmt.Fprintf(p.opts.Writer, "%s %s\n", icon, text)
		return
	}
	fmt.Fprintln(p.opts.Writer, text)
}

func (p *Printer) icon(name string) string {
	if !p.opts.UseIcons {
		return ""
	}
	return p.icons.RenderIconWithColor(name, p.colors)
}

// PrintHeader prints a section header with an underline
func (p *Printer) PrintHeader(title string) {
	if p.opts.Quiet {
		return
	}
	fmt.Fprintln(p.opts.Writer)
	fmt.Fprintln(p.opts.Writer, p.colors.Colorize(title, p.colors.Theme().Highlight))
	fmt.Fprintln(p.opts.Writer, p.colors.Colorize(strings.Repeat("=", len(title)), p.colors.Theme().Muted))
}

// PrintTable renders rows as an aligned text table
func (p *Printer) PrintTable(headers []string, rows [][]string) {
	if p.opts.Quiet {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	headerCells := make([]string, len(headers))
	for i, h := range headers {
		headerCells[i] = pad(h, widths[i])
	}
	fmt.Fprintln(p.opts.Writer, p.colors.Colorize(strings.Join(headerCells, "  "), p.colors.Theme().Primary))

	separators := make([]string, len(headers))
	for i := range headers {
		separators[i] = strings.Repeat("-", widths[i])
	}
	fmt.Fprintln(p.opts.Writer, p.colors.Colorize(strings.Join(separators, "  "), p.colors.Theme().Muted))

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i < len(widths) {
				cells[i] = pad(cell, widths[i])
			} else {
				cells[i] = cell
			}
		}
		fmt.Fprintln(p.opts.Writer, strings.Join(cells, "  "))
	}
}

func pad(text string, width int) string {
	if len(text) >= width {
		return text
	}
	return text + strings.Repeat(" ", width-len(text))
}

// FormatBytes renders a byte count in a human readable unit
func FormatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
