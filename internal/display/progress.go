package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressBar renders an in-place progress bar on the terminal
type ProgressBar struct {
	current int
	total   int
	message string
	width   int
	writer  io.Writer
	colors  ColorSystem
	enabled bool
	mu      sync.Mutex
}

// NewProgressBar creates a progress bar bound to the printer's output
func (p *Printer) NewProgressBar(total int, message string) *ProgressBar {
	return &ProgressBar{
		total:   total,
		message: message,
		width:   40,
		writer:  p.opts.Writer,
		colors:  p.colors,
		enabled: !p.opts.Quiet,
	}
}

// Update sets the current position and optional message
func (pb *ProgressBar) Update(current int, message string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.current = current
	if message != "" {
		pb.message = message
	}
	pb.render()
}

// Increment advances the bar by one step
func (pb *ProgressBar) Increment(message string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.current++
	if message != "" {
		pb.message = message
	}
	pb.render()
}

// Finish completes the bar and moves to a new line
func (pb *ProgressBar) Finish(finalMessage string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.current = pb.total
	pb.render()
	if !pb.enabled || pb.total <= 0 {
		return
	}
	fmt.Fprint(pb.writer, "\n")
	if finalMessage != "" {
		fmt.Fprintln(pb.writer, finalMessage)
	}
}

func (pb *ProgressBar) render() {
	if !pb.enabled || pb.total <= 0 {
		return
	}

	percent := float64(pb.current) / float64(pb.total)
	if percent > 1 {
		percent = 1
	}
	filled := int(percent * float64(pb.width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)
	colored := bar
	if pb.colors != nil {
		colored = pb.colors.Colorize(bar, pb.colors.Theme().Primary)
	}

	fmt.Fprintf(pb.writer, "\r\033[K[%s] %3.0f%% %s", colored, percent*100, pb.message)
}
