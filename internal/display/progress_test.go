package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressBar(t *testing.T) {
	printer, buf := newPlainPrinter(Options{})

	bar := printer.NewProgressBar(4, "exporting")
	bar.Increment("empresas")
	bar.Increment("servicos")
	bar.Finish("done")

	output := buf.String()
	assert.Contains(t, output, "25%")
	assert.Contains(t, output, "empresas")
	assert.Contains(t, output, "100%")
	assert.Contains(t, output, "done")
}

func TestProgressBar_QuietProducesNoOutput(t *testing.T) {
	printer, buf := newPlainPrinter(Options{Quiet: true})

	bar := printer.NewProgressBar(2, "exporting")
	bar.Update(1, "halfway")
	bar.Finish("done")

	assert.Empty(t, buf.String())
}

func TestProgressBar_ZeroTotalIsInert(t *testing.T) {
	printer, buf := newPlainPrinter(Options{})

	bar := printer.NewProgressBar(0, "nothing")
	bar.Increment("")
	bar.Finish("")

	assert.Empty(t, buf.String())
}
