package installer

import (
	"fmt"
	"io"

	"github.com/pitools/updaterd/internal/pkgbackend"
)

// ConsoleReporter prints progress lines to a writer, one per update.
// Repeated lines with the same text are collapsed so an apt status
// stream does not flood the terminal.
type ConsoleReporter struct {
	w        io.Writer
	lastText string
	lastPct  int
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w, lastPct: -2}
}

func (r *ConsoleReporter) Progress(text string, percent int) {
	if text == r.lastText && percent == r.lastPct {
		return
	}
	r.lastText = text
	r.lastPct = percent
	if percent == pkgbackend.IndeterminatePercent {
		fmt.Fprintf(r.w, "%s\n", text)
		return
	}
	fmt.Fprintf(r.w, "[%3d%%] %s\n", percent, text)
}
