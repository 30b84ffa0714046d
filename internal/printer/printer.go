// Package printer renders attributed output lines and the end-of-run
// summary. Presentation policy only: padding, color, status wording.
// The engine decides what is written, the printer decides how it looks.
package printer

import (
	"fmt"
	"hash/fnv"

	"github.com/fleetrun/fleetrun/internal/engine"
)

// Colors for terminal output.
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorBold    = "\033[1m"
)

// palette holds the prefix colors cycled through by alias hash. Red is
// excluded: it marks stderr payloads.
var palette = []string{colorGreen, colorYellow, colorBlue, colorMagenta, colorCyan}

// Printer formats host-attributed lines. Aliases are right-justified
// to the widest selected alias so output lines up in a column.
type Printer struct {
	width    int
	useColor bool
}

func New(width int, useColor bool) *Printer {
	return &Printer{width: width, useColor: useColor}
}

// Line renders one fragment, ending in a newline. Stderr fragments get
// a '*' after the alias so the two streams stay distinguishable even
// without color. Suitable as the mux's format function.
func (p *Printer) Line(f engine.Fragment) []byte {
	sep := ": "
	if f.Stream == engine.Stderr {
		sep = "*: "
	}
	prefix := fmt.Sprintf("%*s%s", p.width, f.Alias, sep)
	payload := f.Payload
	if p.useColor {
		prefix = colorFor(f.Alias) + prefix + colorReset
		if f.Stream == engine.Stderr {
			payload = colorRed + payload + colorReset
		}
	}
	return []byte(prefix + payload + "\n")
}

// Summary renders one host's completion for the end-of-run report.
func (p *Printer) Summary(c engine.Completion) string {
	prefix := fmt.Sprintf("%*s: ", p.width, c.Alias)

	var status, color string
	switch {
	case c.OK():
		status = "ok (exit 0)"
		color = colorGreen
	case c.Status == engine.StatusSuccess:
		status = fmt.Sprintf("failed (exit %d)", c.ExitCode)
		color = colorYellow
	default:
		status = fmt.Sprintf("%s: %v", c.Status, c.Err)
		color = colorRed
	}

	if p.useColor {
		return colorFor(c.Alias) + prefix + colorReset + color + status + colorReset
	}
	return prefix + status
}

// colorFor picks a stable palette entry for an alias, so a host keeps
// its color across lines and runs.
func colorFor(alias string) string {
	h := fnv.New32a()
	h.Write([]byte(alias))
	return palette[h.Sum32()%uint32(len(palette))]
}
