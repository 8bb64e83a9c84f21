// Package tui renders run output for terminals.
package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// TraceLine formats one committed transition for the run trace, colored
// according to the terminal's profile. Error-looking destinations go red.
func TraceLine(step int, from, to string, output []any) string {
	p := termenv.ColorProfile()

	arrow := termenv.String("->").Foreground(p.Color("#a78bfa"))
	dest := termenv.String(to).Foreground(p.Color("#818cf8")).Bold()
	if to == "ERROR" {
		dest = termenv.String(to).Foreground(p.Color("#fb7185")).Bold()
	}

	line := fmt.Sprintf("  %2d. %s %s %s", step, from, arrow, dest)
	if len(output) > 0 {
		line += termenv.String(fmt.Sprintf("  %v", output)).Faint().String()
	}
	return line
}
