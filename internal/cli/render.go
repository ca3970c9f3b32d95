package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/bastiangx/keyserve/pkg/dictionary"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#d4bfff"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#73d0ff"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f28779"))
)

// maxValueWidth truncates long values in listings.
const maxValueWidth = 48

func (h *InputHandler) printError(format string, args ...any) {
	fmt.Fprintln(h.out, errorStyle.Render(fmt.Sprintf(format, args...)))
}

func (h *InputHandler) printMatches(q query, matches []dictionary.Match, elapsed time.Duration) {
	fmt.Fprintf(h.out, "Found %d matches for %s %q in %v:\n", len(matches), q.kind, q.text, elapsed.Round(time.Microsecond))
	for i, m := range matches {
		fmt.Fprintf(h.out, "%2d. %-40s %s\n", i+1, keyStyle.Render(m.Key()), describe(q, m))
	}
}

func describe(q query, m dictionary.Match) string {
	var parts []string
	if v, err := m.ValueAsString(); err != nil {
		parts = append(parts, "value error: "+err.Error())
	} else if v != "" {
		if len(v) > maxValueWidth {
			v = v[:maxValueWidth] + "..."
		}
		parts = append(parts, "= "+v)
	}
	if q.kind == "fuzzy" {
		parts = append(parts, fmt.Sprintf("(score: %.3f)", m.Score()))
	} else if w := m.Weight(); w > 0 {
		parts = append(parts, fmt.Sprintf("(weight: %s)", humanize.Comma(int64(w))))
	}
	return strings.Join(parts, " ")
}
