package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Theme is the terminal color scheme.
type Theme struct {
	Primary lipgloss.Color // accents, borders and success lines
	Dim     lipgloss.Color // timestamps and help text
	Warn    lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is the bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#e3b341"),
	Error:   lipgloss.Color("#ff5f5f"),
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Border  lipgloss.Style
	Help    lipgloss.Style
	Success lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles derives Styles from t.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Border:  lipgloss.NewStyle().Foreground(t.Primary),
		Help:    lipgloss.NewStyle().Foreground(t.Dim),
		Success: lipgloss.NewStyle().Foreground(t.Primary),
		Warn:    lipgloss.NewStyle().Foreground(t.Warn),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// Section is one labeled block of a Panel.
type Section struct {
	Label string
	Lines []string

	// Empty replaces Lines when there are none.
	Empty string

	// Tail keeps the last lines instead of the first when the section
	// holds more than Panel.MaxRows.
	Tail bool
}

// Panel is a bordered status box sized to its content.
type Panel struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string

	// MaxRows caps the rows of each section. Zero means no cap.
	MaxRows int
}

// Render draws the panel width columns wide.
func (p Panel) Render(width int) string {
	width = max(width, 20)
	inner := width - 4
	bc := p.Styles.Border

	row := func(text string) string {
		text = ansi.Truncate(text, inner, "…")
		return bc.Render("│") + " " + text + strings.Repeat(" ", max(0, inner-lipgloss.Width(text))) + " " + bc.Render("│")
	}
	rule := func(left, label, right string) string {
		fill := max(0, width-2-lipgloss.Width(label))
		return bc.Render(left) + label + bc.Render(strings.Repeat("─", fill)+right)
	}

	title := p.Styles.Title.Render(p.Title)
	if p.Status != "" {
		title += p.Styles.Help.Render("[" + p.Status + "]")
	}
	lines := []string{rule("╭", title, "╮")}
	for _, sec := range p.Sections {
		lines = append(lines, rule("├", p.Styles.Label.Render(" "+sec.Label+" "), "┤"))
		for _, l := range sec.visible(p.MaxRows) {
			lines = append(lines, row(l))
		}
	}
	lines = append(lines, rule("╰", "", "╯"))
	if p.Help != "" {
		lines = append(lines, p.Styles.Help.Render(p.Help))
	}
	return strings.Join(lines, "\n")
}

func (s Section) visible(maxRows int) []string {
	if len(s.Lines) == 0 {
		if s.Empty == "" {
			return nil
		}
		return []string{s.Empty}
	}
	if maxRows <= 0 || len(s.Lines) <= maxRows {
		return s.Lines
	}
	if s.Tail {
		return s.Lines[len(s.Lines)-maxRows:]
	}
	more := fmt.Sprintf("… %d more", len(s.Lines)-maxRows+1)
	return append(slices.Clone(s.Lines[:maxRows-1]), more)
}
