package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-yaml"
)

// OutputFormat selects how Output encodes a result.
type OutputFormat string

const (
	// FormatYAML is the default terminal format.
	FormatYAML OutputFormat = "yaml"
	// FormatJSON is for piping; selected by --json.
	FormatJSON OutputFormat = "json"
	// FormatTable draws a Table with borders.
	FormatTable OutputFormat = "table"
)

// OutputOptions configures Output.
type OutputOptions struct {
	Format OutputFormat

	// Writer defaults to Stdout.
	Writer io.Writer
}

// Destinations of Output and the Print helpers.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// Output encodes result in the requested format.
func Output(result any, opts OutputOptions) error {
	w := opts.Writer
	if w == nil {
		w = Stdout
	}

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML, "":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatTable:
		t, ok := result.(Table)
		if !ok {
			return fmt.Errorf("table output not supported for %T", result)
		}
		_, err := fmt.Fprintln(w, t.Render(NewStyles(DefaultTheme)))
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// Table is tabular data for FormatTable. Other formats encode it as a
// list of header-keyed maps.
type Table struct {
	Header []string
	Rows   [][]string
}

// Records returns the rows keyed by header.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// MarshalYAML implements yaml.InterfaceMarshaler.
func (t Table) MarshalYAML() (any, error) { return t.Records(), nil }

// MarshalJSON implements json.Marshaler.
func (t Table) MarshalJSON() ([]byte, error) { return json.Marshal(t.Records()) }

// Render draws the table with rounded borders and a bold header.
func (t Table) Render(s Styles) string {
	cell := lipgloss.NewStyle().Padding(0, 1)
	header := s.Label.Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers(t.Header...).
		Rows(t.Rows...).
		Render()
}

// PrintSuccess prints a success message with checkmark.
func PrintSuccess(format string, args ...any) {
	fmt.Fprintf(Stdout, "✓ "+format+"\n", args...)
}

// PrintError prints an error message to Stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(Stderr, "Error: "+format+"\n", args...)
}

// PrintInfo prints an info message.
func PrintInfo(format string, args ...any) {
	fmt.Fprintf(Stdout, "ℹ "+format+"\n", args...)
}

// PrintWarning prints a warning message.
func PrintWarning(format string, args ...any) {
	fmt.Fprintf(Stdout, "⚠ "+format+"\n", args...)
}
