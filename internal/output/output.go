// Package output provides styled terminal output helpers (success, error,
// warning, block and access formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/reconcile"
	"github.com/marcus/bam/internal/store"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	stateStyles  = map[store.State]lipgloss.Style{
		store.StateLoading: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		store.StateIdle:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		store.StateSaving:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// JSON outputs data as JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeNetworkError  = "network_error"
	ErrCodeDatabaseError = "database_error"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// Truncate shortens s to width terminal cells, keeping ANSI styling intact
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// FormatState formats an entity state with color
func FormatState(s store.State) string {
	style, ok := stateStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// Mark renders an allowed/denied cell
func Mark(on bool) string {
	if on {
		return successStyle.Render("✓")
	}
	return errorStyle.Render("✗")
}

// AccessSummary returns "allowed/total" for a matrix
func AccessSummary(a models.Access) string {
	allowed, total := 0, 0
	if a.IsFlat() {
		for _, v := range a.Flat {
			total++
			if v {
				allowed++
			}
		}
	} else {
		for _, row := range a.Grid {
			for _, v := range row {
				total++
				if v {
					allowed++
				}
			}
		}
	}
	return fmt.Sprintf("%d/%d", allowed, total)
}

// FormatAccess renders the matrix as a table, one row per outer key
func FormatAccess(a models.Access) string {
	if a.IsZero() {
		return subtleStyle.Render("(no access matrix)")
	}
	var sb strings.Builder
	outer := a.Outer()
	width := 0
	for _, o := range outer {
		width = max(width, lipgloss.Width(o))
	}

	if a.IsFlat() {
		for _, o := range outer {
			v, _ := a.Get(o, "")
			fmt.Fprintf(&sb, "%-*s  %s\n", width, o, Mark(v))
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	inner := a.Inner()
	fmt.Fprintf(&sb, "%-*s", width, "")
	for _, in := range inner {
		sb.WriteString("  " + subtleStyle.Render(in))
	}
	sb.WriteString("\n")
	for _, o := range outer {
		fmt.Fprintf(&sb, "%-*s", width, o)
		for _, in := range inner {
			v, _ := a.Get(o, in)
			pad := max(lipgloss.Width(in)-1, 0)
			sb.WriteString("  " + Mark(v) + strings.Repeat(" ", pad))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatBlockShort formats a block on one line
func FormatBlockShort(b models.Block) string {
	parts := []string{titleStyle.Render(b.Name)}
	if b.Title != "" {
		parts = append(parts, b.Title)
	}
	if b.Category != "" {
		parts = append(parts, subtleStyle.Render(b.Category))
	}
	parts = append(parts, accentStyle.Render("access "+AccessSummary(b.Access)))
	return strings.Join(parts, "  ")
}

// FormatBlockLong formats a block with supports, styles, variations and access
func FormatBlockLong(b models.Block) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(b.Name))
	if b.Title != "" {
		sb.WriteString("  " + b.Title)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Category: %s\n", b.Category)
	if b.Description != "" {
		sb.WriteString(subtleStyle.Render(b.Description) + "\n")
	}

	if len(b.Supports) > 0 {
		sb.WriteString(SectionHeader("supports"))
		keys := make([]string, 0, len(b.Supports))
		for k := range b.Supports {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			s := b.Supports[k]
			value, _ := json.Marshal(s.Value)
			fmt.Fprintf(&sb, "  %s %s %s\n", Mark(s.IsActive), k, subtleStyle.Render(string(value)))
		}
	}

	writeEntries := func(title string, entries []models.StyleEntry) {
		if len(entries) == 0 {
			return
		}
		sb.WriteString(SectionHeader(title))
		for _, e := range entries {
			label := e.Label
			if label == "" {
				label = e.Title
			}
			def := ""
			if e.IsDefault {
				def = accentStyle.Render(" (default)")
			}
			fmt.Fprintf(&sb, "  %s %s %s%s\n", Mark(e.IsActive), e.Name, subtleStyle.Render(label), def)
		}
	}
	writeEntries("styles", b.Styles)
	writeEntries("variations", b.Variations)

	sb.WriteString(SectionHeader("access"))
	sb.WriteString(IndentString(FormatAccess(b.Access), 2))
	sb.WriteString("\n")
	return sb.String()
}

// FormatPatternShort formats a pattern on one line
func FormatPatternShort(p models.Pattern) string {
	parts := []string{titleStyle.Render(p.Name)}
	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	if len(p.Categories) > 0 {
		parts = append(parts, subtleStyle.Render(strings.Join(p.Categories, ",")))
	}
	parts = append(parts, accentStyle.Render("access "+AccessSummary(p.Access)))
	return strings.Join(parts, "  ")
}

// FormatProgress renders a reconcile progress line
func FormatProgress(p reconcile.Progress) string {
	if p.Total == 0 {
		return string(p.Phase)
	}
	return fmt.Sprintf("%s %d/%d", p.Phase, p.Done, p.Total)
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nSUPPORTS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentString indents each line in a string by the specified number of spaces
func IndentString(s string, spaces int) string {
	if s == "" {
		return ""
	}
	indent := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
