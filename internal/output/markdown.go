package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/reconcile"
)

const (
	defaultMarkdownWidth = 80
	minMarkdownWidth     = 20
)

// TerminalWidth returns the current terminal width or a fallback when unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultMarkdownWidth
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}

	return fallback
}

// RenderMarkdown renders markdown using Glamour with terminal-aware wrapping.
func RenderMarkdown(text string) (string, error) {
	return RenderMarkdownWithWidth(text, TerminalWidth(defaultMarkdownWidth))
}

// RenderMarkdownWithWidth renders markdown using Glamour with explicit wrapping.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if width < minMarkdownWidth {
		width = minMarkdownWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(rendered, "\n"), nil
}

// ReconcileReport builds the markdown summary of a reconciliation run
func ReconcileReport(res *reconcile.Result) string {
	var sb strings.Builder

	title := "Reconcile"
	if res.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "Run `%s`, %s.\n\n", res.RunID, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))

	sb.WriteString("| | Planned | Written |\n|---|---:|---:|\n")
	fmt.Fprintf(&sb, "| Create | %d | %d |\n", len(res.Diff.Create), len(res.Created))
	fmt.Fprintf(&sb, "| Update | %d | %d |\n", len(res.Diff.Update), len(res.Updated))
	fmt.Fprintf(&sb, "| Delete | %d | %d |\n", len(res.Diff.Delete), len(res.Deleted))
	fmt.Fprintf(&sb, "| Unchanged | %d | |\n", len(res.Diff.Unchanged))

	list := func(heading string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", heading)
		for _, n := range names {
			fmt.Fprintf(&sb, "- `%s`\n", n)
		}
	}
	list("Created", blockNames(res.Diff.Create))
	updates := make([]string, len(res.Diff.Update))
	for i, u := range res.Diff.Update {
		updates[i] = u.Name
	}
	list("Updated", updates)
	list("Deleted", res.Diff.Delete)

	if len(res.Failures) > 0 {
		sb.WriteString("\n## Failures\n\n")
		for _, f := range res.Failures {
			fmt.Fprintf(&sb, "- **%s** `%s`: %s\n", f.Op, f.Name, f.Err)
		}
	}
	return sb.String()
}

func blockNames(blocks []models.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Name
	}
	return out
}
