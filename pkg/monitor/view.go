package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/bam/internal/store"
)

const (
	nameWidth  = 34
	stateWidth = 9
	// lines used by header, column titles, status and help
	chromeLines = 5
)

// View renders the editor
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")

	if m.Loading {
		sb.WriteString(m.spinner.View() + " loading blocks…\n")
		sb.WriteString(m.renderStatus())
		return sb.String()
	}

	l := m.layout()
	sb.WriteString(m.renderColumns(l))
	sb.WriteString("\n")

	if len(m.Rows) == 0 {
		sb.WriteString(subtleStyle.Render("  no blocks") + "\n")
	}
	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		sb.WriteString(m.renderRow(i, l))
		sb.WriteString("\n")
	}

	if m.Filtering {
		sb.WriteString(m.filter.View() + "\n")
	}
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return sb.String()
}

func (m Model) renderHeader() string {
	title := "bam access editor"
	if l := m.layout(); l.Grid && l.PostType != "" {
		title += "  post type: " + l.PostType
	}
	header := headerStyle.Render(title)
	if m.Version != "" {
		header += " " + subtleStyle.Render(m.Version)
	}
	if m.UpdateNotice != "" {
		header += "  " + warnStyle.Render(m.UpdateNotice)
	}
	return header
}

func (m Model) renderColumns(l layout) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", nameWidth+stateWidth+2))
	for i, col := range l.Columns {
		style := columnStyle
		if i == m.Col {
			style = activeColumnStyle
		}
		sb.WriteString(" " + style.Render(col))
	}
	return sb.String()
}

func (m Model) renderRow(i int, l layout) string {
	name := m.Rows[i]
	ent := m.Store.Blocks.Get(name)
	b := ent.Current()
	selected := i == m.Row

	label := ansi.Truncate(name, nameWidth, "…")
	label += strings.Repeat(" ", max(nameWidth-lipgloss.Width(label), 0))
	if selected {
		label = selectedRowStyle.Render(label)
	} else {
		label = titleStyle.Render(label)
	}

	state := ""
	if st := ent.State(); st != store.StateIdle {
		state = stateStyles[st].Render(string(st))
	}
	if _, failed := m.Errors[ent.Name()]; failed {
		state = statusErrorStyle.Render("error")
	}
	state += strings.Repeat(" ", max(stateWidth-lipgloss.Width(state), 0))

	var sb strings.Builder
	sb.WriteString("  " + label + state)
	for j, col := range l.Columns {
		outer, inner := l.cell(col)
		cell := missingCell
		if v, ok := b.Access.Get(outer, inner); ok {
			cell = deniedCell
			if v {
				cell = allowedCell
			}
		}
		if selected && j == m.Col {
			cell = selectedCellStyle.Render(ansi.Strip(cell))
		}
		pad := max(lipgloss.Width(col)-1, 0)
		sb.WriteString(" " + cell + strings.Repeat(" ", pad))
	}

	for _, s := range b.Styles {
		if s.IsDefault {
			sb.WriteString("  " + defaultStyleTag.Render("default:"+s.Name))
			break
		}
	}
	return sb.String()
}

// visibleRange returns the row window that keeps the cursor on screen
func (m Model) visibleRange() (int, int) {
	visible := len(m.Rows)
	if m.Height > 0 {
		visible = max(m.Height-chromeLines, 1)
	}
	start := 0
	if m.Row >= visible {
		start = m.Row - visible + 1
	}
	return start, min(start+visible, len(m.Rows))
}

func (m Model) renderStatus() string {
	parts := []string{}
	if saving := m.Store.Blocks.Saving(); len(saving) > 0 {
		parts = append(parts, stateStyles[store.StateSaving].Render(fmt.Sprintf("%d saving", len(saving))))
	}
	if st := m.Store.Settings.State(); st != store.StateIdle {
		parts = append(parts, "settings "+stateStyles[st].Render(string(st)))
	}
	if n := len(m.Errors); n > 0 {
		parts = append(parts, statusErrorStyle.Render(fmt.Sprintf("%d failed", n)))
	}
	if m.StatusMessage != "" {
		style := statusOKStyle
		if m.StatusIsError {
			style = statusErrorStyle
		}
		parts = append(parts, style.Render(m.StatusMessage))
	}
	if len(parts) == 0 {
		return subtleStyle.Render("all changes saved")
	}
	return strings.Join(parts, "  ")
}
