// Package monitor is the interactive access editor behind "bam edit".
//
// Blocks are listed with their access row for one post type at a time.
// Every toggle goes through the block's delayed queue, so rapid edits to the
// same block reach the site as a single save.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/store"
	"github.com/marcus/bam/internal/version"
)

// Model is the Bubble Tea model of the access editor
type Model struct {
	Store   *store.Store
	Version string

	Width  int
	Height int

	// Rows are the block names shown after filtering
	Rows     []string
	Row      int
	Col      int
	PostType int // index into Settings.PostTypes in two-level mode

	Loading   bool
	Filtering bool

	// Errors holds the last save or load error per entity name
	Errors map[string]error

	StatusMessage string
	StatusIsError bool

	// UpdateCacheDir enables the background release check when set
	UpdateCacheDir string
	UpdateNotice   string

	ctx     context.Context
	events  chan store.Event
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	filter  textinput.Model
}

// NewModel creates an editor over st. The store is subscribed to here;
// build one Model per store.
func NewModel(ctx context.Context, st *store.Store, ver string) Model {
	events := make(chan store.Event, 64)
	notify := func(ev store.Event) {
		select {
		case events <- ev:
		default:
			// dropped: the view reads entity state on every render
		}
	}
	st.Settings.OnChange(notify)
	st.Blocks.OnChange(notify)

	filter := textinput.New()
	filter.Placeholder = "filter blocks"
	filter.Prompt = "/ "
	filter.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		Store:   st,
		Version: ver,
		Loading: true,
		Errors:  make(map[string]error),
		ctx:     ctx,
		events:  events,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		filter:  filter,
	}
}

// Init starts the initial load
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.load(), m.waitForEvent(), m.spinner.Tick}
	if m.UpdateCacheDir != "" {
		cmds = append(cmds, version.CheckAsync(m.ctx, m.Version, m.UpdateCacheDir))
	}
	return tea.Batch(cmds...)
}

func (m Model) load() tea.Cmd {
	st, ctx := m.Store, m.ctx
	return func() tea.Msg {
		return LoadedMsg{Err: st.LoadAll(ctx)}
	}
}

func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return EntityEventMsg(<-events)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case LoadedMsg:
		m.Loading = false
		if msg.Err != nil {
			return m.setStatus(msg.Err.Error(), true)
		}
		m.refreshRows()
		return m, nil

	case EntityEventMsg:
		if msg.Err != nil {
			m.Errors[msg.Name] = msg.Err
		} else if msg.State == store.StateIdle {
			delete(m.Errors, msg.Name)
		}
		return m, m.waitForEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case version.UpdateAvailableMsg:
		m.UpdateNotice = fmt.Sprintf("%s available", msg.LatestVersion)
		return m, nil

	case ClearStatusMsg:
		m.StatusMessage = ""
		m.StatusIsError = false
		return m, nil
	}

	if m.Filtering {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Filtering {
		var cmd tea.Cmd
		switch msg.Type {
		case tea.KeyEnter:
			m.Filtering = false
			m.filter.Blur()
		case tea.KeyEsc:
			m.Filtering = false
			m.filter.SetValue("")
			m.filter.Blur()
		default:
			m.filter, cmd = m.filter.Update(msg)
		}
		m.refreshRows()
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.Row > 0 {
			m.Row--
		}
	case key.Matches(msg, m.keys.Down):
		if m.Row < len(m.Rows)-1 {
			m.Row++
		}
	case key.Matches(msg, m.keys.Left):
		if m.Col > 0 {
			m.Col--
		}
	case key.Matches(msg, m.keys.Right):
		if m.Col < len(m.layout().Columns)-1 {
			m.Col++
		}
	case key.Matches(msg, m.keys.NextPostType):
		m.shiftPostType(1)
	case key.Matches(msg, m.keys.PrevPostType):
		m.shiftPostType(-1)
	case key.Matches(msg, m.keys.Toggle):
		return m.toggleCell()
	case key.Matches(msg, m.keys.CycleDefault):
		return m.cycleDefault()
	case key.Matches(msg, m.keys.Filter):
		m.Filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.Save):
		m.Store.Flush()
		return m.setStatus("saving queued edits", false)
	case key.Matches(msg, m.keys.Reload):
		m.Loading = true
		return m, m.load()
	}
	return m, nil
}

// layout describes the access columns on screen
type layout struct {
	Grid     bool
	PostType string
	Columns  []string
}

// cell maps a column to the matrix coordinates it edits
func (l layout) cell(col string) (outer, inner string) {
	if l.Grid {
		return l.PostType, col
	}
	return col, ""
}

func (m Model) layout() layout {
	s := m.Store.Settings.Current()
	switch {
	case s.AccessByPostType && s.AccessByUserGroup:
		if len(s.PostTypes) == 0 {
			return layout{Grid: true}
		}
		pt := s.PostTypes[m.PostType%len(s.PostTypes)]
		return layout{Grid: true, PostType: pt, Columns: s.UserGroups}
	case s.AccessByUserGroup:
		return layout{Columns: s.UserGroups}
	default:
		return layout{Columns: s.PostTypes}
	}
}

func (m *Model) shiftPostType(delta int) {
	s := m.Store.Settings.Current()
	n := len(s.PostTypes)
	if n == 0 || !(s.AccessByPostType && s.AccessByUserGroup) {
		return
	}
	m.PostType = ((m.PostType+delta)%n + n) % n
}

// selected returns the block under the cursor
func (m Model) selected() (string, bool) {
	if m.Row < 0 || m.Row >= len(m.Rows) {
		return "", false
	}
	return m.Rows[m.Row], true
}

func (m Model) toggleCell() (tea.Model, tea.Cmd) {
	name, ok := m.selected()
	l := m.layout()
	if !ok || m.Col >= len(l.Columns) {
		return m, nil
	}
	outer, inner := l.cell(l.Columns[m.Col])

	b := m.Store.Blocks.Get(name).Current()
	cur, found := b.Access.Get(outer, inner)
	if !found {
		return m.setStatus(fmt.Sprintf("%s has no %s cell", name, strings.Trim(outer+"/"+inner, "/")), true)
	}
	err := m.Store.EditBlock(name, store.Edit{Kind: store.FieldAccess, Key: outer, Inner: inner, On: !cur})
	if err != nil {
		return m.setStatus(err.Error(), true)
	}
	return m, nil
}

func (m Model) cycleDefault() (tea.Model, tea.Cmd) {
	name, ok := m.selected()
	if !ok {
		return m, nil
	}
	b := m.Store.Blocks.Get(name).Current()
	if len(b.Styles) == 0 {
		return m.setStatus(name+" has no styles", true)
	}
	next := nextDefault(b.Styles)
	if err := m.Store.EditBlock(name, store.Edit{Kind: store.FieldStyleDefault, Key: next}); err != nil {
		return m.setStatus(err.Error(), true)
	}
	if next == "" {
		return m.setStatus(name+": no default style", false)
	}
	return m.setStatus(name+": default style "+next, false)
}

// nextDefault returns the style after the current default; after the last
// one the default is cleared
func nextDefault(styles []models.StyleEntry) string {
	for i, s := range styles {
		if s.IsDefault {
			if i+1 < len(styles) {
				return styles[i+1].Name
			}
			return ""
		}
	}
	return styles[0].Name
}

// refreshRows rebuilds Rows from the loaded blocks and the filter
func (m *Model) refreshRows() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	var rows []string
	for _, name := range m.Store.Blocks.Names() {
		if q == "" || strings.Contains(strings.ToLower(name), q) {
			rows = append(rows, name)
		}
	}
	m.Rows = rows
	if m.Row >= len(m.Rows) {
		m.Row = max(len(m.Rows)-1, 0)
	}
	if cols := len(m.layout().Columns); m.Col >= cols {
		m.Col = max(cols-1, 0)
	}
}

func (m Model) setStatus(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.StatusMessage = text
	m.StatusIsError = isErr
	return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return ClearStatusMsg{} })
}
