package monitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/bam/internal/delayed"
	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/store"
	"github.com/marcus/bam/internal/version"
)

type fakeRemote struct {
	mu       sync.Mutex
	settings models.Settings
	blocks   map[string]models.Block
	updates  []models.BlockUpdate
}

func newFakeRemote() *fakeRemote {
	settings := models.Settings{
		PostTypes:         []string{"post", "page"},
		UserGroups:        []string{"editor", "author"},
		AccessByPostType:  true,
		AccessByUserGroup: true,
		DefaultAccess:     true,
	}
	return &fakeRemote{
		settings: settings,
		blocks: map[string]models.Block{
			"core/paragraph": {Name: "core/paragraph", Access: settings.NewAccess()},
			"core/button": {
				Name:   "core/button",
				Access: settings.NewAccess(),
				Styles: []models.StyleEntry{
					{Name: "fill", IsDefault: true, IsActive: true},
					{Name: "outline", IsActive: true},
				},
			},
		},
	}
}

func (f *fakeRemote) GetSettings(ctx context.Context) (*models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settings.Clone()
	return &s, nil
}

func (f *fakeRemote) UpdateSettings(ctx context.Context, s models.Settings) (*models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = s.Clone()
	return &s, nil
}

func (f *fakeRemote) ListBlocks(ctx context.Context) ([]models.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Block
	for _, b := range f.blocks {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (f *fakeRemote) GetBlock(ctx context.Context, name string) (*models.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.blocks[name].Clone()
	return &b, nil
}

func (f *fakeRemote) UpdateBlock(ctx context.Context, u models.BlockUpdate) (*models.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	f.blocks[u.Name] = u.Block.Clone()
	b := u.Block.Clone()
	return &b, nil
}

func (f *fakeRemote) ListPatterns(ctx context.Context) ([]models.Pattern, error) {
	return nil, nil
}

func (f *fakeRemote) GetPattern(ctx context.Context, name string) (*models.Pattern, error) {
	return &models.Pattern{Name: name}, nil
}

func (f *fakeRemote) UpdatePattern(ctx context.Context, p models.Pattern) (*models.Pattern, error) {
	return &p, nil
}

func (f *fakeRemote) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// newLoadedModel returns a model whose store never saves on its own
func newLoadedModel(t *testing.T) (Model, *fakeRemote) {
	t.Helper()
	remote := newFakeRemote()
	st := store.New(remote, delayed.Config{Delay: time.Hour, Retry: delayed.NoRetry()}, nil)
	t.Cleanup(st.Close)

	m := NewModel(context.Background(), st, "test")
	msg := m.load()()
	next, _ := m.Update(msg)
	return next.(Model), remote
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func cell(t *testing.T, m Model, name, outer, inner string) bool {
	t.Helper()
	v, ok := m.Store.Blocks.Get(name).Current().Access.Get(outer, inner)
	if !ok {
		t.Fatalf("%s has no %s/%s cell", name, outer, inner)
	}
	return v
}

func TestLoadListsBlocks(t *testing.T) {
	m, _ := newLoadedModel(t)
	if m.Loading {
		t.Fatal("still loading")
	}
	want := []string{"core/button", "core/paragraph"}
	if strings.Join(m.Rows, ",") != strings.Join(want, ",") {
		t.Errorf("rows: got %v, want %v", m.Rows, want)
	}
	if l := m.layout(); !l.Grid || l.PostType != "post" || len(l.Columns) != 2 {
		t.Errorf("layout: got %+v", l)
	}
}

func TestToggleEditsSelectedCell(t *testing.T) {
	m, _ := newLoadedModel(t)

	m = press(t, m, "j", "l", "space")
	if cell(t, m, "core/paragraph", "post", "author") {
		t.Error("post/author should be denied after toggle")
	}
	if !cell(t, m, "core/paragraph", "post", "editor") {
		t.Error("neighbouring cell changed")
	}
	if st := m.Store.Blocks.Get("core/paragraph").State(); st != store.StateSaving {
		t.Errorf("state: got %s, want saving", st)
	}

	m = press(t, m, "tab", "space")
	if cell(t, m, "core/paragraph", "page", "author") {
		t.Error("tab should move the edit to the page post type")
	}
}

func TestRapidTogglesCoalesce(t *testing.T) {
	m, remote := newLoadedModel(t)

	// off, on (revert, dropped), off again
	m = press(t, m, "space", "space", "space")
	m.Store.Flush()
	if err := m.Store.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if n := remote.updateCount(); n != 1 {
		t.Fatalf("updates: got %d, want 1", n)
	}
	saved := remote.blocks["core/button"]
	if v, _ := saved.Access.Get("post", "editor"); v {
		t.Error("saved block should deny post/editor")
	}
}

func TestToggleBackIsNotSaved(t *testing.T) {
	m, remote := newLoadedModel(t)

	m = press(t, m, "space", "space")
	if st := m.Store.Blocks.Get("core/button").State(); st != store.StateIdle {
		t.Errorf("state after revert: got %s, want idle", st)
	}
	m.Store.Flush()
	if err := m.Store.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n := remote.updateCount(); n != 0 {
		t.Errorf("updates: got %d, want 0", n)
	}
}

func TestCycleDefaultStyle(t *testing.T) {
	m, _ := newLoadedModel(t)

	defaultOf := func() string {
		for _, s := range m.Store.Blocks.Get("core/button").Current().Styles {
			if s.IsDefault {
				return s.Name
			}
		}
		return ""
	}

	m = press(t, m, "d")
	if got := defaultOf(); got != "outline" {
		t.Errorf("after one press: got %q, want outline", got)
	}
	m = press(t, m, "d")
	if got := defaultOf(); got != "" {
		t.Errorf("after two presses: got %q, want none", got)
	}
	m = press(t, m, "d")
	if got := defaultOf(); got != "fill" {
		t.Errorf("after three presses: got %q, want fill", got)
	}
}

func TestCycleDefaultWithoutStyles(t *testing.T) {
	m, _ := newLoadedModel(t)
	m = press(t, m, "j", "d")
	if !m.StatusIsError || !strings.Contains(m.StatusMessage, "no styles") {
		t.Errorf("status: got %q (error %v)", m.StatusMessage, m.StatusIsError)
	}
}

func TestFilterNarrowsRows(t *testing.T) {
	m, _ := newLoadedModel(t)
	m = press(t, m, "/", "p", "a", "r", "enter")
	if m.Filtering {
		t.Error("enter should leave filter mode")
	}
	if len(m.Rows) != 1 || m.Rows[0] != "core/paragraph" {
		t.Errorf("rows: got %v", m.Rows)
	}
}

func TestEntityEventsTrackErrors(t *testing.T) {
	m, _ := newLoadedModel(t)
	name := m.Store.Blocks.Get("core/button").Name()

	next, _ := m.Update(EntityEventMsg{Name: name, State: store.StateIdle, Err: context.DeadlineExceeded})
	m = next.(Model)
	if _, ok := m.Errors[name]; !ok {
		t.Fatal("error not recorded")
	}
	if !strings.Contains(ansi.Strip(m.View()), "1 failed") {
		t.Error("status line should count failures")
	}

	next, _ = m.Update(EntityEventMsg{Name: name, State: store.StateIdle})
	m = next.(Model)
	if len(m.Errors) != 0 {
		t.Errorf("errors: got %v", m.Errors)
	}
}

func TestViewShowsRowsAndState(t *testing.T) {
	m, _ := newLoadedModel(t)
	m = press(t, m, "space")
	out := ansi.Strip(m.View())

	for _, want := range []string{"post type: post", "core/button", "core/paragraph", "editor", "author", "saving", "default:fill"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in view:\n%s", want, out)
		}
	}
}

func TestNextDefault(t *testing.T) {
	styles := []models.StyleEntry{{Name: "a"}, {Name: "b"}}
	if got := nextDefault(styles); got != "a" {
		t.Errorf("no default: got %q", got)
	}
	styles[0].IsDefault = true
	if got := nextDefault(styles); got != "b" {
		t.Errorf("from a: got %q", got)
	}
	styles[0].IsDefault, styles[1].IsDefault = false, true
	if got := nextDefault(styles); got != "" {
		t.Errorf("from last: got %q", got)
	}
}

func TestUpdateNoticeInHeader(t *testing.T) {
	m, _ := newLoadedModel(t)
	next, _ := m.Update(version.UpdateAvailableMsg{CurrentVersion: "v0.1.0", LatestVersion: "v0.2.0"})
	m = next.(Model)
	if !strings.Contains(ansi.Strip(m.View()), "v0.2.0 available") {
		t.Error("header should show the available release")
	}
}
