package merge

import (
	"errors"
	"slices"
	"testing"

	"github.com/marcus/bam/internal/models"
)

func blockName(b models.Block) string { return b.Name }

func TestPartitionByName(t *testing.T) {
	registered := []models.Block{{Name: "core/a"}, {Name: "core/b"}, {Name: "core/c"}}
	live := []models.Block{{Name: "core/c"}, {Name: "core/d"}, {Name: "core/a"}, {Name: "core/e"}}

	p := PartitionByName(registered, live, blockName)

	if !slices.Equal(p.New, []string{"core/d", "core/e"}) {
		t.Errorf("New: got %v", p.New)
	}
	if !slices.Equal(p.Deleted, []string{"core/b"}) {
		t.Errorf("Deleted: got %v", p.Deleted)
	}
	if !slices.Equal(p.Common, []string{"core/a", "core/c"}) {
		t.Errorf("Common: got %v", p.Common)
	}
}

func TestPartitionByNameEmpty(t *testing.T) {
	p := PartitionByName[models.Block](nil, nil, blockName)
	if len(p.New)+len(p.Deleted)+len(p.Common) != 0 {
		t.Errorf("expected empty partition, got %+v", p)
	}
}

func TestEqualTreatsNilAsEmpty(t *testing.T) {
	a := models.Block{Name: "core/a", Supports: map[string]models.Support{}}
	b := models.Block{Name: "core/a"}
	if !Equal(a, b) {
		t.Errorf("nil and empty supports should compare equal: %s", Diff(a, b))
	}
}

func TestIntersectSupports(t *testing.T) {
	a := map[string]models.Support{"align": {Value: true}, "anchor": {Value: true}}
	b := map[string]models.Support{"align": {Value: false}, "color": {Value: true}}

	ia, ib := IntersectSupports(a, b)
	if len(ia) != 1 || len(ib) != 1 {
		t.Fatalf("want one shared key, got %v / %v", ia, ib)
	}
	if ib["align"].Value != false {
		t.Errorf("b side value lost: %v", ib["align"])
	}
}

func TestMergeSupportsOverrideLaw(t *testing.T) {
	registered := map[string]models.Support{
		"align":  {IsActive: false, Value: "left"},
		"anchor": {IsActive: true, Value: true},
		"gone":   {IsActive: false, Value: true},
	}
	editor := map[string]models.Support{
		"align":  {IsActive: true, Value: "center"},
		"anchor": {IsActive: true, Value: false},
		"color":  {IsActive: true, Value: []any{"background"}},
	}

	got := MergeSupports(registered, editor)

	if want := (models.Support{IsActive: false, Value: "center"}); !Equal(got["align"], want) {
		t.Errorf("align: got %+v, want %+v", got["align"], want)
	}
	if want := (models.Support{IsActive: true, Value: false}); !Equal(got["anchor"], want) {
		t.Errorf("anchor: got %+v, want %+v", got["anchor"], want)
	}
	if _, ok := got["gone"]; ok {
		t.Error("support removed from editor should be dropped")
	}
	if !got["color"].IsActive {
		t.Error("new editor support should keep its flags")
	}
}

func TestMergeEntriesByName(t *testing.T) {
	registered := []models.StyleEntry{
		{Name: "fill", Label: "Fill", IsDefault: true, IsActive: true},
		{Name: "outline", Label: "Outline", IsActive: true},
	}
	editor := []models.StyleEntry{
		{Name: "fill", Label: "Filled", IsDefault: true, IsActive: true},
		{Name: "outline-2", Label: "Outline 2", IsActive: true},
	}

	got := MergeEntries(registered, editor)

	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(got), got)
	}
	if got[0].Name != "fill" || !got[0].IsDefault || !got[0].IsActive {
		t.Errorf("fill: got %+v", got[0])
	}
	if got[0].Label != "Filled" {
		t.Errorf("fill label should follow editor, got %q", got[0].Label)
	}
	if got[1].Name != "outline-2" || got[1].IsDefault || !got[1].IsActive {
		t.Errorf("outline-2: got %+v", got[1])
	}
}

func TestMergeEntriesKeepsRegisteredFlags(t *testing.T) {
	registered := []models.StyleEntry{{Name: "rounded", IsActive: false, IsDefault: true}}
	editor := []models.StyleEntry{{Name: "rounded", IsActive: true, IsDefault: false}}

	got := MergeEntries(registered, editor)
	if got[0].IsActive || !got[0].IsDefault {
		t.Errorf("registered flags should win, got %+v", got[0])
	}
}

func TestMergeEntriesDefaultTieBreakLastWins(t *testing.T) {
	registered := []models.StyleEntry{{Name: "fill", IsDefault: true, IsActive: true}}
	editor := []models.StyleEntry{
		{Name: "fill", IsActive: true},
		{Name: "ghost", IsDefault: true, IsActive: true},
	}

	got := MergeEntries(registered, editor)
	defaults := 0
	for _, e := range got {
		if e.IsDefault {
			defaults++
			if e.Name != "ghost" {
				t.Errorf("expected last entry to win default, got %q", e.Name)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("got %d defaults, want exactly 1", defaults)
	}
}

func TestSetDefault(t *testing.T) {
	entries := []models.StyleEntry{{Name: "a", IsDefault: true}, {Name: "b"}}

	got, err := SetDefault(entries, "b")
	if err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	if got[0].IsDefault || !got[1].IsDefault {
		t.Errorf("got %+v", got)
	}
	if !entries[0].IsDefault {
		t.Error("input was mutated")
	}

	cleared, _ := SetDefault(entries, "")
	for _, e := range cleared {
		if e.IsDefault {
			t.Errorf("expected no default, got %+v", cleared)
		}
	}

	if _, err := SetDefault(entries, "missing"); !errors.Is(err, ErrUnknownEntry) {
		t.Errorf("got %v, want ErrUnknownEntry", err)
	}
}

func TestSetActive(t *testing.T) {
	entries := []models.StyleEntry{{Name: "a", IsActive: true}}
	got, err := SetActive(entries, "a", false)
	if err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if got[0].IsActive || !entries[0].IsActive {
		t.Errorf("got %+v (input %+v)", got, entries)
	}
}
