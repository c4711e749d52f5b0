// Package merge holds the set and field-level diff/merge helpers shared by the
// delayed change queue and the reconciliation engine.
package merge

import (
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/marcus/bam/internal/models"
)

// ErrUnknownEntry is returned when a style or variation name is not in the list
var ErrUnknownEntry = errors.New("unknown entry")

var equalOpts = []cmp.Option{cmpopts.EquateEmpty()}

// Equal reports deep equality. Nil and empty maps/slices compare equal.
func Equal(a, b any) bool {
	return cmp.Equal(a, b, equalOpts...)
}

// Diff returns a human-readable diff of a and b, empty when equal
func Diff(a, b any) string {
	return cmp.Diff(a, b, equalOpts...)
}

// Partition is the result of splitting two named collections by key
type Partition struct {
	New     []string // in live only
	Deleted []string // in registered only
	Common  []string // in both
}

// PartitionByName splits registered and live by name. New follows live order,
// Deleted and Common follow registered order.
func PartitionByName[T any](registered, live []T, name func(T) string) Partition {
	regSet := make(map[string]bool, len(registered))
	for _, r := range registered {
		regSet[name(r)] = true
	}
	liveSet := make(map[string]bool, len(live))
	for _, l := range live {
		liveSet[name(l)] = true
	}

	var p Partition
	seen := make(map[string]bool, len(live))
	for _, l := range live {
		n := name(l)
		if !regSet[n] && !seen[n] {
			p.New = append(p.New, n)
		}
		seen[n] = true
	}
	seen = make(map[string]bool, len(registered))
	for _, r := range registered {
		n := name(r)
		if seen[n] {
			continue
		}
		seen[n] = true
		if liveSet[n] {
			p.Common = append(p.Common, n)
		} else {
			p.Deleted = append(p.Deleted, n)
		}
	}
	return p
}

// IndexByName maps name to item. Later duplicates win.
func IndexByName[T any](items []T, name func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, it := range items {
		out[name(it)] = it
	}
	return out
}

// IntersectSupports restricts both maps to their shared keys
func IntersectSupports(a, b map[string]models.Support) (map[string]models.Support, map[string]models.Support) {
	outA := make(map[string]models.Support)
	outB := make(map[string]models.Support)
	for k, v := range a {
		if w, ok := b[k]; ok {
			outA[k] = v
			outB[k] = w
		}
	}
	return outA, outB
}

// SupportValues drops the IsActive flag, leaving only the values
func SupportValues(s map[string]models.Support) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v.Value
	}
	return out
}

// StripEntries removes the volatile fields of a styles/variations list so two
// lists can be compared: IsActive is cleared, descriptions and icons dropped.
// A false IsDefault is the zero value and so is already absent.
func StripEntries(entries []models.StyleEntry) []models.StyleEntry {
	out := make([]models.StyleEntry, len(entries))
	for i, e := range entries {
		out[i] = models.StyleEntry{
			Name:      e.Name,
			Label:     e.Label,
			Title:     e.Title,
			IsDefault: e.IsDefault,
		}
	}
	return out
}

// MergeSupports applies the supports override rule. Keys missing from editor
// are dropped. A registered support the admin disabled keeps IsActive=false
// but tracks the editor's current value; everything else takes the editor
// entry as-is.
func MergeSupports(registered, editor map[string]models.Support) map[string]models.Support {
	out := make(map[string]models.Support, len(editor))
	for k, ev := range editor {
		next := models.Support{IsActive: ev.IsActive, Value: models.CloneValue(ev.Value)}
		if rv, ok := registered[k]; ok && !rv.IsActive {
			next.IsActive = false
		}
		out[k] = next
	}
	return out
}

// MergeEntries reconciles a registered styles/variations list with the
// editor's by name. Entries removed from the editor are dropped, matching
// entries keep the registered IsActive/IsDefault and adopt the editor's
// informational fields, new editor entries are appended as-is.
func MergeEntries(registered, editor []models.StyleEntry) []models.StyleEntry {
	byName := make(map[string]models.StyleEntry, len(editor))
	for _, e := range editor {
		byName[e.Name] = e
	}

	out := make([]models.StyleEntry, 0, len(editor))
	kept := make(map[string]bool, len(registered))
	for _, r := range registered {
		e, ok := byName[r.Name]
		if !ok || kept[r.Name] {
			continue
		}
		kept[r.Name] = true
		r.Label = e.Label
		r.Title = e.Title
		r.Description = e.Description
		r.Icon = e.Icon
		out = append(out, r)
	}
	for _, e := range editor {
		if kept[e.Name] {
			continue
		}
		kept[e.Name] = true
		out = append(out, e)
	}
	return EnforceSingleDefault(out)
}

// EnforceSingleDefault returns a copy in which at most one entry is the
// default. When several claim it, the last one in list order wins.
func EnforceSingleDefault(entries []models.StyleEntry) []models.StyleEntry {
	out := make([]models.StyleEntry, len(entries))
	copy(out, entries)
	winner := -1
	for i, e := range out {
		if e.IsDefault {
			winner = i
		}
	}
	for i := range out {
		out[i].IsDefault = i == winner
	}
	return out
}

// SetDefault returns a copy with name as the only default. An empty name
// clears the default.
func SetDefault(entries []models.StyleEntry, name string) ([]models.StyleEntry, error) {
	if name != "" && indexOf(entries, name) < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntry, name)
	}
	out := make([]models.StyleEntry, len(entries))
	for i, e := range entries {
		e.IsDefault = name != "" && e.Name == name
		out[i] = e
	}
	return out, nil
}

// SetActive returns a copy with the named entry's IsActive flag set
func SetActive(entries []models.StyleEntry, name string, active bool) ([]models.StyleEntry, error) {
	i := indexOf(entries, name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntry, name)
	}
	out := make([]models.StyleEntry, len(entries))
	copy(out, entries)
	out[i].IsActive = active
	return out, nil
}

func indexOf(entries []models.StyleEntry, name string) int {
	for i, e := range entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
