package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrUnknownAccessKey is returned when setting a cell that is not part of the matrix.
// Matrix keys are fixed for the session; only the boolean leaves change.
var ErrUnknownAccessKey = errors.New("unknown access key")

// Access is the availability matrix of a block or pattern.
//
// A two-level matrix maps post type -> user group -> allowed. When one axis
// is disabled in Settings the matrix is flat and keyed by the remaining axis.
// Exactly one of Grid or Flat is populated.
type Access struct {
	Grid map[string]map[string]bool
	Flat map[string]bool
}

// NewAccess builds a two-level matrix with every cell set to def
func NewAccess(postTypes, groups []string, def bool) Access {
	grid := make(map[string]map[string]bool, len(postTypes))
	for _, pt := range postTypes {
		row := make(map[string]bool, len(groups))
		for _, g := range groups {
			row[g] = def
		}
		grid[pt] = row
	}
	return Access{Grid: grid}
}

// NewFlatAccess builds a one-axis matrix with every cell set to def
func NewFlatAccess(keys []string, def bool) Access {
	flat := make(map[string]bool, len(keys))
	for _, k := range keys {
		flat[k] = def
	}
	return Access{Flat: flat}
}

// IsFlat reports whether the matrix has been collapsed to one axis
func (a Access) IsFlat() bool {
	return a.Grid == nil && a.Flat != nil
}

// IsZero reports whether the matrix has no cells
func (a Access) IsZero() bool {
	return len(a.Grid) == 0 && len(a.Flat) == 0
}

// Get returns the cell value. For flat matrices inner is ignored.
func (a Access) Get(outer, inner string) (allowed, ok bool) {
	if a.IsFlat() {
		allowed, ok = a.Flat[outer]
		return allowed, ok
	}
	row, ok := a.Grid[outer]
	if !ok {
		return false, false
	}
	allowed, ok = row[inner]
	return allowed, ok
}

// Set returns a copy of a with one cell changed. The receiver is not modified.
func (a Access) Set(outer, inner string, allowed bool) (Access, error) {
	if _, ok := a.Get(outer, inner); !ok {
		if a.IsFlat() {
			return a, fmt.Errorf("%w: %q", ErrUnknownAccessKey, outer)
		}
		return a, fmt.Errorf("%w: %q/%q", ErrUnknownAccessKey, outer, inner)
	}
	out := a.Clone()
	if out.IsFlat() {
		out.Flat[outer] = allowed
	} else {
		out.Grid[outer][inner] = allowed
	}
	return out, nil
}

// Toggle flips one cell and returns the updated copy
func (a Access) Toggle(outer, inner string) (Access, error) {
	cur, ok := a.Get(outer, inner)
	if !ok {
		return a.Set(outer, inner, false)
	}
	return a.Set(outer, inner, !cur)
}

// Collapse reduces a two-level matrix to one axis. A collapsed cell is
// allowed if any cell along the dropped axis was allowed.
func (a Access) Collapse(keepPostType bool) Access {
	if a.IsFlat() {
		return a.Clone()
	}
	flat := make(map[string]bool)
	for pt, row := range a.Grid {
		for g, v := range row {
			key := pt
			if !keepPostType {
				key = g
			}
			flat[key] = flat[key] || v
		}
	}
	return Access{Flat: flat}
}

// Outer returns the sorted first-axis keys
func (a Access) Outer() []string {
	if a.IsFlat() {
		return slices.Sorted(maps.Keys(a.Flat))
	}
	return slices.Sorted(maps.Keys(a.Grid))
}

// Inner returns the sorted second-axis keys across all rows
func (a Access) Inner() []string {
	seen := make(map[string]bool)
	for _, row := range a.Grid {
		for g := range row {
			seen[g] = true
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Clone returns a deep copy of a
func (a Access) Clone() Access {
	var out Access
	if a.Grid != nil {
		out.Grid = make(map[string]map[string]bool, len(a.Grid))
		for k, row := range a.Grid {
			out.Grid[k] = maps.Clone(row)
		}
	}
	if a.Flat != nil {
		out.Flat = maps.Clone(a.Flat)
	}
	return out
}

// MarshalJSON encodes a nested object for two-level matrices and a flat
// object otherwise.
func (a Access) MarshalJSON() ([]byte, error) {
	if a.IsFlat() {
		return json.Marshal(a.Flat)
	}
	if a.Grid == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a.Grid)
}

// UnmarshalJSON detects the matrix shape from the first value
func (a *Access) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Access{}
		return nil
	}
	// WordPress serializes empty PHP arrays as [].
	if bytes.Equal(data, []byte("[]")) {
		*a = Access{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("access: %w", err)
	}
	if len(raw) == 0 {
		*a = Access{}
		return nil
	}

	nested := false
	for _, v := range raw {
		v = bytes.TrimSpace(v)
		nested = len(v) > 0 && (v[0] == '{' || v[0] == '[')
		break
	}

	if nested {
		grid := make(map[string]map[string]bool, len(raw))
		for k, v := range raw {
			row := map[string]bool{}
			if !bytes.Equal(bytes.TrimSpace(v), []byte("[]")) {
				if err := json.Unmarshal(v, &row); err != nil {
					return fmt.Errorf("access %q: %w", k, err)
				}
			}
			grid[k] = row
		}
		*a = Access{Grid: grid}
		return nil
	}

	flat := make(map[string]bool, len(raw))
	for k, v := range raw {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return fmt.Errorf("access %q: %w", k, err)
		}
		flat[k] = b
	}
	*a = Access{Flat: flat}
	return nil
}
