package models

import (
	"slices"
)

// EntityKind names the three synchronized entity families
type EntityKind string

const (
	KindSettings EntityKind = "settings"
	KindBlock    EntityKind = "block"
	KindPattern  EntityKind = "pattern"
)

// Settings is the plugin-wide configuration bundle. There is exactly one per site.
type Settings struct {
	PostTypes         []string `json:"post_types"`
	UserGroups        []string `json:"user_groups"`
	AccessByPostType  bool     `json:"access_by_post_type"`
	AccessByUserGroup bool     `json:"access_by_user_group"`
	DefaultAccess     bool     `json:"default_access"`
	ManagePatterns    bool     `json:"manage_patterns"`
}

// Clone returns a deep copy of s
func (s Settings) Clone() Settings {
	s.PostTypes = slices.Clone(s.PostTypes)
	s.UserGroups = slices.Clone(s.UserGroups)
	return s
}

// NewAccess builds an access matrix shaped by the settings' axis flags.
// When both axes are enabled the matrix is two-level; when one is disabled
// it collapses to the remaining axis.
func (s Settings) NewAccess() Access {
	switch {
	case s.AccessByPostType && s.AccessByUserGroup:
		return NewAccess(s.PostTypes, s.UserGroups, s.DefaultAccess)
	case s.AccessByUserGroup:
		return NewFlatAccess(s.UserGroups, s.DefaultAccess)
	default:
		return NewFlatAccess(s.PostTypes, s.DefaultAccess)
	}
}

// Support is a single block support override.
// Inactive supports keep their value verbatim; only the admin flips IsActive.
type Support struct {
	IsActive bool `json:"isActive"`
	Value    any  `json:"value"`
}

// StyleEntry is one entry of a block's styles or variations list.
// Styles carry Label, variations carry Title.
type StyleEntry struct {
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	IsDefault   bool   `json:"isDefault"`
	IsActive    bool   `json:"isActive"`
}

// Block is a registered editor block as stored by the plugin.
// Title, Description, Icon and Keywords are informational and come from the
// live editor registry; they are never part of change detection.
type Block struct {
	Name             string           `json:"name"`
	Category         string           `json:"category"`
	Supports         Object[Support]  `json:"supports"`
	SupportsOverride Object[any]      `json:"supports_override,omitempty"`
	Styles           List[StyleEntry] `json:"styles"`
	Variations       List[StyleEntry] `json:"variations"`
	Access           Access           `json:"access"`

	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Clone returns a deep copy of b
func (b Block) Clone() Block {
	if b.Supports != nil {
		supports := make(Object[Support], len(b.Supports))
		for k, v := range b.Supports {
			supports[k] = Support{IsActive: v.IsActive, Value: CloneValue(v.Value)}
		}
		b.Supports = supports
	}
	b.SupportsOverride = cloneObject(b.SupportsOverride)
	b.Styles = slices.Clone(b.Styles)
	b.Variations = slices.Clone(b.Variations)
	b.Access = b.Access.Clone()
	b.Keywords = slices.Clone(b.Keywords)
	return b
}

// WithInfo copies the editor-only informational fields from src onto b
func (b Block) WithInfo(src Block) Block {
	b.Title = src.Title
	b.Description = src.Description
	b.Icon = src.Icon
	b.Keywords = slices.Clone(src.Keywords)
	return b
}

// Pattern is a registered block pattern
type Pattern struct {
	Name       string   `json:"name"`
	Title      string   `json:"title,omitempty"`
	Categories []string `json:"categories"`
	Access     Access   `json:"access"`
}

// Clone returns a deep copy of p
func (p Pattern) Clone() Pattern {
	p.Categories = slices.Clone(p.Categories)
	p.Access = p.Access.Clone()
	return p
}

// BlockCategory is an editor block category
type BlockCategory struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}

// PatternCategory is a registered pattern category
type PatternCategory struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Keep tells the remote side whether array fields of an update are unioned
// with stored data (true) or replace it (false).
type Keep struct {
	Styles     bool `json:"styles"`
	Variations bool `json:"variations"`
}

// BlockUpdate is the body of a block update call
type BlockUpdate struct {
	Block
	Keep Keep `json:"keep"`
}

// CloneValue deep-copies a JSON-shaped value (maps, slices, scalars)
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
