package store

import (
	"errors"
	"fmt"

	"github.com/marcus/bam/internal/merge"
	"github.com/marcus/bam/internal/models"
)

// ErrUnknownField is returned for an edit whose kind does not apply
var ErrUnknownField = errors.New("store: field cannot be edited")

// FieldKind is the closed set of admin edits on a block or pattern
type FieldKind int

const (
	FieldAccess FieldKind = iota
	FieldSupport
	FieldStyleDefault
	FieldStyleActive
	FieldVariationDefault
	FieldVariationActive
	FieldCategory
)

var fieldNames = map[FieldKind]string{
	FieldAccess:           "access",
	FieldSupport:          "support",
	FieldStyleDefault:     "style-default",
	FieldStyleActive:      "style-active",
	FieldVariationDefault: "variation-default",
	FieldVariationActive:  "variation-active",
	FieldCategory:         "category",
}

func (k FieldKind) String() string {
	if s, ok := fieldNames[k]; ok {
		return s
	}
	return fmt.Sprintf("field(%d)", int(k))
}

// FieldNames lists every field name in kind order
func FieldNames() []string {
	out := make([]string, 0, len(fieldNames))
	for k := FieldAccess; k <= FieldCategory; k++ {
		out = append(out, fieldNames[k])
	}
	return out
}

// ParseFieldKind maps a field name back to its kind
func ParseFieldKind(s string) (FieldKind, error) {
	for k, name := range fieldNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Edit is one field change.
//
//	FieldAccess            Key=post type or group, Inner=group (two-level only), On
//	FieldSupport           Key=support name, On=isActive
//	FieldStyleDefault      Key=style name, empty clears the default
//	FieldStyleActive       Key=style name, On
//	FieldVariationDefault  Key=variation name, empty clears the default
//	FieldVariationActive   Key=variation name, On
//	FieldCategory          Value=category slug
type Edit struct {
	Kind  FieldKind
	Key   string
	Inner string
	On    bool
	Value string
}

func (e Edit) String() string {
	switch e.Kind {
	case FieldAccess:
		if e.Inner != "" {
			return fmt.Sprintf("%s %s/%s=%t", e.Kind, e.Key, e.Inner, e.On)
		}
		return fmt.Sprintf("%s %s=%t", e.Kind, e.Key, e.On)
	case FieldStyleDefault, FieldVariationDefault:
		return fmt.Sprintf("%s %q", e.Kind, e.Key)
	case FieldCategory:
		return fmt.Sprintf("%s %s", e.Kind, e.Value)
	default:
		return fmt.Sprintf("%s %s=%t", e.Kind, e.Key, e.On)
	}
}

// ApplyEdit returns a copy of b with the edit applied
func ApplyEdit(b models.Block, e Edit) (models.Block, error) {
	out := b.Clone()
	var err error
	switch e.Kind {
	case FieldAccess:
		out.Access, err = out.Access.Set(e.Key, e.Inner, e.On)
	case FieldSupport:
		s, ok := out.Supports[e.Key]
		if !ok {
			return b, fmt.Errorf("%w: support %q", merge.ErrUnknownEntry, e.Key)
		}
		s.IsActive = e.On
		out.Supports[e.Key] = s
	case FieldStyleDefault:
		out.Styles, err = merge.SetDefault(out.Styles, e.Key)
	case FieldStyleActive:
		out.Styles, err = merge.SetActive(out.Styles, e.Key, e.On)
	case FieldVariationDefault:
		out.Variations, err = merge.SetDefault(out.Variations, e.Key)
	case FieldVariationActive:
		out.Variations, err = merge.SetActive(out.Variations, e.Key, e.On)
	case FieldCategory:
		if e.Value == "" {
			return b, fmt.Errorf("%w: empty category", ErrUnknownField)
		}
		out.Category = e.Value
	default:
		return b, fmt.Errorf("%w: %s", ErrUnknownField, e.Kind)
	}
	if err != nil {
		return b, err
	}
	return out, nil
}

// ApplyPatternEdit returns a copy of p with the edit applied. Patterns only
// carry access.
func ApplyPatternEdit(p models.Pattern, e Edit) (models.Pattern, error) {
	if e.Kind != FieldAccess {
		return p, fmt.Errorf("%w: %s on pattern", ErrUnknownField, e.Kind)
	}
	out := p.Clone()
	access, err := out.Access.Set(e.Key, e.Inner, e.On)
	if err != nil {
		return p, err
	}
	out.Access = access
	return out, nil
}
