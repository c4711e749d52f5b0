// Package editor reads the live block registry and normalizes it into the
// shape stored by the plugin.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/wpclient"
)

// RawBlock is a block as reported by the editor registry, with raw support
// values not yet wrapped in overrides.
type RawBlock = wpclient.BlockType

// Registry enumerates the live editor blocks
type Registry interface {
	Blocks(ctx context.Context) ([]models.Block, error)
}

// FileRegistry reads a JSON or YAML export of the block registry
type FileRegistry struct {
	Path string
}

// Blocks implements Registry
func (r FileRegistry) Blocks(ctx context.Context) ([]models.Block, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read registry export: %w", err)
	}

	var raw []RawBlock
	switch strings.ToLower(filepath.Ext(r.Path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", r.Path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", r.Path, err)
		}
	}
	return NormalizeAll(raw), nil
}

// RESTRegistry reads the registry from the site's core block-types endpoint
type RESTRegistry struct {
	Client *wpclient.Client
}

// Blocks implements Registry
func (r RESTRegistry) Blocks(ctx context.Context) ([]models.Block, error) {
	raw, err := r.Client.ListBlockTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list block types: %w", err)
	}
	return NormalizeAll(raw), nil
}

// StaticRegistry serves a fixed list, mostly for tests
type StaticRegistry []RawBlock

// Blocks implements Registry
func (r StaticRegistry) Blocks(ctx context.Context) ([]models.Block, error) {
	return NormalizeAll(r), nil
}

// NormalizeAll normalizes every block, skipping entries without a name
func NormalizeAll(raw []RawBlock) []models.Block {
	out := make([]models.Block, 0, len(raw))
	for _, rb := range raw {
		if rb.Name == "" {
			continue
		}
		out = append(out, Normalize(rb))
	}
	return out
}

// Normalize reduces a raw registry block to the stored shape: the icon
// becomes a string, each support becomes an active override holding the
// editor's value, and styles/variations keep only the picked fields.
func Normalize(rb RawBlock) models.Block {
	b := models.Block{
		Name:        rb.Name,
		Title:       rb.Title,
		Description: rb.Description,
		Category:    rb.Category,
		Icon:        iconString(rb.Icon),
		Keywords:    append([]string(nil), rb.Keywords...),
		Supports:    make(map[string]models.Support, len(rb.Supports)),
		Styles:      make([]models.StyleEntry, 0, len(rb.Styles)),
		Variations:  make([]models.StyleEntry, 0, len(rb.Variations)),
	}

	for name, v := range rb.Supports {
		b.Supports[name] = models.Support{IsActive: true, Value: jsonValue(v)}
	}
	for _, s := range rb.Styles {
		name := stringField(s, "name")
		if name == "" {
			continue
		}
		b.Styles = append(b.Styles, models.StyleEntry{
			Name:      name,
			Label:     stringField(s, "label"),
			IsDefault: boolField(s, "isDefault"),
			IsActive:  true,
		})
	}
	for _, v := range rb.Variations {
		name := stringField(v, "name")
		if name == "" {
			continue
		}
		b.Variations = append(b.Variations, models.StyleEntry{
			Name:        name,
			Title:       stringField(v, "title"),
			Description: stringField(v, "description"),
			Icon:        iconString(v["icon"]),
			IsDefault:   boolField(v, "isDefault"),
			IsActive:    true,
		})
	}
	return b
}

func iconString(icon any) string {
	switch v := icon.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if src, ok := v["src"].(string); ok {
			return src
		}
	}
	data, err := json.Marshal(jsonValue(icon))
	if err != nil {
		return ""
	}
	return string(data)
}

// jsonValue converts a decoded value into the types encoding/json produces,
// so values read from YAML compare equal to values fetched over REST.
func jsonValue(v any) any {
	data, err := json.Marshal(yamlToJSON(v))
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// yamlToJSON rewrites map[any]any, which yaml can produce for non-string
// keys, into map[string]any.
func yamlToJSON(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = yamlToJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = yamlToJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = yamlToJSON(e)
		}
		return out
	default:
		return v
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}
