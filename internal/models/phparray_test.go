package models

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestBlockDecodesEmptyPHPArrays(t *testing.T) {
	tests := []struct {
		name          string
		in            string
		supports      int
		styles        []string
		nilVariations bool
	}{
		{"empty arrays", `{"supports":[],"styles":[],"variations":[]}`, 0, nil, false},
		{"null", `{"supports":null,"styles":null,"variations":null}`, 0, nil, true},
		{"empty objects", `{"supports":{},"styles":{},"variations":{}}`, 0, nil, false},
		{"sparse list", `{"supports":{"anchor":{"isActive":true,"value":true}},"styles":{"10":{"name":"c"},"2":{"name":"b"},"0":{"name":"a"}},"variations":[]}`, 1, []string{"a", "b", "c"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Block
			if err := json.Unmarshal([]byte(tt.in), &b); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if b.Supports == nil || len(b.Supports) != tt.supports {
				t.Errorf("supports: got %#v", b.Supports)
			}
			if len(b.Styles) != len(tt.styles) {
				t.Fatalf("styles: got %+v, want %v", b.Styles, tt.styles)
			}
			for i, name := range tt.styles {
				if b.Styles[i].Name != name {
					t.Errorf("styles[%d]: got %q, want %q", i, b.Styles[i].Name, name)
				}
			}
			if (b.Variations == nil) != tt.nilVariations {
				t.Errorf("variations: got %#v", b.Variations)
			}
		})
	}
}

func TestObjectRejectsScalars(t *testing.T) {
	var b Block
	if err := json.Unmarshal([]byte(`{"supports":"none"}`), &b); err == nil {
		t.Error("expected error for string supports")
	}
	if err := json.Unmarshal([]byte(`{"styles":"none"}`), &b); err == nil {
		t.Error("expected error for string styles")
	}
}

func TestObjectYAMLEmptySequence(t *testing.T) {
	var v struct {
		Supports Object[any] `yaml:"supports"`
	}
	if err := yaml.Unmarshal([]byte("supports: []\n"), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Supports == nil || len(v.Supports) != 0 {
		t.Errorf("got %#v", v.Supports)
	}
	if err := yaml.Unmarshal([]byte("supports: {anchor: true}\n"), &v); err != nil || v.Supports["anchor"] != true {
		t.Errorf("mapping: got %#v, %v", v.Supports, err)
	}
}

func TestCloneCopiesSupportsOverride(t *testing.T) {
	b := Block{SupportsOverride: Object[any]{"spacing": map[string]any{"padding": true}}}
	c := b.Clone()
	c.SupportsOverride["spacing"].(map[string]any)["padding"] = false
	if b.SupportsOverride["spacing"].(map[string]any)["padding"] != true {
		t.Error("clone shares nested override maps")
	}
}
