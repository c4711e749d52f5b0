package cmd

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/store"
)

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"ON", true, false},
		{"allow", true, false},
		{"off", false, false},
		{"deny", false, false},
		{"true", true, false},
		{"0", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		got, err := parseOnOff(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseOnOff(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, errUsage) {
			t.Errorf("parseOnOff(%q) error should wrap errUsage: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseOnOff(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseAccess(t *testing.T) {
	tests := []struct {
		in      string
		want    store.Edit
		wantErr bool
	}{
		{"post=on", store.Edit{Kind: store.FieldAccess, Key: "post", On: true}, false},
		{"post/editor=off", store.Edit{Kind: store.FieldAccess, Key: "post", Inner: "editor"}, false},
		{" page / author = on", store.Edit{Kind: store.FieldAccess, Key: "page ", Inner: " author", On: true}, false},
		{"post/=on", store.Edit{}, true},
		{"post", store.Edit{}, true},
		{"=on", store.Edit{}, true},
	}
	for _, tt := range tests {
		got, err := parseAccess(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAccess(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseAccess(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseEdit(t *testing.T) {
	tests := []struct {
		field string
		args  []string
		want  store.Edit
	}{
		{"category", []string{"design"}, store.Edit{Kind: store.FieldCategory, Value: "design"}},
		{"style-default", []string{"outline"}, store.Edit{Kind: store.FieldStyleDefault, Key: "outline"}},
		{"variation-default", []string{""}, store.Edit{Kind: store.FieldVariationDefault}},
		{"style-active", []string{"fill=off"}, store.Edit{Kind: store.FieldStyleActive, Key: "fill"}},
		{"support", []string{"anchor=on"}, store.Edit{Kind: store.FieldSupport, Key: "anchor", On: true}},
		{"access", []string{"post/editor=on"}, store.Edit{Kind: store.FieldAccess, Key: "post", Inner: "editor", On: true}},
	}
	for _, tt := range tests {
		got, err := parseEdit(tt.field, tt.args)
		if err != nil {
			t.Errorf("parseEdit(%s, %v): %v", tt.field, tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseEdit(%s, %v) = %+v, want %+v", tt.field, tt.args, got, tt.want)
		}
	}

	if _, err := parseEdit("colour", []string{"x"}); !errors.Is(err, store.ErrUnknownField) {
		t.Errorf("unknown field: got %v", err)
	}
	if _, err := parseEdit("category", nil); !errors.Is(err, errUsage) {
		t.Errorf("missing argument: got %v", err)
	}
}

func TestApplySetting(t *testing.T) {
	base := models.Settings{PostTypes: []string{"post"}, DefaultAccess: true}

	got, err := applySetting(base, "post_types", "post, page,,product")
	if err != nil {
		t.Fatalf("post_types: %v", err)
	}
	if !slices.Equal(got.PostTypes, []string{"post", "page", "product"}) {
		t.Errorf("post_types: got %v", got.PostTypes)
	}
	if len(base.PostTypes) != 1 {
		t.Error("input settings were modified")
	}

	got, err = applySetting(base, "default_access", "off")
	if err != nil || got.DefaultAccess {
		t.Errorf("default_access: got %v, %v", got.DefaultAccess, err)
	}

	if _, err := applySetting(base, "colour", "red"); !errors.Is(err, errUsage) {
		t.Errorf("unknown key: got %v", err)
	}
	if _, err := applySetting(base, "manage_patterns", "perhaps"); !errors.Is(err, errUsage) {
		t.Errorf("bad flag value: got %v", err)
	}
}

func TestUpsertCategory(t *testing.T) {
	cats := []models.BlockCategory{{Slug: "text", Title: "Text", Icon: "t"}}

	got := upsertCategory(cats, models.BlockCategory{Slug: "text", Title: "Words"})
	if len(got) != 1 || got[0].Title != "Words" || got[0].Icon != "t" {
		t.Errorf("retitle: got %+v", got)
	}
	if cats[0].Title != "Text" {
		t.Error("input slice was modified")
	}

	got = upsertCategory(cats, models.BlockCategory{Slug: "media", Title: "Media"})
	if len(got) != 2 || got[1].Slug != "media" {
		t.Errorf("append: got %+v", got)
	}
}

func TestFilterBlocksSortsAndFilters(t *testing.T) {
	blocks := []models.Block{
		{Name: "core/quote", Category: "text"},
		{Name: "core/image", Category: "media"},
		{Name: "core/heading", Category: "text"},
	}
	got := filterBlocks(blocks, "text")
	if len(got) != 2 || got[0].Name != "core/heading" || got[1].Name != "core/quote" {
		t.Errorf("got %+v", got)
	}
	if all := filterBlocks(blocks, ""); len(all) != 3 || all[0].Name != "core/heading" {
		t.Errorf("unfiltered: got %+v", all)
	}
}

func TestUnknownNamesSuggest(t *testing.T) {
	_, err := parseEdit("suport", []string{"anchor=on"})
	if !errors.Is(err, store.ErrUnknownField) || !strings.Contains(err.Error(), "did you mean support?") {
		t.Errorf("field: got %v", err)
	}
	_, err = applySetting(models.Settings{}, "post_type", "post")
	if !errors.Is(err, errUsage) || !strings.Contains(err.Error(), "post_types") {
		t.Errorf("setting: got %v", err)
	}
}
