package output

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/reconcile"
	"github.com/marcus/bam/internal/store"
)

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{time.Minute, "1m ago"},
		{30 * time.Minute, "30m ago"},
		{time.Hour, "1h ago"},
		{23 * time.Hour, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{6 * 24 * time.Hour, "6d ago"},
	}
	for _, tt := range tests {
		if got := FormatTimeAgo(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("FormatTimeAgo(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}

	old := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := FormatTimeAgo(old); got != "2024-03-01" {
		t.Errorf("old date: got %q", got)
	}
}

func TestAccessSummary(t *testing.T) {
	a := models.NewAccess([]string{"post", "page"}, []string{"editor", "author"}, true)
	a, _ = a.Set("post", "author", false)
	if got := AccessSummary(a); got != "3/4" {
		t.Errorf("grid: got %q, want 3/4", got)
	}
	flat := models.NewFlatAccess([]string{"post", "page"}, false)
	if got := AccessSummary(flat); got != "0/2" {
		t.Errorf("flat: got %q, want 0/2", got)
	}
}

func TestFormatAccessListsEveryKey(t *testing.T) {
	a := models.NewAccess([]string{"post", "page"}, []string{"editor"}, true)
	out := ansi.Strip(FormatAccess(a))
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "editor") {
		t.Errorf("header missing group: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "page") || !strings.HasPrefix(lines[2], "post") {
		t.Errorf("rows should be sorted: %q", out)
	}

	if got := ansi.Strip(FormatAccess(models.Access{})); !strings.Contains(got, "no access") {
		t.Errorf("empty matrix: got %q", got)
	}
}

func TestFormatBlockLong(t *testing.T) {
	b := models.Block{
		Name:     "core/button",
		Title:    "Button",
		Category: "design",
		Supports: map[string]models.Support{
			"anchor": {IsActive: true, Value: true},
			"align":  {IsActive: false, Value: "left"},
		},
		Styles: []models.StyleEntry{{Name: "fill", Label: "Fill", IsDefault: true, IsActive: true}},
		Access: models.NewFlatAccess([]string{"post"}, true),
	}
	out := ansi.Strip(FormatBlockLong(b))

	for _, want := range []string{"core/button", "Category: design", "SUPPORTS:", `align "left"`, "STYLES:", "fill Fill (default)", "ACCESS:"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "align") > strings.Index(out, "anchor") {
		t.Error("supports should be sorted by key")
	}
	if strings.Contains(out, "VARIATIONS:") {
		t.Error("empty variations should be omitted")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("core/very-long-block-name", 10); ansi.StringWidth(got) > 10 {
		t.Errorf("width %d exceeds 10: %q", ansi.StringWidth(got), got)
	}
	styled := successStyle.Render("core/paragraph")
	if got := ansi.Strip(Truncate(styled, 6)); got != "core/…" {
		t.Errorf("styled truncate: got %q", got)
	}
	if Truncate("x", 0) != "" {
		t.Error("zero width should be empty")
	}
}

func TestFormatState(t *testing.T) {
	if got := ansi.Strip(FormatState(store.StateSaving)); got != "[saving]" {
		t.Errorf("got %q", got)
	}
}

func TestFormatProgress(t *testing.T) {
	if got := FormatProgress(reconcile.Progress{Phase: reconcile.PhaseDiffing}); got != "diffing" {
		t.Errorf("got %q", got)
	}
	p := reconcile.Progress{Phase: reconcile.PhaseCreating, Total: 12, Done: 5}
	if got := FormatProgress(p); got != "batch-creating 5/12" {
		t.Errorf("got %q", got)
	}
}

func TestReconcileReport(t *testing.T) {
	start := time.Now()
	res := &reconcile.Result{
		RunID:  "abc",
		DryRun: true,
		Diff: reconcile.Diff{
			Create:    []models.Block{{Name: "core/new"}},
			Update:    []models.BlockUpdate{{Block: models.Block{Name: "core/quote"}}},
			Delete:    []string{"core/old"},
			Unchanged: []string{"core/spacer"},
		},
		Failures:   []reconcile.Failure{{Op: reconcile.OpDelete, Name: "core/old", Err: errors.New("forbidden")}},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
	md := ReconcileReport(res)

	for _, want := range []string{"# Reconcile (dry run)", "`abc`", "1.5s", "| Create | 1 | 0 |", "## Created", "`core/new`", "## Updated", "`core/quote`", "## Deleted", "## Failures", "forbidden"} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}

	rendered, err := RenderMarkdownWithWidth(md, 60)
	if err != nil {
		t.Fatalf("RenderMarkdownWithWidth: %v", err)
	}
	if !strings.Contains(ansi.Strip(rendered), "core/new") {
		t.Error("rendered report lost content")
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	got, err := RenderMarkdownWithWidth("   ", 80)
	if err != nil || got != "" {
		t.Errorf("got %q, %v", got, err)
	}
}
