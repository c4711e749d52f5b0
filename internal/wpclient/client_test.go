package wpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/marcus/bam/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *int64) {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "", "admin", "app-pass"), &hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestListBlocksPaginates(t *testing.T) {
	all := make([]models.Block, 5)
	for i := range all {
		all[i] = models.Block{Name: fmt.Sprintf("core/b%d", i)}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/gutenberg-blocks-access/v1/blocks", func(w http.ResponseWriter, r *http.Request) {
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		start := (page - 1) * perPage
		end := min(start+perPage, len(all))
		if start > len(all) {
			start = len(all)
		}
		w.Header().Set("X-WP-TotalPages", strconv.Itoa((len(all)+perPage-1)/perPage))
		writeJSON(w, http.StatusOK, all[start:end])
	})

	c, hits := newTestClient(t, mux)
	c.PerPage = 2

	blocks, err := c.ListBlocks(context.Background())
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocks) != 5 {
		t.Fatalf("got %d blocks, want 5", len(blocks))
	}
	if blocks[4].Name != "core/b4" {
		t.Errorf("last block: got %q", blocks[4].Name)
	}
	if *hits != 3 {
		t.Errorf("got %d requests, want 3", *hits)
	}
}

func TestListBlocksStopsOnTotalPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/gutenberg-blocks-access/v1/blocks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WP-TotalPages", "1")
		writeJSON(w, http.StatusOK, []models.Block{{Name: "core/a"}, {Name: "core/b"}})
	})

	c, hits := newTestClient(t, mux)
	c.PerPage = 2

	if _, err := c.ListBlocks(context.Background()); err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if *hits != 1 {
		t.Errorf("got %d requests, want 1", *hits)
	}
}

func TestInvalidNameShortCircuits(t *testing.T) {
	c, hits := newTestClient(t, http.NotFoundHandler())
	ctx := context.Background()

	for _, name := range []string{"", "../etc/passwd", "core", "core/Button", "core/a/b", "core/a?x=1"} {
		if _, err := c.GetBlock(ctx, name); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("GetBlock(%q): got %v, want ErrInvalidPath", name, err)
		}
		if err := c.DeleteBlock(ctx, name); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("DeleteBlock(%q): got %v, want ErrInvalidPath", name, err)
		}
		if _, err := c.UpdatePattern(ctx, models.Pattern{Name: name}); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("UpdatePattern(%q): got %v, want ErrInvalidPath", name, err)
		}
	}
	if *hits != 0 {
		t.Errorf("invalid names issued %d requests", *hits)
	}
}

func TestUpdateBlockSendsKeepAndAuth(t *testing.T) {
	var got map[string]json.RawMessage
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/gutenberg-blocks-access/v1/blocks/core/button", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method: got %s, want PUT", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "app-pass" {
			t.Errorf("basic auth: got %q/%q ok=%v", user, pass, ok)
		}
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, models.Block{Name: "core/button", Category: "design"})
	})

	c, _ := newTestClient(t, mux)
	resp, err := c.UpdateBlock(context.Background(), models.BlockUpdate{
		Block: models.Block{Name: "core/button", Category: "design"},
		Keep:  models.Keep{Styles: false, Variations: false},
	})
	if err != nil {
		t.Fatalf("UpdateBlock: %v", err)
	}
	if resp.Category != "design" {
		t.Errorf("response category: got %q", resp.Category)
	}
	if string(got["keep"]) != `{"styles":false,"variations":false}` {
		t.Errorf("keep: got %s", got["keep"])
	}
	if string(got["name"]) != `"core/button"` {
		t.Errorf("name: got %s", got["name"])
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		body      any
		sentinel  error
		retryable bool
	}{
		{http.StatusNotFound, map[string]string{"code": "rest_no_route", "message": "no route"}, ErrNotFound, false},
		{http.StatusUnauthorized, map[string]string{"code": "rest_forbidden", "message": "nope"}, ErrUnauthorized, false},
		{http.StatusForbidden, map[string]string{"code": "rest_forbidden", "message": "nope"}, ErrForbidden, false},
		{http.StatusInternalServerError, map[string]string{"code": "internal", "message": "db down"}, nil, true},
		{http.StatusBadGateway, "upstream", nil, true},
		{http.StatusBadRequest, map[string]string{"code": "rest_invalid_param", "message": "bad"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			_, err := c.GetSettings(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("got %v, want %v", err, tt.sentinel)
			}
			if got := IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable: got %v, want %v (err %v)", got, tt.retryable, err)
			}
		})
	}
}

func TestEmptyPHPArraysDecode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/gutenberg-blocks-access/v1/blocks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"name":"core/spacer","category":"design","supports":[],"styles":{},"variations":[],"access":[]},`+
			`{"name":"core/quote","category":"text","supports":{"anchor":{"isActive":true,"value":true}},`+
			`"styles":{"0":{"name":"plain"},"2":{"name":"fancy"}},"variations":null,"supports_override":[]}]`)
	})
	mux.HandleFunc("/wp-json/wp/v2/block-types", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"name":"core/spacer","title":"Spacer","supports":[],"styles":[],"variations":{}}]`)
	})

	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	blocks, err := c.ListBlocks(ctx)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	spacer, quote := blocks[0], blocks[1]
	if spacer.Supports == nil || len(spacer.Supports) != 0 {
		t.Errorf("spacer supports: got %#v, want empty map", spacer.Supports)
	}
	if spacer.Styles == nil || len(spacer.Styles) != 0 || len(spacer.Variations) != 0 {
		t.Errorf("spacer styles/variations: got %#v / %#v", spacer.Styles, spacer.Variations)
	}
	if !quote.Supports["anchor"].IsActive {
		t.Errorf("quote supports: got %#v", quote.Supports)
	}
	if len(quote.Styles) != 2 || quote.Styles[0].Name != "plain" || quote.Styles[1].Name != "fancy" {
		t.Errorf("quote styles: got %#v", quote.Styles)
	}
	if len(quote.SupportsOverride) != 0 {
		t.Errorf("quote supports_override: got %#v", quote.SupportsOverride)
	}

	types, err := c.ListBlockTypes(ctx)
	if err != nil {
		t.Fatalf("ListBlockTypes: %v", err)
	}
	if len(types) != 1 || types[0].Supports == nil || len(types[0].Supports) != 0 || len(types[0].Variations) != 0 {
		t.Errorf("block types: got %#v", types)
	}
}

func TestUndecodableResponseNotRetried(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/gutenberg-blocks-access/v1/blocks/core/button", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name":"core/button","supports":"none"}`)
	})

	c, _ := newTestClient(t, mux)
	_, err := c.UpdateBlock(context.Background(), models.BlockUpdate{Block: models.Block{Name: "core/button"}})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
	if IsRetryable(err) {
		t.Errorf("decode failure after a 200 must not be retried: %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	var stored models.Settings
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/gutenberg-blocks-access/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			json.NewDecoder(r.Body).Decode(&stored)
		}
		writeJSON(w, http.StatusOK, stored)
	})

	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	in := models.Settings{PostTypes: []string{"post"}, UserGroups: []string{"editor"}, AccessByPostType: true}
	if _, err := c.UpdateSettings(ctx, in); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	out, err := c.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if len(out.PostTypes) != 1 || !out.AccessByPostType {
		t.Errorf("got %+v", out)
	}
}
