package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"BAM_SITE_URL", "BAM_NAMESPACE", "BAM_USER", "BAM_APP_PASSWORD",
	"BAM_DEBOUNCE", "BAM_BATCH_SIZE", "BAM_RETRY_ATTEMPTS",
}

// tempHome points HOME at a fresh directory and clears BAM_* overrides
func tempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	return home
}

func writeTestConfig(t *testing.T, home string, cfg *Config) {
	t.Helper()
	dir := filepath.Join(home, ".config", "bam")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func intPtr(n int) *int { return &n }

func TestResolveDefaults(t *testing.T) {
	tempHome(t)

	s, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Namespace != "gutenberg-blocks-access" {
		t.Errorf("namespace: got %q", s.Namespace)
	}
	if s.Debounce != 2*time.Second {
		t.Errorf("debounce: got %v, want 2s", s.Debounce)
	}
	if s.BatchSize != 10 {
		t.Errorf("batch size: got %d, want 10", s.BatchSize)
	}
	if s.RetryAttempts != 5 {
		t.Errorf("retry attempts: got %d, want 5", s.RetryAttempts)
	}
	if !errors.Is(s.Validate(), ErrNoSite) {
		t.Errorf("Validate: got %v, want ErrNoSite", s.Validate())
	}
}

func TestResolveFromConfig(t *testing.T) {
	home := tempHome(t)
	writeTestConfig(t, home, &Config{
		Site:      SiteConfig{URL: "https://example.test/", Namespace: "custom", Username: "admin"},
		Debounce:  "500ms",
		BatchSize: intPtr(4),
	})

	s, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.SiteURL != "https://example.test" {
		t.Errorf("site url should lose its trailing slash: %q", s.SiteURL)
	}
	if s.Namespace != "custom" || s.Username != "admin" {
		t.Errorf("site: got %+v", s)
	}
	if s.Debounce != 500*time.Millisecond || s.BatchSize != 4 {
		t.Errorf("tuning: got debounce %v batch %d", s.Debounce, s.BatchSize)
	}
}

func TestEnvOverridesConfig(t *testing.T) {
	home := tempHome(t)
	writeTestConfig(t, home, &Config{Site: SiteConfig{URL: "https://file.test"}, BatchSize: intPtr(4)})
	t.Setenv("BAM_SITE_URL", "https://env.test")
	t.Setenv("BAM_BATCH_SIZE", "7")
	t.Setenv("BAM_DEBOUNCE", "1s")

	s, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.SiteURL != "https://env.test" || s.BatchSize != 7 || s.Debounce != time.Second {
		t.Errorf("got %+v", s)
	}
}

func TestInvalidEnvFallsThrough(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"batch not a number", "BAM_BATCH_SIZE", "many"},
		{"batch zero", "BAM_BATCH_SIZE", "0"},
		{"batch negative", "BAM_BATCH_SIZE", "-3"},
		{"debounce garbage", "BAM_DEBOUNCE", "soon"},
		{"debounce negative", "BAM_DEBOUNCE", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := tempHome(t)
			writeTestConfig(t, home, &Config{Debounce: "3s", BatchSize: intPtr(6)})
			t.Setenv(tt.key, tt.value)

			s, err := Resolve()
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if s.BatchSize != 6 || s.Debounce != 3*time.Second {
				t.Errorf("expected config values, got batch %d debounce %v", s.BatchSize, s.Debounce)
			}
		})
	}
}

func TestAuthRoundTrip(t *testing.T) {
	home := tempHome(t)

	if a, err := LoadAuth(); err != nil || a != nil {
		t.Fatalf("LoadAuth on empty home: %+v, %v", a, err)
	}
	if err := SaveAuth(&Auth{SiteURL: "https://example.test", Username: "admin", AppPassword: "abcd efgh"}); err != nil {
		t.Fatalf("SaveAuth: %v", err)
	}

	info, err := os.Stat(filepath.Join(home, ".config", "bam", "auth.json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("auth.json perms: got %o, want 600", perm)
	}

	s, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.AppPassword != "abcd efgh" || s.Username != "admin" || s.SiteURL != "https://example.test" {
		t.Errorf("auth not applied: %+v", s)
	}

	if err := ClearAuth(); err != nil {
		t.Fatalf("ClearAuth: %v", err)
	}
	if err := ClearAuth(); err != nil {
		t.Errorf("second ClearAuth: %v", err)
	}
}

func TestSaveThenLoad(t *testing.T) {
	tempHome(t)
	in := &Config{Site: SiteConfig{URL: "https://example.test"}, RetryAttempts: intPtr(2)}
	if err := Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Site.URL != in.Site.URL || out.RetryAttempts == nil || *out.RetryAttempts != 2 {
		t.Errorf("got %+v", out)
	}
}
