// Package config reads the global bam configuration at ~/.config/bam and
// applies BAM_* environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/bam/internal/delayed"
	"github.com/marcus/bam/internal/reconcile"
	"github.com/marcus/bam/internal/wpclient"
)

// ErrNoSite is returned when no site URL is configured anywhere
var ErrNoSite = errors.New("no site configured: run 'bam init' or set BAM_SITE_URL")

// SiteConfig identifies the WordPress site and the account used for it
type SiteConfig struct {
	URL       string `json:"url"`
	Namespace string `json:"namespace,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Config is the global bam config stored at ~/.config/bam/config.json.
type Config struct {
	Site          SiteConfig `json:"site"`
	Debounce      string     `json:"debounce,omitempty"` // duration string, default "2s"
	BatchSize     *int       `json:"batch_size,omitempty"`
	RetryAttempts *int       `json:"retry_attempts,omitempty"`
}

// Auth stores the application password at ~/.config/bam/auth.json.
type Auth struct {
	SiteURL     string `json:"site_url"`
	Username    string `json:"username"`
	AppPassword string `json:"app_password"`
}

// Settings is the resolved configuration after env overrides and defaults
type Settings struct {
	SiteURL       string
	Namespace     string
	Username      string
	AppPassword   string
	Debounce      time.Duration
	BatchSize     int
	RetryAttempts int
}

// Dir returns ~/.config/bam, creating it if necessary.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "bam")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads config.json. A missing file yields an empty config.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config.json: %w", err)
	}
	return &cfg, nil
}

// Save writes config.json atomically
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return writeAtomic(dir, "config.json", cfg, 0644)
}

// LoadAuth reads auth.json; nil when absent
func LoadAuth() (*Auth, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var a Auth
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse auth.json: %w", err)
	}
	return &a, nil
}

// SaveAuth writes auth.json with 0600 permissions
func SaveAuth(a *Auth) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return writeAtomic(dir, "auth.json", a, 0600)
}

// ClearAuth removes auth.json
func ClearAuth() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "auth.json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// writeAtomic writes v as indented JSON through a temp file and rename
func writeAtomic(dir, name string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, name))
}

// Resolve merges env, config.json and auth.json.
// Priority for every field: BAM_* env > file > default.
func Resolve() (*Settings, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	auth, err := LoadAuth()
	if err != nil {
		return nil, err
	}
	if auth == nil {
		auth = &Auth{}
	}

	s := &Settings{
		SiteURL:       firstNonEmpty(os.Getenv("BAM_SITE_URL"), cfg.Site.URL, auth.SiteURL),
		Namespace:     firstNonEmpty(os.Getenv("BAM_NAMESPACE"), cfg.Site.Namespace, wpclient.DefaultNamespace),
		Username:      firstNonEmpty(os.Getenv("BAM_USER"), cfg.Site.Username, auth.Username),
		AppPassword:   firstNonEmpty(os.Getenv("BAM_APP_PASSWORD"), auth.AppPassword),
		Debounce:      durationSetting("BAM_DEBOUNCE", cfg.Debounce, delayed.DefaultDelay),
		BatchSize:     positiveInt("BAM_BATCH_SIZE", cfg.BatchSize, reconcile.DefaultBatchSize),
		RetryAttempts: positiveInt("BAM_RETRY_ATTEMPTS", cfg.RetryAttempts, delayed.DefaultRetryPolicy().MaxAttempts),
	}
	s.SiteURL = strings.TrimRight(s.SiteURL, "/")
	return s, nil
}

// Validate reports whether the settings are enough to reach the site
func (s *Settings) Validate() error {
	if s.SiteURL == "" {
		return ErrNoSite
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// durationSetting parses env, then the config value, then falls back to def.
// Unparseable or non-positive values are skipped.
func durationSetting(envKey, fromConfig string, def time.Duration) time.Duration {
	for _, v := range []string{os.Getenv(envKey), fromConfig} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func positiveInt(envKey string, fromConfig *int, def int) int {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if fromConfig != nil && *fromConfig > 0 {
		return *fromConfig
	}
	return def
}
