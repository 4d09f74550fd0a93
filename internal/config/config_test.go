package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var testKeyHex = strings.Repeat("a", 64)

// TestNewConfig documents the default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default backend is local", func(t *testing.T) {
		t.Parallel()
		if cfg.Backend != BackendLocal {
			t.Errorf("expected Backend to be %q, got %q", BackendLocal, cfg.Backend)
		}
	})

	t.Run("default store is inside the XDG data dir", func(t *testing.T) {
		t.Parallel()
		want := filepath.Join(XDGDataDir(), "drives")
		if cfg.StoreDir != want {
			t.Errorf("expected StoreDir %q, got %q", want, cfg.StoreDir)
		}
	})

	t.Run("default order is lifo", func(t *testing.T) {
		t.Parallel()
		if cfg.Order != "lifo" {
			t.Errorf("expected Order to be lifo, got %q", cfg.Order)
		}
	})

	t.Run("default Timeout is 60 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 60*time.Second {
			t.Errorf("expected Timeout to be 60s, got %v", cfg.Timeout)
		}
	})

	t.Run("default Concurrency is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 4 {
			t.Errorf("expected Concurrency to be 4, got %d", cfg.Concurrency)
		}
	})

	t.Run("no delay and no mount by default", func(t *testing.T) {
		t.Parallel()
		if cfg.Delay != 0 || cfg.Mount || cfg.EmbeddedTor {
			t.Errorf("unexpected defaults: delay=%v mount=%v tor=%v", cfg.Delay, cfg.Mount, cfg.EmbeddedTor)
		}
	})

	t.Run("default TorStartupTimeout is 3 minutes", func(t *testing.T) {
		t.Parallel()
		if cfg.TorStartupTimeout != 3*time.Minute {
			t.Errorf("expected TorStartupTimeout to be 3m, got %v", cfg.TorStartupTimeout)
		}
	})
}

// TestConfigValidate tests one validation rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Seeds = []string{testKeyHex}
		cfg.StoreDir = "/tmp/drives"
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "valid config", modify: func(*Config) {}, want: nil},
		{name: "valid remote config", modify: func(c *Config) { c.Backend = BackendRemote }, want: nil},
		{name: "no seeds", modify: func(c *Config) { c.Seeds = nil }, want: ErrNoSeeds},
		{name: "root key instead of seeds", modify: func(c *Config) {
			c.Seeds = nil
			c.RootKey = testKeyHex
		}, want: nil},
		{name: "unknown backend", modify: func(c *Config) { c.Backend = "ftp" }, want: ErrInvalidBackend},
		{name: "local without store", modify: func(c *Config) { c.StoreDir = "" }, want: ErrMissingStoreDir},
		{name: "remote without endpoint", modify: func(c *Config) {
			c.Backend = BackendRemote
			c.Endpoint = ""
		}, want: ErrMissingEndpoint},
		{name: "mount without root key", modify: func(c *Config) { c.Mount = true }, want: ErrMissingRootKey},
		{name: "mount with root key", modify: func(c *Config) {
			c.Mount = true
			c.RootKey = testKeyHex
		}, want: nil},
		{name: "unknown order", modify: func(c *Config) { c.Order = "random" }, want: ErrInvalidOrder},
		{name: "fifo order", modify: func(c *Config) { c.Order = "fifo" }, want: nil},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, want: ErrInvalidTimeout},
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, want: ErrInvalidConcurrency},
		{name: "both report formats", modify: func(c *Config) {
			c.JSONReport = true
			c.MarkdownReport = true
		}, want: ErrConflictingReportFormats},
		{name: "negative delay", modify: func(c *Config) { c.Delay = -time.Second }, want: ErrInvalidDelay},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestFileDriveConfig tests merging per-drive settings onto defaults.
func TestFileDriveConfig(t *testing.T) {
	t.Parallel()

	other := strings.Repeat("b", 64)
	cf := &File{
		Defaults: DriveConfig{IgnorePatterns: []string{"tmp/*"}},
		Drives: map[string]DriveConfig{},
	}
	cf.Drives[testKeyHex] = DriveConfig{IgnorePatterns: []string{"drafts/*", "*.min.js"}}
	cf.Drives["hyper://"+other] = DriveConfig{Skip: true}
	cf.Drives[strings.Repeat("C", 64)] = DriveConfig{}

	t.Run("unknown drive gets defaults", func(t *testing.T) {
		t.Parallel()
		dc := cf.DriveConfig(strings.Repeat("d", 64))
		if len(dc.IgnorePatterns) != 1 || dc.IgnorePatterns[0] != "tmp/*" || dc.Skip {
			t.Errorf("unexpected config: %+v", dc)
		}
	})

	t.Run("drive patterns replace defaults", func(t *testing.T) {
		t.Parallel()
		dc := cf.DriveConfig(testKeyHex)
		if len(dc.IgnorePatterns) != 2 || dc.IgnorePatterns[0] != "drafts/*" {
			t.Errorf("unexpected patterns: %v", dc.IgnorePatterns)
		}
	})

	t.Run("scheme and case are ignored when matching", func(t *testing.T) {
		t.Parallel()
		dc := cf.DriveConfig(other)
		if !dc.Skip {
			t.Error("expected drive to be skipped")
		}
		if len(dc.IgnorePatterns) != 1 {
			t.Errorf("skip-only entry should keep default patterns, got %v", dc.IgnorePatterns)
		}
	})

	t.Run("skipped drives", func(t *testing.T) {
		t.Parallel()
		skipped := cf.SkippedDrives()
		if len(skipped) != 1 || skipped[0] != "hyper://"+other {
			t.Errorf("SkippedDrives() = %v", skipped)
		}
	})

	t.Run("nil drives map", func(t *testing.T) {
		t.Parallel()
		empty := &File{}
		if dc := empty.DriveConfig(testKeyHex); dc.Skip || len(dc.IgnorePatterns) != 0 {
			t.Errorf("unexpected config: %+v", dc)
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.hyperscrape")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".hyperscrape")
		content := `defaults:
  ignorePatterns:
    - "tmp/*"
drives:
  ` + testKeyHex + `:
    ignorePatterns:
      - "drafts/*"
    skip: true
exclusions:
  - node_modules
  - vendor
extensions:
  - .html
  - txt
seeds:
  - https://example.com/drives.html
  - hyper://` + testKeyHex + `
`
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Defaults.IgnorePatterns) != 1 {
			t.Errorf("expected 1 default pattern, got %v", cfg.Defaults.IgnorePatterns)
		}
		dc, ok := cfg.Drives[testKeyHex]
		if !ok {
			t.Fatal("expected drive entry")
		}
		if !dc.Skip || len(dc.IgnorePatterns) != 1 {
			t.Errorf("unexpected drive entry: %+v", dc)
		}
		if len(cfg.Exclusions) != 2 || cfg.Exclusions[1] != "vendor" {
			t.Errorf("unexpected exclusions: %v", cfg.Exclusions)
		}
		if len(cfg.Extensions) != 2 || cfg.Extensions[1] != "txt" {
			t.Errorf("unexpected extensions: %v", cfg.Extensions)
		}
		if len(cfg.Seeds) != 2 {
			t.Errorf("unexpected seeds: %v", cfg.Seeds)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".hyperscrape")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Drives map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".hyperscrape")
		if err := os.WriteFile(configPath, []byte("seeds: []\n"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Drives == nil {
			t.Error("expected Drives map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"cache":  XDGCacheDir(),
	} {
		if dir == "" || filepath.Base(dir) != AppName {
			t.Errorf("XDG %s dir = %q, want a path ending in %q", name, dir, AppName)
		}
	}
}
