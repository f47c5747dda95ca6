package main

// Notes:
// - These tests modify environment variables and cannot use t.Parallel().
// - loadConfig: we test precedence (env over file over defaults) through the
//   returned config, not the intermediate envConfig.

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-mdview/internal/config"
)

// ---------------------------------------------------------------------------
// TestLoadEnvConfig - Environment parsing
// ---------------------------------------------------------------------------

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("MDVIEW_HOST", "0.0.0.0")
	t.Setenv("MDVIEW_PORT", "9090")
	t.Setenv("MDVIEW_BASE_PATH", "/app")
	t.Setenv("MDVIEW_STORAGE_ROOT", "alice")
	t.Setenv("MDVIEW_THEME", "dark")
	t.Setenv("MDVIEW_FETCH_TIMEOUT", "3s")
	t.Setenv("MDVIEW_BROWSER_TIMEOUT", "1m")

	env := loadEnvConfig()

	if env.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", env.Host)
	}
	if env.Port != 9090 {
		t.Errorf("Port = %d, want 9090", env.Port)
	}
	if env.BasePath != "/app" {
		t.Errorf("BasePath = %q, want /app", env.BasePath)
	}
	if env.StorageRoot != "alice" {
		t.Errorf("StorageRoot = %q, want alice", env.StorageRoot)
	}
	if env.Theme != "dark" {
		t.Errorf("Theme = %q, want dark", env.Theme)
	}
	if env.FetchTimeout != 3*time.Second {
		t.Errorf("FetchTimeout = %v, want 3s", env.FetchTimeout)
	}
	if env.BrowserTimeout != time.Minute {
		t.Errorf("BrowserTimeout = %v, want 1m", env.BrowserTimeout)
	}
}

func TestLoadEnvConfig_MalformedValuesIgnored(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", "MDVIEW_PORT", "http"},
		{"negative port", "MDVIEW_PORT", "-1"},
		{"bad duration", "MDVIEW_FETCH_TIMEOUT", "soon"},
		{"negative duration", "MDVIEW_BROWSER_TIMEOUT", "-5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			env := loadEnvConfig()
			if env.Port != 0 || env.FetchTimeout != 0 || env.BrowserTimeout != 0 {
				t.Errorf("malformed %s=%q was applied: %+v", tt.key, tt.value, env)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWarnUnknownEnvVars - Typo detection
// ---------------------------------------------------------------------------

func TestWarnUnknownEnvVars(t *testing.T) {
	t.Setenv("MDVIEW_THEM", "dark")
	t.Setenv("MDVIEW_THEME", "dark")

	var buf bytes.Buffer
	warnUnknownEnvVars(&buf)

	out := buf.String()
	if !strings.Contains(out, "MDVIEW_THEM ") {
		t.Errorf("expected warning for MDVIEW_THEM, got %q", out)
	}
	if strings.Contains(out, "MDVIEW_THEME") {
		t.Errorf("known variable reported as unknown: %q", out)
	}
}

// ---------------------------------------------------------------------------
// TestLoadConfig - Precedence
// ---------------------------------------------------------------------------

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("MDVIEW_CONFIG", "")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Server.Port != config.DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, config.DefaultPort)
	}
	if cfg.Render.Theme != config.DefaultTheme {
		t.Errorf("Theme = %q, want %q", cfg.Render.Theme, config.DefaultTheme)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mdview.yaml")
	content := "server:\n  port: 7000\n  host: example.local\nrender:\n  theme: light\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	t.Setenv("MDVIEW_CONFIG", path)
	t.Setenv("MDVIEW_THEME", "dark")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000 from file", cfg.Server.Port)
	}
	if cfg.Server.Host != "example.local" {
		t.Errorf("Host = %q, want example.local from file", cfg.Server.Host)
	}
	if cfg.Render.Theme != "dark" {
		t.Errorf("Theme = %q, want dark from env", cfg.Render.Theme)
	}
	if !cfg.Render.Highlight {
		t.Error("Highlight default lost when loading file")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("MDVIEW_CONFIG", "")

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Fatalf("loadConfig() error = %v, want ErrConfigNotFound", err)
	}
	if exitCodeFor(err) != ExitUsage {
		t.Errorf("exit code = %d, want %d", exitCodeFor(err), ExitUsage)
	}
	if !strings.Contains(err.Error(), "hint: use --config") {
		t.Errorf("error should carry a config hint, got %q", err.Error())
	}
}

func TestLoadConfig_MissingNameSuggestsUserDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honored on Linux")
	}
	t.Setenv("MDVIEW_CONFIG", "")
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	_, err := loadConfig("absent-config-xyz")
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Fatalf("loadConfig() error = %v, want ErrConfigNotFound", err)
	}
	want := "or create " + filepath.Join(home, config.AppName, "absent-config-xyz.yaml")
	if !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want hint containing %q", err.Error(), want)
	}
}
