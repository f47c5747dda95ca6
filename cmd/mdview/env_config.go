package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-mdview/internal/config"
	"github.com/alnah/go-mdview/internal/hints"
)

// envConfig holds configuration from environment variables.
// Provides CI-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string // MDVIEW_CONFIG: config file name or path

	// Server and storage
	Host        string // MDVIEW_HOST
	Port        int    // MDVIEW_PORT
	BasePath    string // MDVIEW_BASE_PATH
	StorageDir  string // MDVIEW_STORAGE_DIR
	StorageRoot string // MDVIEW_STORAGE_ROOT

	// Rendering
	Theme   string // MDVIEW_THEME
	Charset string // MDVIEW_CHARSET

	// Assets
	MathStylesheet string        // MDVIEW_MATH_STYLESHEET
	DiagramScript  string        // MDVIEW_DIAGRAM_SCRIPT
	KaTeXScript    string        // MDVIEW_KATEX_SCRIPT
	FetchTimeout   time.Duration // MDVIEW_FETCH_TIMEOUT

	BrowserTimeout time.Duration // MDVIEW_BROWSER_TIMEOUT
}

// envContainer forces container detection in doctor.
const envContainer = "MDVIEW_CONTAINER"

// knownEnvVars lists valid MDVIEW_* environment variables.
// Used to warn about typos.
var knownEnvVars = map[string]bool{
	"MDVIEW_CONFIG":          true,
	"MDVIEW_HOST":            true,
	"MDVIEW_PORT":            true,
	"MDVIEW_BASE_PATH":       true,
	"MDVIEW_STORAGE_DIR":     true,
	"MDVIEW_STORAGE_ROOT":    true,
	"MDVIEW_THEME":           true,
	"MDVIEW_CHARSET":         true,
	"MDVIEW_MATH_STYLESHEET": true,
	"MDVIEW_DIAGRAM_SCRIPT":  true,
	"MDVIEW_KATEX_SCRIPT":    true,
	"MDVIEW_FETCH_TIMEOUT":   true,
	"MDVIEW_BROWSER_TIMEOUT": true,
	envContainer:             true,
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numbers and durations are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath:     os.Getenv("MDVIEW_CONFIG"),
		Host:           os.Getenv("MDVIEW_HOST"),
		BasePath:       os.Getenv("MDVIEW_BASE_PATH"),
		StorageDir:     os.Getenv("MDVIEW_STORAGE_DIR"),
		StorageRoot:    os.Getenv("MDVIEW_STORAGE_ROOT"),
		Theme:          os.Getenv("MDVIEW_THEME"),
		Charset:        os.Getenv("MDVIEW_CHARSET"),
		MathStylesheet: os.Getenv("MDVIEW_MATH_STYLESHEET"),
		DiagramScript:  os.Getenv("MDVIEW_DIAGRAM_SCRIPT"),
		KaTeXScript:    os.Getenv("MDVIEW_KATEX_SCRIPT"),
	}

	if port := os.Getenv("MDVIEW_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	cfg.FetchTimeout = envDuration("MDVIEW_FETCH_TIMEOUT")
	cfg.BrowserTimeout = envDuration("MDVIEW_BROWSER_TIMEOUT")

	return cfg
}

func envDuration(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// warnUnknownEnvVars writes a warning for each unrecognized MDVIEW_* variable.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "MDVIEW_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies set environment values over cfg.
// Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied afterwards).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Host != "" {
		cfg.Server.Host = env.Host
	}
	if env.Port > 0 {
		cfg.Server.Port = env.Port
	}
	if env.BasePath != "" {
		cfg.Server.BasePath = env.BasePath
	}
	if env.StorageDir != "" {
		cfg.Storage.Dir = env.StorageDir
	}
	if env.StorageRoot != "" {
		cfg.Storage.Root = env.StorageRoot
	}

	if env.Theme != "" {
		cfg.Render.Theme = env.Theme
	}
	if env.Charset != "" {
		cfg.Render.Charset = env.Charset
	}

	if env.MathStylesheet != "" {
		cfg.Assets.MathStylesheet = env.MathStylesheet
	}
	if env.DiagramScript != "" {
		cfg.Assets.DiagramScript = env.DiagramScript
	}
	if env.KaTeXScript != "" {
		cfg.Assets.KaTeXScript = env.KaTeXScript
	}
	if env.FetchTimeout > 0 {
		cfg.Assets.FetchTimeout = env.FetchTimeout
	}
	if env.BrowserTimeout > 0 {
		cfg.Browser.Timeout = env.BrowserTimeout
	}
}

// loadConfig loads the config named by --config, falling back to
// MDVIEW_CONFIG, then defaults, and applies environment overrides.
func loadConfig(nameOrPath string) (*config.Config, error) {
	env := loadEnvConfig()
	if nameOrPath == "" {
		nameOrPath = env.ConfigPath
	}

	cfg := config.DefaultConfig()
	if nameOrPath != "" {
		var err error
		cfg, err = config.LoadConfig(nameOrPath)
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, fmt.Errorf("loading config: %w%s", err, hints.ForConfigNotFound(config.SearchPaths(nameOrPath)))
		}
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	applyEnvConfig(env, cfg)
	return cfg, nil
}
