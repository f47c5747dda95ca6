// Package config loads and validates go-mdview YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-mdview/internal/fileutil"
	"github.com/alnah/go-mdview/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// AppName names the user config directory (~/.config/go-mdview).
const AppName = "go-mdview"

// Field length limits.
const (
	MaxHostLength    = 253  // DNS name
	MaxPathLength    = 1024 // Base path, storage root, directories
	MaxURLLength     = 2048 // Browser limit
	MaxThemeLength   = 10   // "light", "dark"
	MaxCharsetLength = 40   // WHATWG labels are short
)

// Defaults applied by DefaultConfig.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8080
	DefaultTheme          = "light"
	DefaultFetchTimeout   = 10 * time.Second
	DefaultBrowserTimeout = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
	MaxViewportDimension  = 10000
)

// Config holds all configuration for rendering and serving documents.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Render  RenderConfig  `yaml:"render"`
	Assets  AssetsConfig  `yaml:"assets"`
	Browser BrowserConfig `yaml:"browser"`
}

// ServerConfig defines the live preview server.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	BasePath string `yaml:"basePath"` // Content-serving base path, prefixed to image URLs ("" = root)
}

// StorageConfig defines where documents live.
type StorageConfig struct {
	Dir  string `yaml:"dir"`  // Directory served by "serve" (empty = current directory)
	Root string `yaml:"root"` // Storage root segment inserted after /d/ in asset URLs
}

// RenderConfig defines rendering defaults.
type RenderConfig struct {
	Theme     string `yaml:"theme"`     // "light" or "dark"
	ShowTOC   bool   `yaml:"showTOC"`   // Render the table of contents
	Readme    bool   `yaml:"readme"`    // Resolve relative images against the document itself
	Charset   string `yaml:"charset"`   // Charset label for byte input (empty = UTF-8)
	Highlight bool   `yaml:"highlight"` // Highlight code blocks after mount
}

// AssetsConfig defines asset loading options.
type AssetsConfig struct {
	BasePath       string        `yaml:"basePath"`       // Custom styles/templates directory (empty = embedded)
	MathStylesheet string        `yaml:"mathStylesheet"` // Math stylesheet URL, opaque
	DiagramScript  string        `yaml:"diagramScript"`  // Diagram engine script URL, opaque
	KaTeXScript    string        `yaml:"katexScript"`    // Local katex.min.js for server-side math (empty = delimiters only)
	FetchTimeout   time.Duration `yaml:"fetchTimeout"`   // Diagram script fetch timeout
}

// BrowserConfig defines the headless browser used by "snapshot".
type BrowserConfig struct {
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate checks field lengths and value ranges.
// Called automatically by LoadConfig, but available for consumers
// who construct Config manually (e.g., library users).
func (c *Config) Validate() error {
	if err := validateFieldLength("server.host", c.Server.Host, MaxHostLength); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port: must be between 0 and 65535, got %d", ErrInvalidValue, c.Server.Port)
	}
	if err := validateURLPath("server.basePath", c.Server.BasePath, true); err != nil {
		return err
	}

	if err := validateFieldLength("storage.dir", c.Storage.Dir, MaxPathLength); err != nil {
		return err
	}
	if err := validateURLPath("storage.root", c.Storage.Root, false); err != nil {
		return err
	}

	if err := validateFieldLength("render.theme", c.Render.Theme, MaxThemeLength); err != nil {
		return err
	}
	switch strings.ToLower(c.Render.Theme) {
	case "", "light", "dark":
		// valid
	default:
		return fmt.Errorf("%w: render.theme: %q (must be light or dark)", ErrInvalidValue, c.Render.Theme)
	}
	if err := validateFieldLength("render.charset", c.Render.Charset, MaxCharsetLength); err != nil {
		return err
	}

	if err := validateFieldLength("assets.basePath", c.Assets.BasePath, MaxPathLength); err != nil {
		return err
	}
	for _, f := range []struct{ name, value string }{
		{"assets.mathStylesheet", c.Assets.MathStylesheet},
		{"assets.diagramScript", c.Assets.DiagramScript},
		{"assets.katexScript", c.Assets.KaTeXScript},
	} {
		if err := validateFieldLength(f.name, f.value, MaxURLLength); err != nil {
			return err
		}
	}
	if c.Assets.FetchTimeout < 0 {
		return fmt.Errorf("%w: assets.fetchTimeout: must not be negative", ErrInvalidValue)
	}

	if c.Browser.Width < 0 || c.Browser.Width > MaxViewportDimension {
		return fmt.Errorf("%w: browser.width: must be between 0 and %d, got %d", ErrInvalidValue, MaxViewportDimension, c.Browser.Width)
	}
	if c.Browser.Height < 0 || c.Browser.Height > MaxViewportDimension {
		return fmt.Errorf("%w: browser.height: must be between 0 and %d, got %d", ErrInvalidValue, MaxViewportDimension, c.Browser.Height)
	}
	if c.Browser.Timeout < 0 {
		return fmt.Errorf("%w: browser.timeout: must not be negative", ErrInvalidValue)
	}

	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// validateURLPath checks a URL path segment used to build asset URLs.
// When absolute is set, a non-empty value must start with "/".
func validateURLPath(fieldName, value string, absolute bool) error {
	if err := validateFieldLength(fieldName, value, MaxPathLength); err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	if absolute && !strings.HasPrefix(value, "/") {
		return fmt.Errorf("%w: %s: must start with \"/\", got %q", ErrInvalidValue, fieldName, value)
	}
	if strings.ContainsAny(value, "?#\\\x00") {
		return fmt.Errorf("%w: %s: contains a reserved character", ErrInvalidValue, fieldName)
	}
	for _, seg := range strings.Split(value, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %s: must not contain \"..\"", ErrInvalidValue, fieldName)
		}
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: DefaultHost, Port: DefaultPort},
		Render: RenderConfig{Theme: DefaultTheme, Highlight: true},
		Assets: AssetsConfig{FetchTimeout: DefaultFetchTimeout},
		Browser: BrowserConfig{
			Width:   DefaultViewportWidth,
			Height:  DefaultViewportHeight,
			Timeout: DefaultBrowserTimeout,
		},
	}
}

// CleanBasePath normalizes a base path for URL building: "" and "/" both
// become "", anything else is cleaned without a trailing slash.
func CleanBasePath(p string) string {
	if p == "" {
		return ""
	}
	p = path.Clean("/" + p)
	if p == "/" {
		return ""
	}
	return p
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Fields missing from the file keep their DefaultConfig values.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	f, err := os.Open(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg := DefaultConfig()
	if err := yamlutil.ReadStrict(f, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yamlutil.Marshal(c)
}

// SearchPaths returns the files LoadConfig tries for nameOrPath, in order.
// A path is returned as-is; a name expands to ./name.yaml, ./name.yml and the
// same files under the user config directory.
func SearchPaths(nameOrPath string) []string {
	if fileutil.IsFilePath(nameOrPath) {
		return []string{nameOrPath}
	}

	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)
	for _, ext := range extensions {
		paths = append(paths, nameOrPath+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, AppName, nameOrPath+ext))
		}
	}
	return paths
}

// resolveConfigPath returns the first existing file of SearchPaths(name).
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}
