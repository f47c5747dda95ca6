package assets

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeTheme(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"dark":    DarkTheme,
		" Dark ":  DarkTheme,
		"light":   LightTheme,
		"":        LightTheme,
		"unknown": LightTheme,
	}
	for in, want := range tests {
		if got := NormalizeTheme(in); got != want {
			t.Errorf("NormalizeTheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPageCSS(t *testing.T) {
	t.Parallel()

	loader := NewEmbeddedLoader()

	css, err := PageCSS(loader, "dark")
	if err != nil {
		t.Fatalf("PageCSS() error: %v", err)
	}
	if !strings.Contains(css, ".markdown-body") || !strings.Contains(css, "#0d1117") {
		t.Error("PageCSS(dark) should contain base and dark styles")
	}

	light, err := PageCSS(loader, "")
	if err != nil {
		t.Fatalf("PageCSS() error: %v", err)
	}
	if strings.Contains(light, "#0d1117") {
		t.Error("PageCSS(light) should not contain dark palette")
	}
}

type missingLoader struct{}

func (missingLoader) LoadStyle(name string) (string, error)    { return "", ErrStyleNotFound }
func (missingLoader) LoadTemplate(name string) (string, error) { return "", ErrTemplateNotFound }

func TestPageCSS_MissingStyle(t *testing.T) {
	t.Parallel()

	if _, err := PageCSS(missingLoader{}, "dark"); !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("PageCSS() error = %v, want ErrStyleNotFound", err)
	}
}
