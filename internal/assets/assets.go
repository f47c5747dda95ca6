package assets

import (
	"fmt"
	"strings"
)

// Built-in asset names.
const (
	// BaseStyleName is the layout style for the .markdown-body container.
	BaseStyleName = "markdown"

	// PageTemplateName is the page shell rendered fragments are mounted into.
	PageTemplateName = "page"

	LightTheme = "light"
	DarkTheme  = "dark"
)

// NormalizeTheme maps a theme name to "light" or "dark". Unknown names are light.
func NormalizeTheme(theme string) string {
	if strings.EqualFold(strings.TrimSpace(theme), DarkTheme) {
		return DarkTheme
	}
	return LightTheme
}

// PageCSS returns the base style followed by the theme style.
func PageCSS(loader AssetLoader, theme string) (string, error) {
	base, err := loader.LoadStyle(BaseStyleName)
	if err != nil {
		return "", fmt.Errorf("loading base style: %w", err)
	}
	themed, err := loader.LoadStyle(NormalizeTheme(theme))
	if err != nil {
		return "", fmt.Errorf("loading theme style: %w", err)
	}
	return base + "\n" + themed, nil
}
