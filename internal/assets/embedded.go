package assets

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed styles/*.css templates/*.html
var builtin embed.FS

// EmbeddedLoader loads the built-in styles and page shell.
// Implements AssetLoader interface.
type EmbeddedLoader struct {
	files fs.FS
}

// NewEmbeddedLoader creates an EmbeddedLoader over the built-in assets.
func NewEmbeddedLoader() *EmbeddedLoader {
	return &EmbeddedLoader{files: builtin}
}

// LoadStyle loads a built-in CSS style (markdown, light, dark).
func (e *EmbeddedLoader) LoadStyle(name string) (string, error) {
	return e.read("styles/", name, ".css", ErrStyleNotFound)
}

// LoadTemplate loads a built-in template (page).
func (e *EmbeddedLoader) LoadTemplate(name string) (string, error) {
	return e.read("templates/", name, ".html", ErrTemplateNotFound)
}

// Names lists the built-in styles, without extension.
func (e *EmbeddedLoader) Names() ([]string, error) {
	matches, err := fs.Glob(e.files, "styles/*.css")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m[len("styles/") : len(m)-len(".css")]
	}
	return names, nil
}

func (e *EmbeddedLoader) read(dir, name, ext string, notFound error) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}

	content, err := fs.ReadFile(e.files, dir+name+ext)
	if err != nil {
		return "", fmt.Errorf("%w: %q", notFound, name)
	}

	return string(content), nil
}

// Compile-time interface check.
var _ AssetLoader = (*EmbeddedLoader)(nil)
