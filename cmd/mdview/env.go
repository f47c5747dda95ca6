package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alnah/go-mdview/internal/assets"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout io.Writer
	Stderr io.Writer
	// AssetLoader overrides the loader resolved from assets.basePath.
	AssetLoader assets.AssetLoader
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// newLogger returns a text logger on w. Verbose enables debug records,
// quiet keeps only errors.
func newLogger(w io.Writer, f commonFlags) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case f.quiet:
		level = slog.LevelError
	case f.verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
