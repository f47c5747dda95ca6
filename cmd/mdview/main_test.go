package main

// Notes:
// - runMain: we test exit codes and routing through in-memory writers.
//   Rendering itself is covered in render_test.go, serving in serve_test.go.

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// newTestEnv returns an Environment writing to buffers.
func newTestEnv() (*Environment, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &Environment{Stdout: &stdout, Stderr: &stderr}, &stdout, &stderr
}

// ---------------------------------------------------------------------------
// TestRunMain - Command routing and exit codes
// ---------------------------------------------------------------------------

func TestRunMain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"no command", []string{"mdview"}, ExitUsage, "", "Usage: mdview"},
		{"unknown command", []string{"mdview", "convert"}, ExitUsage, "", "unknown command: convert"},
		{"version", []string{"mdview", "version"}, ExitSuccess, "mdview " + Version, ""},
		{"version flag", []string{"mdview", "--version"}, ExitSuccess, "mdview ", ""},
		{"help", []string{"mdview", "help"}, ExitSuccess, "Commands:", ""},
		{"help render", []string{"mdview", "help", "render"}, ExitSuccess, "--fragment", ""},
		{"render without input", []string{"mdview", "render"}, ExitIO, "", "no input file specified"},
		{"render bad flag", []string{"mdview", "render", "--bogus"}, ExitUsage, "", "invalid usage"},
		{"render missing file", []string{"mdview", "render", "/nonexistent/doc.md"}, ExitIO, "", "failed to read input file"},
		{"render help", []string{"mdview", "render", "--help"}, ExitSuccess, "", "Usage: mdview render"},
		{"snapshot without input", []string{"mdview", "snapshot"}, ExitIO, "", "no input file specified"},
		{"config", []string{"mdview", "config"}, ExitSuccess, "server:", ""},
		{"config missing file", []string{"mdview", "config", "-c", "/nonexistent/mdview.yaml"}, ExitUsage, "", "config file not found"},
		{"serve bad theme", []string{"mdview", "serve", "--theme", "sepia"}, ExitUsage, "", "render.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, stdout, stderr := newTestEnv()
			code := runMain(context.Background(), tt.args, env)

			if code != tt.wantCode {
				t.Errorf("runMain() = %d, want %d\nstderr: %s", code, tt.wantCode, stderr.String())
			}
			if tt.wantStdout != "" && !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout missing %q:\n%s", tt.wantStdout, stdout.String())
			}
			if tt.wantStderr != "" && !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantStderr, stderr.String())
			}
		})
	}
}
