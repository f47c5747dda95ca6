package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	"github.com/alnah/go-mdview/internal/config"
	"github.com/alnah/go-mdview/internal/fileutil"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	Chrome   chromeInfo `json:"chrome"`
	Assets   assetsInfo `json:"assets"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results. Chrome is only
// needed by "snapshot", so a missing browser is a warning.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// assetsInfo holds the configured asset locations.
type assetsInfo struct {
	MathStylesheet string `json:"math_stylesheet,omitempty"`
	DiagramScript  string `json:"diagram_script,omitempty"`
	KaTeXScript    string `json:"katex_script,omitempty"`
	KaTeXFound     bool   `json:"katex_found"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
	BrowserBin    string `json:"rod_browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found, 2 = bad usage.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	var configName string
	var jsonOutput bool
	fs.StringVarP(&configName, "config", "c", "", "config file name or path")
	fs.BoolVar(&jsonOutput, "json", false, "print results as JSON")
	if err := parseFlagSet(fs, args, printDoctorUsage, env.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return ExitUsage
	}

	result := runDoctor(configName)

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(configName string) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  os.Getenv("ROD_NO_SANDBOX"),
			BrowserBin: os.Getenv("ROD_BROWSER_BIN"),
		},
	}

	checkChrome(result)
	checkEnvironment(result)
	checkAssets(result, configName)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkChrome detects Chrome/Chromium installation.
func checkChrome(result *doctorResult) {
	chromePath := result.Env.BrowserBin

	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			result.Warnings = append(result.Warnings,
				"Chrome/Chromium not found, snapshot is unavailable. Install Chrome or set ROD_BROWSER_BIN")
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	out, err := exec.Command(chromePath, "--version").Output() // #nosec G204 -- path from ROD_BROWSER_BIN or launcher lookup
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	result.Chrome.Sandbox = result.Env.NoSandbox != "1"
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if result.Chrome.Found && (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv(envContainer) == "1" {
		return true, envContainer + "=1"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkAssets loads the configuration and verifies the asset settings.
func checkAssets(result *doctorResult, configName string) {
	cfg, err := loadConfig(configName)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Configuration: %v", err))
		return
	}

	result.Assets = assetsInfo{
		MathStylesheet: cfg.Assets.MathStylesheet,
		DiagramScript:  cfg.Assets.DiagramScript,
		KaTeXScript:    cfg.Assets.KaTeXScript,
	}
	if cfg.Assets.DiagramScript == "" {
		result.Warnings = append(result.Warnings,
			"No diagram script configured, mermaid blocks render as code")
	}
	checkKaTeX(result, cfg)
}

func checkKaTeX(result *doctorResult, cfg *config.Config) {
	script := cfg.Assets.KaTeXScript
	if script == "" {
		return
	}
	if fileutil.IsURL(script) {
		// Fetched on first use
		result.Assets.KaTeXFound = true
		return
	}
	if !fileutil.FileExists(script) {
		result.Errors = append(result.Errors, fmt.Sprintf("KaTeX script not found: %s", script))
		return
	}
	result.Assets.KaTeXFound = true
}

// checkSystem verifies system requirements.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "mdview-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		_ = os.Remove(testFile)
		result.System.TempWritable = true
	}
}

// Report line markers.
const (
	markOK    = "[OK]"
	markWarn  = "[WARN]"
	markError = "[ERROR]"
)

// reportLine is one marked line of the human-readable report.
type reportLine struct {
	mark, text string
}

// reportSection is a titled group of report lines. Empty sections are skipped.
type reportSection struct {
	title string
	lines []reportLine
}

func (s *reportSection) add(mark, format string, args ...any) {
	s.lines = append(s.lines, reportLine{mark: mark, text: fmt.Sprintf(format, args...)})
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "mdview doctor")
	fmt.Fprintln(w)

	for _, sec := range doctorSections(r) {
		if len(sec.lines) == 0 {
			continue
		}
		fmt.Fprintln(w, sec.title)
		for _, l := range sec.lines {
			fmt.Fprintf(w, "  %s %s\n", l.mark, l.text)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Status: %s\n", statusText[r.Status])
}

var statusText = map[string]string{
	"ready":    "Ready",
	"warnings": "Ready with warnings",
	"errors":   "Not ready (see errors above)",
}

func doctorSections(r *doctorResult) []reportSection {
	chrome := reportSection{title: "Chrome/Chromium"}
	switch {
	case !r.Chrome.Found:
		chrome.add(markWarn, "Not found (snapshot unavailable)")
	default:
		chrome.add(markOK, "Found at %s", r.Chrome.Path)
		if r.Chrome.Version != "" {
			chrome.add(markOK, "Version: %s", r.Chrome.Version)
		}
		sandbox := "enabled"
		if !r.Chrome.Sandbox {
			sandbox = "disabled (ROD_NO_SANDBOX=1)"
		}
		chrome.add(markOK, "Sandbox: %s", sandbox)
	}

	assets := reportSection{title: "Assets"}
	for _, a := range []struct{ label, url string }{
		{"Math stylesheet", r.Assets.MathStylesheet},
		{"Diagram script", r.Assets.DiagramScript},
	} {
		if a.url == "" {
			assets.add(markWarn, "%s: not configured", a.label)
		} else {
			assets.add(markOK, "%s: %s", a.label, a.url)
		}
	}
	switch {
	case r.Assets.KaTeXScript == "":
		assets.add(markOK, "KaTeX: not configured (math shown as TeX)")
	case r.Assets.KaTeXFound:
		assets.add(markOK, "KaTeX: %s", r.Assets.KaTeXScript)
	default:
		assets.add(markError, "KaTeX: %s missing", r.Assets.KaTeXScript)
	}

	env := reportSection{title: "Environment"}
	env.add(markOK, "Platform: %s/%s", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		env.add(markOK, "Container: detected (%s)", r.Env.ContainerHint)
	}
	if r.Env.CI {
		env.add(markOK, "CI: detected")
	}

	system := reportSection{title: "System"}
	if r.System.TempWritable {
		system.add(markOK, "Temp directory: writable")
	} else {
		system.add(markError, "Temp directory: not writable")
	}

	warnings := reportSection{title: "Warnings:"}
	for _, msg := range r.Warnings {
		warnings.add(markWarn, "%s", msg)
	}
	errs := reportSection{title: "Errors:"}
	for _, msg := range r.Errors {
		errs.add(markError, "%s", msg)
	}

	return []reportSection{chrome, assets, env, system, warnings, errs}
}
