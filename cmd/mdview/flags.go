package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-mdview/internal/config"
)

// portSentinel detects if --port was explicitly set.
// Port 0 asks the kernel for a free port, so it cannot mean "unset".
const portSentinel = -1

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// documentFlags holds per-document rendering flags.
type documentFlags struct {
	ext         string
	readme      bool
	toc         bool
	noTOC       bool
	theme       string
	charset     string
	noHighlight bool
}

// renderFlags holds all flags for the render command.
type renderFlags struct {
	common   commonFlags
	document documentFlags
	fragment bool
	output   string
	tocJSON  string
}

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	common      commonFlags
	document    documentFlags
	host        string
	port        int
	basePath    string
	storageRoot string
}

// snapshotFlags holds all flags for the snapshot command.
type snapshotFlags struct {
	common   commonFlags
	document documentFlags
	anchor   string
	output   string
	width    int
	height   int
	timeout  string
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs")
}

// addDocumentFlags adds rendering flags to a FlagSet.
func addDocumentFlags(fs *flag.FlagSet, f *documentFlags) {
	fs.StringVar(&f.ext, "ext", "", "extension hint (default: from file name)")
	fs.BoolVar(&f.readme, "readme", false, "resolve relative images against the document itself")
	fs.BoolVar(&f.toc, "toc", false, "show the table of contents")
	fs.BoolVar(&f.noTOC, "no-toc", false, "hide the table of contents")
	fs.StringVar(&f.theme, "theme", "", "page theme: light, dark")
	fs.StringVar(&f.charset, "charset", "", "input encoding label (default: utf-8)")
	fs.BoolVar(&f.noHighlight, "no-highlight", false, "disable code highlighting")
}

// apply merges document flags into cfg. CLI values override config values.
func (f *documentFlags) apply(cfg *config.Config) {
	if f.readme {
		cfg.Render.Readme = true
	}
	if f.toc {
		cfg.Render.ShowTOC = true
	}
	if f.noTOC {
		cfg.Render.ShowTOC = false
	}
	if f.theme != "" {
		cfg.Render.Theme = f.theme
	}
	if f.charset != "" {
		cfg.Render.Charset = f.charset
	}
	if f.noHighlight {
		cfg.Render.Highlight = false
	}
}

// parseFlagSet parses args and maps pflag failures to ErrUsage.
// flag.ErrHelp is returned as-is after usage was printed.
func parseFlagSet(fs *flag.FlagSet, args []string, usage func(io.Writer), stderr io.Writer) error {
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// parseRenderFlags parses render command flags and returns positional args.
func parseRenderFlags(args []string, stderr io.Writer) (*renderFlags, []string, error) {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	f := &renderFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output file (default: stdout)")
	fs.BoolVar(&f.fragment, "fragment", false, "write the sanitized fragment only, without the page shell")
	fs.StringVar(&f.tocJSON, "toc-json", "", "write table of contents entries as JSON to this file")
	addCommonFlags(fs, &f.common)
	addDocumentFlags(fs, &f.document)

	if err := parseFlagSet(fs, args, printRenderUsage, stderr); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

// parseServeFlags parses serve command flags and returns positional args.
func parseServeFlags(args []string, stderr io.Writer) (*serveFlags, []string, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	f := &serveFlags{}

	fs.StringVar(&f.host, "host", "", "listen host")
	fs.IntVarP(&f.port, "port", "p", portSentinel, "listen port")
	fs.StringVar(&f.basePath, "base-path", "", "content-serving base path, e.g. /app")
	fs.StringVar(&f.storageRoot, "storage-root", "", "storage root segment after /d/")
	addCommonFlags(fs, &f.common)
	addDocumentFlags(fs, &f.document)

	if err := parseFlagSet(fs, args, printServeUsage, stderr); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

// apply merges server flags into cfg.
func (f *serveFlags) apply(cfg *config.Config) {
	f.document.apply(cfg)
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != portSentinel {
		cfg.Server.Port = f.port
	}
	if f.basePath != "" {
		cfg.Server.BasePath = f.basePath
	}
	if f.storageRoot != "" {
		cfg.Storage.Root = f.storageRoot
	}
}

// parseSnapshotFlags parses snapshot command flags and returns positional args.
func parseSnapshotFlags(args []string, stderr io.Writer) (*snapshotFlags, []string, error) {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	f := &snapshotFlags{}

	fs.StringVarP(&f.anchor, "anchor", "a", "", "table of contents key to scroll to")
	fs.StringVarP(&f.output, "output", "o", "snapshot.png", "output PNG file")
	fs.IntVar(&f.width, "width", 0, "viewport width in pixels")
	fs.IntVar(&f.height, "height", 0, "viewport height in pixels")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "page load timeout (e.g., 30s, 2m)")
	addCommonFlags(fs, &f.common)
	addDocumentFlags(fs, &f.document)

	if err := parseFlagSet(fs, args, printSnapshotUsage, stderr); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

// apply merges snapshot flags into cfg.
func (f *snapshotFlags) apply(cfg *config.Config) error {
	f.document.apply(cfg)
	if f.width > 0 {
		cfg.Browser.Width = f.width
	}
	if f.height > 0 {
		cfg.Browser.Height = f.height
	}
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return fmt.Errorf("%w: invalid --timeout %q: %v", ErrUsage, f.timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("%w: --timeout must be positive, got %s", ErrUsage, d)
		}
		cfg.Browser.Timeout = d
	}
	return nil
}
