package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdview <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  render     Render a document to sanitized HTML")
	fmt.Fprintln(w, "  serve      Serve documents with live preview")
	fmt.Fprintln(w, "  snapshot   Capture a rendered document in headless Chrome")
	fmt.Fprintln(w, "  config     Print the effective configuration")
	fmt.Fprintln(w, "  doctor     Check system configuration")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'mdview help <command>' for details on a specific command.")
}

func printCommonUsage(w io.Writer) {
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show debug logs")
}

func printDocumentUsage(w io.Writer) {
	fmt.Fprintln(w, "Document:")
	fmt.Fprintln(w, "      --ext <s>             Extension hint; non-markdown text is shown verbatim")
	fmt.Fprintln(w, "      --readme              Resolve relative images against the document itself")
	fmt.Fprintln(w, "      --toc                 Show the table of contents")
	fmt.Fprintln(w, "      --no-toc              Hide the table of contents")
	fmt.Fprintln(w, "      --theme <s>           Theme: light, dark")
	fmt.Fprintln(w, "      --charset <s>         Input encoding, e.g. windows-1252")
	fmt.Fprintln(w, "      --no-highlight        Disable code highlighting")
	fmt.Fprintln(w)
}

// printRenderUsage prints usage for the render command.
func printRenderUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdview render <file> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render a document into the page shell, or as a bare fragment.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file (default: stdout)")
	fmt.Fprintln(w, "      --fragment            Sanitized fragment only, no page shell")
	fmt.Fprintln(w, "      --toc-json <path>     Write table of contents entries as JSON")
	fmt.Fprintln(w)
	printDocumentUsage(w)
	printCommonUsage(w)
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdview serve [dir] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Serve documents under dir with live preview.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Routes (under --base-path):")
	fmt.Fprintln(w, "  /view/<path>              Rendered page, re-rendered on file changes")
	fmt.Fprintln(w, "  /d/<root>/<path>          Raw documents and images")
	fmt.Fprintln(w, "  /ws?path=<path>           Live render cycles")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "      --host <s>            Listen host (default: 127.0.0.1)")
	fmt.Fprintln(w, "  -p, --port <n>            Listen port (default: 8080)")
	fmt.Fprintln(w, "      --base-path <s>       Content-serving base path, e.g. /app")
	fmt.Fprintln(w, "      --storage-root <s>    Storage root segment after /d/")
	fmt.Fprintln(w)
	printDocumentUsage(w)
	printCommonUsage(w)
}

// printSnapshotUsage prints usage for the snapshot command.
func printSnapshotUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdview snapshot <file> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render a document, open it in headless Chrome, optionally scroll to a")
	fmt.Fprintln(w, "table of contents entry, and save a PNG screenshot.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Snapshot:")
	fmt.Fprintln(w, "  -a, --anchor <key>        Heading key to scroll to (see --toc-json)")
	fmt.Fprintln(w, "  -o, --output <path>       Output PNG (default: snapshot.png)")
	fmt.Fprintln(w, "      --width <n>           Viewport width (default: 1280)")
	fmt.Fprintln(w, "      --height <n>          Viewport height (default: 800)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Page load timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w)
	printDocumentUsage(w)
	printCommonUsage(w)
}

// printConfigUsage prints usage for the config command.
func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdview config [--config <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Print the effective configuration as YAML (defaults, file, environment).")
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mdview doctor [--config <name>] [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check Chrome, asset settings and the environment.")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}

	switch args[0] {
	case "render":
		printRenderUsage(env.Stdout)
	case "serve":
		printServeUsage(env.Stdout)
	case "snapshot":
		printSnapshotUsage(env.Stdout)
	case "config":
		printConfigUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: mdview version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: mdview help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
	}
}
