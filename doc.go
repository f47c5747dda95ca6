// Package mdview renders untrusted markdown into sanitized HTML for display.
//
// # Quick Start
//
// Render a document once:
//
//	r := mdview.NewRenderer(
//	    mdview.WithBasePath("/app"),
//	    mdview.WithStorageRoot("alice"),
//	)
//	res, err := r.Render(ctx, mdview.Input{
//	    Content: "# Title\n\n![logo](./logo.png)",
//	    DocPath: "/docs/page.md",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.HTML) // <h1 id="title">Title</h1> ... src="/app/d/alice/docs/logo.png"
//
// Text that is not markdown is shown verbatim as a fenced block when an
// extension hint is given:
//
//	res, _ := r.Render(ctx, mdview.Input{Content: `{"a":1}`, Ext: "json"})
//
// # Render Pipeline
//
//  1. Preprocessing: non-markdown text is fenced, relative image targets
//     are rewritten to <base-path>/d/<storage-root><resolved-path>
//  2. Feature detection: math ($...$, $$...$$) and mermaid diagram fences
//  3. Parse (goldmark with tables, strikethrough, task lists, heading ids),
//     optional math syntax, HTML conversion keeping raw HTML
//  4. Sanitization (bluemonday) with a code class rule
//  5. Optional math rendering, then stringification and TOC extraction
//
// # Render Cycles
//
// A Session drives repeated renders of one mounted Document, hiding it
// while a cycle is in flight, discarding results of superseded cycles, and
// running code highlighting and diagrams once the HTML is revealed:
//
//	doc := mdview.NewDocument()
//	lazy := mdview.NewLazyLoader(doc, mdview.AssetURLs{DiagramScript: scriptURL}, 10*time.Second, nil)
//	s := mdview.NewSession(doc, r.ForPage(lazy))
//	cycle, err := s.Update(ctx, mdview.Input{Content: md}, "dark")
//
// A Navigator scrolls a Viewport to a TOC entry, keeping it clear of the
// fixed navigation bar.
package mdview
