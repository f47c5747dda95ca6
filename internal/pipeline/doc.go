// Package pipeline implements the markdown-to-HTML rendering pipeline.
//
// This package handles every stage between raw text and mountable HTML:
//   - Source preprocessing (fencing non-markdown text, image URL rewriting)
//   - Feature detection (math, diagrams) that decides which stages run
//   - Markdown parsing via Goldmark, with an optional $/$$ math syntax
//   - Sanitization against a safe HTML subset via bluemonday
//   - Math rendering and final stringification
//   - Table of contents collection from the parse tree or a mounted tree
//   - Post-mount passes: syntax highlighting (chroma) and diagram hydration
//
// Loading page assets (stylesheets, engine scripts) is handled by the
// internal/assets package; render cycles and navigation live in the root
// mdview package. This split keeps the pipeline a pure function of its input
// plus the collaborators it is built with.
package pipeline
