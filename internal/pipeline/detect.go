package pipeline

import "regexp"

// Detection patterns. They run on preprocessed text, before parsing.
var (
	// $$...$$ spanning any number of lines
	displayMathPattern = regexp.MustCompile(`(?s)\$\$.+?\$\$`)

	// $...$ on a single line with no embedded $
	inlineMathPattern = regexp.MustCompile(`\$[^$\n]+?\$`)

	// Fence line whose info string starts with mermaid
	diagramFencePattern = regexp.MustCompile("(?im)^[ \t]*(?:`{3,}|~{3,})[ \t]*mermaid\\b")
)

// Features records which optional stages a document needs.
type Features struct {
	HasMath     bool
	HasDiagrams bool
}

// DetectFeatures scans content for math delimiters and diagram blocks.
func DetectFeatures(content string) Features {
	return Features{
		HasMath:     HasMath(content),
		HasDiagrams: HasDiagrams(content),
	}
}

// HasMath reports whether content contains $$...$$ or single-line $...$.
func HasMath(content string) bool {
	return displayMathPattern.MatchString(content) || inlineMathPattern.MatchString(content)
}

// HasDiagrams reports whether content contains a mermaid fenced code block.
func HasDiagrams(content string) bool {
	return diagramFencePattern.MatchString(content)
}
