package pipeline

import (
	"path"
	"regexp"
	"strings"
)

// markdownExtensions lists extension hints rendered as markdown rather than fenced.
var markdownExtensions = map[string]bool{
	"md":       true,
	"markdown": true,
	"mdown":    true,
	"mkd":      true,
	"mdx":      true,
}

// Precompiled regex patterns for performance.
var (
	// Image reference ![alt](target "title"); target may be <angle bracketed>.
	// Captures: 1=alt, 2=target, 3=optional title (with leading whitespace)
	imagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(\s*(<[^>\n]*>|[^\s)]+)((?:\s+(?:"[^"\n]*"|'[^'\n]*'))?)\s*\)`)

	// Opening or closing fence: up to three spaces, then ``` or ~~~ runs
	fencePattern = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")

	// Longest backtick run inside content, used to size a wrapping fence
	backtickRun = regexp.MustCompile("`{3,}")
)

// ImageContext carries what is needed to turn an image target into an asset URL.
type ImageContext struct {
	DocPath     string // Path of the document being rendered (e.g. /docs/page.md)
	Readme      bool   // Resolve relative targets against DocPath itself
	BasePath    string // Content-serving base path (e.g. /app)
	StorageRoot string // User-specific storage root (e.g. alice)
}

// SourceInput is the raw material handed to the preprocessor.
type SourceInput struct {
	Content string
	Ext     string // Extension hint; empty or markdown means render as markdown
	Images  ImageContext
}

// SourcePreprocessor defines the contract for source preprocessing.
type SourcePreprocessor interface {
	Preprocess(in SourceInput) string
}

// ContentPreprocessor fences non-markdown text and rewrites image targets.
type ContentPreprocessor struct{}

// Preprocess returns markdown ready for the pipeline.
// Non-markdown text is fenced verbatim; image rewriting applies to markdown only.
func (p *ContentPreprocessor) Preprocess(in SourceInput) string {
	if !IsMarkdownExt(in.Ext) {
		return WrapSource(in.Content, in.Ext)
	}
	return RewriteImages(in.Content, in.Images)
}

// IsMarkdownExt reports whether ext (with or without a leading dot) denotes markdown.
// An empty hint counts as markdown.
func IsMarkdownExt(ext string) bool {
	ext = normalizeExt(ext)
	return ext == "" || markdownExtensions[ext]
}

// WrapSource wraps content in a fenced code block tagged with ext.
// The fence is longer than any backtick run in content so the text stays verbatim.
func WrapSource(content, ext string) string {
	fence := "```"
	for _, run := range backtickRun.FindAllString(content, -1) {
		if len(run) >= len(fence) {
			fence = strings.Repeat("`", len(run)+1)
		}
	}

	var buf strings.Builder
	buf.Grow(len(content) + 2*len(fence) + len(ext) + 3)
	buf.WriteString(fence)
	buf.WriteString(fenceInfo(ext))
	buf.WriteByte('\n')
	buf.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		buf.WriteByte('\n')
	}
	buf.WriteString(fence)
	buf.WriteByte('\n')
	return buf.String()
}

// RewriteImages rewrites every image target outside fenced code blocks.
// Malformed references do not match the pattern and are left unchanged.
func RewriteImages(content string, ic ImageContext) string {
	if !strings.Contains(content, "![") {
		return content
	}

	return processOutsideFences(content, func(line string) string {
		return imagePattern.ReplaceAllStringFunc(line, func(match string) string {
			m := imagePattern.FindStringSubmatch(match)
			alt, target, title := m[1], m[2], m[3]

			angled := strings.HasPrefix(target, "<") && strings.HasSuffix(target, ">")
			if angled {
				target = target[1 : len(target)-1]
			}

			resolved := ResolveImageURL(target, ic)
			if resolved == target {
				return match
			}
			if angled {
				resolved = "<" + resolved + ">"
			}
			return "![" + alt + "](" + resolved + title + ")"
		})
	})
}

// ResolveImageURL maps an image target to its asset URL.
// External targets (data:image/ URIs, http(s) URLs, protocol-relative URLs) are returned unchanged.
// The result is <BasePath>/d/<StorageRoot><resolved-path>.
func ResolveImageURL(target string, ic ImageContext) string {
	if target == "" || isExternalTarget(target) {
		return target
	}

	resolved := target
	if !strings.HasPrefix(target, "/") {
		base := ic.DocPath
		if !ic.Readme {
			base = path.Dir(ic.DocPath)
		}
		resolved = path.Join("/", base, target)
	}

	return assetURL(ic.BasePath, ic.StorageRoot, resolved)
}

// assetURL joins the serving base path, the /d/ content route and the storage root.
func assetURL(basePath, storageRoot, resolved string) string {
	var buf strings.Builder
	buf.WriteString(strings.TrimRight(basePath, "/"))
	buf.WriteString("/d")
	if root := strings.Trim(storageRoot, "/"); root != "" {
		buf.WriteByte('/')
		buf.WriteString(root)
	}
	buf.WriteString(resolved)
	return buf.String()
}

// isExternalTarget returns true if the target must not be rewritten.
func isExternalTarget(target string) bool {
	return hasPrefixFold(target, "data:image/") ||
		hasPrefixFold(target, "http://") ||
		hasPrefixFold(target, "https://") ||
		strings.HasPrefix(target, "//")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// normalizeExt trims whitespace and a leading dot, and lowercases the hint.
func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// fenceInfo makes ext safe as a fence info string (no whitespace or backticks).
func fenceInfo(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	return strings.Map(func(r rune) rune {
		if r == '`' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, ext)
}

// processOutsideFences applies fn to each line not inside a fenced code block.
// A fence closes only on the same character with at least the opening length.
func processOutsideFences(content string, fn func(line string) string) string {
	lines := strings.Split(content, "\n")

	var open string // opening fence run, empty outside code blocks
	for i, line := range lines {
		if m := fencePattern.FindStringSubmatch(line); m != nil {
			run := m[1]
			switch {
			case open == "":
				open = run
				continue
			case run[0] == open[0] && len(run) >= len(open) && strings.TrimSpace(line[len(m[0]):]) == "":
				open = ""
				continue
			}
		}
		if open != "" {
			continue
		}
		lines[i] = fn(line)
	}

	return strings.Join(lines, "\n")
}
