package pipeline

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/alnah/go-mdview/internal/dom"
)

// MaxTOCLevel is the deepest heading level listed in a table of contents.
const MaxTOCLevel = 3

// TOCKeyAttr is the heading attribute used as the navigation key.
const TOCKeyAttr = "id"

// TOCItem is one entry of a table of contents.
type TOCItem struct {
	Indent  int    `json:"indent"`  // Heading level minus the shallowest level present
	Text    string `json:"text"`    // Heading text content
	TagName string `json:"tagName"` // Lowercase tag name (h1, h2, h3)
	Key     string `json:"key"`     // Stable key resolving to the heading element
}

type heading struct {
	level int
	text  string
	key   string
}

// TOCVisible reports whether a table of contents should be shown.
// Fewer than two entries never displays one.
func TOCVisible(items []TOCItem, showTOC bool) bool {
	return showTOC && len(items) >= 2
}

// ExtractTOC lists h1-h3 headings under the .markdown-body subtree of
// container, in document order. A nil container yields nil.
func ExtractTOC(container *html.Node) []TOCItem {
	if container == nil {
		return nil
	}

	root := container
	if !dom.HasClass(root, dom.ContainerClass) {
		if body := dom.FindFirst(root, func(n *html.Node) bool {
			return dom.HasClass(n, dom.ContainerClass)
		}); body != nil {
			root = body
		}
	}

	var headings []heading
	dom.Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		level := headingLevel(n.Data)
		if level == 0 {
			return true
		}
		key, _ := dom.Attr(n, TOCKeyAttr)
		headings = append(headings, heading{
			level: level,
			text:  strings.TrimSpace(dom.TextContent(n)),
			key:   key,
		})
		return false
	})

	return normalizeIndents(headings)
}

// normalizeIndents converts levels to indents relative to the minimum level.
func normalizeIndents(headings []heading) []TOCItem {
	if len(headings) == 0 {
		return nil
	}

	minLevel := headings[0].level
	for _, h := range headings[1:] {
		if h.level < minLevel {
			minLevel = h.level
		}
	}

	items := make([]TOCItem, len(headings))
	for i, h := range headings {
		items[i] = TOCItem{
			Indent:  h.level - minLevel,
			Text:    h.text,
			TagName: "h" + string(rune('0'+h.level)),
			Key:     h.key,
		}
	}
	return items
}

// headingLevel returns 1-3 for h1-h3 (case-insensitive), 0 otherwise.
func headingLevel(tag string) int {
	if len(tag) != 2 || (tag[0] != 'h' && tag[0] != 'H') {
		return 0
	}
	if l := int(tag[1] - '0'); l >= 1 && l <= MaxTOCLevel {
		return l
	}
	return 0
}
