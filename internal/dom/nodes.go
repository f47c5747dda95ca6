package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment parses an HTML fragment in a <body> context.
func ParseFragment(content string) ([]*html.Node, error) {
	context := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Body,
		Data:     "body",
	}
	nodes, err := html.ParseFragment(strings.NewReader(content), context)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nodes, nil
}

// ParseContainer parses a fragment into a detached container element.
// The container is what tree passes walk and RenderChildren serializes.
func ParseContainer(content string) (*html.Node, error) {
	nodes, err := ParseFragment(content)
	if err != nil {
		return nil, err
	}
	container := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr:     []html.Attribute{{Key: "class", Val: ContainerClass}},
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, nil
}

// RenderChildren serializes the children of n, without n itself.
func RenderChildren(n *html.Node) (string, error) {
	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRender, err)
		}
	}
	return buf.String(), nil
}

// Walk visits element nodes under root in document order.
// Returning false from fn skips the node's subtree.
func Walk(root *html.Node, fn func(n *html.Node) bool) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !fn(c) {
			continue
		}
		Walk(c, fn)
	}
}

// FindFirst returns the first element under root matching pred, or nil.
func FindFirst(root *html.Node, pred func(n *html.Node) bool) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAll returns every element under root matching pred, in document order.
func FindAll(root *html.Node, pred func(n *html.Node) bool) []*html.Node {
	var found []*html.Node
	Walk(root, func(n *html.Node) bool {
		if pred(n) {
			found = append(found, n)
		}
		return true
	})
	return found
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets attribute key on n, replacing any existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Classes returns the space-separated tokens of n's class attribute.
func Classes(n *html.Node) []string {
	v, ok := Attr(n, "class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// HasClass reports whether n carries class token c.
func HasClass(n *html.Node, c string) bool {
	for _, token := range Classes(n) {
		if token == c {
			return true
		}
	}
	return false
}

// ClassWithPrefix returns the remainder of the first class token starting with prefix.
func ClassWithPrefix(n *html.Node, prefix string) (string, bool) {
	for _, token := range Classes(n) {
		if rest, ok := strings.CutPrefix(token, prefix); ok && rest != "" {
			return rest, true
		}
	}
	return "", false
}

// TextContent concatenates the text of every text node under n.
func TextContent(n *html.Node) string {
	var buf strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return buf.String()
}

// Replace swaps old for the given nodes in old's parent.
func Replace(old *html.Node, nodes ...*html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.InsertBefore(n, old)
	}
	parent.RemoveChild(old)
}

// Element creates a detached element with the given attributes (key, value pairs).
func Element(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}
