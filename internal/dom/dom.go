// Package dom models the page a rendered fragment is mounted into.
//
// A Document is an x/net/html tree with a head, a body, and a container
// element carrying the "markdown-body" class. Rendered HTML is mounted into
// the container; assets are injected into the head. The Document also keeps a
// set of named globals, the server-side stand-in for scripts that announce
// themselves on the page (for example a diagram engine).
//
// All Document methods are safe for concurrent use. Node-level access goes
// through View and Edit, which hold the document lock for the callback.
package dom

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ContainerClass marks the element rendered markdown is mounted into.
const ContainerClass = "markdown-body"

// HiddenClass is set on the body while a render cycle is in flight.
const HiddenClass = "mdview-hidden"

// Sentinel errors for document operations.
var (
	ErrParse  = errors.New("failed to parse HTML")
	ErrRender = errors.New("failed to render HTML")
)

// defaultShell is used when no page template is supplied.
const defaultShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Document</title>
</head>
<body>
<article class="markdown-body"></article>
</body>
</html>`

// Document is a mounted page.
type Document struct {
	mu        sync.RWMutex
	root      *html.Node
	head      *html.Node
	body      *html.Node
	container *html.Node
	globals   map[string]bool
}

// New creates a Document from the built-in minimal shell.
func New() *Document {
	doc, err := Parse(defaultShell)
	if err != nil {
		// defaultShell is a constant; failing to parse it is a programming error
		panic(err)
	}
	return doc
}

// Parse creates a Document from a full HTML page.
// If the page has no ".markdown-body" element, one is appended to the body.
func Parse(page string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	d := &Document{root: root, globals: make(map[string]bool)}
	d.head = FindFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Head })
	d.body = FindFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	if d.head == nil || d.body == nil {
		// html.Parse always synthesizes head and body
		return nil, fmt.Errorf("%w: missing head or body", ErrParse)
	}

	d.container = FindFirst(d.body, func(n *html.Node) bool { return HasClass(n, ContainerClass) })
	if d.container == nil {
		d.container = &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Article,
			Data:     "article",
			Attr:     []html.Attribute{{Key: "class", Val: ContainerClass}},
		}
		d.body.AppendChild(d.container)
	}

	return d, nil
}

// Mount replaces the container's children with the parsed fragment.
func (d *Document) Mount(fragment string) error {
	nodes, err := ParseFragment(fragment)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	removeChildren(d.container)
	for _, n := range nodes {
		d.container.AppendChild(n)
	}
	return nil
}

// View runs fn with read access to the container.
func (d *Document) View(fn func(container *html.Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.container)
}

// Edit runs fn with write access to the container.
func (d *Document) Edit(fn func(container *html.Node) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.container)
}

// AppendToHead appends n to the document head.
func (d *Document) AppendToHead(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.head.AppendChild(n)
}

// HeadHas reports whether the head holds an element with the given tag
// and attribute value.
func (d *Document) HeadHas(tag, key, val string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return FindFirst(d.head, func(n *html.Node) bool {
		if n.Data != tag {
			return false
		}
		v, ok := Attr(n, key)
		return ok && v == val
	}) != nil
}

// HasGlobal reports whether name was announced on the page.
func (d *Document) HasGlobal(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.globals[name]
}

// SetGlobal announces name on the page.
func (d *Document) SetGlobal(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.globals[name] = true
}

// SetHidden adds or removes HiddenClass on the body.
func (d *Document) SetHidden(hidden bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	classes := Classes(d.body)
	kept := classes[:0]
	for _, c := range classes {
		if c != HiddenClass {
			kept = append(kept, c)
		}
	}
	if hidden {
		kept = append(kept, HiddenClass)
	}
	if len(kept) == 0 {
		removeAttr(d.body, "class")
		return
	}
	SetAttr(d.body, "class", strings.Join(kept, " "))
}

// Hidden reports whether the body carries HiddenClass.
func (d *Document) Hidden() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return HasClass(d.body, HiddenClass)
}

// SetSlot replaces the children of the first body element carrying class
// with the parsed fragment. It reports false when the page has no such slot.
func (d *Document) SetSlot(class, fragment string) (bool, error) {
	nodes, err := ParseFragment(fragment)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	slot := FindFirst(d.body, func(n *html.Node) bool { return HasClass(n, class) })
	if slot == nil {
		return false, nil
	}
	removeChildren(slot)
	for _, n := range nodes {
		slot.AppendChild(n)
	}
	return true, nil
}

// Render serializes the whole page.
func (d *Document) Render() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var buf strings.Builder
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.String(), nil
}

// ContainerHTML serializes the container's children.
func (d *Document) ContainerHTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return RenderChildren(d.container)
}

// HeadHTML serializes the head's children.
func (d *Document) HeadHTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return RenderChildren(d.head)
}

func removeAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}
