package pipeline

import (
	"reflect"
	"testing"

	"golang.org/x/net/html"

	"github.com/alnah/go-mdview/internal/dom"
)

// ---------------------------------------------------------------------------
// TestExtractTOC - Mounted tree walk
// ---------------------------------------------------------------------------

func TestExtractTOC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want []TOCItem
	}{
		{
			name: "levels normalized to shallowest",
			html: `<h1 id="a">A</h1><h2 id="b">B</h2><h3 id="c">C</h3>`,
			want: []TOCItem{
				{Indent: 0, Text: "A", TagName: "h1", Key: "a"},
				{Indent: 1, Text: "B", TagName: "h2", Key: "b"},
				{Indent: 2, Text: "C", TagName: "h3", Key: "c"},
			},
		},
		{
			name: "no h1 starts at zero",
			html: `<h3 id="x">X</h3><h2 id="y">Y</h2>`,
			want: []TOCItem{
				{Indent: 1, Text: "X", TagName: "h3", Key: "x"},
				{Indent: 0, Text: "Y", TagName: "h2", Key: "y"},
			},
		},
		{
			name: "deeper headings ignored",
			html: `<h2 id="a">A</h2><h4 id="d">D</h4><h6>F</h6>`,
			want: []TOCItem{{Indent: 0, Text: "A", TagName: "h2", Key: "a"}},
		},
		{
			name: "nested headings found in order",
			html: `<section><h2 id="s">S</h2><div><h3 id="t">T <em>em</em></h3></div></section>`,
			want: []TOCItem{
				{Indent: 0, Text: "S", TagName: "h2", Key: "s"},
				{Indent: 1, Text: "T em", TagName: "h3", Key: "t"},
			},
		},
		{
			name: "heading without id has empty key",
			html: `<h1>Plain</h1>`,
			want: []TOCItem{{Indent: 0, Text: "Plain", TagName: "h1", Key: ""}},
		},
		{
			name: "no headings",
			html: `<p>text</p>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			container, err := dom.ParseContainer(tt.html)
			if err != nil {
				t.Fatalf("ParseContainer() error: %v", err)
			}
			got := ExtractTOC(container)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractTOC() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractTOC_ScopedToContainerClass(t *testing.T) {
	t.Parallel()

	doc := dom.New()
	if err := doc.Mount(`<h1 id="in">In</h1><h2 id="in2">In2</h2>`); err != nil {
		t.Fatalf("Mount() error: %v", err)
	}

	var root *html.Node
	err := doc.Edit(func(c *html.Node) error {
		// Walk up to the page root; headings outside the container must be ignored
		root = c
		for root.Parent != nil {
			root = root.Parent
		}
		outside := dom.Element("h1", "id", "out")
		body := dom.FindFirst(root, func(n *html.Node) bool { return n.Data == "body" })
		body.InsertBefore(outside, body.FirstChild)
		return nil
	})
	if err != nil {
		t.Fatalf("Edit() error: %v", err)
	}

	got := ExtractTOC(root)
	if len(got) != 2 || got[0].Key != "in" || got[1].Key != "in2" {
		t.Errorf("ExtractTOC() = %+v, want only container headings", got)
	}
}

func TestExtractTOC_NilContainer(t *testing.T) {
	t.Parallel()

	if got := ExtractTOC(nil); got != nil {
		t.Errorf("ExtractTOC(nil) = %+v, want nil", got)
	}
}

// ---------------------------------------------------------------------------
// TestTOCVisible - Display threshold
// ---------------------------------------------------------------------------

func TestTOCVisible(t *testing.T) {
	t.Parallel()

	one := []TOCItem{{Text: "a"}}
	two := []TOCItem{{Text: "a"}, {Text: "b"}}

	tests := []struct {
		name  string
		items []TOCItem
		show  bool
		want  bool
	}{
		{"none", nil, true, false},
		{"one", one, true, false},
		{"two", two, true, true},
		{"two hidden", two, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TOCVisible(tt.items, tt.show); got != tt.want {
				t.Errorf("TOCVisible() = %v, want %v", got, tt.want)
			}
		})
	}
}
