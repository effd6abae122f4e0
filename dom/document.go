// Package dom adapts a parsed HTML document and its captured layout facts
// into the predicates the scoring rules ask about.
package dom

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is a read-only element tree. Every element carries a stable
// index assigned in document order, matching the order a browser reports
// for getElementsByTagName("*").
type Document struct {
	doc      *goquery.Document
	elements []*Element
	byNode   map[*html.Node]*Element
}

// Parse reads markup from r.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return NewDocument(doc), nil
}

// ParseString is Parse for an in-memory string.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// NewDocument indexes an already parsed goquery document.
func NewDocument(doc *goquery.Document) *Document {
	d := &Document{doc: doc, byNode: make(map[*html.Node]*Element)}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			el := &Element{node: n, index: len(d.elements), doc: d}
			d.elements = append(d.elements, el)
			d.byNode[n] = el
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}
	return d
}

// Len returns the number of elements.
func (d *Document) Len() int { return len(d.elements) }

// Elements returns every element in document order.
func (d *Document) Elements() []*Element { return d.elements }

// At returns the element with the given index, or nil.
func (d *Document) At(i int) *Element {
	if i < 0 || i >= len(d.elements) {
		return nil
	}
	return d.elements[i]
}

// Select returns the elements matching m in document order.
func (d *Document) Select(m cascadia.Matcher) []*Element {
	var out []*Element
	for _, root := range d.doc.Nodes {
		for _, n := range cascadia.QueryAll(root, m) {
			if el, ok := d.byNode[n]; ok {
				out = append(out, el)
			}
		}
	}
	return out
}

// Find compiles a selector group and calls Select.
func (d *Document) Find(selector string) ([]*Element, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, err
	}
	return d.Select(sel), nil
}

// First returns the first element matching selector, or nil.
func (d *Document) First(selector string) *Element {
	s := d.doc.Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	return d.byNode[s.Nodes[0]]
}
