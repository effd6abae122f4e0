package dom

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element is one element node of a Document.
type Element struct {
	node  *html.Node
	index int
	doc   *Document
}

// Index is the element's position in document order.
func (e *Element) Index() int { return e.index }

// Node exposes the underlying x/net/html node.
func (e *Element) Node() *html.Node { return e.node }

// Tag returns the lower-case tag name.
func (e *Element) Tag() string { return strings.ToLower(e.node.Data) }

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or "" when absent.
func (e *Element) AttrOr(name string) string {
	v, _ := e.Attr(name)
	return v
}

// HasAttr reports whether the attribute is present (possibly empty).
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// AttrMatches reports whether the attribute is present and matches re.
func (e *Element) AttrMatches(name string, re *regexp.Regexp) bool {
	v, ok := e.Attr(name)
	return ok && re.MatchString(v)
}

// ID returns the id attribute, "" when absent.
func (e *Element) ID() string { return e.AttrOr("id") }

// Classes returns the class list in declaration order.
func (e *Element) Classes() []string { return strings.Fields(e.AttrOr("class")) }

// ClassMatches reports whether any class list entry matches re.
func (e *Element) ClassMatches(re *regexp.Regexp) bool {
	for _, c := range e.Classes() {
		if re.MatchString(c) {
			return true
		}
	}
	return false
}

// IDOrClassMatches reports whether the id or any class matches re.
func (e *Element) IDOrClassMatches(re *regexp.Regexp) bool {
	return re.MatchString(e.ID()) || e.ClassMatches(re)
}

// Text returns the concatenated text of all descendant text nodes, the
// equivalent of the DOM textContent property.
func (e *Element) Text() string {
	return goquery.NewDocumentFromNode(e.node).Text()
}

// PrevSiblingText returns the textContent of the immediately preceding
// sibling node, which may be a text node. Empty when there is none.
func (e *Element) PrevSiblingText() string {
	prev := e.node.PrevSibling
	if prev == nil {
		return ""
	}
	switch prev.Type {
	case html.TextNode, html.CommentNode:
		return prev.Data
	case html.ElementNode:
		return goquery.NewDocumentFromNode(prev).Text()
	}
	return ""
}

// HasDescendant reports whether any descendant element has the given tag.
func (e *Element) HasDescendant(tag string) bool {
	tag = strings.ToLower(tag)
	var found bool
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil && !found; c = c.NextSibling {
			if c.Type == html.ElementNode && strings.EqualFold(c.Data, tag) {
				found = true
				return
			}
			walk(c)
		}
	}
	walk(e.node)
	return found
}
