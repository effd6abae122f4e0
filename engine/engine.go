// Package engine implements selection by multiplicative scoring: elements
// are tagged into a category, every rule of the category multiplies their
// score, and the highest scoring element wins.
package engine

import (
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/models"
)

// Category is the structural class a candidate is scored within.
type Category string

const (
	CategoryImages   Category = "images"
	CategoryPriceish Category = "priceish"
	CategoryTitleish Category = "titleish"
)

// Candidate is an element under consideration for one category. Only
// Score changes after construction.
type Candidate struct {
	Element  *dom.Element
	Geometry dom.Geometry
	Category Category
	Score    float64
}

// Context is the per-document input shared by every rule of a scoring
// pass. It is built once per document and never mutated by rules.
type Context struct {
	Viewport dom.Viewport

	// Title is the page title produced by the title ruleset. Empty when
	// title extraction found nothing.
	Title string
}

// ScoringFunc maps a candidate to a non-negative multiplier. A rule that
// does not apply to the candidate returns 1.
type ScoringFunc func(c *Candidate, ctx *Context) float64

// Rule is a named scoring function with an on/off switch.
type Rule struct {
	Name    string
	Enabled bool
	Score   ScoringFunc
}

// Tag selects every element matching m and wraps it as a candidate
// with score 1.
func Tag(page *dom.Page, m cascadia.Matcher, cat Category) ([]*Candidate, error) {
	els := page.Document.Select(m)
	out := make([]*Candidate, 0, len(els))
	for _, el := range els {
		g, ok := page.GeometryOf(el)
		if !ok {
			return nil, models.FixtureIntegrityError("no geometry for element %d <%s>", el.Index(), el.Tag())
		}
		out = append(out, &Candidate{Element: el, Geometry: g, Category: cat, Score: 1})
	}
	return out, nil
}

// ApplyChain runs every enabled rule, in declaration order, over every
// candidate and multiplies the candidate's score by the result.
func ApplyChain(cands []*Candidate, rules []Rule, ctx *Context) {
	for _, r := range rules {
		if !r.Enabled || r.Score == nil {
			continue
		}
		for _, c := range cands {
			c.Score *= r.Score(c, ctx)
		}
	}
}

// SelectMax returns the candidate with the strictly greatest score. Ties
// resolve to the earliest candidate, which is document order for Tag
// output. It returns nil when cands is empty or no score is positive.
func SelectMax(cands []*Candidate) *Candidate {
	var best *Candidate
	for _, c := range cands {
		if !(c.Score > 0) {
			continue
		}
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	return best
}
