package engine

import (
	"errors"
	"testing"

	"github.com/andybalholm/cascadia"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/models"
)

func testPage(t *testing.T, markup string) *dom.Page {
	t.Helper()
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatal(err)
	}
	page, err := dom.NewPage(doc, dom.FillGeometry(doc, dom.Geometry{}))
	if err != nil {
		t.Fatal(err)
	}
	return page
}

func group(t *testing.T, selector string) cascadia.SelectorGroup {
	t.Helper()
	g, err := cascadia.ParseGroup(selector)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func byAttr(name string, weights map[string]float64) ScoringFunc {
	return func(c *Candidate, _ *Context) float64 {
		if w, ok := weights[c.Element.AttrOr(name)]; ok {
			return w
		}
		return 1
	}
}

func TestTagInitialisesCandidates(t *testing.T) {
	page := testPage(t, `<p id="a"></p><div><p id="b"></p></div>`)
	cands, err := Tag(page, group(t, "p"), CategoryPriceish)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}
	for _, c := range cands {
		if c.Score != 1 || c.Category != CategoryPriceish {
			t.Errorf("candidate %s: score %v category %s", c.Element.ID(), c.Score, c.Category)
		}
	}
}

func TestTagMissingGeometry(t *testing.T) {
	doc, err := dom.ParseString(`<img src="x">`)
	if err != nil {
		t.Fatal(err)
	}
	// Bypass NewPage validation to simulate a table that lost an entry.
	page := &dom.Page{Document: doc, Geometry: dom.GeometryTable{}}
	if _, err := Tag(page, group(t, "img"), CategoryImages); !models.IsFixtureIntegrity(err) {
		t.Errorf("got %v, want fixture integrity error", err)
	}
}

func TestApplyChainOrderAndToggles(t *testing.T) {
	page := testPage(t, `<p id="a"></p><p id="b"></p><p id="c"></p>`)
	cands, _ := Tag(page, group(t, "p"), CategoryPriceish)

	rules := []Rule{
		{Name: "double-b", Enabled: true, Score: byAttr("id", map[string]float64{"b": 2})},
		{Name: "kill-c", Enabled: true, Score: byAttr("id", map[string]float64{"c": 0})},
		{Name: "off", Enabled: false, Score: byAttr("id", map[string]float64{"a": 100})},
	}
	ApplyChain(cands, rules, &Context{})

	want := map[string]float64{"a": 1, "b": 2, "c": 0}
	for _, c := range cands {
		if c.Score != want[c.Element.ID()] {
			t.Errorf("%s: score %v, want %v", c.Element.ID(), c.Score, want[c.Element.ID()])
		}
	}
	if best := SelectMax(cands); best == nil || best.Element.ID() != "b" {
		t.Errorf("SelectMax picked %v, want b", best)
	}
}

func TestSelectMax(t *testing.T) {
	if SelectMax(nil) != nil {
		t.Error("empty input should select nothing")
	}

	page := testPage(t, `<p id="a"></p><p id="b"></p>`)
	cands, _ := Tag(page, group(t, "p"), CategoryPriceish)

	if best := SelectMax(cands); best.Element.ID() != "a" {
		t.Errorf("tie should resolve to first in document order, got %s", best.Element.ID())
	}

	for _, c := range cands {
		c.Score = 0
	}
	if SelectMax(cands) != nil {
		t.Error("all-zero scores should select nothing")
	}
}

func TestRulesetRun(t *testing.T) {
	rs, err := NewRuleset("test", "img", CategoryImages, []Rule{
		{Name: "big", Enabled: true, Score: byAttr("src", map[string]float64{"big.jpg": 5})},
	})
	if err != nil {
		t.Fatal(err)
	}

	best, err := rs.Run(testPage(t, `<img src="small.jpg"><img src="big.jpg">`), &Context{})
	if err != nil {
		t.Fatal(err)
	}
	if got := best.Element.AttrOr("src"); got != "big.jpg" {
		t.Errorf("picked %q, want big.jpg", got)
	}

	_, err = rs.Run(testPage(t, `<p>no images</p>`), &Context{})
	if !errors.Is(err, models.ErrExtractionMiss) {
		t.Errorf("got %v, want extraction miss", err)
	}
}

func TestRulesetSetEnabled(t *testing.T) {
	rs, _ := NewRuleset("test", "p", CategoryPriceish, []Rule{{Name: "a", Enabled: true}, {Name: "b"}})
	if err := rs.SetEnabled(true, "b"); err != nil {
		t.Fatal(err)
	}
	if err := rs.SetEnabled(false, "a"); err != nil {
		t.Fatal(err)
	}
	if got := rs.EnabledRules(); len(got) != 1 || got[0] != "b" {
		t.Errorf("EnabledRules = %v, want [b]", got)
	}
	if err := rs.SetEnabled(true, "nope"); err == nil {
		t.Error("unknown rule should be rejected")
	}
}

func TestRanked(t *testing.T) {
	page := testPage(t, `<p id="a"></p><p id="b"></p><p id="c"></p>`)
	cands, _ := Tag(page, group(t, "p"), CategoryPriceish)
	cands[0].Score, cands[1].Score, cands[2].Score = 2, 0, 3

	got := Ranked(cands, 5)
	if len(got) != 2 || got[0].Element.ID() != "c" || got[1].Element.ID() != "a" {
		t.Errorf("Ranked = %v", got)
	}
}
