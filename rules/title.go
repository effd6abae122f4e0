package rules

import "github.com/use-agent/prodrank/engine"

// TitleSelector selects the document title element.
const TitleSelector = "title"

// NewTitleRuleset builds the title ruleset. It has no coefficients: the
// single rule is constant, so the first title element wins.
func NewTitleRuleset() (*engine.Ruleset, error) {
	return engine.NewRuleset("title", TitleSelector, engine.CategoryTitleish, []engine.Rule{
		{Name: "constant", Enabled: true, Score: func(*engine.Candidate, *engine.Context) float64 { return 1 }},
	})
}
