package engine

import (
	"fmt"
	"sort"

	"github.com/andybalholm/cascadia"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/models"
)

// Ruleset is a fixed selector plus an ordered rule list for one category.
type Ruleset struct {
	Name     string
	Category Category
	Rules    []Rule

	selector string
	sel      cascadia.SelectorGroup
}

// NewRuleset compiles selector, which may be a comma separated group.
func NewRuleset(name, selector string, cat Category, rules []Rule) (*Ruleset, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("ruleset %s: selector %q: %w", name, selector, err)
	}
	return &Ruleset{Name: name, Category: cat, Rules: rules, selector: selector, sel: sel}, nil
}

// Selector returns the source form of the ruleset's selector.
func (r *Ruleset) Selector() string { return r.selector }

// Score tags and scores every candidate of page and returns them in
// document order.
func (r *Ruleset) Score(page *dom.Page, ctx *Context) ([]*Candidate, error) {
	cands, err := Tag(page, r.sel, r.Category)
	if err != nil {
		return nil, err
	}
	ApplyChain(cands, r.Rules, ctx)
	return cands, nil
}

// Run scores page and returns the winning candidate, or
// models.ErrExtractionMiss when nothing qualifies.
func (r *Ruleset) Run(page *dom.Page, ctx *Context) (*Candidate, error) {
	cands, err := r.Score(page, ctx)
	if err != nil {
		return nil, err
	}
	best := SelectMax(cands)
	if best == nil {
		return nil, models.ErrExtractionMiss
	}
	return best, nil
}

// Ranked returns the top n candidates by descending score, ties in
// document order. Zero-scored candidates are omitted.
func Ranked(cands []*Candidate, n int) []*Candidate {
	out := make([]*Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Score > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SetEnabled switches the named rules on or off. Unknown names are
// reported so that configuration typos do not pass silently.
func (r *Ruleset) SetEnabled(enabled bool, names ...string) error {
	for _, name := range names {
		found := false
		for i := range r.Rules {
			if r.Rules[i].Name == name {
				r.Rules[i].Enabled = enabled
				found = true
			}
		}
		if !found {
			return models.NewExtractError(models.ErrCodeInvalidInput,
				fmt.Sprintf("ruleset %s has no rule %q", r.Name, name), nil)
		}
	}
	return nil
}

// EnabledRules lists the names of the rules that will run.
func (r *Ruleset) EnabledRules() []string {
	var out []string
	for _, rule := range r.Rules {
		if rule.Enabled {
			out = append(out, rule.Name)
		}
	}
	return out
}
