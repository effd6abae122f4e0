// Package rules holds the title, image and price rulesets and the
// Extractor that runs them against a page.
package rules

import (
	"fmt"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/engine"
	"github.com/use-agent/prodrank/models"
)

// DefaultCoefficients returns the production weights of feature f. Title
// has none.
func DefaultCoefficients(f models.Feature) models.Coefficients {
	switch f {
	case models.FeatureImage:
		return DefaultImageCoefficients()
	case models.FeaturePrice:
		return DefaultPriceCoefficients()
	}
	return models.Coefficients{}
}

// Options configure an Extractor. Zero values select the defaults.
type Options struct {
	Viewport dom.Viewport

	// Coefficients holds per-feature weights. Missing features or names
	// use the production defaults.
	Coefficients map[models.Feature]models.Coefficients

	// Enable and Disable switch named rules of a feature on or off after
	// the ruleset is built. Disable is applied last.
	Enable  map[models.Feature][]string
	Disable map[models.Feature][]string
}

// WithCoefficients returns a copy of o that uses c for feature f.
func (o Options) WithCoefficients(f models.Feature, c models.Coefficients) Options {
	out := o
	out.Coefficients = make(map[models.Feature]models.Coefficients, len(o.Coefficients)+1)
	for k, v := range o.Coefficients {
		out.Coefficients[k] = v
	}
	out.Coefficients[f] = c
	return out
}

// Extractor runs the three rulesets against pages. It holds no
// per-document state and is safe for concurrent use.
type Extractor struct {
	viewport dom.Viewport
	rulesets map[models.Feature]*engine.Ruleset
}

// New builds an Extractor.
func New(opts Options) (*Extractor, error) {
	vp := opts.Viewport
	if !vp.Valid() {
		vp = dom.DefaultViewport
	}

	for f, c := range opts.Coefficients {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("rules: %s: %w", f, err)
		}
	}

	title, err := NewTitleRuleset()
	if err != nil {
		return nil, err
	}
	image, err := NewImageRuleset(opts.Coefficients[models.FeatureImage])
	if err != nil {
		return nil, err
	}
	price, err := NewPriceRuleset(opts.Coefficients[models.FeaturePrice])
	if err != nil {
		return nil, err
	}

	x := &Extractor{
		viewport: vp,
		rulesets: map[models.Feature]*engine.Ruleset{
			models.FeatureTitle: title,
			models.FeatureImage: image,
			models.FeaturePrice: price,
		},
	}
	if err := x.toggle(opts.Enable, true); err != nil {
		return nil, err
	}
	if err := x.toggle(opts.Disable, false); err != nil {
		return nil, err
	}
	return x, nil
}

func (x *Extractor) toggle(names map[models.Feature][]string, enabled bool) error {
	for f, list := range names {
		rs, ok := x.rulesets[f]
		if !ok {
			return models.NewExtractError(models.ErrCodeInvalidInput, fmt.Sprintf("unknown feature %q", f), nil)
		}
		if err := rs.SetEnabled(enabled, list...); err != nil {
			return err
		}
	}
	return nil
}

// Ruleset returns the ruleset of feature f, or nil.
func (x *Extractor) Ruleset(f models.Feature) *engine.Ruleset { return x.rulesets[f] }

// Viewport returns the layout context geometry rules are evaluated in.
func (x *Extractor) Viewport() dom.Viewport { return x.viewport }

// Context builds the scoring context of page: the viewport plus the page
// title, computed once so every image rule reads the same value.
func (x *Extractor) Context(page *dom.Page) *engine.Context {
	ctx := &engine.Context{Viewport: x.viewport}
	if best, err := x.rulesets[models.FeatureTitle].Run(page, ctx); err == nil {
		ctx.Title = Value(models.FeatureTitle, best)
	}
	return ctx
}

// Find returns the best candidate of feature f on page.
func (x *Extractor) Find(page *dom.Page, f models.Feature) (*engine.Candidate, error) {
	return x.FindWith(page, f, x.Context(page))
}

// FindWith is Find with a precomputed scoring context.
func (x *Extractor) FindWith(page *dom.Page, f models.Feature, ctx *engine.Context) (*engine.Candidate, error) {
	rs, ok := x.rulesets[f]
	if !ok {
		return nil, models.NewExtractError(models.ErrCodeInvalidInput, fmt.Sprintf("unknown feature %q", f), nil)
	}
	return rs.Run(page, ctx)
}

// Result is the outcome of extracting every feature from one page.
type Result struct {
	Product models.Product
	Scores  map[models.Feature]float64
	Errors  map[models.Feature]error
}

// Extract runs every ruleset on page. A feature that finds nothing is
// recorded in Result.Errors and leaves its product field empty.
func (x *Extractor) Extract(page *dom.Page) Result {
	res := Result{
		Scores: make(map[models.Feature]float64, len(models.Features)),
		Errors: make(map[models.Feature]error),
	}
	ctx := x.Context(page)
	for _, f := range models.Features {
		best, err := x.FindWith(page, f, ctx)
		if err != nil {
			res.Errors[f] = err
			continue
		}
		res.Product.Set(f, Value(f, best))
		res.Scores[f] = best.Score
	}
	return res
}

// Value returns the raw value a candidate contributes for feature f: the
// title text, the image src, or the price text (the content attribute for
// meta tags).
func Value(f models.Feature, cand *engine.Candidate) string {
	if cand == nil {
		return ""
	}
	el := cand.Element
	switch f {
	case models.FeatureTitle:
		return el.Text()
	case models.FeatureImage:
		return el.AttrOr("src")
	case models.FeaturePrice:
		if el.Tag() == "meta" {
			return el.AttrOr("content")
		}
		return el.Text()
	}
	return ""
}

// weights returns a lookup that reads c and falls back to defaults.
func weights(c, defaults models.Coefficients) func(string) float64 {
	return func(name string) float64 {
		return c.Get(name, defaults.Get(name, 1))
	}
}
