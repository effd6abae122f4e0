// Package models defines the shared product, coefficient, error and API
// payload types.
package models

import "fmt"

// Feature names one of the product properties the extractor can find.
type Feature string

const (
	FeatureTitle Feature = "title"
	FeatureImage Feature = "image"
	FeaturePrice Feature = "price"
)

// Features lists every feature in evaluation order. Title comes first
// because the image ruleset consumes its result.
var Features = []Feature{FeatureTitle, FeatureImage, FeaturePrice}

// ParseFeature validates a feature name.
func ParseFeature(s string) (Feature, error) {
	switch f := Feature(s); f {
	case FeatureTitle, FeatureImage, FeaturePrice:
		return f, nil
	}
	return "", NewExtractError(ErrCodeInvalidInput, fmt.Sprintf("unknown feature %q", s), nil)
}

// Product is the extraction result for one page.
type Product struct {
	Title string `json:"title"`
	Image string `json:"image"`
	Price string `json:"price"`
}

// Get returns the value extracted for feature f.
func (p Product) Get(f Feature) string {
	switch f {
	case FeatureTitle:
		return p.Title
	case FeatureImage:
		return p.Image
	case FeaturePrice:
		return p.Price
	}
	return ""
}

// Set stores v as the value for feature f.
func (p *Product) Set(f Feature, v string) {
	switch f {
	case FeatureTitle:
		p.Title = v
	case FeatureImage:
		p.Image = v
	case FeaturePrice:
		p.Price = v
	}
}
