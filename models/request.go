package models

import "encoding/json"

// ExtractRequest is the payload for POST /api/v1/extract.
type ExtractRequest struct {
	// HTML is the rendered markup of the page. Required.
	HTML string `json:"html" binding:"required"`

	// Geometry maps every element index of HTML, in document order, to its
	// captured layout facts. Required; it must cover exactly the elements
	// of HTML.
	Geometry json.RawMessage `json:"geometry" binding:"required"`

	// Viewport is the layout context Geometry was captured under.
	// Default: the server's configured viewport.
	Viewport *Viewport `json:"viewport,omitempty"`

	// Features limits extraction to the named features.
	// Allowed: "title", "image", "price". Default: all.
	Features []string `json:"features,omitempty" binding:"omitempty,dive,oneof=title image price"`

	// Top returns the n best-scored candidates per feature alongside the
	// winner. Default: 0 (winner only). Max: 50.
	Top int `json:"top,omitempty" binding:"omitempty,min=0,max=50"`

	// MaxAge allows a cached response younger than this many milliseconds.
	// Default: 0 (no caching).
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Viewport is the request-side viewport size.
type Viewport struct {
	Width  float64 `json:"width" binding:"required,gt=0"`
	Height float64 `json:"height" binding:"required,gt=0"`
}

// Defaults applies default values to unset fields.
func (r *ExtractRequest) Defaults() {
	if len(r.Features) == 0 {
		r.Features = make([]string, len(Features))
		for i, f := range Features {
			r.Features[i] = string(f)
		}
	}
}

// CompareRequest is the payload for POST /api/v1/compare.
type CompareRequest struct {
	Feature  string `json:"feature" binding:"required,oneof=title image price"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}
