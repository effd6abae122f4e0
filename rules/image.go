package rules

import (
	"math"
	"regexp"
	"strings"

	"github.com/use-agent/prodrank/engine"
	"github.com/use-agent/prodrank/models"
)

// ImageSelector selects every image candidate.
const ImageSelector = "img"

// DefaultImageCoefficients are the production image weights.
func DefaultImageCoefficients() models.Coefficients {
	return models.Coefficients{
		{Name: "size", Value: 1.9},
		{Name: "hasSrc", Value: 3.0},
		{Name: "titleMatch", Value: 420.0},
		{Name: "itemprop", Value: 500.0},
		{Name: "badKeywords", Value: 0.05},
		{Name: "goodKeywords", Value: 800.0},
		{Name: "classKeywords", Value: 1300.0},
		{Name: "titleWords", Value: 0.7},
		{Name: "aboveTheFold", Value: 0.2},
		{Name: "leftOfPage", Value: 0.5},
		{Name: "notSVG", Value: 0.1},
		{Name: "notDataURL", Value: 0.1},
		{Name: "titleWordsBase", Value: 1.3},
	}
}

var (
	imageItempropRe  = regexp.MustCompile(`(?i)(image|main|product|hero|feature)`)
	imageBadWordRe   = regexp.MustCompile(`(?i)(thumb|logo|icon)`)
	imageGoodWordRe  = regexp.MustCompile(`(?i)(main|product|hero|feature|primary)`)
	alphanumericRe   = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	imageKeywordAttr = []string{"src", "id", "alt", "title"}
)

// NewImageRuleset builds the image ruleset with coefficients c. Names
// missing from c fall back to the defaults.
func NewImageRuleset(c models.Coefficients) (*engine.Ruleset, error) {
	w := weights(c, DefaultImageCoefficients())

	size, hasSrc, titleMatch := w("size"), w("hasSrc"), w("titleMatch")
	itemprop, bad, good, class := w("itemprop"), w("badKeywords"), w("goodKeywords"), w("classKeywords")
	titleWords, titleBase := w("titleWords"), w("titleWordsBase")
	fold, left, svg, dataURL := w("aboveTheFold"), w("leftOfPage"), w("notSVG"), w("notDataURL")

	return engine.NewRuleset("image", ImageSelector, engine.CategoryImages, []engine.Rule{
		{Name: "size", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return imageSize(cand, size)
		}},
		{Name: "hasSrc", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			if cand.Element.AttrOr("src") != "" {
				return hasSrc
			}
			return 0
		}},
		{Name: "titleMatch", Enabled: true, Score: func(cand *engine.Candidate, ctx *engine.Context) float64 {
			return imageTitleMatch(cand, ctx.Title, titleMatch)
		}},
		{Name: "keywords", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return imageKeywords(cand, bad, good, class)
		}},
		{Name: "itemprop", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			if cand.Element.AttrMatches("itemprop", imageItempropRe) {
				return itemprop
			}
			return 1
		}},
		{Name: "titleWordOverlap", Enabled: true, Score: func(cand *engine.Candidate, ctx *engine.Context) float64 {
			n := titleWordMatches(cand, titleWordList(ctx.Title))
			return math.Pow(titleBase, float64(1+n)) * titleWords
		}},
		{Name: "aboveTheFold", Enabled: true, Score: func(cand *engine.Candidate, ctx *engine.Context) float64 {
			if ctx.Viewport.AboveFold(cand.Geometry) {
				return 1
			}
			return fold
		}},
		{Name: "leftOfPage", Enabled: true, Score: func(cand *engine.Candidate, ctx *engine.Context) float64 {
			if ctx.Viewport.LeftHalf(cand.Geometry) {
				return 1
			}
			return left
		}},
		{Name: "excludeSVG", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			if strings.Contains(strings.ToLower(cand.Element.AttrOr("src")), ".svg") {
				return 0
			}
			return svg
		}},
		{Name: "excludeDataURL", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			if isDataURL(cand.Element.AttrOr("src")) {
				return 0
			}
			return dataURL
		}},
	})
}

// imageSize rewards rendered area. Images measured at zero (or negative)
// area keep a neutral weight instead of being eliminated.
func imageSize(cand *engine.Candidate, coeff float64) float64 {
	area := cand.Geometry.Area()
	if area <= 0 {
		return 1
	}
	return area * coeff
}

// imageTitleMatch rewards a title or alt attribute that contains the page
// title or is contained in it.
func imageTitleMatch(cand *engine.Candidate, title string, coeff float64) float64 {
	if title == "" {
		return 1
	}
	for _, attr := range []string{"title", "alt"} {
		v := cand.Element.AttrOr(attr)
		if v == "" {
			continue
		}
		if strings.Contains(v, title) || strings.Contains(title, v) {
			return coeff
		}
	}
	return 1
}

// imageKeywords penalises thumbnail-like sources before looking for
// primary-image keywords in attributes, then in the class list.
func imageKeywords(cand *engine.Candidate, bad, good, class float64) float64 {
	el := cand.Element
	if el.AttrMatches("src", imageBadWordRe) {
		return bad
	}
	for _, attr := range imageKeywordAttr {
		if el.AttrMatches(attr, imageGoodWordRe) {
			return good
		}
	}
	if el.ClassMatches(imageGoodWordRe) {
		return class
	}
	return 1
}

// titleWordList splits a page title into words, dropping pipes.
func titleWordList(title string) []string {
	return strings.Fields(strings.ReplaceAll(title, "|", ""))
}

// titleWordMatches counts, over src, title and alt, the alphanumeric title
// words that occur case-insensitively in the attribute.
func titleWordMatches(cand *engine.Candidate, words []string) int {
	n := 0
	for _, attr := range []string{"src", "title", "alt"} {
		v, ok := cand.Element.Attr(attr)
		if !ok {
			continue
		}
		v = strings.ToLower(v)
		for _, word := range words {
			if alphanumericRe.MatchString(word) && strings.Contains(v, strings.ToLower(word)) {
				n++
			}
		}
	}
	return n
}

func isDataURL(src string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(src)), "data:")
}
