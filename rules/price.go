package rules

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/use-agent/prodrank/engine"
	"github.com/use-agent/prodrank/models"
)

// PriceSelector selects the block and inline elements that commonly carry
// a price, plus meta tags for microdata prices.
const PriceSelector = "span, div, li, strong, p, em, h1, h2, h3, h4, h5, h6, meta"

// CurrencySymbols are the symbols recognised as a price marker.
const CurrencySymbols = "$€£¥"

// DefaultPriceCoefficients are the production price weights.
func DefaultPriceCoefficients() models.Coefficients {
	return models.Coefficients{
		{Name: "dollarSign", Value: 4.4},
		{Name: "nearDollarSign", Value: 3},
		{Name: "hasNumbers", Value: 100},
		{Name: "spanBonus", Value: 2},
		{Name: "semanticTags", Value: 5},
		{Name: "currentPrice", Value: 2.6},
		{Name: "itemprop", Value: 160},
		{Name: "goodCss", Value: 2.6},
		{Name: "strike", Value: 0.4},
		{Name: "notSavings", Value: 0.2},
		{Name: "aboveTheFold", Value: 0.5},
		{Name: "centerRight", Value: 0.2},
		{Name: "middleHeight", Value: 0.5},
		{Name: "bolded", Value: 4.4},
		{Name: "digits4", Value: 1.6},
		{Name: "digits8", Value: 0.8},
		{Name: "digitsMany", Value: 0.2},
		{Name: "dollarSignCount", Value: 0.05},
		{Name: "priceFormat", Value: 2.6},
		{Name: "decimalPoints", Value: 0.65},
		{Name: "metaItemprop", Value: 440},
	}
}

var (
	priceItempropRe = regexp.MustCompile(`(?i)price`)
	currencyWordRe  = regexp.MustCompile(`(?i)currency`)
	currentPriceRe  = regexp.MustCompile(`(?i)(current|now)`)
	goodPriceCssRe  = regexp.MustCompile(`(?i)(price|sale|deal|total)`)
	boldRe          = regexp.MustCompile(`(?i)bold`)
	digitRe         = regexp.MustCompile(`[0-9]`)
	priceRangeRe    = regexp.MustCompile(`[0-9].*-.*[0-9]`)
	priceDecimalRe  = regexp.MustCompile(`[$€£¥]\s*[0-9]+\.[0-9][0-9]`)
	priceIntegerRe  = regexp.MustCompile(`[$€£¥]\s*[0-9]+`)
)

// NewPriceRuleset builds the price ruleset with coefficients c. Names
// missing from c fall back to the defaults. hasNumbers, isCurrentPrice,
// bolded, numberOfDecimalPoints and priceFormat start disabled.
func NewPriceRuleset(c models.Coefficients) (*engine.Ruleset, error) {
	w := weights(c, DefaultPriceCoefficients())

	text := func(cand *engine.Candidate) string { return cand.Element.Text() }
	when := func(ok bool, v float64) float64 {
		if ok {
			return v
		}
		return 1
	}

	dollarSign, nearDollar, hasNumbers := w("dollarSign"), w("nearDollarSign"), w("hasNumbers")
	span, semantic, current, itemprop := w("spanBonus"), w("semanticTags"), w("currentPrice"), w("itemprop")
	goodCss, strike, notSavings := w("goodCss"), w("strike"), w("notSavings")
	fold, centerRight, middle, bolded := w("aboveTheFold"), w("centerRight"), w("middleHeight"), w("bolded")
	d4, d8, dMany := w("digits4"), w("digits8"), w("digitsMany")
	signCount, format, dots, meta := w("dollarSignCount"), w("priceFormat"), w("decimalPoints"), w("metaItemprop")

	return engine.NewRuleset("price", PriceSelector, engine.CategoryPriceish, []engine.Rule{
		{Name: "hasDollarSign", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(hasCurrency(text(cand)), dollarSign)
		}},
		{Name: "nearDollarSign", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(hasCurrency(cand.Element.PrevSiblingText()), nearDollar)
		}},
		{Name: "hasNumbers", Enabled: false, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(digitRe.MatchString(text(cand)), hasNumbers)
		}},
		{Name: "tagBonus", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(cand.Element.Tag() == "span", span)
		}},
		{Name: "semanticTag", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(cand.Element.HasDescendant("sup"), semantic)
		}},
		{Name: "isCurrentPrice", Enabled: false, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(cand.Element.IDOrClassMatches(currentPriceRe), current)
		}},
		{Name: "itemprop", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(cand.Element.AttrMatches("itemprop", priceItempropRe), itemprop)
		}},
		{Name: "goodCssKeywords", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(cand.Element.IDOrClassMatches(goodPriceCssRe), goodCss)
		}},
		{Name: "notStrikedOut", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(cand.Geometry.Struck(), strike)
		}},
		{Name: "notSavingsAmount", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(isSavingsAmount(text(cand)), notSavings)
		}},
		{Name: "aboveTheFold", Enabled: true, Score: func(cand *engine.Candidate, ctx *engine.Context) float64 {
			return when(!ctx.Viewport.AboveFold(cand.Geometry), fold)
		}},
		{Name: "centerRightOfPage", Enabled: true, Score: func(cand *engine.Candidate, ctx *engine.Context) float64 {
			return when(!ctx.Viewport.CenterRightBand(cand.Geometry), centerRight)
		}},
		{Name: "middleHeight", Enabled: true, Score: func(cand *engine.Candidate, ctx *engine.Context) float64 {
			return when(!ctx.Viewport.MiddleHeightBand(cand.Geometry), middle)
		}},
		{Name: "bolded", Enabled: false, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(cand.Element.IDOrClassMatches(boldRe), bolded)
		}},
		{Name: "digitCountBand", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return digitBandWeight(text(cand), d4, d8, dMany)
		}},
		{Name: "dollarSignCount", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(currencyCount(text(cand)) > 2, signCount)
		}},
		{Name: "numberOfDecimalPoints", Enabled: false, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			t := text(cand)
			return when(strings.Count(t, ".") >= 2 && !strings.Contains(t, "-"), dots)
		}},
		{Name: "priceFormat", Enabled: false, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			return when(hasPriceFormat(text(cand)), format)
		}},
		{Name: "metaItemprop", Enabled: true, Score: func(cand *engine.Candidate, _ *engine.Context) float64 {
			el := cand.Element
			ok := el.Tag() == "meta" &&
				el.AttrMatches("itemprop", priceItempropRe) &&
				!el.AttrMatches("itemprop", currencyWordRe)
			return when(ok, meta)
		}},
	})
}

func hasCurrency(s string) bool { return strings.ContainsAny(s, CurrencySymbols) }

func currencyCount(s string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune(CurrencySymbols, r) {
			n++
		}
	}
	return n
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// DigitBand classifies text by how many digits it holds.
type DigitBand int

const (
	BandNoise  DigitBand = iota // no digits, or more than eight
	BandSingle                  // one to four digits: a single price
	BandRange                   // five to eight digits: a price range
)

// DigitBandOf returns the band of s.
func DigitBandOf(s string) DigitBand {
	switch n := countDigits(s); {
	case n > 0 && n <= 4:
		return BandSingle
	case n > 0 && n <= 8:
		return BandRange
	}
	return BandNoise
}

func digitBandWeight(s string, single, rng, noise float64) float64 {
	switch DigitBandOf(s) {
	case BandSingle:
		return single
	case BandRange:
		return rng
	}
	return noise
}

// isSavingsAmount reports a minus sign that is not part of a numeric
// range such as "19.99 - 29.99".
func isSavingsAmount(s string) bool {
	return strings.Contains(s, "-") && !priceRangeRe.MatchString(s)
}

func hasPriceFormat(s string) bool {
	return priceRangeRe.MatchString(s) || priceDecimalRe.MatchString(s) || priceIntegerRe.MatchString(s)
}
