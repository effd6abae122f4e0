package harness

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/prodrank/models"
	"github.com/use-agent/prodrank/rules"
)

// WithoutQueryParams drops everything from the first '?' on.
func WithoutQueryParams(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

// Price is a canonical price: a single amount, or a range when Low and
// High differ.
type Price struct {
	Low  float64
	High float64
}

// IsRange reports whether p spans two distinct amounts.
func (p Price) IsRange() bool { return p.Low != p.High }

// String renders p in its canonical textual form.
func (p Price) String() string {
	low := strconv.FormatFloat(p.Low, 'f', -1, 64)
	if !p.IsRange() {
		return low
	}
	return low + "-" + strconv.FormatFloat(p.High, 'f', -1, 64)
}

var (
	priceNoiseRe   = regexp.MustCompile(`[^0-9.\-]`)
	priceRangeRe   = regexp.MustCompile(`([0-9]+(?:\.[0-9]*)?|\.[0-9]+)-+([0-9]+(?:\.[0-9]*)?|\.[0-9]+)`)
	priceLeadNumRe = regexp.MustCompile(`^-?([0-9]+(?:\.[0-9]*)?|\.[0-9]+)`)
)

// ParsePrice canonicalizes price text. Currency symbols, whitespace and
// every character other than digits, '.' and '-' are removed (so
// thousands separators disappear), then the text is read as a range
// ("19.99-29.99") or as the leading number.
func ParsePrice(s string) (Price, error) {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(rules.CurrencySymbols, r) {
			return -1
		}
		return r
	}, s)
	cleaned = priceNoiseRe.ReplaceAllString(cleaned, "")

	if m := priceRangeRe.FindStringSubmatch(cleaned); m != nil {
		low, errLow := strconv.ParseFloat(m[1], 64)
		high, errHigh := strconv.ParseFloat(m[2], 64)
		if errLow == nil && errHigh == nil {
			return Price{Low: low, High: high}, nil
		}
	}

	m := priceLeadNumRe.FindString(cleaned)
	if m == "" {
		return Price{}, models.CanonicalizationError(models.FeaturePrice, s, nil)
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return Price{}, models.CanonicalizationError(models.FeaturePrice, s, err)
	}
	return Price{Low: v, High: v}, nil
}

// Canonicalize brings a raw value of feature f into comparable form:
// titles are compared verbatim, image sources without their query
// string, prices numerically.
func Canonicalize(f models.Feature, raw string) (string, error) {
	switch f {
	case models.FeatureTitle:
		return raw, nil
	case models.FeatureImage:
		return WithoutQueryParams(raw), nil
	case models.FeaturePrice:
		p, err := ParsePrice(raw)
		if err != nil {
			return "", err
		}
		return p.String(), nil
	}
	return "", models.NewExtractError(models.ErrCodeInvalidInput, "unknown feature "+string(f), nil)
}

// Compare reports whether expected and actual agree for feature f.
func Compare(expected, actual string, f models.Feature) (bool, error) {
	e, err := Canonicalize(f, expected)
	if err != nil {
		return false, err
	}
	a, err := Canonicalize(f, actual)
	if err != nil {
		return false, err
	}
	return e == a, nil
}
