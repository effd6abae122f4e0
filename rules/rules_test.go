package rules

import (
	"errors"
	"math"
	"testing"

	"github.com/andybalholm/cascadia"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/engine"
	"github.com/use-agent/prodrank/models"
)

type at struct {
	sel string
	g   dom.Geometry
}

func mustGroup(t *testing.T, selector string) cascadia.SelectorGroup {
	t.Helper()
	g, err := cascadia.ParseGroup(selector)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// buildPage parses markup and assigns geometry by selector, in order;
// every other element gets zero geometry.
func buildPage(t *testing.T, markup string, geo ...at) *dom.Page {
	t.Helper()
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatal(err)
	}
	tbl := dom.FillGeometry(doc, dom.Geometry{})
	for _, a := range geo {
		els, err := doc.Find(a.sel)
		if err != nil {
			t.Fatal(err)
		}
		if len(els) == 0 {
			t.Fatalf("selector %q matched nothing", a.sel)
		}
		for _, el := range els {
			tbl[el.Index()] = a.g
		}
	}
	page, err := dom.NewPage(doc, tbl)
	if err != nil {
		t.Fatal(err)
	}
	return page
}

func box(top, left, w, h float64) dom.Geometry {
	return dom.Geometry{Top: top, Left: left, Bottom: top + h, Right: left + w}
}

func newExtractor(t *testing.T, opts Options) *Extractor {
	t.Helper()
	x, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return x
}

func TestImagePicksMainProduct(t *testing.T) {
	page := buildPage(t, `<html><head><title>Acme Blue Kettle</title></head><body>
		<img id="thumb" src="/thumb-logo.png">
		<img id="main" src="/main-product.jpg" alt="Acme Blue Kettle">
	</body></html>`,
		at{"#main", box(100, 100, 800, 600)},
		at{"#thumb", box(10, 10, 40, 40)},
	)

	x := newExtractor(t, Options{})
	best, err := x.Find(page, models.FeatureImage)
	if err != nil {
		t.Fatal(err)
	}
	if got := Value(models.FeatureImage, best); got != "/main-product.jpg" {
		t.Errorf("picked %q, want /main-product.jpg", got)
	}
}

func TestImageExclusions(t *testing.T) {
	page := buildPage(t, `<img src="/big.svg"><img src="data:image/png;base64,AAAA"><img src="">`,
		at{"img", box(0, 0, 500, 500)})

	x := newExtractor(t, Options{})
	if _, err := x.Find(page, models.FeatureImage); !errors.Is(err, models.ErrExtractionMiss) {
		t.Errorf("got %v, want extraction miss when every image is excluded", err)
	}
}

func TestImageZeroAreaIsNotEliminated(t *testing.T) {
	page := buildPage(t, `<img src="/only.jpg">`)
	x := newExtractor(t, Options{})
	best, err := x.Find(page, models.FeatureImage)
	if err != nil {
		t.Fatal(err)
	}
	if best.Score <= 0 {
		t.Errorf("zero area image scored %v", best.Score)
	}
}

func TestTitleWordOverlap(t *testing.T) {
	page := buildPage(t, `<img id="a" src="/kettle-blue.jpg" alt="steel"><img id="b" src="/x.jpg">`)
	cands, err := engine.Tag(page, mustGroup(t, "img"), engine.CategoryImages)
	if err != nil {
		t.Fatal(err)
	}

	words := titleWordList("Blue | Kettle, Steel")
	// "Kettle," is not alphanumeric and is skipped.
	if got := titleWordMatches(cands[0], words); got != 2 {
		t.Errorf("matches for a = %d, want 2", got)
	}
	if got := titleWordMatches(cands[1], words); got != 0 {
		t.Errorf("matches for b = %d, want 0", got)
	}
	if got := titleWordMatches(cands[0], nil); got != 0 {
		t.Errorf("empty word list matched %d", got)
	}
}

func TestPricePicksCurrentPrice(t *testing.T) {
	page := buildPage(t, `<html><head><title>Kettle</title></head><body>
		<div class="header">Free shipping over $50.00 and $5 returns, $0 fees</div>
		<div class="buy">
			<span id="was" class="price-old">$39.99</span>
			<span id="now" class="price">$29.99</span>
			<span id="save">- $10.00</span>
		</div>
	</body></html>`,
		at{"div, span", box(300, 900, 100, 20)},
		at{"#was", dom.Geometry{Top: 300, Left: 900, Bottom: 320, Right: 1000, Strikethrough: "line-through"}},
	)

	x := newExtractor(t, Options{})
	best, err := x.Find(page, models.FeaturePrice)
	if err != nil {
		t.Fatal(err)
	}
	if got := best.Element.ID(); got != "now" {
		t.Errorf("picked #%s (%q), want #now", got, best.Element.Text())
	}
}

func TestPriceMetaItemprop(t *testing.T) {
	page := buildPage(t, `<html><head>
		<meta itemprop="priceCurrency" content="USD">
		<meta itemprop="price" content="24.50">
	</head><body><span>$ 24.50</span></body></html>`)

	x := newExtractor(t, Options{})
	best, err := x.Find(page, models.FeaturePrice)
	if err != nil {
		t.Fatal(err)
	}
	if got := Value(models.FeaturePrice, best); got != "24.50" {
		t.Errorf("value = %q, want meta content 24.50", got)
	}
}

func TestDigitBand(t *testing.T) {
	tests := []struct {
		text string
		want DigitBand
	}{
		{"$1.99", BandSingle},
		{"123", BandSingle},
		{"$19.99 - $29", BandRange},
		{"123456", BandRange},
		{"123456789012", BandNoise},
		{"no digits", BandNoise},
	}
	for _, tt := range tests {
		if got := DigitBandOf(tt.text); got != tt.want {
			t.Errorf("DigitBandOf(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
	if got := digitBandWeight("123", 1.6, 0.8, 0.2); got != 1.6 {
		t.Errorf("single band weight = %v", got)
	}
	if got := digitBandWeight("123456", 1.6, 0.8, 0.2); got != 0.8 {
		t.Errorf("range band weight = %v", got)
	}
	if got := digitBandWeight("123456789012", 1.6, 0.8, 0.2); got != 0.2 {
		t.Errorf("noise band weight = %v", got)
	}
}

func TestPricePredicates(t *testing.T) {
	if !isSavingsAmount("Save -$5") {
		t.Error("lone minus should be a savings amount")
	}
	if isSavingsAmount("$19.99 - $29.99") {
		t.Error("range should not be a savings amount")
	}
	for _, s := range []string{"$19.99 - $29.99", "$12.50", "€12", "£ 7"} {
		if !hasPriceFormat(s) {
			t.Errorf("hasPriceFormat(%q) = false", s)
		}
	}
	if hasPriceFormat("twelve dollars") {
		t.Error("words should not match a price format")
	}
	if currencyCount("$1 $2 €3") != 3 {
		t.Error("currencyCount mismatch")
	}
}

// Every rule must return a non-negative finite multiplier for any element
// shape; only the exclusion rules and hasSrc may return zero.
func TestMultipliersNonNegative(t *testing.T) {
	page := buildPage(t, `<html><head><title>T | Shop</title><meta name="x"></head><body>
		<div></div><span>-</span><p>$$$$ 1.2.3</p><img><img src="a.svg"><img src="data:x">
		<h1 class="price bold now" itemprop="price">$1,299.00<sup>00</sup></h1><em>€9-€12</em>
	</body></html>`, at{"p", box(5000, 5000, -10, -10)})

	scaled := func(f models.Feature, k float64) models.Coefficients {
		c := DefaultCoefficients(f)
		for i := range c {
			c[i].Value = math.Round(c[i].Value*k*10) / 10
		}
		return c
	}
	sets := map[string]Options{
		"defaults": {},
		"zero": Options{}.
			WithCoefficients(models.FeatureImage, scaled(models.FeatureImage, 0)).
			WithCoefficients(models.FeaturePrice, scaled(models.FeaturePrice, 0)),
		"large": Options{}.
			WithCoefficients(models.FeatureImage, scaled(models.FeatureImage, 7)).
			WithCoefficients(models.FeaturePrice, scaled(models.FeaturePrice, 7)),
	}
	for name, opts := range sets {
		x := newExtractor(t, opts)
		for _, f := range []models.Feature{models.FeatureImage, models.FeaturePrice} {
			rs := x.Ruleset(f)
			ctx := x.Context(page)
			cands, err := engine.Tag(page, mustGroup(t, rs.Selector()), rs.Category)
			if err != nil {
				t.Fatal(err)
			}
			for _, r := range rs.Rules {
				for _, c := range cands {
					v := r.Score(c, ctx)
					if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
						t.Errorf("%s: %s/%s on <%s> returned %v", name, f, r.Name, c.Element.Tag(), v)
					}
				}
			}
		}
	}
}

func TestNegativeCoefficientsRejected(t *testing.T) {
	if _, err := DefaultImageCoefficients().Override(map[string]float64{"notSVG": 0.1 - 0.3}); models.CodeOf(err) != models.ErrCodeInvalidInput {
		t.Errorf("Override accepted a negative weight: %v", err)
	}
	if _, err := DefaultPriceCoefficients().Override(map[string]float64{"strike": math.NaN()}); err == nil {
		t.Error("Override accepted NaN")
	}

	neg := DefaultImageCoefficients()
	neg[neg.Index("notSVG")].Value = -0.2
	if _, err := New(Options{}.WithCoefficients(models.FeatureImage, neg)); models.CodeOf(err) != models.ErrCodeInvalidInput {
		t.Errorf("New accepted a negative weight: %v", err)
	}
}

func TestOptionsTogglesAndCoefficients(t *testing.T) {
	x := newExtractor(t, Options{
		Enable:  map[models.Feature][]string{models.FeaturePrice: {"priceFormat", "bolded"}},
		Disable: map[models.Feature][]string{models.FeaturePrice: {"bolded"}},
	})
	enabled := map[string]bool{}
	for _, n := range x.Ruleset(models.FeaturePrice).EnabledRules() {
		enabled[n] = true
	}
	if !enabled["priceFormat"] || enabled["bolded"] || enabled["hasNumbers"] {
		t.Errorf("unexpected enabled set %v", enabled)
	}

	if _, err := New(Options{Disable: map[models.Feature][]string{models.FeatureImage: {"nope"}}}); err == nil {
		t.Error("unknown rule name should fail")
	}

	// A zero hasSrc weight eliminates every image.
	coeffs, _ := DefaultImageCoefficients().Override(map[string]float64{"hasSrc": 0})
	x = newExtractor(t, Options{}.WithCoefficients(models.FeatureImage, coeffs))
	page := buildPage(t, `<img src="/a.jpg">`)
	if _, err := x.Find(page, models.FeatureImage); !errors.Is(err, models.ErrExtractionMiss) {
		t.Errorf("got %v, want extraction miss", err)
	}
}

func TestExtract(t *testing.T) {
	page := buildPage(t, `<html><head><title>Red Mug</title></head><body>
		<img src="/red-mug.jpg?w=200" alt="Red Mug"><span class="price">$12.00</span></body></html>`,
		at{"img", box(100, 100, 400, 400)}, at{"span", box(300, 700, 80, 20)})

	res := newExtractor(t, Options{}).Extract(page)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	want := models.Product{Title: "Red Mug", Image: "/red-mug.jpg?w=200", Price: "$12.00"}
	if res.Product != want {
		t.Errorf("product = %+v, want %+v", res.Product, want)
	}
}
