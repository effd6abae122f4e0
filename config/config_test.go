package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/models"
	"github.com/use-agent/prodrank/rules"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Viewport.Viewport() != dom.DefaultViewport {
		t.Errorf("viewport = %+v, want %+v", cfg.Viewport, dom.DefaultViewport)
	}
	if cfg.Server.Port != 8080 || cfg.Tuner.Iterations != 500 || cfg.Tuner.Step != 0.3 {
		t.Errorf("unexpected defaults: %+v %+v", cfg.Server, cfg.Tuner)
	}
	if cfg.CoefficientsFile != "" {
		t.Errorf("coefficients file = %q", cfg.CoefficientsFile)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PRODRANK_VIEWPORT_WIDTH", "1280")
	t.Setenv("PRODRANK_VIEWPORT_HEIGHT", "720")
	t.Setenv("PRODRANK_TUNE_SEED", "17")
	t.Setenv("PRODRANK_COLLECT_TIMEOUT", "5s")
	t.Setenv("PRODRANK_API_KEYS", "a, b,,c")
	t.Setenv("PRODRANK_PORT", "not-a-number")

	cfg := Load()
	if cfg.Viewport.Width != 1280 || cfg.Viewport.Height != 720 {
		t.Errorf("viewport = %+v", cfg.Viewport)
	}
	if cfg.Tuner.Seed != 17 {
		t.Errorf("seed = %d", cfg.Tuner.Seed)
	}
	if cfg.Collector.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Collector.Timeout)
	}
	if len(cfg.Auth.APIKeys) != 3 || cfg.Auth.APIKeys[1] != "b" {
		t.Errorf("keys = %q", cfg.Auth.APIKeys)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("unparseable port should fall back, got %d", cfg.Server.Port)
	}
}

const overrides = `
image:
  coefficients:
    size: 2.5
  disabled: [leftOfPage]
price:
  enabled: [priceFormat]
`

func TestCoefficientFileOptions(t *testing.T) {
	cf, err := ParseCoefficients([]byte(overrides))
	if err != nil {
		t.Fatal(err)
	}
	opts, err := cf.Options(dom.Viewport{Width: 1280, Height: 720})
	if err != nil {
		t.Fatal(err)
	}

	img := opts.Coefficients[models.FeatureImage]
	if got := img.Get("size", 0); got != 2.5 {
		t.Errorf("size = %v, want 2.5", got)
	}
	if got := img.Get("hasSrc", 0); got != 3.0 {
		t.Errorf("hasSrc should keep its default, got %v", got)
	}
	if img.Index("size") != rules.DefaultImageCoefficients().Index("size") {
		t.Error("override changed coefficient order")
	}
	if _, ok := opts.Coefficients[models.FeaturePrice]; ok {
		t.Error("price has no coefficient overrides")
	}

	x, err := rules.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	enabled := map[string]bool{}
	for _, n := range x.Ruleset(models.FeatureImage).EnabledRules() {
		enabled[n] = true
	}
	if enabled["leftOfPage"] || !enabled["size"] {
		t.Errorf("image rules = %v", enabled)
	}
	if x.Viewport().Width != 1280 {
		t.Errorf("viewport = %+v", x.Viewport())
	}
}

func TestParseCoefficientsRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"unknown feature": "color:\n  coefficients: {a: 1}\n",
		"unknown key":     "price:\n  weights: {a: 1}\n",
		"negative weight": "image:\n  coefficients: {notSVG: -0.2}\n",
	} {
		if _, err := ParseCoefficients([]byte(raw)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}

	cf, err := ParseCoefficients([]byte("price:\n  coefficients: {nope: 1}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cf.Options(dom.DefaultViewport); err == nil {
		t.Error("unknown coefficient name accepted")
	}

	if cf, err := ParseCoefficients(nil); err != nil || len(cf) != 0 {
		t.Errorf("empty file: %v, %v", cf, err)
	}
}

func TestSaveAndLoadCoefficients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coeffs.yaml")
	cf := CoefficientFile{models.FeaturePrice: {Disabled: []string{"middleHeight"}}}
	tuned, _ := rules.DefaultPriceCoefficients().Override(map[string]float64{"spanBonus": 2.3})
	cf.SetCoefficients(models.FeaturePrice, tuned)

	if err := SaveCoefficients(path, cf); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadCoefficients(path)
	if err != nil {
		t.Fatal(err)
	}
	p := loaded[models.FeaturePrice]
	if p.Coefficients["spanBonus"] != 2.3 || len(p.Coefficients) != len(tuned) {
		t.Errorf("coefficients = %v", p.Coefficients)
	}
	if len(p.Disabled) != 1 || p.Disabled[0] != "middleHeight" {
		t.Errorf("disabled = %v", p.Disabled)
	}

	if cf, err := LoadCoefficients(""); err != nil || len(cf) != 0 {
		t.Errorf("empty path: %v, %v", cf, err)
	}
}
