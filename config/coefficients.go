package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/models"
	"github.com/use-agent/prodrank/rules"
)

// FeatureOverrides is the YAML shape of one feature's settings:
//
//	price:
//	  coefficients:
//	    spanBonus: 2.3
//	  enabled: [priceFormat]
//	  disabled: [middleHeight]
type FeatureOverrides struct {
	Coefficients map[string]float64 `yaml:"coefficients,omitempty"`
	Enabled      []string           `yaml:"enabled,omitempty"`
	Disabled     []string           `yaml:"disabled,omitempty"`
}

// CoefficientFile maps feature names to their overrides.
type CoefficientFile map[models.Feature]FeatureOverrides

// LoadCoefficients reads a coefficient file. An empty path yields an empty
// file so callers can pass the configured value unconditionally.
func LoadCoefficients(path string) (CoefficientFile, error) {
	if path == "" {
		return CoefficientFile{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read coefficients: %w", err)
	}
	return ParseCoefficients(raw)
}

// ParseCoefficients decodes a coefficient file. Unknown keys and negative
// weights are rejected.
func ParseCoefficients(raw []byte) (CoefficientFile, error) {
	out := CoefficientFile{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, models.NewExtractError(models.ErrCodeInvalidInput, "invalid coefficient file", err)
	}
	for f, o := range out {
		if _, err := models.ParseFeature(string(f)); err != nil {
			return nil, err
		}
		for name, v := range o.Coefficients {
			if err := models.ValidateWeight(name, v); err != nil {
				return nil, fmt.Errorf("config: %s: %w", f, err)
			}
		}
	}
	return out, nil
}

// Options turns the file into extractor options at viewport vp. Named
// coefficients are applied over the production defaults, so their order
// always follows the ruleset.
func (cf CoefficientFile) Options(vp dom.Viewport) (rules.Options, error) {
	opts := rules.Options{
		Viewport:     vp,
		Coefficients: map[models.Feature]models.Coefficients{},
		Enable:       map[models.Feature][]string{},
		Disable:      map[models.Feature][]string{},
	}
	for f, o := range cf {
		if len(o.Coefficients) > 0 {
			c, err := rules.DefaultCoefficients(f).Override(o.Coefficients)
			if err != nil {
				return rules.Options{}, fmt.Errorf("config: %s: %w", f, err)
			}
			opts.Coefficients[f] = c
		}
		if len(o.Enabled) > 0 {
			opts.Enable[f] = o.Enabled
		}
		if len(o.Disabled) > 0 {
			opts.Disable[f] = o.Disabled
		}
	}
	return opts, nil
}

// SetCoefficients records c as the full weight set of f, keeping the
// feature's rule toggles.
func (cf CoefficientFile) SetCoefficients(f models.Feature, c models.Coefficients) {
	o := cf[f]
	o.Coefficients = make(map[string]float64, len(c))
	for _, e := range c {
		o.Coefficients[e.Name] = e.Value
	}
	cf[f] = o
}

// SaveCoefficients writes cf to path as YAML.
func SaveCoefficients(path string, cf CoefficientFile) error {
	raw, err := yaml.Marshal(cf)
	if err != nil {
		return fmt.Errorf("config: encode coefficients: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: write coefficients: %w", err)
	}
	return nil
}

// Viewport converts the configured dimensions.
func (v ViewportConfig) Viewport() dom.Viewport {
	return dom.Viewport{Width: v.Width, Height: v.Height}
}
