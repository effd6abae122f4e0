package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coefficient is one named tunable weight.
type Coefficient struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// Coefficients is an ordered vector of named weights for one feature.
// The order is fixed by the ruleset that declares the names; the tuner
// addresses entries by position, configuration files by name.
type Coefficients []Coefficient

// Clone returns an independent copy.
func (c Coefficients) Clone() Coefficients {
	out := make(Coefficients, len(c))
	copy(out, c)
	return out
}

// Get returns the value of name, or fallback if the vector lacks it.
func (c Coefficients) Get(name string, fallback float64) float64 {
	for _, e := range c {
		if e.Name == name {
			return e.Value
		}
	}
	return fallback
}

// Index returns the position of name, or -1.
func (c Coefficients) Index(name string) int {
	for i, e := range c {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Values returns the bare weights in order.
func (c Coefficients) Values() []float64 {
	out := make([]float64, len(c))
	for i, e := range c {
		out[i] = e.Value
	}
	return out
}

// Override returns a copy of c with the named values replaced. Names not
// present in c are rejected so that typos in configuration files surface,
// as are negative or non-finite weights.
func (c Coefficients) Override(values map[string]float64) (Coefficients, error) {
	out := c.Clone()
	for name, v := range values {
		i := out.Index(name)
		if i < 0 {
			return nil, NewExtractError(ErrCodeInvalidInput, fmt.Sprintf("unknown coefficient %q", name), nil)
		}
		if err := ValidateWeight(name, v); err != nil {
			return nil, err
		}
		out[i].Value = v
	}
	return out, nil
}

// ValidateWeight rejects a weight that would make a rule return a negative
// or undefined multiplier.
func ValidateWeight(name string, v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return NewExtractError(ErrCodeInvalidInput,
			fmt.Sprintf("coefficient %q must be a finite non-negative number, got %v", name, v), nil)
	}
	return nil
}

// Validate checks every weight of c with ValidateWeight.
func (c Coefficients) Validate() error {
	for _, e := range c {
		if err := ValidateWeight(e.Name, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// String renders the vector as name=value pairs.
func (c Coefficients) String() string {
	parts := make([]string, len(c))
	for i, e := range c {
		parts[i] = e.Name + "=" + strconv.FormatFloat(e.Value, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
