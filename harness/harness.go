// Package harness scores a ruleset against a labeled corpus and reports
// its error rate.
package harness

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/prodrank/fixture"
	"github.com/use-agent/prodrank/models"
	"github.com/use-agent/prodrank/rules"
)

// Outcome classifies a single case.
type Outcome string

const (
	OutcomeMatch    Outcome = "match"
	OutcomeMismatch Outcome = "mismatch"
	OutcomeMiss     Outcome = "miss"

	// OutcomeInvalidActual marks an extracted value that could not be
	// canonicalized. It is scored as a miss.
	OutcomeInvalidActual Outcome = "invalid_actual"

	// Excluded from scoring.
	OutcomeInvalidExpected Outcome = "invalid_expected"
	OutcomeFixtureError    Outcome = "fixture_error"
)

// Scored reports whether the outcome enters the error rate.
func (o Outcome) Scored() bool {
	return o != OutcomeInvalidExpected && o != OutcomeFixtureError
}

// Failed reports whether the outcome counts as a mismatch.
func (o Outcome) Failed() bool {
	return o == OutcomeMismatch || o == OutcomeMiss || o == OutcomeInvalidActual
}

// CaseResult is the evaluation of one case for one feature.
type CaseResult struct {
	Case     string              `json:"case"`
	Outcome  Outcome             `json:"outcome"`
	Expected string              `json:"expected,omitempty"`
	Actual   string              `json:"actual,omitempty"`
	Score    float64             `json:"score,omitempty"`
	Err      error               `json:"-"`
	Error    *models.ErrorDetail `json:"error,omitempty"`
}

// Report summarizes an evaluation run. Results are in case order.
type Report struct {
	Feature       models.Feature `json:"feature"`
	Results       []CaseResult   `json:"results"`
	Total         int            `json:"total"`
	Scored        int            `json:"scored"`
	Mismatches    int            `json:"mismatches"`
	FixtureErrors int            `json:"fixture_errors"`
	CanonErrors   int            `json:"canonicalization_errors"`
	Elapsed       time.Duration  `json:"elapsed"`
}

// ErrorRate is the percentage of scored cases that failed.
func (r *Report) ErrorRate() float64 {
	if r.Scored == 0 {
		return 0
	}
	return float64(r.Mismatches) / float64(r.Scored) * 100
}

// Failures returns the scored cases that did not match.
func (r *Report) Failures() []CaseResult {
	var out []CaseResult
	for _, res := range r.Results {
		if res.Outcome.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// ErrEmptyCorpus is returned when no case could be scored.
var ErrEmptyCorpus = models.NewExtractError(models.ErrCodeFixtureIntegrity, "no scorable cases in corpus", nil)

// Options tune an evaluation run.
type Options struct {
	// Workers bounds the number of cases evaluated at once. Zero means
	// GOMAXPROCS.
	Workers int

	// SkipPresenceCheck disables the lookup that turns a mismatch into a
	// fixture error when no candidate of the page carries the expected
	// value.
	SkipPresenceCheck bool
}

// Evaluate runs feature f of x over cases. Per-case problems are recorded
// in the report; only a cancelled context or an empty corpus is an error.
func Evaluate(ctx context.Context, cases []*fixture.TestCase, f models.Feature, x *rules.Extractor, opts Options) (*Report, error) {
	start := time.Now()
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]CaseResult, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, tc := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = safeEvaluateCase(tc, f, x, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{Feature: f, Results: results, Total: len(results)}
	for _, res := range results {
		switch res.Outcome {
		case OutcomeFixtureError:
			rep.FixtureErrors++
			slog.Warn("harness: fixture error", "case", res.Case, "feature", f, "error", res.Err)
		case OutcomeInvalidExpected:
			rep.CanonErrors++
			slog.Warn("harness: expected value not canonicalizable", "case", res.Case, "feature", f, "error", res.Err)
		case OutcomeInvalidActual:
			rep.CanonErrors++
		}
		if res.Outcome.Scored() {
			rep.Scored++
		}
		if res.Outcome.Failed() {
			rep.Mismatches++
			slog.Debug("harness: case failed", "case", res.Case, "feature", f,
				"outcome", res.Outcome, "got", res.Actual, "expected", res.Expected)
		}
	}
	rep.Elapsed = time.Since(start)

	if rep.Scored == 0 {
		return rep, ErrEmptyCorpus
	}
	return rep, nil
}

// safeEvaluateCase confines a panicking rule to the case it ran on.
func safeEvaluateCase(tc *fixture.TestCase, f models.Feature, x *rules.Extractor, opts Options) (res CaseResult) {
	defer func() {
		if r := recover(); r != nil {
			err := models.FixtureIntegrityError("case %s panicked while scoring %s: %v", tc.ID, f, r)
			res = CaseResult{
				Case:    tc.ID,
				Outcome: OutcomeFixtureError,
				Err:     err,
				Error:   err.ToDetail(),
			}
		}
	}()
	return evaluateCase(tc, f, x, opts)
}

func evaluateCase(tc *fixture.TestCase, f models.Feature, x *rules.Extractor, opts Options) CaseResult {
	res := CaseResult{Case: tc.ID}
	fail := func(o Outcome, err error) CaseResult {
		res.Outcome = o
		res.Err = err
		if err != nil {
			res.Error = &models.ErrorDetail{Code: models.CodeOf(err), Message: err.Error()}
		}
		return res
	}

	raw, err := tc.ExpectedValue(f)
	if err != nil {
		return fail(OutcomeFixtureError, err)
	}
	res.Expected = raw
	expected, err := Canonicalize(f, raw)
	if err != nil {
		return fail(OutcomeInvalidExpected, err)
	}

	best, err := x.Find(tc.Page, f)
	switch {
	case models.IsExtractionMiss(err):
		if !opts.SkipPresenceCheck && !present(tc, f, x, expected) {
			return fail(OutcomeFixtureError, absentError(f, raw))
		}
		return fail(OutcomeMiss, err)
	case err != nil:
		if models.IsFixtureIntegrity(err) {
			return fail(OutcomeFixtureError, err)
		}
		return fail(OutcomeMiss, err)
	}

	res.Actual = rules.Value(f, best)
	res.Score = best.Score
	actual, err := Canonicalize(f, res.Actual)
	if err != nil {
		return fail(OutcomeInvalidActual, err)
	}
	if actual == expected {
		res.Outcome = OutcomeMatch
		return res
	}
	if !opts.SkipPresenceCheck && !present(tc, f, x, expected) {
		return fail(OutcomeFixtureError, absentError(f, raw))
	}
	res.Outcome = OutcomeMismatch
	return res
}

// present reports whether any candidate of f on the page, scored or not,
// canonicalizes to expected.
func present(tc *fixture.TestCase, f models.Feature, x *rules.Extractor, expected string) bool {
	rs := x.Ruleset(f)
	if rs == nil {
		return false
	}
	cands, err := rs.Score(tc.Page, x.Context(tc.Page))
	if err != nil {
		return false
	}
	for _, c := range cands {
		v, err := Canonicalize(f, rules.Value(f, c))
		if err == nil && v == expected {
			return true
		}
	}
	return false
}

func absentError(f models.Feature, raw string) error {
	return models.FixtureIntegrityError("expected %s %q does not occur in the document", f, raw)
}

// Cost returns a function that builds an extractor from base with the
// given coefficients for f and returns its error rate over cases.
func Cost(cases []*fixture.TestCase, f models.Feature, base rules.Options, opts Options) func(context.Context, models.Coefficients) (float64, error) {
	return func(ctx context.Context, c models.Coefficients) (float64, error) {
		x, err := rules.New(base.WithCoefficients(f, c))
		if err != nil {
			return 0, err
		}
		rep, err := Evaluate(ctx, cases, f, x, opts)
		if err != nil {
			return 0, err
		}
		return rep.ErrorRate(), nil
	}
}
