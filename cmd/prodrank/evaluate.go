package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/use-agent/prodrank/config"
	"github.com/use-agent/prodrank/fixture"
	"github.com/use-agent/prodrank/harness"
	"github.com/use-agent/prodrank/models"
	"github.com/use-agent/prodrank/rules"
	"github.com/use-agent/prodrank/webhook"
)

// featureReport is the printed form of a harness report.
type featureReport struct {
	Feature       models.Feature `json:"feature" yaml:"feature"`
	ErrorRate     float64        `json:"error_rate" yaml:"error_rate"`
	Total         int            `json:"total" yaml:"total"`
	Scored        int            `json:"scored" yaml:"scored"`
	Mismatches    int            `json:"mismatches" yaml:"mismatches"`
	FixtureErrors int            `json:"fixture_errors" yaml:"fixture_errors"`
	CanonErrors   int            `json:"canonicalization_errors" yaml:"canonicalization_errors"`
	Elapsed       string         `json:"elapsed" yaml:"elapsed"`
	Cases         []caseLine     `json:"cases,omitempty" yaml:"cases,omitempty"`
}

type caseLine struct {
	Case     string          `json:"case" yaml:"case"`
	Outcome  harness.Outcome `json:"outcome" yaml:"outcome"`
	Expected string          `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string          `json:"actual,omitempty" yaml:"actual,omitempty"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func newFeatureReport(rep *harness.Report, all bool) featureReport {
	out := featureReport{
		Feature:       rep.Feature,
		ErrorRate:     rep.ErrorRate(),
		Total:         rep.Total,
		Scored:        rep.Scored,
		Mismatches:    rep.Mismatches,
		FixtureErrors: rep.FixtureErrors,
		CanonErrors:   rep.CanonErrors,
		Elapsed:       rep.Elapsed.Round(time.Millisecond).String(),
	}
	for _, res := range rep.Results {
		if !all && res.Outcome == harness.OutcomeMatch {
			continue
		}
		line := caseLine{Case: res.Case, Outcome: res.Outcome, Expected: res.Expected, Actual: res.Actual}
		if res.Err != nil {
			line.Error = res.Err.Error()
		}
		out.Cases = append(out.Cases, line)
	}
	return out
}

var corpusFlag = &cli.StringFlag{
	Name:    "corpus",
	Aliases: []string{"d"},
	Usage:   "directory with one sub-directory per test case",
}

var workersFlag = &cli.IntFlag{
	Name:  "workers",
	Usage: "cases evaluated at once (0 means GOMAXPROCS)",
}

var skipPresenceFlag = &cli.BoolFlag{
	Name:  "skip-presence-check",
	Usage: "score mismatches even when the expected value occurs nowhere in the page",
}

// applyHarnessFlags overrides the harness config with the command flags.
func applyHarnessFlags(c *cli.Context, cfg *config.Config) {
	if v := c.String("corpus"); v != "" {
		cfg.Harness.Corpus = v
	}
	if c.IsSet("workers") {
		cfg.Harness.Workers = c.Int("workers")
	}
	if c.IsSet("skip-presence-check") {
		cfg.Harness.SkipPresenceCheck = c.Bool("skip-presence-check")
	}
}

func harnessOptions(cfg *config.Config) harness.Options {
	return harness.Options{
		Workers:           cfg.Harness.Workers,
		SkipPresenceCheck: cfg.Harness.SkipPresenceCheck,
	}
}

// parseFeatures returns the named features, or all of them.
func parseFeatures(names []string) ([]models.Feature, error) {
	if len(names) == 0 {
		return models.Features, nil
	}
	out := make([]models.Feature, 0, len(names))
	for _, n := range names {
		f, err := models.ParseFeature(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:      "evaluate",
		Usage:     "report the error rate of the rulesets over a labeled corpus",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			corpusFlag,
			workersFlag,
			skipPresenceFlag,
			formatFlag,
			&cli.StringSliceFlag{Name: "feature", Aliases: []string{"f"}, Usage: "feature to evaluate (repeatable; default all)"},
			&cli.BoolFlag{Name: "all", Usage: "list matching cases too"},
			&cli.Float64Flag{Name: "fail-above", Value: -1, Usage: "exit non-zero when an error rate exceeds this percentage"},
		},
		Action: evaluateAction,
	}
}

func evaluateAction(c *cli.Context) error {
	cfg := loadConfig(c)
	applyHarnessFlags(c, cfg)

	features, err := parseFeatures(c.StringSlice("feature"))
	if err != nil {
		return err
	}
	_, opts, err := extractorOptions(cfg)
	if err != nil {
		return err
	}
	x, err := rules.New(opts)
	if err != nil {
		return err
	}
	cases, err := fixture.LoadCorpus(cfg.Harness.Corpus)
	if err != nil {
		return err
	}
	slog.Info("corpus loaded", "corpus", cfg.Harness.Corpus, "cases", len(cases))
	for _, d := range fixture.Duplicates(cases, fixture.DefaultDuplicateDistance) {
		slog.Warn("near-duplicate cases", "a", d.A, "b", d.B, "distance", d.Distance)
	}

	reports := make([]featureReport, 0, len(features))
	rates := make(map[models.Feature]float64, len(features))
	for _, f := range features {
		rep, err := harness.Evaluate(c.Context, cases, f, x, harnessOptions(cfg))
		if err != nil {
			if errors.Is(err, harness.ErrEmptyCorpus) {
				slog.Warn("no scorable cases", "feature", f)
				continue
			}
			return err
		}
		slog.Info("feature evaluated", "feature", f, "error_rate", rep.ErrorRate(),
			"scored", rep.Scored, "mismatches", rep.Mismatches)
		reports = append(reports, newFeatureReport(rep, c.Bool("all")))
		rates[f] = rep.ErrorRate()
	}
	if len(reports) == 0 {
		return harness.ErrEmptyCorpus
	}

	if err := emit(os.Stdout, c.String("format"), reports); err != nil {
		return err
	}

	n := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.Timeout, cfg.Webhook.Retries)
	event := webhook.NewEvent(webhook.EventEvaluateCompleted, runID("evaluate"), map[string]any{
		"corpus":      cfg.Harness.Corpus,
		"cases":       len(cases),
		"error_rates": rates,
	})
	if err := n.Notify(c.Context, event); err != nil {
		slog.Warn("webhook delivery failed", "error", err)
	}

	if limit := c.Float64("fail-above"); limit >= 0 {
		for f, r := range rates {
			if r > limit {
				return fmt.Errorf("%s error rate %.2f%% exceeds %.2f%%", f, r, limit)
			}
		}
	}
	return nil
}

func runID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
