package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/use-agent/prodrank/cache"
	"github.com/use-agent/prodrank/config"
	"github.com/use-agent/prodrank/fixture"
	"github.com/use-agent/prodrank/harness"
	"github.com/use-agent/prodrank/models"
	"github.com/use-agent/prodrank/rules"
	"github.com/use-agent/prodrank/tuner"
	"github.com/use-agent/prodrank/webhook"
)

// tuneOutput is the printed form of a tuning run.
type tuneOutput struct {
	Feature     models.Feature      `json:"feature" yaml:"feature"`
	Seed        uint64              `json:"seed" yaml:"seed"`
	InitialCost float64             `json:"initial_cost" yaml:"initial_cost"`
	BestCost    float64             `json:"best_cost" yaml:"best_cost"`
	Iterations  int                 `json:"iterations" yaml:"iterations"`
	Accepted    int                 `json:"accepted" yaml:"accepted"`
	EarlyStop   bool                `json:"early_stop" yaml:"early_stop"`
	Elapsed     string              `json:"elapsed" yaml:"elapsed"`
	Summary     tuner.Summary       `json:"summary" yaml:"summary"`
	CacheHits   int64               `json:"cache_hits" yaml:"cache_hits"`
	Best        models.Coefficients `json:"best" yaml:"best"`
	Output      string              `json:"output,omitempty" yaml:"output,omitempty"`
}

func tuneCommand() *cli.Command {
	return &cli.Command{
		Name:      "tune",
		Usage:     "search the coefficients of one feature for a lower corpus error rate",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			corpusFlag,
			workersFlag,
			skipPresenceFlag,
			formatFlag,
			&cli.StringFlag{Name: "feature", Aliases: []string{"f"}, Required: true, Usage: "feature to tune (image or price)"},
			&cli.IntFlag{Name: "iterations", Usage: "proposal budget"},
			&cli.Float64Flag{Name: "step", Usage: "amount one coefficient moves per proposal"},
			&cli.Float64Flag{Name: "temperature", Usage: "starting temperature"},
			&cli.Float64Flag{Name: "cooling", Usage: "temperature multiplier per cooling step"},
			&cli.IntFlag{Name: "steps-per-temp", Usage: "iterations between cooling steps"},
			&cli.IntFlag{Name: "patience", Usage: "stop after this many iterations without a new best (0 disables)"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed (0 picks one)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the coefficient file with the best vector here"},
		},
		Action: tuneAction,
	}
}

// applyTunerFlags overrides the annealing schedule with the command flags.
func applyTunerFlags(c *cli.Context, cfg *config.Config) {
	t := &cfg.Tuner
	if c.IsSet("iterations") {
		t.Iterations = c.Int("iterations")
	}
	if c.IsSet("step") {
		t.Step = c.Float64("step")
	}
	if c.IsSet("temperature") {
		t.Temperature = c.Float64("temperature")
	}
	if c.IsSet("cooling") {
		t.Cooling = c.Float64("cooling")
	}
	if c.IsSet("steps-per-temp") {
		t.StepsPerTemp = c.Int("steps-per-temp")
	}
	if c.IsSet("patience") {
		t.Patience = c.Int("patience")
	}
	if c.IsSet("seed") {
		t.Seed = c.Uint64("seed")
	}
}

func schedule(t config.TunerConfig) tuner.Config {
	return tuner.Config{
		Iterations:   t.Iterations,
		Step:         t.Step,
		Temperature:  t.Temperature,
		Cooling:      t.Cooling,
		StepsPerTemp: t.StepsPerTemp,
		Patience:     t.Patience,
		Seed:         t.Seed,
	}
}

func tuneAction(c *cli.Context) error {
	cfg := loadConfig(c)
	applyHarnessFlags(c, cfg)
	applyTunerFlags(c, cfg)

	f, err := models.ParseFeature(c.String("feature"))
	if err != nil {
		return err
	}
	cf, opts, err := extractorOptions(cfg)
	if err != nil {
		return err
	}
	initial, ok := opts.Coefficients[f]
	if !ok {
		initial = rules.DefaultCoefficients(f)
	}
	if len(initial) == 0 {
		return models.NewExtractError(models.ErrCodeInvalidInput, "feature "+string(f)+" has no coefficients to tune", nil)
	}

	cases, err := fixture.LoadCorpus(cfg.Harness.Corpus)
	if err != nil {
		return err
	}
	slog.Info("corpus loaded", "corpus", cfg.Harness.Corpus, "cases", len(cases))

	memo := cache.New[float64](cfg.Cache.MaxEntries, 0)
	cost := cache.MemoizeCost(memo, f, harness.Cost(cases, f, opts, harnessOptions(cfg)))

	a, err := tuner.New(cost, schedule(cfg.Tuner))
	if err != nil {
		return err
	}
	res, err := a.Run(c.Context, initial)
	if err != nil {
		return err
	}

	hits, _ := memo.Stats()
	out := tuneOutput{
		Feature:     f,
		Seed:        res.Seed,
		InitialCost: res.InitialCost,
		BestCost:    res.BestCost,
		Iterations:  res.Iterations,
		Accepted:    res.Accepted,
		EarlyStop:   res.EarlyStop,
		Elapsed:     res.Elapsed.String(),
		Summary:     res.Summary(),
		CacheHits:   hits,
		Best:        res.Best,
	}
	if path := c.String("output"); path != "" {
		cf.SetCoefficients(f, res.Best)
		if err := config.SaveCoefficients(path, cf); err != nil {
			return err
		}
		out.Output = path
		slog.Info("coefficients written", "path", path, "feature", f)
	}

	if err := emit(os.Stdout, c.String("format"), out); err != nil {
		return err
	}

	n := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.Timeout, cfg.Webhook.Retries)
	if err := n.Notify(c.Context, webhook.NewEvent(webhook.EventTuneCompleted, runID("tune"), out)); err != nil {
		slog.Warn("webhook delivery failed", "error", err)
	}
	return nil
}
