// Package tuner searches a coefficient vector for low harness error with
// simulated annealing.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/use-agent/prodrank/models"
)

// CostFunc scores a coefficient vector. Lower is better.
type CostFunc func(ctx context.Context, c models.Coefficients) (float64, error)

// Config controls the annealing schedule.
type Config struct {
	// Iterations is the proposal budget.
	Iterations int // default: 500

	// Step is the magnitude added to or subtracted from one coefficient.
	Step float64 // default: 0.3

	// Temperature is the starting temperature. Zero accepts improving
	// moves only.
	Temperature float64 // default: 10

	// Cooling multiplies the temperature every StepsPerTemp iterations.
	Cooling float64 // default: 0.95

	StepsPerTemp int // default: 20

	// Patience stops the search after this many iterations without a new
	// best. Zero disables early stopping.
	Patience int // default: 150

	// Seed makes runs reproducible. Zero picks a random seed.
	Seed uint64
}

// DefaultConfig returns the default schedule.
func DefaultConfig() Config {
	return Config{
		Iterations:   500,
		Step:         0.3,
		Temperature:  10,
		Cooling:      0.95,
		StepsPerTemp: 20,
		Patience:     150,
	}
}

// Validate rejects schedules that cannot run.
func (c Config) Validate() error {
	switch {
	case c.Iterations < 0:
		return errors.New("tuner: iterations must not be negative")
	case c.Step <= 0:
		return errors.New("tuner: step must be positive")
	case c.Temperature < 0:
		return errors.New("tuner: temperature must not be negative")
	case c.Cooling <= 0 || c.Cooling > 1:
		return errors.New("tuner: cooling must be in (0, 1]")
	case c.StepsPerTemp <= 0:
		return errors.New("tuner: steps per temperature must be positive")
	case c.Patience < 0:
		return errors.New("tuner: patience must not be negative")
	}
	return nil
}

// Step records one proposal.
type Step struct {
	Iteration   int     `json:"iteration"`
	Temperature float64 `json:"temperature"`
	Cost        float64 `json:"cost"`
	Accepted    bool    `json:"accepted"`
	BestCost    float64 `json:"best_cost"`
}

// Result is the outcome of a run.
type Result struct {
	Initial     models.Coefficients `json:"initial"`
	InitialCost float64             `json:"initial_cost"`
	Best        models.Coefficients `json:"best"`
	BestCost    float64             `json:"best_cost"`
	Iterations  int                 `json:"iterations"`
	Accepted    int                 `json:"accepted"`
	Seed        uint64              `json:"seed"`
	EarlyStop   bool                `json:"early_stop"`
	History     []Step              `json:"history"`
	Elapsed     time.Duration       `json:"elapsed"`
}

// Summary describes the costs seen during a run.
type Summary struct {
	MeanCost    float64 `json:"mean_cost" yaml:"mean_cost"`
	StdDevCost  float64 `json:"stddev_cost" yaml:"stddev_cost"`
	AcceptRate  float64 `json:"accept_rate" yaml:"accept_rate"`
	Improvement float64 `json:"improvement" yaml:"improvement"`
}

// Summary computes cost statistics over the run's history.
func (r *Result) Summary() Summary {
	s := Summary{Improvement: r.InitialCost - r.BestCost}
	if len(r.History) == 0 {
		return s
	}
	costs := make([]float64, len(r.History))
	for i, h := range r.History {
		costs[i] = h.Cost
	}
	if len(costs) > 1 {
		s.MeanCost, s.StdDevCost = stat.MeanStdDev(costs, nil)
	} else {
		s.MeanCost = costs[0]
	}
	s.AcceptRate = float64(r.Accepted) / float64(len(r.History))
	return s
}

// Annealer runs the search. It is not safe for concurrent use.
type Annealer struct {
	cfg  Config
	cost CostFunc
	seed uint64
	rng  *rand.Rand
}

// New builds an Annealer over cost.
func New(cost CostFunc, cfg Config) (*Annealer, error) {
	if cost == nil {
		return nil, errors.New("tuner: nil cost function")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Annealer{
		cfg:  cfg,
		cost: cost,
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Propose returns a copy of c with one uniformly chosen coefficient moved
// by plus or minus Step. Weights never drop below zero, and values are
// rounded so that a vector revisited by the search renders identically.
func (a *Annealer) Propose(c models.Coefficients) models.Coefficients {
	out := c.Clone()
	if len(out) == 0 {
		return out
	}
	i := a.rng.IntN(len(out))
	v := out[i].Value
	if a.rng.IntN(2) == 0 {
		v -= a.cfg.Step
	} else {
		v += a.cfg.Step
	}
	out[i].Value = roundWeight(max(0, v))
	return out
}

// weightPrecision is the grid proposals are snapped to.
const weightPrecision = 1e9

func roundWeight(v float64) float64 {
	return math.Round(v*weightPrecision) / weightPrecision
}

// Accept decides whether to move from a state of cost current to one of
// cost next at temperature t.
func (a *Annealer) Accept(current, next, t float64) bool {
	if next < current {
		return true
	}
	if t <= 0 {
		return false
	}
	return a.rng.Float64() < math.Exp(-(next-current)/t)
}

// Run anneals from initial and returns the best vector seen.
func (a *Annealer) Run(ctx context.Context, initial models.Coefficients) (*Result, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("tuner: initial vector: %w", err)
	}
	start := time.Now()
	current := initial.Clone()
	currentCost, err := a.cost(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("tuner: initial cost: %w", err)
	}

	res := &Result{
		Initial:     initial.Clone(),
		InitialCost: currentCost,
		Best:        current.Clone(),
		BestCost:    currentCost,
		Seed:        a.seed,
		History:     make([]Step, 0, a.cfg.Iterations),
	}
	slog.Info("tuner: start", "cost", currentCost, "iterations", a.cfg.Iterations,
		"temperature", a.cfg.Temperature, "seed", a.seed)

	t := a.cfg.Temperature
	stale := 0
	for i := 1; i <= a.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := a.Propose(current)
		nextCost, err := a.cost(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("tuner: iteration %d: %w", i, err)
		}

		accepted := a.Accept(currentCost, nextCost, t)
		if accepted {
			current, currentCost = next, nextCost
			res.Accepted++
			slog.Debug("tuner: accepted", "iteration", i, "cost", nextCost, "temperature", t)
		}
		if currentCost < res.BestCost {
			res.Best, res.BestCost = current.Clone(), currentCost
			stale = 0
			slog.Info("tuner: new best", "iteration", i, "cost", currentCost)
		} else {
			stale++
		}

		res.History = append(res.History, Step{
			Iteration:   i,
			Temperature: t,
			Cost:        nextCost,
			Accepted:    accepted,
			BestCost:    res.BestCost,
		})
		res.Iterations = i

		if i%a.cfg.StepsPerTemp == 0 {
			t *= a.cfg.Cooling
		}
		if a.cfg.Patience > 0 && stale >= a.cfg.Patience {
			res.EarlyStop = true
			break
		}
	}

	res.Elapsed = time.Since(start)
	slog.Info("tuner: done", "best_cost", res.BestCost, "initial_cost", res.InitialCost,
		"iterations", res.Iterations, "accepted", res.Accepted, "elapsed", res.Elapsed)
	return res, nil
}
