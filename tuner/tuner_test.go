package tuner

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/use-agent/prodrank/models"
	"github.com/use-agent/prodrank/rules"
)

func vector(values ...float64) models.Coefficients {
	c := make(models.Coefficients, len(values))
	for i, v := range values {
		c[i] = models.Coefficient{Name: string(rune('a' + i)), Value: v}
	}
	return c
}

// distance is a separable convex cost with its minimum at target.
func distance(target ...float64) CostFunc {
	return func(_ context.Context, c models.Coefficients) (float64, error) {
		var sum float64
		for i, v := range c.Values() {
			d := v - target[i]
			sum += d * d
		}
		return sum, nil
	}
}

func newAnnealer(t *testing.T, cost CostFunc, cfg Config) *Annealer {
	t.Helper()
	a, err := New(cost, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestPropose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7
	a := newAnnealer(t, distance(0, 0, 0), cfg)

	orig := vector(1, 2, 3)
	for range 50 {
		next := a.Propose(orig)
		changed := 0
		for i := range next {
			if next[i].Name != orig[i].Name {
				t.Fatalf("names reordered: %v", next)
			}
			if d := math.Abs(next[i].Value - orig[i].Value); d != 0 {
				changed++
				if math.Abs(d-cfg.Step) > 1e-12 {
					t.Errorf("moved by %v, want %v", d, cfg.Step)
				}
			}
		}
		if changed != 1 {
			t.Fatalf("changed %d coefficients, want 1", changed)
		}
	}
	if orig.String() != vector(1, 2, 3).String() {
		t.Errorf("Propose mutated its input: %v", orig)
	}
}

func TestProposeStaysNonNegative(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 1
	a := newAnnealer(t, distance(), cfg)

	cur := rules.DefaultImageCoefficients()
	for i := 0; i < 2000; i++ {
		cur = a.Propose(cur)
		for _, e := range cur {
			if e.Value < 0 {
				t.Fatalf("step %d: %s = %v", i, e.Name, e.Value)
			}
		}
	}
	if err := cur.Validate(); err != nil {
		t.Errorf("walked vector invalid: %v", err)
	}
}

func TestProposeKeepsValuesOnGrid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 5
	a := newAnnealer(t, distance(), cfg)

	// Every reachable value is a multiple of 0.1, so repeated steps must
	// not leave float residue that would change the vector's rendering.
	cur := vector(1.9, 0.2, 3)
	for i := 0; i < 2000; i++ {
		cur = a.Propose(cur)
		for _, e := range cur {
			if e.Value != math.Round(e.Value*10)/10 {
				t.Fatalf("step %d: %s = %v drifted off the step grid", i, e.Name, e.Value)
			}
		}
	}
}

func TestProposeClampsAtZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 11
	a := newAnnealer(t, distance(), cfg)

	sawZero := false
	for i := 0; i < 100; i++ {
		v := a.Propose(vector(0.1))[0].Value
		switch v {
		case 0:
			sawZero = true
		case 0.4:
		default:
			t.Fatalf("Propose(0.1) = %v, want 0 or 0.4", v)
		}
	}
	if !sawZero {
		t.Error("no downward move in 100 proposals")
	}
}

func TestRunRejectsNegativeInitial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 1
	_, err := newAnnealer(t, distance(0), cfg).Run(context.Background(), vector(-0.2))
	if models.CodeOf(err) != models.ErrCodeInvalidInput {
		t.Errorf("got %v, want invalid input", err)
	}
}

func TestAccept(t *testing.T) {
	a := newAnnealer(t, distance(0), Config{Step: 1, Cooling: 1, StepsPerTemp: 1, Seed: 1})
	if !a.Accept(5, 4, 0) {
		t.Error("improvement rejected at T=0")
	}
	if a.Accept(5, 5, 0) || a.Accept(5, 6, 0) {
		t.Error("non-improving move accepted at T=0")
	}
	if a.Accept(0, 100, 1e-3) {
		t.Error("large uphill move accepted at tiny temperature")
	}
}

func TestRunZeroTemperatureIsMonotone(t *testing.T) {
	cfg := Config{Iterations: 400, Step: 0.3, Cooling: 1, StepsPerTemp: 10, Seed: 42}
	a := newAnnealer(t, distance(0.9, 0.6), cfg)

	res, err := a.Run(context.Background(), vector(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	prev := res.InitialCost
	for _, h := range res.History {
		if h.BestCost > prev {
			t.Fatalf("iteration %d: best cost rose from %v to %v", h.Iteration, prev, h.BestCost)
		}
		prev = h.BestCost
	}
	if res.BestCost > 1e-9 {
		t.Errorf("best cost = %v, want about 0 (best %v)", res.BestCost, res.Best)
	}
	if res.Iterations != 400 || res.EarlyStop {
		t.Errorf("iterations = %d, early stop = %v", res.Iterations, res.EarlyStop)
	}
}

func TestRunPatience(t *testing.T) {
	flat := func(context.Context, models.Coefficients) (float64, error) { return 3, nil }
	cfg := Config{Iterations: 1000, Step: 0.1, Cooling: 1, StepsPerTemp: 1, Patience: 25, Seed: 3}
	res, err := newAnnealer(t, flat, cfg).Run(context.Background(), vector(1))
	if err != nil {
		t.Fatal(err)
	}
	if !res.EarlyStop || res.Iterations != 25 {
		t.Errorf("iterations = %d, early stop = %v; want 25, true", res.Iterations, res.EarlyStop)
	}
	if res.Best.String() != vector(1).String() {
		t.Errorf("best moved without improvement: %v", res.Best)
	}
}

func TestRunReproducible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Iterations = 100
	cfg.Seed = 99
	run := func() *Result {
		res, err := newAnnealer(t, distance(1, 1, 1), cfg).Run(context.Background(), vector(0, 0, 0))
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	a, b := run(), run()
	if a.Best.String() != b.Best.String() || a.BestCost != b.BestCost || a.Accepted != b.Accepted {
		t.Errorf("runs with seed %d differ: %v vs %v", cfg.Seed, a.Best, b.Best)
	}
}

func TestRunErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	failing := func(context.Context, models.Coefficients) (float64, error) {
		calls++
		if calls > 3 {
			return 0, boom
		}
		return 1, nil
	}
	cfg := DefaultConfig()
	cfg.Seed = 1
	if _, err := newAnnealer(t, failing, cfg).Run(context.Background(), vector(1)); !errors.Is(err, boom) {
		t.Errorf("got %v, want cost error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newAnnealer(t, distance(0), cfg).Run(ctx, vector(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []func(*Config){
		func(c *Config) { c.Step = 0 },
		func(c *Config) { c.Cooling = 1.5 },
		func(c *Config) { c.StepsPerTemp = 0 },
		func(c *Config) { c.Temperature = -1 },
		func(c *Config) { c.Iterations = -1 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		if c.Validate() == nil {
			t.Errorf("case %d: invalid config accepted", i)
		}
	}
	if _, err := New(nil, DefaultConfig()); err == nil {
		t.Error("nil cost accepted")
	}
}

func TestSummary(t *testing.T) {
	r := &Result{
		InitialCost: 10,
		BestCost:    4,
		Accepted:    1,
		History:     []Step{{Cost: 4}, {Cost: 6}},
	}
	s := r.Summary()
	if s.MeanCost != 5 || s.Improvement != 6 || s.AcceptRate != 0.5 {
		t.Errorf("summary = %+v", s)
	}
	if math.Abs(s.StdDevCost-math.Sqrt2) > 1e-12 {
		t.Errorf("stddev = %v, want sqrt(2)", s.StdDevCost)
	}
}
