package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/use-agent/prodrank/collector"
)

type collectOutput struct {
	Case   string `json:"case" yaml:"case"`
	Target string `json:"target" yaml:"target"`
	Dir    string `json:"dir" yaml:"dir"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func collectCommand() *cli.Command {
	return &cli.Command{
		Name:      "collect",
		Usage:     "render pages in a headless browser and write them as corpus cases",
		ArgsUsage: "[id=url ...]",
		Flags: []cli.Flag{
			corpusFlag,
			formatFlag,
			&cli.StringFlag{Name: "jobs", Usage: "file with one id=url line per page"},
			&cli.IntFlag{Name: "concurrency", Value: 2, Usage: "pages rendered at once"},
			&cli.BoolFlag{Name: "headful", Usage: "show the browser window"},
		},
		Action: collectAction,
	}
}

func collectAction(c *cli.Context) error {
	cfg := loadConfig(c)
	applyHarnessFlags(c, cfg)
	if c.Bool("headful") {
		cfg.Collector.Headless = false
	}

	lines := c.Args().Slice()
	if path := c.String("jobs"); path != "" {
		fromFile, err := readJobLines(path)
		if err != nil {
			return err
		}
		lines = append(lines, fromFile...)
	}
	jobs, err := parseJobs(lines)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("collect needs at least one id=url job")
	}

	col, err := collector.New(cfg.Collector, cfg.Viewport.Viewport())
	if err != nil {
		return err
	}
	defer col.Close()

	results := col.CollectCorpus(c.Context, cfg.Harness.Corpus, jobs, c.Int("concurrency"))
	out := make([]collectOutput, len(results))
	failed := 0
	for i, r := range results {
		out[i] = collectOutput{Case: r.Job.ID, Target: r.Job.Target, Dir: r.Dir}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
			failed++
		}
	}
	slog.Info("collection finished", "jobs", len(jobs), "failed", failed)
	if err := emit(os.Stdout, c.String("format"), out); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d captures failed", failed, len(jobs))
	}
	return nil
}

func readJobLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// parseJobs reads "id=target" pairs. A bare target gets an ID derived
// from its base name.
func parseJobs(lines []string) ([]collector.Job, error) {
	jobs := make([]collector.Job, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		id, target, ok := strings.Cut(line, "=")
		if !ok || strings.Contains(id, "/") {
			target = line
			id = strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
		}
		id, target = strings.TrimSpace(id), strings.TrimSpace(target)
		if id == "" || target == "" {
			return nil, fmt.Errorf("invalid job %q", line)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate case id %q", id)
		}
		seen[id] = true
		jobs = append(jobs, collector.Job{ID: id, Target: target})
	}
	return jobs, nil
}
