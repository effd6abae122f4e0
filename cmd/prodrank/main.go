package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/use-agent/prodrank/config"
	"github.com/use-agent/prodrank/rules"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "prodrank",
		Usage: "score product pages and tune the extraction rulesets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "json or text"},
			&cli.StringFlag{Name: "coefficients", Aliases: []string{"c"}, Usage: "YAML file with coefficient overrides"},
			&cli.Float64Flag{Name: "viewport-width", Usage: "viewport width the geometry was captured at"},
			&cli.Float64Flag{Name: "viewport-height", Usage: "viewport height the geometry was captured at"},
		},
		Before: func(c *cli.Context) error {
			initLogger(loadConfig(c).Log)
			return nil
		},
		Commands: []*cli.Command{
			evaluateCommand(),
			tuneCommand(),
			extractCommand(),
			compareCommand(),
			serveCommand(),
			collectCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("prodrank failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the global flags on top.
func loadConfig(c *cli.Context) *config.Config {
	cfg := config.Load()
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v := c.String("coefficients"); v != "" {
		cfg.CoefficientsFile = v
	}
	if c.IsSet("viewport-width") {
		cfg.Viewport.Width = c.Float64("viewport-width")
	}
	if c.IsSet("viewport-height") {
		cfg.Viewport.Height = c.Float64("viewport-height")
	}
	return cfg
}

// extractorOptions loads the coefficient file named by cfg.
func extractorOptions(cfg *config.Config) (config.CoefficientFile, rules.Options, error) {
	cf, err := config.LoadCoefficients(cfg.CoefficientsFile)
	if err != nil {
		return nil, rules.Options{}, err
	}
	opts, err := cf.Options(cfg.Viewport.Viewport())
	if err != nil {
		return nil, rules.Options{}, err
	}
	return cf, opts, nil
}

// initLogger configures slog based on the LogConfig. Logs go to stderr so
// command output on stdout stays parseable.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

var formatFlag = &cli.StringFlag{
	Name:  "format",
	Value: "yaml",
	Usage: "output format: yaml or json",
}

// emit writes v to w in the requested format.
func emit(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		_, err = w.Write(out)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}
