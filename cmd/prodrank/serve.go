package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/use-agent/prodrank/api"
	"github.com/use-agent/prodrank/api/handler"
	"github.com/use-agent/prodrank/cache"
	"github.com/use-agent/prodrank/models"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "run the extraction HTTP API",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "listen host"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port"},
			&cli.DurationFlag{Name: "cache-ttl", Value: 10 * time.Minute, Usage: "how long extraction responses stay cached"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := loadConfig(c)
	if v := c.String("host"); v != "" {
		cfg.Server.Host = v
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	slog.Info("prodrank starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"viewport", fmt.Sprintf("%gx%g", cfg.Viewport.Width, cfg.Viewport.Height),
	)

	// ── 2. Build the extractors ─────────────────────────────────────
	_, opts, err := extractorOptions(cfg)
	if err != nil {
		return err
	}
	xs, err := handler.NewExtractors(opts)
	if err != nil {
		return err
	}

	// ── 3. Initialise response cache ────────────────────────────────
	cc := cache.New[*models.ExtractResponse](cfg.Cache.MaxEntries, c.Duration("cache-ttl"))

	// ── 4. Setup router ─────────────────────────────────────────────
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	startTime := time.Now()
	router := api.NewRouter(ctx, cfg, xs, cc, startTime)

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-c.Context.Done():
		slog.Info("shutdown signal received")
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	slog.Info("prodrank stopped")
	return nil
}
