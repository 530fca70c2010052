package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/star/tleprop/internal/api"
	"github.com/star/tleprop/internal/config"
	"github.com/star/tleprop/internal/metrics"
	"github.com/star/tleprop/internal/propagation"
	"github.com/star/tleprop/internal/stream"
	"github.com/star/tleprop/internal/tle"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	v := config.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the propagation HTTP API",
		Long: `Run the HTTP API. Settings come from defaults, the --config file,
TLEPROP_* environment variables (TLEPROP_HTTP_ADDR, TLEPROP_PROP_WORKERS, ...)
and the flags below, later sources winning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(g, v)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.Int("workers", 0, "propagation workers (default: number of CPUs)")
	f.String("gravity", "wgs72", "gravity model: wgs72old, wgs72 or wgs84")
	f.String("opsmode", "improved", "operation mode: improved or afspc")
	f.Bool("fetch", true, "periodically fetch the catalog from --source-url")
	f.String("source-url", "", "catalog URL")
	f.String("tle-file", "", "load a catalog from this file at startup")
	for key, flag := range map[string]string{
		"http.addr":         "addr",
		"prop.workers":      "workers",
		"prop.gravity":      "gravity",
		"prop.opsmode":      "opsmode",
		"tle.fetch_enabled": "fetch",
		"tle.source_url":    "source-url",
		"tle.file":          "tle-file",
	} {
		// Only flags the user actually set override lower layers.
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func runServe(g *globalFlags, v *viper.Viper) error {
	logger, err := g.logger(os.Stdout)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v, g.configFile)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	store := tle.NewStore()
	if cfg.TLE.File != "" {
		if err := loadCatalogFile(store, cfg.TLE.File, logger); err != nil {
			logger.Warn("catalog file not loaded", "path", cfg.TLE.File, "error", err)
		}
	}

	var fetcher *tle.Fetcher
	if cfg.TLE.FetchEnabled {
		fetcher = tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraURLs...)
	}

	prop := propagation.NewPropagator(store, cfg.Propagation(), logger)
	streamHandler := stream.NewHandler(prop, cfg.StreamConfig(), logger)
	srv := api.NewServer(cfg.API(), logger, store, fetcher, prop, streamHandler)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if fetcher != nil {
		go refreshLoop(ctx, store, fetcher, cfg.TLE.FetchInterval, logger)
	}
	go catalogGauges(ctx, store)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"tle_fetch_enabled", cfg.TLE.FetchEnabled,
			"workers", cfg.Prop.Workers,
			"gravity", cfg.Prop.Gravity,
			"opsmode", cfg.Prop.OpsMode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server listen error", "error", err)
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func loadCatalogFile(store *tle.Store, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sets, err := tle.ParseCatalog(f, logger)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return fmt.Errorf("no valid element sets in %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		return err
	}
	ds := tle.NewDataset("file:"+path, info.ModTime().UTC(), sets)
	store.Set(ds)
	metrics.SetCatalogSize(len(sets))
	logger.Info("loaded catalog from file", "path", path, "count", len(sets))
	return nil
}

// refreshLoop fetches the catalog immediately and then every interval.
func refreshLoop(ctx context.Context, store *tle.Store, fetcher *tle.Fetcher, interval time.Duration, logger *slog.Logger) {
	refresh := func() {
		ds, err := store.Refresh(ctx, fetcher, logger)
		switch {
		case errors.Is(err, tle.ErrRefreshInProgress):
			logger.Debug("scheduled refresh skipped, another is running")
		case err != nil:
			logger.Warn("scheduled catalog refresh failed", "source", fetcher.SourceURL(), "error", err)
		default:
			metrics.SetCatalogSize(len(ds.Satellites))
		}
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-ctx.Done():
			return
		}
	}
}

// catalogGauges keeps the catalog age gauge current.
func catalogGauges(ctx context.Context, store *tle.Store) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if age := store.AgeSeconds(); age >= 0 {
				metrics.SetCatalogAge(time.Duration(age * float64(time.Second)))
			}
		case <-ctx.Done():
			return
		}
	}
}
