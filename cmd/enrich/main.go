package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"shopcrawl/internal/config"
	"shopcrawl/internal/enrich"
	"shopcrawl/internal/logger"
	"shopcrawl/internal/manifest"
	"shopcrawl/internal/metrics"
	"shopcrawl/internal/pipeline"
)

type Config struct {
	App *config.Config
	// Input is the JSON snapshot to enrich; when empty the family's latest
	// manifest names it.
	Input string
}

func main() {
	cfg := readFlags(config.Load())
	if err := run(cfg); err != nil {
		log.Fatalf("enrich failed: %v", err)
	}
}

func readFlags(app *config.Config) Config {
	cfg := Config{App: app}
	flag.StringVar(&cfg.Input, "input", "", "JSON snapshot to enrich")
	flag.StringVar(&app.Output.Dir, "output-dir", app.Output.Dir, "directory for detailed_products files")
	flag.StringVar(&app.Output.Family, "family", app.Output.Family, "run family whose snapshot is enriched when -input is empty")
	flag.StringVar(&app.API.DetailBaseURL, "detail-base-url", app.API.DetailBaseURL, "storefront base url")
	flag.StringVar(&app.API.BuildID, "build-id", app.API.BuildID, "storefront build id")
	flag.DurationVar(&app.Crawl.EnrichDelay, "delay", app.Crawl.EnrichDelay, "pause after each detail fetch")
	flag.StringVar(&app.Metrics.Textfile, "metrics-textfile", app.Metrics.Textfile, "write metrics here after the run")
	flag.Parse()
	return cfg
}

func inputPath(cfg Config) (string, error) {
	if cfg.Input != "" {
		return cfg.Input, nil
	}
	family := cfg.App.Output.Family
	if family == "" {
		target, _, err := pipeline.TargetOf(cfg.App.Crawl)
		if err != nil {
			return "", err
		}
		family = pipeline.FamilyOf(target)
	}
	m, err := manifest.NewFilesystemManifest(cfg.App.Output.Dir).ReadLatest(family)
	if errors.Is(err, manifest.ErrNotFound) {
		return "", fmt.Errorf("no snapshot for family %q; pass -input", family)
	}
	if err != nil {
		return "", err
	}
	return m.JSONPath, nil
}

func run(cfg Config) error {
	lg, err := logger.New(cfg.App.Logger)
	if err != nil {
		return err
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input, err := inputPath(cfg)
	if err != nil {
		return err
	}
	client, err := pipeline.NewClient(cfg.App.API)
	if err != nil {
		return err
	}
	mreg := metrics.NewRegistry()
	e := enrich.New(client, cfg.App.Crawl.EnrichDelay, lg, mreg)
	res, err := pipeline.EnrichSnapshot(ctx, e, input, cfg.App.Output.Dir, lg)
	if err != nil {
		return err
	}
	lg.Info("enrichment finished", zap.String("json", res.JSONPath), zap.String("csv", res.CSVPath), zap.Int("records", res.Records))
	if cfg.App.Metrics.Textfile != "" {
		if err := mreg.WriteTextfile(cfg.App.Metrics.Textfile); err != nil {
			lg.Warn("write metrics textfile", zap.Error(err))
		}
	}
	return nil
}
