package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"shopcrawl/internal/config"
	"shopcrawl/internal/logger"
	"shopcrawl/internal/manifest"
	"shopcrawl/internal/metrics"
	"shopcrawl/internal/pipeline"
)

func main() {
	cfg := readFlags(config.Load())
	if err := run(cfg); err != nil {
		log.Fatalf("crawl failed: %v", err)
	}
}

// readFlags overrides the environment configuration with command-line flags.
func readFlags(cfg *config.Config) *config.Config {
	var brokers string
	flag.StringVar(&cfg.Crawl.Variant, "variant", cfg.Crawl.Variant, "listing variant: category|group")
	flag.StringVar(&cfg.Crawl.Target, "target", cfg.Crawl.Target, "category slug or product group id")
	flag.StringVar(&cfg.Crawl.Brands, "brands", cfg.Crawl.Brands, "brand filter")
	flag.StringVar(&cfg.Crawl.Sort, "sort", cfg.Crawl.Sort, "sort order")
	flag.StringVar(&cfg.Crawl.SubCategory, "subcategory", cfg.Crawl.SubCategory, "subcategory filter (category variant)")
	flag.IntVar(&cfg.Crawl.StartPrice, "start-price", cfg.Crawl.StartPrice, "minimum price (group variant)")
	flag.IntVar(&cfg.Crawl.EndPrice, "end-price", cfg.Crawl.EndPrice, "maximum price (group variant)")
	flag.IntVar(&cfg.Crawl.Rate, "rate", cfg.Crawl.Rate, "rating filter")
	flag.IntVar(&cfg.Crawl.MaxPages, "max-pages", cfg.Crawl.MaxPages, "page cap")
	flag.DurationVar(&cfg.Crawl.Delay, "delay", cfg.Crawl.Delay, "pause between pages")
	flag.IntVar(&cfg.Crawl.DefaultPageSize, "default-page-size", cfg.Crawl.DefaultPageSize, "page size assumed when the response omits it")
	flag.BoolVar(&cfg.Crawl.Enrich, "enrich", cfg.Crawl.Enrich, "fetch detail pages before merging")
	flag.DurationVar(&cfg.Crawl.EnrichDelay, "enrich-delay", cfg.Crawl.EnrichDelay, "pause after each detail fetch")
	flag.StringVar(&cfg.API.BaseURL, "base-url", cfg.API.BaseURL, "listing API base url")
	flag.StringVar(&cfg.API.DetailBaseURL, "detail-base-url", cfg.API.DetailBaseURL, "storefront base url for detail documents")
	flag.StringVar(&cfg.API.BuildID, "build-id", cfg.API.BuildID, "storefront build id")
	flag.DurationVar(&cfg.API.Timeout, "timeout", cfg.API.Timeout, "per-request timeout")
	flag.StringVar(&cfg.Output.Dir, "output-dir", cfg.Output.Dir, "snapshot directory")
	flag.StringVar(&cfg.Output.Family, "family", cfg.Output.Family, "run family (default derived from target)")
	flag.StringVar(&cfg.Output.SQLitePath, "sqlite", cfg.Output.SQLitePath, "sqlite archive path (empty disables)")
	flag.StringVar(&cfg.Output.PebbleDir, "pebble-dir", cfg.Output.PebbleDir, "pebble index directory (empty disables)")
	flag.BoolVar(&cfg.Output.Changelog, "changelog", cfg.Output.Changelog, "append new records to the family changelog")
	flag.StringVar(&brokers, "kafka-bootstrap", strings.Join(cfg.Kafka.Brokers, ","), "kafka bootstrap servers (empty disables)")
	flag.StringVar(&cfg.Kafka.ChangelogTopic, "topic-changelog", cfg.Kafka.ChangelogTopic, "kafka changelog topic")
	flag.StringVar(&cfg.Kafka.ManifestTopic, "topic-manifest", cfg.Kafka.ManifestTopic, "kafka manifest topic (compacted)")
	flag.StringVar(&cfg.Metrics.Addr, "http", cfg.Metrics.Addr, "listen address for /metrics (empty disables)")
	flag.StringVar(&cfg.Metrics.Textfile, "metrics-textfile", cfg.Metrics.Textfile, "write metrics here after the run")
	flag.Parse()
	cfg.Kafka.Brokers = manifest.SplitBrokers(brokers)
	return cfg
}

func run(cfg *config.Config) error {
	lg, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mreg := metrics.NewRegistry()
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mreg.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				lg.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	runner, err := pipeline.Build(ctx, cfg, lg, mreg)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer func() {
		if err := runner.Close(); err != nil {
			lg.Warn("close sinks", zap.Error(err))
		}
	}()

	sum, runErr := runner.Run(ctx)
	fields := []zap.Field{
		zap.String("run_id", sum.RunID),
		zap.String("family", sum.Paths.Family),
		zap.Int("pages", sum.Pages),
		zap.String("stop_reason", string(sum.Reason)),
		zap.Int("crawled", sum.Crawled),
		zap.Int("json_appended", sum.Snapshot.JSON.Appended),
		zap.Int("json_total", sum.Snapshot.JSON.Total),
		zap.Int("csv_appended", sum.Snapshot.CSV.Appended),
		zap.Int("csv_total", sum.Snapshot.CSV.Total),
		zap.String("json", sum.Paths.JSONPath),
		zap.String("csv", sum.Paths.CSVPath),
	}
	if sum.CrawlErr != nil {
		fields = append(fields, zap.NamedError("crawl_error", sum.CrawlErr))
	}
	lg.Info("run finished", fields...)

	if cfg.Metrics.Textfile != "" {
		if err := mreg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			lg.Warn("write metrics textfile", zap.Error(err))
		}
	}
	return runErr
}
