package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shopcrawl/internal/config"
	"shopcrawl/internal/logger"
	"shopcrawl/internal/manifest"
	"shopcrawl/internal/metrics"
	"shopcrawl/internal/pipeline"
	"shopcrawl/internal/restore"
	"shopcrawl/internal/state"
)

// Config holds CLI flags for recovery.
type Config struct {
	App *config.Config
	// Source is file|kafka|pebble.
	Source string
	// FromSnapshot starts from the family's latest snapshot and replays
	// only the entries after its manifest offset.
	FromSnapshot bool
	Changelog    string
	Brokers      string
	Idle         time.Duration
	OutJSON      string
	OutCSV       string
}

func main() {
	cfg := readFlags(config.Load())
	if err := run(cfg); err != nil {
		log.Fatalf("recover failed: %v", err)
	}
}

func readFlags(app *config.Config) Config {
	cfg := Config{App: app}
	flag.StringVar(&cfg.Source, "source", "file", "rebuild from: file|kafka|pebble")
	flag.BoolVar(&cfg.FromSnapshot, "from-snapshot", false, "start from the family's latest snapshot")
	flag.StringVar(&app.Output.Dir, "output-dir", app.Output.Dir, "snapshot directory")
	flag.StringVar(&app.Output.Family, "family", app.Output.Family, "run family (default derived from target)")
	flag.StringVar(&app.Output.PebbleDir, "pebble-dir", app.Output.PebbleDir, "pebble index directory")
	flag.StringVar(&cfg.Changelog, "changelog", "", "changelog file (default <output-dir>/changelog.<family>.jsonl)")
	flag.StringVar(&cfg.Brokers, "kafka-bootstrap", strings.Join(app.Kafka.Brokers, ","), "kafka bootstrap servers")
	flag.StringVar(&app.Kafka.ChangelogTopic, "topic-changelog", app.Kafka.ChangelogTopic, "kafka changelog topic")
	flag.DurationVar(&cfg.Idle, "idle", 10*time.Second, "stop consuming kafka after this long without messages")
	flag.StringVar(&cfg.OutJSON, "out-json", "", "rebuilt JSON snapshot (default <output-dir>/recovered_<family>_<ts>.json)")
	flag.StringVar(&cfg.OutCSV, "out-csv", "", "rebuilt CSV snapshot (default <output-dir>/recovered_<family>_<ts>.csv)")
	flag.StringVar(&app.Metrics.Textfile, "metrics-textfile", app.Metrics.Textfile, "write metrics here after the run")
	flag.Parse()
	return cfg
}

func family(app *config.Config) (string, error) {
	if app.Output.Family != "" {
		return app.Output.Family, nil
	}
	target, _, err := pipeline.TargetOf(app.Crawl)
	if err != nil {
		return "", err
	}
	return pipeline.FamilyOf(target), nil
}

func run(cfg Config) error {
	lg, err := logger.New(cfg.App.Logger)
	if err != nil {
		return err
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fam, err := family(cfg.App)
	if err != nil {
		return err
	}
	dir := cfg.App.Output.Dir
	ts := time.Now().Format("20060102_150405")
	if cfg.OutJSON == "" {
		cfg.OutJSON = filepath.Join(dir, fmt.Sprintf("recovered_%s_%s.json", fam, ts))
	}
	if cfg.OutCSV == "" {
		cfg.OutCSV = filepath.Join(dir, fmt.Sprintf("recovered_%s_%s.csv", fam, ts))
	}
	if cfg.Changelog == "" {
		cfg.Changelog = filepath.Join(dir, pipeline.ChangelogFile(fam))
	}

	mreg := metrics.NewRegistry()
	t1 := time.Now()
	var st state.Store = state.NewInMemoryStore()
	var res restore.RestoreResult
	var manifestAge float64

	if cfg.Source == "pebble" {
		if cfg.App.Output.PebbleDir == "" {
			return errors.New("-pebble-dir is required for -source pebble")
		}
		ps, err := state.NewPebbleStore(cfg.App.Output.PebbleDir)
		if err != nil {
			return err
		}
		defer ps.Close()
		st = ps
	}
	r := restore.NewRestorer(st, lg)

	switch cfg.Source {
	case "pebble":
	case "file", "kafka":
		var from int64
		if cfg.FromSnapshot {
			m, err := manifest.NewFilesystemManifest(dir).ReadLatest(fam)
			if err != nil {
				return fmt.Errorf("read manifest: %w", err)
			}
			if _, err := r.RestoreFromSnapshot(m.JSONPath); err != nil {
				return err
			}
			from = m.LastChangelogOffset
			manifestAge = time.Since(time.Unix(m.CreatedAt, 0)).Seconds()
		}
		if cfg.Source == "file" {
			res = r.ReplayChangelog(cfg.Changelog, fam, from)
		} else {
			brokers := manifest.SplitBrokers(cfg.Brokers)
			if len(brokers) == 0 {
				return errors.New("-kafka-bootstrap is required for -source kafka")
			}
			res = r.ReplayChangelogKafka(ctx, brokers, cfg.App.Kafka.ChangelogTopic, fam, from, cfg.Idle)
		}
		if res.Error != nil {
			return fmt.Errorf("replay: %w", res.Error)
		}
	default:
		return fmt.Errorf("unknown source %q", cfg.Source)
	}

	n, err := r.Export(cfg.OutJSON, cfg.OutCSV)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	mreg.ObserveRestore(res.Applied, res.Skipped, time.Since(t1).Seconds(), manifestAge)
	lg.Info("recovery finished",
		zap.String("source", cfg.Source), zap.String("family", fam),
		zap.Int("applied", res.Applied), zap.Int("skipped", res.Skipped),
		zap.Int("records", n), zap.String("json", cfg.OutJSON), zap.String("csv", cfg.OutCSV),
		zap.Duration("ttr", time.Since(t1)))
	if cfg.App.Metrics.Textfile != "" {
		if err := mreg.WriteTextfile(cfg.App.Metrics.Textfile); err != nil {
			lg.Warn("write metrics textfile", zap.Error(err))
		}
	}
	return nil
}
