package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"shopcrawl/internal/changelog"
	"shopcrawl/internal/config"
	"shopcrawl/internal/crawl"
	"shopcrawl/internal/enrich"
	"shopcrawl/internal/manifest"
	"shopcrawl/internal/metrics"
	"shopcrawl/internal/shopapi"
	"shopcrawl/internal/sqlstore"
	"shopcrawl/internal/state"
)

// NewClient builds the shop API client from cfg.
func NewClient(cfg config.APIConfig) (*shopapi.Client, error) {
	return shopapi.NewClient(shopapi.Options{
		BaseURL:       cfg.BaseURL,
		DetailBaseURL: cfg.DetailBaseURL,
		BuildID:       cfg.BuildID,
		UserAgent:     cfg.UserAgent,
		Origin:        cfg.Origin,
		Referer:       cfg.Referer,
		Timeout:       cfg.Timeout,
	})
}

// TargetOf builds the crawl target and filters from cfg.
func TargetOf(cfg config.CrawlConfig) (shopapi.Target, shopapi.Filters, error) {
	kind, err := shopapi.ParseKind(cfg.Variant)
	if err != nil {
		return shopapi.Target{}, shopapi.Filters{}, err
	}
	if cfg.Target == "" {
		return shopapi.Target{}, shopapi.Filters{}, fmt.Errorf("empty crawl target")
	}
	f := shopapi.DefaultFilters()
	f.Brands = cfg.Brands
	if cfg.Sort != "" {
		f.Sort = cfg.Sort
	}
	f.SubCategory = cfg.SubCategory
	f.StartPrice, f.EndPrice, f.Rate = cfg.StartPrice, cfg.EndPrice, cfg.Rate
	return shopapi.Target{Kind: kind, Key: cfg.Target}, f, nil
}

// Build wires a Runner and its sinks from cfg. Callers must Close it.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Registry) (*Runner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	target, filters, err := TargetOf(cfg.Crawl)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(cfg.API)
	if err != nil {
		return nil, err
	}
	family := cfg.Output.Family
	if family == "" {
		family = FamilyOf(target)
	}

	fsManifest := manifest.NewFilesystemManifest(cfg.Output.Dir)
	r := &Runner{
		Target:    target,
		Filters:   filters,
		Family:    family,
		OutputDir: cfg.Output.Dir,
		Crawler: crawl.New(client, crawl.Config{
			MaxPages:        cfg.Crawl.MaxPages,
			Delay:           cfg.Crawl.Delay,
			DefaultPageSize: cfg.Crawl.DefaultPageSize,
		}, log, m),
		Manifests: fsManifest,
		Metrics:   m,
		Logger:    log,
	}
	if cfg.Crawl.Enrich {
		r.Enricher = enrich.New(client, cfg.Crawl.EnrichDelay, log, m)
	}

	var writers []changelog.Writer
	pubs := []manifest.Publisher{fsManifest}
	if cfg.Output.Changelog {
		fw, err := changelog.NewFileWriter(cfg.Output.Dir, ChangelogFile(family))
		if err != nil {
			return nil, err
		}
		writers = append(writers, fw)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kw := changelog.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.ChangelogTopic)
		km := manifest.NewKafkaManifest(cfg.Kafka.Brokers, cfg.Kafka.ManifestTopic, "shopcrawl-manifest")
		writers = append(writers, kw)
		pubs = append(pubs, km)
		r.closers = append(r.closers, kw.Close, km.Close)
	}
	if len(writers) > 0 {
		r.Changelog = changelog.NewMultiWriter(writers...)
	}
	r.Publisher = manifest.MultiPublisher(pubs...)

	if cfg.Output.PebbleDir != "" {
		ps, err := state.NewPebbleStore(cfg.Output.PebbleDir)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("open pebble index: %w", err)
		}
		r.Index = ps
		r.closers = append(r.closers, ps.Close)
	}
	if cfg.Output.SQLitePath != "" {
		if err := mkdirFor(cfg.Output.SQLitePath); err != nil {
			_ = r.Close()
			return nil, err
		}
		st, err := sqlstore.Open(ctx, cfg.Output.SQLitePath)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.Archive = st
		r.closers = append(r.closers, st.Close)
	}
	log.Info("pipeline ready",
		zap.String("target", target.Key), zap.String("variant", string(target.Kind)),
		zap.String("family", family), zap.Int("max_pages", cfg.Crawl.MaxPages),
		zap.Bool("enrich", cfg.Crawl.Enrich), zap.Bool("kafka", len(cfg.Kafka.Brokers) > 0),
		zap.Bool("pebble", r.Index != nil), zap.Bool("sqlite", r.Archive != nil))
	return r, nil
}

func mkdirFor(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	return nil
}
