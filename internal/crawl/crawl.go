// Package crawl drives paginated listing fetches for one crawl target.
package crawl

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"shopcrawl/internal/metrics"
	"shopcrawl/internal/model"
	"shopcrawl/internal/shopapi"
)

// PageFetcher fetches one listing page. *shopapi.Client implements it.
type PageFetcher interface {
	ListProducts(ctx context.Context, target shopapi.Target, page int, f shopapi.Filters) (map[string]any, shopapi.FetchMeta, error)
}

type Config struct {
	MaxPages        int
	Delay           time.Duration
	DefaultPageSize int
}

// DefaultConfig mirrors the storefront's pagination: 20 items per page.
func DefaultConfig() Config {
	return Config{MaxPages: 10, Delay: time.Second, DefaultPageSize: 20}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration)

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Result is the outcome of one crawl. Records from pages before a failure
// are kept.
type Result struct {
	Records  []model.Record
	Pages    int
	LastPage int
	Reason   StopReason
	Err      error
}

type Crawler struct {
	fetcher PageFetcher
	cfg     Config
	shapes  []ShapeMatcher
	logger  *zap.Logger
	metrics *metrics.Registry

	// Sleep is replaced in tests.
	Sleep Sleeper
}

func New(fetcher PageFetcher, cfg Config, logger *zap.Logger, m *metrics.Registry) *Crawler {
	def := DefaultConfig()
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = def.DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		fetcher: fetcher,
		cfg:     cfg,
		shapes:  DefaultShapes,
		logger:  logger,
		metrics: m,
		Sleep:   SleepContext,
	}
}

// Crawl fetches pages 1..MaxPages sequentially until a termination rule
// fires. Fetch failures end pagination and are reported in Result.Err,
// never returned as a crawl error.
func (c *Crawler) Crawl(ctx context.Context, target shopapi.Target, f shopapi.Filters) Result {
	log := c.logger.With(zap.String("target", target.Name()), zap.String("variant", string(target.Kind)))
	var res Result
	for page := 1; page <= c.cfg.MaxPages; page++ {
		res.LastPage = page
		log.Info("fetching page", zap.Int("page", page))
		body, meta, err := c.fetcher.ListProducts(ctx, target, page, f)
		if err != nil {
			c.metrics.ObservePageFailure(failureKind(err))
			log.Warn("page fetch failed, ending pagination", zap.Int("page", page), zap.Int("status", meta.StatusCode), zap.Error(err))
			res.Reason = StopFetchFailed
			res.Err = err
			return res
		}

		items, shape := ExtractItems(body, c.shapes)
		if len(items) == 0 {
			if shape == "" {
				log.Warn("unrecognized response shape", zap.Int("page", page))
			} else {
				log.Info("no products on page", zap.Int("page", page))
			}
			res.Reason = StopEmptyPage
			return res
		}

		n := 0
		for _, it := range items {
			raw, ok := it.(map[string]any)
			if !ok {
				log.Debug("skipping non-object item", zap.Int("page", page))
				continue
			}
			res.Records = append(res.Records, model.Normalize(raw))
			n++
		}
		res.Pages = page
		c.metrics.ObservePage(n, meta.Latency.Seconds())
		log.Info("page accumulated", zap.Int("page", page), zap.String("shape", shape), zap.Int("products", n), zap.Int("total", len(res.Records)))

		if reason, done := isLastPage(body, page, c.cfg.DefaultPageSize); done {
			log.Info("reached last page", zap.Int("page", page), zap.String("reason", string(reason)))
			res.Reason = reason
			return res
		}
		if page == c.cfg.MaxPages {
			break
		}
		c.Sleep(ctx, c.cfg.Delay)
	}
	res.Reason = StopMaxPages
	return res
}

func failureKind(err error) string {
	var me *shopapi.MalformedError
	if errors.As(err, &me) {
		return "malformed"
	}
	var te *shopapi.TransportError
	if errors.As(err, &te) {
		return "transport"
	}
	return "unknown"
}
