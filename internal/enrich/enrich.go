// Package enrich folds detail-page fields into crawled records.
package enrich

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"shopcrawl/internal/crawl"
	"shopcrawl/internal/metrics"
	"shopcrawl/internal/model"
	"shopcrawl/internal/shopapi"
)

// DetailFetcher fetches one detail document. *shopapi.Client implements it.
type DetailFetcher interface {
	ProductDetail(ctx context.Context, slug string) (map[string]any, shopapi.FetchMeta, error)
}

// Enrichment outcomes, used as metric labels.
const (
	ResultOK      = "ok"
	ResultMissing = "missing"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

type Enricher struct {
	fetcher DetailFetcher
	delay   time.Duration
	logger  *zap.Logger
	metrics *metrics.Registry

	Sleep crawl.Sleeper
}

func New(fetcher DetailFetcher, delay time.Duration, logger *zap.Logger, m *metrics.Registry) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{fetcher: fetcher, delay: delay, logger: logger, metrics: m, Sleep: crawl.SleepContext}
}

// Enrich returns rec overlaid with its detail document. Any failure
// returns rec unchanged. The delay follows every fetch.
func (e *Enricher) Enrich(ctx context.Context, rec model.Record) model.Record {
	out, _ := e.enrich(ctx, rec)
	return out
}

func (e *Enricher) enrich(ctx context.Context, rec model.Record) (model.Record, string) {
	if rec.Slug == "" {
		e.logger.Warn("record has no slug, skipping enrichment", zap.String("id", rec.ID), zap.String("name", rec.Name))
		e.metrics.ObserveEnrichment(ResultSkipped)
		return rec, ResultSkipped
	}
	doc, meta, err := e.fetcher.ProductDetail(ctx, rec.Slug)
	defer e.Sleep(ctx, e.delay)
	if err != nil {
		e.logger.Warn("detail fetch failed, keeping basic record",
			zap.String("slug", rec.Slug), zap.Int("status", meta.StatusCode), zap.String("kind", failureKind(err)), zap.Error(err))
		e.metrics.ObserveEnrichment(ResultFailed)
		return rec, ResultFailed
	}
	if doc == nil {
		e.logger.Info("no detail document", zap.String("slug", rec.Slug))
		e.metrics.ObserveEnrichment(ResultMissing)
		return rec, ResultMissing
	}
	e.metrics.ObserveEnrichment(ResultOK)
	return Overlay(rec, doc), ResultOK
}

// Summary counts enrichment outcomes.
type Summary struct {
	OK, Missing, Failed, Skipped int
}

// EnrichAll enriches records in order, one at a time. Every input record
// appears in the output.
func (e *Enricher) EnrichAll(ctx context.Context, recs []model.Record) ([]model.Record, Summary) {
	out := make([]model.Record, 0, len(recs))
	var s Summary
	for i, r := range recs {
		e.logger.Info("enriching product", zap.Int("index", i+1), zap.Int("of", len(recs)), zap.String("name", r.Name))
		enriched, result := e.enrich(ctx, r)
		switch result {
		case ResultOK:
			s.OK++
		case ResultMissing:
			s.Missing++
		case ResultFailed:
			s.Failed++
		case ResultSkipped:
			s.Skipped++
		}
		out = append(out, enriched)
	}
	return out, s
}

func failureKind(err error) string {
	var me *shopapi.MalformedError
	if errors.As(err, &me) {
		return "malformed"
	}
	return "transport"
}
