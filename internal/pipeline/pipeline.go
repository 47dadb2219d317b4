// Package pipeline runs one crawl of a target end to end: pagination,
// optional enrichment, snapshot merge and the secondary sinks fed with
// the newly appended records.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopcrawl/internal/changelog"
	"shopcrawl/internal/crawl"
	"shopcrawl/internal/enrich"
	"shopcrawl/internal/manifest"
	"shopcrawl/internal/metrics"
	"shopcrawl/internal/model"
	"shopcrawl/internal/shopapi"
	"shopcrawl/internal/snapshot"
	"shopcrawl/internal/sqlstore"
	"shopcrawl/internal/state"
)

var (
	NowFunc  = time.Now
	NewRunID = func() string { return uuid.NewString() }
)

type Runner struct {
	Target    shopapi.Target
	Filters   shopapi.Filters
	Family    string
	OutputDir string

	Crawler  *crawl.Crawler
	Enricher *enrich.Enricher

	Manifests manifest.Reader
	Publisher manifest.Publisher

	// Optional sinks; nil disables them.
	Changelog changelog.Writer
	Index     state.Store
	Archive   *sqlstore.Store

	Metrics *metrics.Registry
	Logger  *zap.Logger

	closers []func() error
}

type Summary struct {
	RunID    string
	Paths    Paths
	Pages    int
	Reason   crawl.StopReason
	CrawlErr error
	Crawled  int
	Enrich   enrich.Summary
	Snapshot snapshot.Result
	Indexed  int
	Archived int
	// ChangelogOffset is the family's changelog position after the run.
	ChangelogOffset int64
}

// Run crawls the target and persists the result. A fetch failure only
// ends pagination; the records gathered so far are still merged. The
// returned error reports persistence failures.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	start := NowFunc()
	sum := Summary{RunID: NewRunID()}
	log = log.With(zap.String("run_id", sum.RunID), zap.String("family", r.Family))

	paths, err := ResolvePaths(r.Manifests, r.OutputDir, r.Family, start)
	if err != nil {
		return sum, fmt.Errorf("resolve paths: %w", err)
	}
	sum.Paths = paths
	sum.ChangelogOffset = paths.LastChangelogOffset
	log.Info("snapshot paths", zap.String("json", paths.JSONPath), zap.String("csv", paths.CSVPath), zap.Bool("reused", paths.Reused))

	res := r.Crawler.Crawl(ctx, r.Target, r.Filters)
	sum.Pages, sum.Reason, sum.CrawlErr, sum.Crawled = res.Pages, res.Reason, res.Err, len(res.Records)
	recs := res.Records
	if r.Enricher != nil && len(recs) > 0 {
		recs, sum.Enrich = r.Enricher.EnrichAll(ctx, recs)
	}

	// Interrupted runs still persist what they gathered.
	pctx := context.WithoutCancel(ctx)
	defer func() { r.Metrics.ObserveRunDuration(NowFunc().Sub(start).Seconds()) }()

	if len(recs) == 0 {
		log.Info("no records crawled, snapshot untouched", zap.String("reason", string(res.Reason)))
		return sum, nil
	}
	snap, err := snapshot.MergeAndSave(recs, paths.JSONPath, paths.CSVPath)
	sum.Snapshot = snap
	if err != nil {
		log.Error("snapshot merge failed", zap.Error(err))
		err = fmt.Errorf("persist snapshot: %w", err)
		// Pin fresh names so the format that was written stays in the family.
		if !paths.Reused && r.Publisher != nil {
			if perr := r.Publisher.PublishLatest(pctx, r.manifestFor(sum, snap.JSON.Total, start)); perr != nil {
				err = errors.Join(err, fmt.Errorf("publish manifest: %w", perr))
			}
		}
		return sum, err
	}
	r.Metrics.ObserveMerge("json", snap.JSON.Appended, snap.JSON.Total)
	r.Metrics.ObserveMerge("csv", snap.CSV.Appended, snap.CSV.Total)
	log.Info("snapshot merged",
		zap.Int("crawled", len(recs)),
		zap.Int("json_appended", snap.JSON.Appended), zap.Int("json_total", snap.JSON.Total),
		zap.Int("csv_appended", snap.CSV.Appended), zap.Int("csv_total", snap.CSV.Total))

	var errs []error
	if sum.Indexed, err = r.index(snap.Added); err != nil {
		errs = append(errs, fmt.Errorf("index: %w", err))
	}
	if r.Archive != nil {
		if sum.Archived, err = r.Archive.InsertIgnore(pctx, r.Family, sum.RunID, start.Unix(), snap.Added); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	if off, err := r.appendChangelog(pctx, sum.RunID, start, paths.LastChangelogOffset, snap.Added); err != nil {
		errs = append(errs, fmt.Errorf("changelog: %w", err))
	} else {
		sum.ChangelogOffset = off
	}

	if r.Publisher != nil {
		if err := r.Publisher.PublishLatest(pctx, r.manifestFor(sum, snap.JSON.Total, start)); err != nil {
			errs = append(errs, fmt.Errorf("publish manifest: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Error("sink failures", zap.Error(err))
		return sum, err
	}
	return sum, nil
}

func (r *Runner) manifestFor(sum Summary, records int, start time.Time) manifest.Manifest {
	return manifest.Manifest{
		RunID:               sum.RunID,
		Family:              r.Family,
		Target:              string(r.Target.Kind) + ":" + r.Target.Key,
		JSONPath:            sum.Paths.JSONPath,
		CSVPath:             sum.Paths.CSVPath,
		Records:             records,
		LastChangelogOffset: sum.ChangelogOffset,
		CreatedAt:           start.Unix(),
	}
}

func (r *Runner) index(added []model.Record) (int, error) {
	if r.Index == nil {
		return 0, nil
	}
	n := 0
	for _, rec := range added {
		b, err := json.Marshal(rec)
		if err != nil {
			return n, err
		}
		ok, err := r.Index.Add(rec.ID, b)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (r *Runner) appendChangelog(ctx context.Context, runID string, at time.Time, offset int64, added []model.Record) (int64, error) {
	if r.Changelog == nil || len(added) == 0 {
		return offset, nil
	}
	entries := make([]changelog.Entry, 0, len(added))
	for i, rec := range added {
		b, err := json.Marshal(rec)
		if err != nil {
			return offset, err
		}
		entries = append(entries, changelog.Entry{
			Seq:    offset + int64(i) + 1,
			RunID:  runID,
			Family: r.Family,
			ID:     rec.ID,
			Record: b,
			TS:     at.Unix(),
		})
	}
	if err := r.Changelog.Append(ctx, entries...); err != nil {
		return offset, err
	}
	return offset + int64(len(entries)), nil
}

// Close releases the sinks opened by Build.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}
