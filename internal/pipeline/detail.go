package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopcrawl/internal/enrich"
	"shopcrawl/internal/snapshot"
)

// DetailResult describes a stand-alone enrichment run.
type DetailResult struct {
	JSONPath string
	CSVPath  string
	Records  int
	Enrich   enrich.Summary
}

// EnrichSnapshot enriches every record of the JSON snapshot at input and
// writes them to a new detailed_products pair in outDir. The input is
// never modified.
func EnrichSnapshot(ctx context.Context, e *enrich.Enricher, input, outDir string, log *zap.Logger) (DetailResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	recs, err := snapshot.LoadRecords(input)
	if err != nil {
		return DetailResult{}, fmt.Errorf("load snapshot: %w", err)
	}
	log.Info("enriching snapshot", zap.String("input", input), zap.Int("records", len(recs)))
	out, sum := e.EnrichAll(ctx, recs)
	jp, cp := DetailPaths(outDir, NowFunc())
	res := DetailResult{JSONPath: jp, CSVPath: cp, Records: len(snapshot.Unique(out)), Enrich: sum}
	if err := snapshot.Save(out, jp, cp); err != nil {
		return res, fmt.Errorf("save detailed snapshot: %w", err)
	}
	log.Info("detailed snapshot written",
		zap.String("json", jp), zap.String("csv", cp),
		zap.Int("ok", sum.OK), zap.Int("missing", sum.Missing), zap.Int("failed", sum.Failed), zap.Int("skipped", sum.Skipped))
	return res, nil
}
