package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"shopcrawl/internal/manifest"
	"shopcrawl/internal/shopapi"
)

const stampLayout = "20060102_150405"

// Paths locates the snapshot pair of a run family.
type Paths struct {
	Family   string
	JSONPath string
	CSVPath  string
	// Reused is true when the names came from an earlier run's manifest.
	Reused              bool
	LastChangelogOffset int64
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FamilyOf names the run family of a crawl target, e.g. "category_sp-thuc-pham-chuc-nang".
func FamilyOf(t shopapi.Target) string {
	return unsafeName.ReplaceAllString(string(t.Kind)+"_"+t.Key, "_")
}

// ChangelogFile is the JSONL changelog name of a family inside the output dir.
func ChangelogFile(family string) string {
	return "changelog." + family + ".jsonl"
}

// ResolvePaths reuses the family's snapshot names from its latest manifest,
// or generates timestamped ones when the family has none yet.
func ResolvePaths(mr manifest.Reader, dir, family string, now time.Time) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create output dir: %w", err)
	}
	m, err := mr.ReadLatest(family)
	switch {
	case err == nil && m.JSONPath != "" && m.CSVPath != "":
		return Paths{
			Family:              family,
			JSONPath:            m.JSONPath,
			CSVPath:             m.CSVPath,
			Reused:              true,
			LastChangelogOffset: m.LastChangelogOffset,
		}, nil
	case err != nil && !errors.Is(err, manifest.ErrNotFound):
		return Paths{}, err
	}
	ts := now.Format(stampLayout)
	return Paths{
		Family:   family,
		JSONPath: filepath.Join(dir, fmt.Sprintf("products_%s_%s.json", family, ts)),
		CSVPath:  filepath.Join(dir, fmt.Sprintf("product_data_%s_%s.csv", family, ts)),
	}, nil
}

// DetailPaths names the output pair of a stand-alone enrichment run.
func DetailPaths(dir string, now time.Time) (jsonPath, csvPath string) {
	ts := now.Format(stampLayout)
	return filepath.Join(dir, "detailed_products_"+ts+".json"), filepath.Join(dir, "detailed_products_"+ts+".csv")
}
