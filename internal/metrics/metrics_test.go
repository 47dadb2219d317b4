package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_ObserveAndTextfile(t *testing.T) {
	r := NewRegistry()
	r.ObservePage(20, 0.1)
	r.ObservePage(5, 0.2)
	r.ObservePageFailure("transport")
	r.ObserveEnrichment("ok")
	r.ObserveMerge("json", 3, 10)

	if got := testutil.ToFloat64(r.PagesFetched); got != 2 {
		t.Fatalf("pages fetched=%v want 2", got)
	}
	if got := testutil.ToFloat64(r.RecordsCrawled); got != 25 {
		t.Fatalf("records crawled=%v want 25", got)
	}
	if got := testutil.ToFloat64(r.SnapshotRecords.WithLabelValues("json")); got != 10 {
		t.Fatalf("snapshot records=%v want 10", got)
	}

	path := filepath.Join(t.TempDir(), "shopcrawl.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(b), `shopcrawl_page_failures_total{kind="transport"} 1`) {
		t.Fatalf("textfile missing failure counter:\n%s", b)
	}
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	r.ObservePage(1, 0)
	r.ObservePageFailure("transport")
	r.ObserveEnrichment("failed")
	r.ObserveMerge("csv", 1, 1)
	r.ObserveRunDuration(1)
	r.ObserveRestore(1, 1, 1, 1)
}

func TestRegistry_ObserveRestore(t *testing.T) {
	r := NewRegistry()
	r.ObserveRestore(3, 1, 0.5, 12)
	r.ObserveRestore(2, 0, 0.25, 30)
	if got := testutil.ToFloat64(r.Applied); got != 5 {
		t.Fatalf("applied=%v want 5", got)
	}
	if got := testutil.ToFloat64(r.LastManifestAgeSec); got != 30 {
		t.Fatalf("manifest age=%v want 30", got)
	}
}
