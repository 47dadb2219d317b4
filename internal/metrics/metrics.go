package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the crawler's collectors. A nil *Registry is valid and
// records nothing, so components can run without metrics.
type Registry struct {
	reg *prometheus.Registry

	PagesFetched    prometheus.Counter
	PageFailures    *prometheus.CounterVec
	RecordsCrawled  prometheus.Counter
	FetchLatencySec prometheus.Histogram

	Enrichments *prometheus.CounterVec

	RecordsAppended *prometheus.CounterVec
	SnapshotRecords *prometheus.GaugeVec
	RunDurationSec  prometheus.Gauge

	// recovery
	Applied            prometheus.Counter
	Skipped            prometheus.Counter
	TTRSec             prometheus.Gauge
	LastManifestAgeSec prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	pages := prometheus.NewCounter(prometheus.CounterOpts{Name: "shopcrawl_pages_fetched_total"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "shopcrawl_page_failures_total"}, []string{"kind"})
	crawled := prometheus.NewCounter(prometheus.CounterOpts{Name: "shopcrawl_records_crawled_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopcrawl_fetch_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	enrich := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "shopcrawl_enrichments_total"}, []string{"result"})
	appended := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "shopcrawl_records_appended_total"}, []string{"format"})
	snapRecords := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "shopcrawl_snapshot_records"}, []string{"format"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{Name: "shopcrawl_run_duration_seconds"})

	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "shopcrawl_restore_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "shopcrawl_restore_skipped_total"})
	ttr := prometheus.NewGauge(prometheus.GaugeOpts{Name: "shopcrawl_restore_ttr_seconds"})
	age := prometheus.NewGauge(prometheus.GaugeOpts{Name: "shopcrawl_last_manifest_age_seconds"})

	r.MustRegister(pages, failures, crawled, latency, enrich, appended, snapRecords, duration,
		applied, skipped, ttr, age)
	return &Registry{
		reg:             r,
		PagesFetched:    pages,
		PageFailures:    failures,
		RecordsCrawled:  crawled,
		FetchLatencySec: latency,
		Enrichments:     enrich,
		RecordsAppended: appended,
		SnapshotRecords: snapRecords,
		RunDurationSec:  duration,

		Applied:            applied,
		Skipped:            skipped,
		TTRSec:             ttr,
		LastManifestAgeSec: age,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// WriteTextfile dumps all collectors in the node_exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

func (r *Registry) ObservePage(records int, latencySec float64) {
	if r == nil {
		return
	}
	r.PagesFetched.Inc()
	r.RecordsCrawled.Add(float64(records))
	r.FetchLatencySec.Observe(latencySec)
}

func (r *Registry) ObservePageFailure(kind string) {
	if r == nil {
		return
	}
	r.PageFailures.WithLabelValues(kind).Inc()
}

func (r *Registry) ObserveEnrichment(result string) {
	if r == nil {
		return
	}
	r.Enrichments.WithLabelValues(result).Inc()
}

func (r *Registry) ObserveMerge(format string, appended, total int) {
	if r == nil {
		return
	}
	r.RecordsAppended.WithLabelValues(format).Add(float64(appended))
	r.SnapshotRecords.WithLabelValues(format).Set(float64(total))
}

func (r *Registry) ObserveRunDuration(sec float64) {
	if r == nil {
		return
	}
	r.RunDurationSec.Set(sec)
}

func (r *Registry) ObserveRestore(applied, skipped int, ttrSec, manifestAgeSec float64) {
	if r == nil {
		return
	}
	r.Applied.Add(float64(applied))
	r.Skipped.Add(float64(skipped))
	r.TTRSec.Set(ttrSec)
	r.LastManifestAgeSec.Set(manifestAgeSec)
}
