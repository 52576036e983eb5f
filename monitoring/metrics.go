package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PagesFetched  *prometheus.CounterVec
	ItemsEnriched *prometheus.CounterVec
	FetchOutcomes *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec
	StoreAppended prometheus.Counter
	RunDuration   prometheus.Histogram
}

// NewMetrics registers the metrics on reg (prometheus.DefaultRegisterer in main).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gumtree_pages_fetched_total",
			Help: "Results pages requested, by result",
		}, []string{"result"}), // ok, failed, quota
		ItemsEnriched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gumtree_items_enriched_total",
			Help: "Listing detail enrichments, by result",
		}, []string{"result"}), // ok, stub
		FetchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gumtree_fetch_outcomes_total",
			Help: "Proxy fetch attempts, by outcome kind",
		}, []string{"kind"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gumtree_runs_total",
			Help: "Crawl runs, by final status",
		}, []string{"status"}),
		StoreAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "gumtree_store_appended_total",
			Help: "Rows appended to the external store",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gumtree_run_duration_seconds",
			Help:    "Wall time of a crawl run",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
	}
}

func (m *Metrics) IncPage(result string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(result).Inc()
}

func (m *Metrics) IncItem(result string) {
	if m == nil {
		return
	}
	m.ItemsEnriched.WithLabelValues(result).Inc()
}

func (m *Metrics) IncFetch(kind string) {
	if m == nil {
		return
	}
	m.FetchOutcomes.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddAppended(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StoreAppended.Add(float64(n))
}

func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}
