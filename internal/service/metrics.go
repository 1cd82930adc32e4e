package service

import "github.com/prometheus/client_golang/prometheus"

var (
	pagesFetchedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iati_harvest",
		Name:      "pages_fetched_total",
		Help:      "Number of Datastore result pages fetched.",
	})

	docsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iati_harvest",
		Name:      "docs_total",
		Help:      "Number of search documents examined.",
	})

	includedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iati_harvest",
		Name:      "activities_included_total",
		Help:      "Activities matching the sector filter.",
	})

	writtenCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iati_harvest",
		Name:      "activities_written_total",
		Help:      "Included activities stored by every sink.",
	})

	recordFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iati_harvest",
		Name:      "record_failures_total",
		Help:      "Per-record failures that did not abort the run, labeled by stage.",
	}, []string{"stage"})

	pageFetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "iati_harvest",
		Name:      "page_fetch_duration_seconds",
		Help:      "Time spent requesting and decoding one result page.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	lastRunGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "iati_harvest",
		Name:      "last_run_finished_timestamp_seconds",
		Help:      "Unix time the last harvest run finished, labeled by status.",
	}, []string{"status"})
)

// Failure stages for recordFailureCounter.
const (
	stageDecode    = "decode"
	stageWrite     = "write"
	stageDuplicate = "duplicate"
)

func init() {
	prometheus.MustRegister(HarvestCollectors()...)
}

// HarvestCollectors returns the harvest metrics, for pushing from batch runs.
func HarvestCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		pagesFetchedCounter,
		docsCounter,
		includedCounter,
		writtenCounter,
		recordFailureCounter,
		pageFetchDuration,
		lastRunGauge,
	}
}
