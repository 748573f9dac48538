package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "vitalwatch_"

var (
	registerOnce sync.Once

	ingestTotal *prometheus.CounterVec
	saveTotal   *prometheus.CounterVec
)

// Init registers the service counters. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Telemetry ingest requests by result",
			},
			[]string{"result"},
		)
		saveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_save_total",
				Help: "History commit attempts by result",
			},
			[]string{"result"},
		)
		prometheus.MustRegister(ingestTotal, saveTotal)
	})
}

func IngestResult(result string) {
	if ingestTotal != nil {
		ingestTotal.WithLabelValues(result).Inc()
	}
}

func SaveResult(result string) {
	if saveTotal != nil {
		saveTotal.WithLabelValues(result).Inc()
	}
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
