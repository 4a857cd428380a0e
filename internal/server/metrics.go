package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	analyses              prometheus.Counter
	analysisDuration      prometheus.Histogram
	consolidations        prometheus.Counter
	consolidationWarnings prometheus.Counter
	requests              *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		analyses: factory.NewCounter(prometheus.CounterOpts{
			Name: "abv_analyses_total",
			Help: "Total number of significance analyses run",
		}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "abv_analysis_duration_seconds",
			Help:    "Duration of significance analyses",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		consolidations: factory.NewCounter(prometheus.CounterOpts{
			Name: "abv_consolidations_total",
			Help: "Total number of period consolidations",
		}),
		consolidationWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "abv_consolidation_warnings_total",
			Help: "Total number of contiguity warnings raised while consolidating",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "abv_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}
