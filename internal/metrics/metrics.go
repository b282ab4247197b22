package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "advocate"

type Metrics struct {
	ChatTurns        *prometheus.CounterVec
	TokensUsed       prometheus.Counter
	CreditsDebited   prometheus.Counter
	DocumentUploads  *prometheus.CounterVec
	DocumentAnalyses *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
	AnalysisSeconds  prometheus.Histogram

	gatherer prometheus.Gatherer
}

var (
	once   sync.Once
	global *Metrics
)

// Global returns the process-wide metrics registered on the default registry.
func Global() *Metrics {
	once.Do(func() {
		global = New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	})
	return global
}

// New creates a metrics set on reg. Tests pass a fresh prometheus.Registry.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		ChatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by outcome",
		}, []string{"outcome"}),
		TokensUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Model tokens reported for completed chat turns",
		}),
		CreditsDebited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_debited_total",
			Help:      "Credits taken from free tier profiles",
		}),
		DocumentUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_uploads_total",
			Help:      "Document uploads by outcome",
		}, []string{"outcome"}),
		DocumentAnalyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_analyses_total",
			Help:      "Document processing runs by outcome",
		}, []string{"outcome"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"route"}),
		AnalysisSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_analysis_seconds",
			Help:      "Time spent extracting and analysing a document",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		gatherer: gatherer,
	}
	if reg != nil {
		reg.MustRegister(m.ChatTurns, m.TokensUsed, m.CreditsDebited, m.DocumentUploads,
			m.DocumentAnalyses, m.RateLimited, m.AnalysisSeconds)
	}
	return m
}

// Handler exposes the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
