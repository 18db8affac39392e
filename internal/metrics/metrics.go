// Package metrics exposes Prometheus instrumentation for the inkwell API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inkwell"

// Recorder owns a registry and the counters the API updates.
type Recorder struct {
	registry *prometheus.Registry

	ArticlesCreated     prometheus.Counter
	ArticleEdits        prometheus.Counter
	CommentsCreated     prometheus.Counter
	CommentsRateLimited prometheus.Counter
	LikesToggled        *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// NewRecorder builds a Recorder on a fresh registry with Go and process collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		ArticlesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_created_total",
			Help:      "Total number of articles created",
		}),
		ArticleEdits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "article_edits_total",
			Help:      "Total number of article edits recorded in edit history",
		}),
		CommentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_created_total",
			Help:      "Total number of comments created",
		}),
		CommentsRateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_rate_limited_total",
			Help:      "Total number of comments rejected by the per-article rate limit",
		}),
		LikesToggled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "likes_toggled_total",
			Help:      "Total number of like toggles by resulting state",
		}, []string{"state"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// RecordLikeToggle counts one toggle that left the like in the given state.
func (r *Recorder) RecordLikeToggle(liked bool) {
	state := "unliked"
	if liked {
		state = "liked"
	}
	r.LikesToggled.WithLabelValues(state).Inc()
}

// ObserveRequest records one finished HTTP request.
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the registry for tests and embedding.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
