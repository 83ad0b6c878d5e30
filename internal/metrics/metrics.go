package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes reported by the login coordinator
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// Metrics holds the application collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	loginAttempts      *prometheus.CounterVec
	loginDuration      prometheus.Histogram
	cacheLookups       *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btweet",
			Name:      "login_attempts_total",
			Help:      "Login submissions by outcome.",
		}, []string{"outcome"}),
		loginDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "btweet",
			Name:      "login_duration_seconds",
			Help:      "Time spent waiting for the auth API on login.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btweet",
			Name:      "querycache_lookups_total",
			Help:      "Query cache lookups by query and result.",
		}, []string{"query", "result"}),
		cacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btweet",
			Name:      "querycache_invalidations_total",
			Help:      "Query cache invalidations by query and origin.",
		}, []string{"query", "origin"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btweet",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status class.",
		}, []string{"route", "method", "status"}),
	}

	reg.MustRegister(m.loginAttempts, m.loginDuration, m.cacheLookups, m.cacheInvalidations, m.httpRequests)
	return m
}

// ObserveLogin records one finished login submission
func (m *Metrics) ObserveLogin(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
	m.loginDuration.Observe(elapsed.Seconds())
}

// CacheLookup records a query cache hit or miss
func (m *Metrics) CacheLookup(query string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(query, result).Inc()
}

// CacheInvalidated records an invalidation; origin is "local" or "remote"
func (m *Metrics) CacheInvalidated(query, origin string) {
	if m == nil {
		return
	}
	m.cacheInvalidations.WithLabelValues(query, origin).Inc()
}

// HTTPRequest records one served request
func (m *Metrics) HTTPRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
