// Package metrics exposes Prometheus metrics for the quiz service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the service's collectors. A nil *Manager is valid and records nothing.
type Manager struct {
	namespace     string
	subsystem     string
	pointsBuckets []float64
	registry      *prometheus.Registry

	answers            *prometheus.CounterVec
	pointsAwarded      prometheus.Histogram
	joins              prometheus.Counter
	nicknamesRejected  prometheus.Counter
	questionsStarted   prometheus.Counter
	activeSubscribers  prometheus.Gauge
	recorderErrors     *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:     "livequiz",
		subsystem:     "game",
		pointsBuckets: []float64{0, 1, 10, 50, 100, 150, 200, 300, 500, 1000, 2000},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.answers = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "answers_total",
		Help:      "Answers submitted, by outcome",
	}, []string{"outcome"})

	m.pointsAwarded = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "points_awarded",
		Help:      "Points awarded per correct answer",
		Buckets:   m.pointsBuckets,
	})

	m.joins = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "joins_total",
		Help:      "Successful session joins",
	})

	m.nicknamesRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "nicknames_rejected_total",
		Help:      "Joins rejected for an invalid nickname",
	})

	m.questionsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "questions_started_total",
		Help:      "Questions opened by a host",
	})

	m.activeSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_subscribers",
		Help:      "Open leaderboard subscriptions",
	})

	m.recorderErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recorder_errors_total",
		Help:      "Failures persisting answers, by recorder",
	}, []string{"recorder"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
}

// RecordAnswer counts an answer and observes awarded points for correct ones.
func (m *Manager) RecordAnswer(correct bool, awarded int) {
	if m == nil {
		return
	}
	if !correct {
		m.answers.WithLabelValues("incorrect").Inc()
		return
	}
	m.answers.WithLabelValues("correct").Inc()
	m.pointsAwarded.Observe(float64(awarded))
}

// RecordRejectedAnswer counts answers refused before scoring.
func (m *Manager) RecordRejectedAnswer() {
	if m == nil {
		return
	}
	m.answers.WithLabelValues("rejected").Inc()
}

// RecordJoin counts a successful join.
func (m *Manager) RecordJoin() {
	if m == nil {
		return
	}
	m.joins.Inc()
}

// RecordNicknameRejected counts a join refused for its nickname.
func (m *Manager) RecordNicknameRejected() {
	if m == nil {
		return
	}
	m.nicknamesRejected.Inc()
}

// RecordQuestionStarted counts a host opening a question.
func (m *Manager) RecordQuestionStarted() {
	if m == nil {
		return
	}
	m.questionsStarted.Inc()
}

// AddSubscribers adjusts the open subscription gauge by delta.
func (m *Manager) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.activeSubscribers.Add(float64(delta))
}

// RecordRecorderError counts a failed answer write for the named recorder.
func (m *Manager) RecordRecorderError(recorder string) {
	if m == nil {
		return
	}
	m.recorderErrors.WithLabelValues(recorder).Inc()
}

// RecordHTTPRequest counts a request and observes its latency.
func (m *Manager) RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Registry returns the registry the collectors are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
