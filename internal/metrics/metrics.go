// Package metrics содержит метрики Prometheus конвейера запросов и кеша ресурсов.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics содержит все коллекторы клиента витрины.
type Metrics struct {
	Requests      *prometheus.CounterVec
	RequestErrors *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	Refreshes     *prometheus.CounterVec

	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheSharedWaits   *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	CacheEntries       prometheus.Gauge
}

// New создаёт и регистрирует метрики в reg. При nil используется отдельный реестр.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_api_requests_total",
			Help: "Outbound API requests by method and response status",
		}, []string{"method", "status"}),
		RequestErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_api_request_errors_total",
			Help: "Outbound API requests that failed by error kind",
		}, []string{"kind"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_api_request_duration_seconds",
			Help:    "Latency of outbound API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_token_refresh_total",
			Help: "Token refresh attempts by outcome",
		}, []string{"outcome"}),
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cache_hits_total",
			Help: "Queries served from cache by endpoint",
		}, []string{"endpoint"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cache_misses_total",
			Help: "Queries that required a network call by endpoint",
		}, []string{"endpoint"}),
		CacheSharedWaits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cache_shared_waits_total",
			Help: "Queries that joined an identical in-flight request",
		}, []string{"endpoint"}),
		CacheInvalidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cache_invalidated_entries_total",
			Help: "Cache entries marked stale by tag",
		}, []string{"tag"}),
		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_cache_entries",
			Help: "Current number of cache entries",
		}),
	}
}

// ObserveRequest учитывает завершённый HTTP-запрос.
func (m *Metrics) ObserveRequest(method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(method).Observe(seconds)
}

// ObserveError учитывает запрос, завершившийся ошибкой вида kind.
func (m *Metrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.RequestErrors.WithLabelValues(kind).Inc()
}

// ObserveRefresh учитывает попытку обновления токена.
func (m *Metrics) ObserveRefresh(ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "succeeded"
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

// Hit учитывает попадание в кеш.
func (m *Metrics) Hit(endpoint string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(endpoint).Inc()
}

// Miss учитывает промах кеша.
func (m *Metrics) Miss(endpoint string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(endpoint).Inc()
}

// SharedWait учитывает присоединение к уже выполняющемуся запросу.
func (m *Metrics) SharedWait(endpoint string) {
	if m == nil {
		return
	}
	m.CacheSharedWaits.WithLabelValues(endpoint).Inc()
}

// Invalidated учитывает записи, помеченные устаревшими по тегу.
func (m *Metrics) Invalidated(tag string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CacheInvalidations.WithLabelValues(tag).Add(float64(n))
}

// SetEntries обновляет число записей кеша.
func (m *Metrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}
