// Package metrics expone los collectors de prometheus del servicio.
// Metrics implementa accessgrants.Observer y shares.Observer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"media-access/internal/domain/accessgrants"
	"media-access/internal/domain/shares"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "media_access"

type Metrics struct {
	requestsCreated     *prometheus.CounterVec
	requestTransitions  *prometheus.CounterVec
	grantsCreated       *prometheus.CounterVec
	grantsRevoked       prometheus.Counter
	sharesCreated       *prometheus.CounterVec
	sharesRevoked       prometheus.Counter
	rateLimited         *prometheus.CounterVec
	resolutions         *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// MustNewMetrics registra todo en reg; entra en pánico si un nombre ya está
// registrado (en tests usar un prometheus.NewRegistry() por caso).
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requestsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_requests_created_total",
			Help:      "Access requests created, by requested duration.",
		}, []string{"duration"}),
		requestTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_request_transitions_total",
			Help:      "Access request status transitions, by target status.",
		}, []string{"status"}),
		grantsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_grants_created_total",
			Help:      "Grants created or extended, by source (request or direct).",
		}, []string{"source"}),
		grantsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_grants_revoked_total",
			Help:      "Grants revoked by their owner.",
		}),
		sharesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "direct_shares_created_total",
			Help:      "Direct shares created, by kind.",
		}, []string{"kind"}),
		sharesRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "direct_shares_revoked_total",
			Help:      "Direct shares revoked by their sender.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Operations rejected by a rate limiter, by limiter.",
		}, []string{"limiter"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_resolutions_total",
			Help:      "Access state resolutions, by resulting state.",
		}, []string{"state"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	reg.MustRegister(
		m.requestsCreated,
		m.requestTransitions,
		m.grantsCreated,
		m.grantsRevoked,
		m.sharesCreated,
		m.sharesRevoked,
		m.rateLimited,
		m.resolutions,
		m.httpRequestDuration,
	)
	return m
}

func (m *Metrics) RequestCreated(d accessgrants.Duration) {
	m.requestsCreated.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) RequestTransition(to accessgrants.RequestStatus) {
	m.requestTransitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) GrantCreated(source string) { m.grantsCreated.WithLabelValues(source).Inc() }
func (m *Metrics) GrantRevoked()              { m.grantsRevoked.Inc() }

func (m *Metrics) Resolved(kind accessgrants.StateKind) {
	m.resolutions.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ShareCreated(kind shares.Kind) { m.sharesCreated.WithLabelValues(string(kind)).Inc() }
func (m *Metrics) ShareRevoked()                 { m.sharesRevoked.Inc() }

// RateLimited lo usan los dos services ("access_request", "portfolio_share").
func (m *Metrics) RateLimited(kind string) { m.rateLimited.WithLabelValues(kind).Inc() }

// Middleware mide la latencia por patrón de ruta de chi (no por path, para no
// explotar la cardinalidad con ids).
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// Handler sirve /metrics para el gatherer dado.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
