// Package metrics содержит Prometheus метрики сервиса расчётов и
// отдельный HTTP сервер для /metrics, /healthz и /readyz.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/card-settlement/pkg/logger"
)

// unmatchedRoute подставляется вместо пути, для которого нет маршрута:
// сырой URL в label раздувает число серий.
const unmatchedRoute = "unmatched"

var (
	// HTTPRequests: ответы API по маршруту и коду.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Количество HTTP ответов по сервису, маршруту, методу и коду",
		},
		[]string{"service", "route", "method", "code"},
	)

	// HTTPDuration: время обработки запроса. Верхние бакеты покрывают
	// таймаут сервиса счетов: сага может ждать два вызова подряд.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Время обработки HTTP запроса в секундах",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"service", "route", "method"},
	)

	// HTTPInFlight: запросы в обработке.
	HTTPInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Количество HTTP запросов в обработке",
		},
		[]string{"service"},
	)
)

// GinMetricsMiddleware собирает HTTP метрики для каждого запроса.
func GinMetricsMiddleware(service string) gin.HandlerFunc {
	inFlight := HTTPInFlight.WithLabelValues(service)

	return func(c *gin.Context) {
		start := time.Now()
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		HTTPRequests.WithLabelValues(service, route, method, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(service, route, method).Observe(time.Since(start).Seconds())
	}
}

// ReadinessChecker возвращает nil, если сервис готов принимать трафик.
type ReadinessChecker func(ctx context.Context) error

// Server отдаёт метрики и пробы на отдельном порту, чтобы они не шли
// через auth и rate limit основного API.
type Server struct {
	httpServer     *http.Server
	service        string
	readinessCheck ReadinessChecker
	readyTimeout   time.Duration
}

// Option настраивает Server.
type Option func(*Server)

// WithReadinessCheck подключает проверку к /readyz. Без неё /readyz всегда 200.
func WithReadinessCheck(checker ReadinessChecker) Option {
	return func(s *Server) {
		s.readinessCheck = checker
	}
}

// NewServer создаёт сервер на addr. service попадает в логи.
func NewServer(addr, service string, opts ...Option) *Server {
	s := &Server{
		service:      service,
		readyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "alive")
	})
	mux.HandleFunc("/readyz", s.handleReady)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	return s
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readinessCheck == nil {
		writeStatus(w, http.StatusOK, "ready")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()

	if err := s.readinessCheck(ctx); err != nil {
		// причина только в лог: /readyz открыт без авторизации
		logger.Warn().Err(err).Str("service", s.service).Msg("Сервис не готов")
		writeStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}

	writeStatus(w, http.StatusOK, "ready")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// Start блокирует до Shutdown.
func (s *Server) Start() error {
	logger.Info().Str("service", s.service).Str("addr", s.httpServer.Addr).Msg("Запуск Metrics Server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь текущих запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
