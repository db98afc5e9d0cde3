package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	AdmissionRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_rejected_total",
		Help: "Отклонённые при приёме ссылки по причинам",
	}, []string{"reason"})

	JobsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "download_jobs_enqueued_total",
		Help: "Поставленные в очередь задачи по приоритету",
	}, []string{"priority"})

	JobsFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "download_jobs_finished_total",
		Help: "Завершённые задачи по итоговому состоянию",
	}, []string{"state"})

	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "download_job_duration_seconds",
		Help:    "Время обработки задачи воркером",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})

	UpstreamAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_attempts_total",
		Help: "Попытки запросов к апстриму платформ",
	}, []string{"status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
		AdmissionRejectedTotal,
		JobsEnqueuedTotal,
		JobsFinishedTotal,
		JobDuration,
		UpstreamAttemptsTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncAdmissionRejected увеличивает счётчик отказов при приёме.
func IncAdmissionRejected(reason string) {
	AdmissionRejectedTotal.WithLabelValues(reason).Inc()
}

// IncJobEnqueued увеличивает счётчик задач, поставленных в очередь.
func IncJobEnqueued(priority int) {
	JobsEnqueuedTotal.WithLabelValues(strconv.Itoa(priority)).Inc()
}

// ObserveJobFinished записывает итог задачи и время её обработки.
func ObserveJobFinished(platform, state string, start time.Time) {
	if platform == "" {
		platform = "unknown"
	}
	JobsFinishedTotal.WithLabelValues(state).Inc()
	JobDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
}

// IncUpstreamAttempt учитывает попытку запроса к апстриму.
func IncUpstreamAttempt(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	UpstreamAttemptsTotal.WithLabelValues(status).Inc()
}
