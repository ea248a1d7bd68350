// Package metrics provides Prometheus-based recording and querying of
// document-generation run metrics.
package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paperwright/pkg/logx"
)

//nolint:gochecknoglobals // Package-level logger and default-recorder singleton.
var (
	logger          = logx.NewLogger("metrics")
	defaultRecorder *Recorder
	defaultOnce     sync.Once
)

// Recorder records run, stage, tool, and token metrics.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	stagesTotal *prometheus.CounterVec
	toolsTotal  *prometheus.CounterVec
	tokensTotal *prometheus.CounterVec
	costsTotal  *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewRecorder creates a recorder whose metrics are registered on reg under
// the given namespace.
func NewRecorder(namespace string, reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of generation runs by terminal status",
			},
			[]string{"status"},
		),
		stagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stages_total",
				Help:      "Total number of stage transitions observed",
			},
			[]string{"stage"},
		),
		toolsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of producer tool calls by tool and status",
			},
			[]string{"tool", "status"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_total",
				Help:      "Total number of tokens used by model and type",
			},
			[]string{"model", "type"},
		),
		costsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "costs_usd_total",
				Help:      "Total cost in USD by model",
			},
			[]string{"model"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of generation runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(15, 2, 10),
			},
			[]string{"status"},
		),
	}
}

// Default returns the process-wide recorder on the default Prometheus
// registry. The namespace is fixed by the first call.
func Default(namespace string) *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewRecorder(namespace, prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// ObserveRun records a finished run and its duration.
func (r *Recorder) ObserveRun(status string, duration time.Duration) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveStage records one stage transition.
func (r *Recorder) ObserveStage(stage string) {
	r.stagesTotal.WithLabelValues(stage).Inc()
}

// ObserveToolCall records one producer tool call.
func (r *Recorder) ObserveToolCall(tool string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	r.toolsTotal.WithLabelValues(tool, status).Inc()
}

// ObserveUsage records token counts and cost for a model.
func (r *Recorder) ObserveUsage(model string, input, output, cacheCreation, cacheRead int64, costUSD float64) {
	r.tokensTotal.WithLabelValues(model, "input").Add(float64(input))
	r.tokensTotal.WithLabelValues(model, "output").Add(float64(output))
	if cacheCreation > 0 {
		r.tokensTotal.WithLabelValues(model, "cache_creation").Add(float64(cacheCreation))
	}
	if cacheRead > 0 {
		r.tokensTotal.WithLabelValues(model, "cache_read").Add(float64(cacheRead))
	}
	if costUSD > 0 {
		r.costsTotal.WithLabelValues(model).Add(costUSD)
	}
}

// Handler serves the given gatherer plus a /healthz liveness endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve exposes /metrics and /healthz on addr in a background goroutine.
// The returned server should be shut down during exit.
func Serve(addr string, gatherer prometheus.Gatherer) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server error: %v", err)
		}
	}()
	return server
}
