// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"schoolgenius-seeder/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "seeder"
)

var (
	// 条目级指标
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "items_total",
			Help:      "Total number of enumerated items by outcome",
		},
		[]string{"job", "outcome"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Total number of job runs by outcome",
		},
		[]string{"outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "duration_seconds",
			Help:      "Job duration in seconds",
			Buckets:   []float64{10, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"job"},
	)

	CurrentJob = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "current_info",
			Help:      "Set to 1 for the job currently in flight",
		},
		[]string{"job"},
	)

	// 生成服务调用指标
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Total number of generation provider calls",
		},
		[]string{"provider", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Generation provider call duration in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	ProviderUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "units_total",
			Help:      "Billable units consumed (tokens or characters)",
		},
		[]string{"provider", "unit"},
	)

	ProviderCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cost_usd_total",
			Help:      "Accumulated provider spend in USD",
		},
		[]string{"provider"},
	)

	// 存储指标
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Content and state store operations",
		},
		[]string{"backend", "op", "status"},
	)
)

// RecordItem 记录单个条目结果
func RecordItem(job, outcome string) {
	ItemsTotal.WithLabelValues(job, outcome).Inc()
}

// RecordProviderCall 记录生成调用
func RecordProviderCall(provider string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ProviderCallsTotal.WithLabelValues(provider, status).Inc()
	ProviderCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordStoreOp 记录存储操作
func RecordStoreOp(backend, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOpsTotal.WithLabelValues(backend, op, status).Inc()
}

// Serve 在后台暴露 /metrics，返回关闭函数
func Serve(port int, path string) func(context.Context) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// 指标端口不可用不影响批处理
			logger.Warn(context.Background(), "metrics server stopped", "addr", srv.Addr, "error", err.Error())
		}
	}()
	return srv.Shutdown
}
