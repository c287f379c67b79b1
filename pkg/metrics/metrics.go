package metrics

import (
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		DecisionsTotal, SignalsTotal, OverridesTotal,
		SessionsActive, HTTPRequestDuration,
	)
}

// DecisionsTotal 投递给订阅者的决策数（按最终是否允许动画）
var DecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "animgate_decisions_total",
		Help: "投递给订阅者的动画决策数",
	},
	[]string{"effective"}, // true | false
)

// SignalsTotal 接收的内存信号数
var SignalsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "animgate_signals_total",
		Help: "接收的设备内存信号数",
	},
	[]string{"source", "supported"}, // header | capability | none
)

// OverridesTotal 手动覆盖变更次数
var OverridesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "animgate_overrides_total",
		Help: "手动覆盖变更次数",
	},
	[]string{"active"},
)

// SessionsActive 当前活跃会话数
var SessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "animgate_sessions_active",
		Help: "当前活跃会话数",
	},
)

// HTTPRequestDuration API 请求耗时（秒）
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "animgate_http_request_duration_seconds",
		Help:    "API 请求耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route", "status"},
)

// ObserveDecision 记录一次决策投递
func ObserveDecision(effective bool) {
	DecisionsTotal.WithLabelValues(strconv.FormatBool(effective)).Inc()
}

// ObserveSignal 记录一次信号
func ObserveSignal(source string, supported bool) {
	SignalsTotal.WithLabelValues(source, strconv.FormatBool(supported)).Inc()
}

// ObserveOverride 记录一次覆盖变更
func ObserveOverride(active bool) {
	OverridesTotal.WithLabelValues(strconv.FormatBool(active)).Inc()
}

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
