package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 服务指标（独立 registry，不使用全局默认 registry）
// 所有方法对 nil 接收者安全，组件未注入指标时直接跳过
type Metrics struct {
	registry *prometheus.Registry

	samplesIngested   *prometheus.CounterVec
	samplesRejected   *prometheus.CounterVec
	persistFailures   prometheus.Counter
	verdicts          *prometheus.CounterVec
	evaluationSeconds prometheus.Histogram
	subscribers       *prometheus.GaugeVec
	deliveryFailures  *prometheus.CounterVec
	notifications     *prometheus.CounterVec
}

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samplesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_industry_samples_ingested_total",
			Help: "Sensor samples accepted for evaluation",
		}, []string{"transport"}),
		samplesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_industry_samples_rejected_total",
			Help: "Sensor samples rejected by the pipeline",
		}, []string{"reason"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smart_industry_sample_persist_failures_total",
			Help: "Sensor samples whose write-through to storage failed",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_industry_verdicts_total",
			Help: "Risk verdicts produced",
		}, []string{"final"}),
		evaluationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smart_industry_evaluation_seconds",
			Help:    "Time spent classifying one sample",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smart_industry_broadcast_subscribers",
			Help: "Live broadcast subscribers per role",
		}, []string{"role"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_industry_broadcast_delivery_failures_total",
			Help: "Broadcast sends that failed and closed the subscriber",
		}, []string{"role"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smart_industry_notifications_total",
			Help: "Notification attempts per channel and outcome",
		}, []string{"channel", "status"}),
	}

	m.registry.MustRegister(
		m.samplesIngested,
		m.samplesRejected,
		m.persistFailures,
		m.verdicts,
		m.evaluationSeconds,
		m.subscribers,
		m.deliveryFailures,
		m.notifications,
	)
	return m
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 测试用
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IncIngested(transport string) {
	if m == nil {
		return
	}
	m.samplesIngested.WithLabelValues(transport).Inc()
}

func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.samplesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) ObserveVerdict(final string, took time.Duration) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(final).Inc()
	m.evaluationSeconds.Observe(took.Seconds())
}

func (m *Metrics) SetSubscribers(role string, n int) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(role).Set(float64(n))
}

func (m *Metrics) IncDeliveryFailure(role string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(role).Inc()
}

func (m *Metrics) IncNotification(channel, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}
