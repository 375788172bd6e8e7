package scheduler

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "wisefido_emergency"

// Metrics 调度器指标：Prometheus 导出 + 进程内快照
type Metrics struct {
	TicksTotal         prometheus.Counter
	PatientsProcessed  prometheus.Counter
	PatientFailures    prometheus.Counter
	TickDuration       prometheus.Histogram
	EscalationLevel    *prometheus.GaugeVec
	TransitionsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	CountdownsExpired  prometheus.Counter

	mu         sync.RWMutex
	ticks      int64
	processed  int64
	failed     int64
	lastReport TickReport
}

// NewMetrics 在 reg 上注册指标；reg 为 nil 时只保留进程内统计
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of completed ticks.",
		}),
		PatientsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "patients_processed_total",
			Help:      "Total patient pipeline runs that completed.",
		}),
		PatientFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "patient_failures_total",
			Help:      "Patient pipeline runs that failed or panicked.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one tick across all patients.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		EscalationLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "escalation",
			Name:      "level",
			Help:      "Current escalation level per patient (0-4).",
		}, []string{"patient_id"}),
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "escalation",
			Name:      "transitions_total",
			Help:      "Escalation level changes by direction.",
		}, []string{"direction"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "escalation",
			Name:      "notifications_total",
			Help:      "Responder notifications by level.",
		}, []string{"level"}),
		CountdownsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "escalation",
			Name:      "countdowns_expired_total",
			Help:      "Response countdowns that reached zero. Alert if non-zero.",
		}),
	}
}

// observeTick 记录一次 tick
func (m *Metrics) observeTick(report TickReport) {
	m.TicksTotal.Inc()
	m.PatientsProcessed.Add(float64(report.Processed))
	m.PatientFailures.Add(float64(report.Failed))
	m.TickDuration.Observe(report.Latency.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	m.processed += int64(report.Processed)
	m.failed += int64(report.Failed)
	m.lastReport = report
}

// Snapshot 进程内统计快照
type Snapshot struct {
	Ticks       int64         `json:"ticks"`
	Processed   int64         `json:"processed"`
	Failed      int64         `json:"failed"`
	LastLatency time.Duration `json:"last_latency"`
	LastTickAt  time.Time     `json:"last_tick_at"`
}

// GetSnapshot 获取指标快照
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Ticks:       m.ticks,
		Processed:   m.processed,
		Failed:      m.failed,
		LastLatency: m.lastReport.Latency,
		LastTickAt:  m.lastReport.At,
	}
}
