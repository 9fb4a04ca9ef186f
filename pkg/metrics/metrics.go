// Package metrics 暴露分配、结算与 HTTP 的 Prometheus 指标。
// 所有记录方法对 nil *Manager 安全，未启用指标时调用方无需判断。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager 持有全部指标
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	placements      *prometheus.CounterVec
	unplaced        prometheus.Counter
	reputationDelta *prometheus.CounterVec
	roomAssignments prometheus.Counter
	promotions      prometheus.Counter
	actionDuration  *prometheus.HistogramVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager 创建并注册指标
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "session_board",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	f := promauto.With(m.registry)

	m.placements = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "allocation",
		Name:      "placements_total",
		Help:      "按轮次统计的新分配数量",
	}, []string{"round"})
	m.unplaced = f.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "allocation",
		Name:      "unplaced_total",
		Help:      "候补轮仍未能安排的参与者数量",
	})
	m.reputationDelta = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "reputation",
		Name:      "deltas_total",
		Help:      "按原因统计的声望变动条数",
	}, []string{"reason"})
	m.roomAssignments = f.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "allocation",
		Name:      "room_assignments_total",
		Help:      "分配出去的房间数量",
	})
	m.promotions = f.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "allocation",
		Name:      "promotions_total",
		Help:      "候补晋升数量",
	})
	m.actionDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "cycle",
		Name:      "action_duration_seconds",
		Help:      "周期动作耗时",
		Buckets:   m.buckets,
	}, []string{"action", "status"})

	m.httpRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP 请求数",
	}, []string{"method", "route", "status"})
	m.httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP 请求耗时",
		Buckets:   m.buckets,
	}, []string{"method", "route"})

	return m
}

// Handler /metrics 处理器
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 返回底层注册表
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// ── 业务指标 ──

// ObservePlacements 记录某一轮的分配数量
func (m *Manager) ObservePlacements(round, n int) {
	if m == nil || n == 0 {
		return
	}
	m.placements.WithLabelValues(strconv.Itoa(round)).Add(float64(n))
}

// ObserveUnplaced 记录未能安排的参与者数量
func (m *Manager) ObserveUnplaced(n int) {
	if m == nil || n == 0 {
		return
	}
	m.unplaced.Add(float64(n))
}

// ObserveReputationDelta 记录一条声望变动
func (m *Manager) ObserveReputationDelta(reason string) {
	if m == nil {
		return
	}
	m.reputationDelta.WithLabelValues(reason).Inc()
}

// ObserveRooms 记录房间分配数量
func (m *Manager) ObserveRooms(n int) {
	if m == nil {
		return
	}
	m.roomAssignments.Add(float64(n))
}

// ObservePromotions 记录候补晋升数量
func (m *Manager) ObservePromotions(n int) {
	if m == nil {
		return
	}
	m.promotions.Add(float64(n))
}

// ObserveAction 记录周期动作耗时
func (m *Manager) ObserveAction(action string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.actionDuration.WithLabelValues(action, status).Observe(d.Seconds())
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Manager) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
