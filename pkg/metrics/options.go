package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option 指标管理器可选项
type Option func(*Manager)

// WithNamespace 设置指标命名空间
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets 设置耗时直方图的分桶
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// WithRegistry 使用自定义注册表，测试中避免重复注册
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
