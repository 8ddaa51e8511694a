// 文件说明：
// 本文件定义交易池的prometheus指标集合：
// 池容量、未打包数量、准入结果分布与打包选取计数。
package txpool

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
)

// Metrics 交易池指标集合
type Metrics struct {
	poolSize      prometheus.Gauge
	unsealedSize  prometheus.Gauge
	submitResults *prometheus.CounterVec
	sealedTotal   prometheus.Counter
}

// NewMetrics 创建并注册交易池指标
// registerer 为 nil 时使用实例私有注册表（便于多实例共存）
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	m := &Metrics{
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "txpool",
			Name:      "size",
			Help:      "当前池内交易总数",
		}),
		unsealedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "txpool",
			Name:      "unsealed_size",
			Help:      "当前未打包交易数量",
		}),
		submitResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txpool",
			Name:      "submit_results_total",
			Help:      "按状态码统计的交易提交结果",
		}, []string{"status"}),
		sealedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "txpool",
			Name:      "sealed_total",
			Help:      "累计交给打包器的交易数量",
		}),
	}
	registerer.MustRegister(m.poolSize, m.unsealedSize, m.submitResults, m.sealedTotal)
	return m
}

// RecordSubmitResult 记录一次提交结果
func (m *Metrics) RecordSubmitResult(status protocol.TransactionStatus) {
	if m == nil {
		return
	}
	m.submitResults.WithLabelValues(status.String()).Inc()
}

// RecordSealed 记录打包选取的交易数量
func (m *Metrics) RecordSealed(count int) {
	if m == nil {
		return
	}
	m.sealedTotal.Add(float64(count))
}

// UpdatePoolState 更新池规模指标
func (m *Metrics) UpdatePoolState(size int, unsealedSize int) {
	if m == nil {
		return
	}
	m.poolSize.Set(float64(size))
	m.unsealedSize.Set(float64(unsealedSize))
}
