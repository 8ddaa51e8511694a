// 文件说明：
// 本文件定义交易同步的prometheus指标：收发报文计数与状态转发计数。
package txsync

import "github.com/prometheus/client_golang/prometheus"

// Metrics 交易同步指标集合
type Metrics struct {
	packetsIn    *prometheus.CounterVec
	packetsOut   *prometheus.CounterVec
	forwardedTxs prometheus.Counter
}

// NewMetrics 创建并注册同步指标
// registerer 为 nil 时使用实例私有注册表
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	m := &Metrics{
		packetsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txpool",
			Subsystem: "sync",
			Name:      "packets_in_total",
			Help:      "按类型统计的接收同步报文数量",
		}, []string{"type"}),
		packetsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txpool",
			Subsystem: "sync",
			Name:      "packets_out_total",
			Help:      "按类型统计的发送同步报文数量",
		}, []string{"type"}),
		forwardedTxs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "txpool",
			Subsystem: "sync",
			Name:      "forwarded_txs_total",
			Help:      "累计转发状态的交易数量",
		}),
	}
	registerer.MustRegister(m.packetsIn, m.packetsOut, m.forwardedTxs)
	return m
}

// RecordPacketIn 记录接收报文
func (m *Metrics) RecordPacketIn(packetType string) {
	if m == nil {
		return
	}
	m.packetsIn.WithLabelValues(packetType).Inc()
}

// RecordPacketOut 记录发送报文
func (m *Metrics) RecordPacketOut(packetType string) {
	if m == nil {
		return
	}
	m.packetsOut.WithLabelValues(packetType).Inc()
}

// RecordForwardedTxs 记录状态转发交易数量
func (m *Metrics) RecordForwardedTxs(count int) {
	if m == nil {
		return
	}
	m.forwardedTxs.Add(float64(count))
}
