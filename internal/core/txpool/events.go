// 文件说明：
// 本文件定义交易池事件下沉接口与基于EventBus的实现。
// 存储层只向下沉接口发布事件，由装配层决定绑定总线还是Noop。
package txpool

import (
	evbus "github.com/asaskevich/EventBus"

	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// 交易池事件主题
const (
	TopicTxAccepted = "txpool:tx_accepted"
	TopicTxsRemoved = "txpool:txs_removed"
	TopicPoolState  = "txpool:pool_state"
)

// PoolStateEvent 池状态事件载荷
type PoolStateEvent struct {
	Size         int
	UnsealedSize int
}

// TxEventSink 交易池事件下沉接口
type TxEventSink interface {
	// OnTxAccepted 交易成功入池
	OnTxAccepted(txHash types.Hash)
	// OnTxsRemoved 批量移除交易（落库/过期/淘汰）
	OnTxsRemoved(count int)
	// OnPoolState 池规模变化
	OnPoolState(size int, unsealedSize int)
}

// NoopTxEventSink 空实现（未绑定事件总线时使用）
type NoopTxEventSink struct{}

// OnTxAccepted 空实现
func (NoopTxEventSink) OnTxAccepted(types.Hash) {}

// OnTxsRemoved 空实现
func (NoopTxEventSink) OnTxsRemoved(int) {}

// OnPoolState 空实现
func (NoopTxEventSink) OnPoolState(int, int) {}

// EventBusTxEventSink 基于EventBus的事件下沉实现
type EventBusTxEventSink struct {
	bus evbus.Bus
}

// NewEventBusTxEventSink 创建基于EventBus的事件下沉
func NewEventBusTxEventSink(bus evbus.Bus) *EventBusTxEventSink {
	return &EventBusTxEventSink{bus: bus}
}

// OnTxAccepted 发布交易入池事件
func (s *EventBusTxEventSink) OnTxAccepted(txHash types.Hash) {
	s.bus.Publish(TopicTxAccepted, txHash)
}

// OnTxsRemoved 发布批量移除事件
func (s *EventBusTxEventSink) OnTxsRemoved(count int) {
	s.bus.Publish(TopicTxsRemoved, count)
}

// OnPoolState 发布池状态事件
func (s *EventBusTxEventSink) OnPoolState(size int, unsealedSize int) {
	s.bus.Publish(TopicPoolState, PoolStateEvent{Size: size, UnsealedSize: unsealedSize})
}

var (
	_ TxEventSink = NoopTxEventSink{}
	_ TxEventSink = (*EventBusTxEventSink)(nil)
)
