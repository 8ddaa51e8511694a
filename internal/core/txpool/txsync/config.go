// 文件说明：
// 本文件实现交易同步配置：
// 聚合本节点标识、传输/账本协作方、存储与协议工厂，
// 并维护共识/观察/连接节点列表（各自独立加锁，读取返回副本）。
package txsync

import (
	"sync"
	"time"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/front"
	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/ledger"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	txpooliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txpool"
	txsynciface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txsync"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// Config 交易同步配置
type Config struct {
	nodeID       types.NodeID
	frontService front.FrontService
	storage      txpooliface.TxPoolStorage
	msgFactory   txsynciface.TxsSyncMsgFactory
	blockFactory protocol.BlockFactory
	ledger       ledger.Ledger
	logger       logiface.Logger

	networkTimeout      time.Duration
	forwardPercent      int
	maxSendTransactions int

	consensusMu    sync.RWMutex
	consensusNodes []types.NodeID

	observerMu    sync.RWMutex
	observerNodes []types.NodeID

	connectedMu    sync.RWMutex
	connectedNodes types.NodeIDSet

	// nodeList 共识∪观察节点集合，用于群组归属判断
	nodeListMu sync.RWMutex
	nodeList   types.NodeIDSet
}

// NewConfig 创建交易同步配置
func NewConfig(
	nodeID types.NodeID,
	frontService front.FrontService,
	storage txpooliface.TxPoolStorage,
	msgFactory txsynciface.TxsSyncMsgFactory,
	blockFactory protocol.BlockFactory,
	ledgerService ledger.Ledger,
	logger logiface.Logger,
	networkTimeout time.Duration,
	forwardPercent int,
	maxSendTransactions int,
) *Config {
	return &Config{
		nodeID:              nodeID,
		frontService:        frontService,
		storage:             storage,
		msgFactory:          msgFactory,
		blockFactory:        blockFactory,
		ledger:              ledgerService,
		logger:              logger,
		networkTimeout:      networkTimeout,
		forwardPercent:      forwardPercent,
		maxSendTransactions: maxSendTransactions,
		connectedNodes:      make(types.NodeIDSet),
		nodeList:            make(types.NodeIDSet),
	}
}

// NodeID 本节点标识
func (c *Config) NodeID() types.NodeID {
	return c.nodeID
}

// FrontService 传输协作方
func (c *Config) FrontService() front.FrontService {
	return c.frontService
}

// Storage 交易池存储
func (c *Config) Storage() txpooliface.TxPoolStorage {
	return c.storage
}

// MsgFactory 同步报文工厂
func (c *Config) MsgFactory() txsynciface.TxsSyncMsgFactory {
	return c.msgFactory
}

// BlockFactory 区块工厂
func (c *Config) BlockFactory() protocol.BlockFactory {
	return c.blockFactory
}

// Ledger 账本协作方
func (c *Config) Ledger() ledger.Ledger {
	return c.ledger
}

// Logger 日志记录器
func (c *Config) Logger() logiface.Logger {
	return c.logger
}

// NetworkTimeout 对等请求超时
func (c *Config) NetworkTimeout() time.Duration {
	return c.networkTimeout
}

// ForwardPercent 状态转发的共识节点比例
func (c *Config) ForwardPercent() int {
	return c.forwardPercent
}

// MaxSendTransactions 单次广播的最大交易数
func (c *Config) MaxSendTransactions() int {
	return c.maxSendTransactions
}

// ConsensusNodeList 共识节点列表（返回副本以避免并发问题）
func (c *Config) ConsensusNodeList() []types.NodeID {
	c.consensusMu.RLock()
	defer c.consensusMu.RUnlock()
	return append([]types.NodeID(nil), c.consensusNodes...)
}

// SetConsensusNodeList 更新共识节点列表
func (c *Config) SetConsensusNodeList(consensusNodes []types.NodeID) {
	c.consensusMu.Lock()
	c.consensusNodes = append([]types.NodeID(nil), consensusNodes...)
	c.consensusMu.Unlock()
	c.updateNodeList()
}

// ObserverNodeList 观察节点列表（返回副本）
func (c *Config) ObserverNodeList() []types.NodeID {
	c.observerMu.RLock()
	defer c.observerMu.RUnlock()
	return append([]types.NodeID(nil), c.observerNodes...)
}

// SetObserverNodeList 更新观察节点列表
func (c *Config) SetObserverNodeList(observerNodes []types.NodeID) {
	c.observerMu.Lock()
	c.observerNodes = append([]types.NodeID(nil), observerNodes...)
	c.observerMu.Unlock()
	c.updateNodeList()
}

// ConnectedNodeList 已连接节点集合（返回副本）
func (c *Config) ConnectedNodeList() types.NodeIDSet {
	c.connectedMu.RLock()
	defer c.connectedMu.RUnlock()
	connected := make(types.NodeIDSet, len(c.connectedNodes))
	for node := range c.connectedNodes {
		connected[node] = struct{}{}
	}
	return connected
}

// SetConnectedNodeList 更新已连接节点集合
func (c *Config) SetConnectedNodeList(connectedNodes types.NodeIDSet) {
	c.connectedMu.Lock()
	defer c.connectedMu.Unlock()
	c.connectedNodes = make(types.NodeIDSet, len(connectedNodes))
	for node := range connectedNodes {
		c.connectedNodes[node] = struct{}{}
	}
}

// ExistsInGroup 本节点是否属于共识∪观察集合
func (c *Config) ExistsInGroup() bool {
	c.nodeListMu.RLock()
	defer c.nodeListMu.RUnlock()
	return c.nodeList.Contains(c.nodeID)
}

// updateNodeList 重建共识∪观察集合
func (c *Config) updateNodeList() {
	merged := make(types.NodeIDSet)
	for _, node := range c.ConsensusNodeList() {
		merged[node] = struct{}{}
	}
	for _, node := range c.ObserverNodeList() {
		merged[node] = struct{}{}
	}
	c.nodeListMu.Lock()
	defer c.nodeListMu.Unlock()
	c.nodeList = merged
}
