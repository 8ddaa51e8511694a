// 文件说明：
// 本文件实现交易池对外门面（TxPool）：
// - 提交走独立的submitter任务池，准入路径不阻塞调用方；
// - 提案验证先在本地比对缺失哈希，再委托同步引擎向提案节点（或本地账本）拉取；
// - 群组成员变更通知透传给同步配置；节点不在群组内时提交被同步拒绝。
package txpool

import (
	"errors"

	"github.com/cyjseagull/bcos-txpool/internal/core/infrastructure/workerpool"
	"github.com/cyjseagull/bcos-txpool/internal/core/txpool/txsync"
	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	txpooliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txpool"
	txsynciface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txsync"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// 错误定义
var (
	ErrTxPoolStopped       = errors.New("交易池已停止")
	ErrTransactionsMissing = errors.New("本地缺失部分交易")
)

// TxPool 交易池门面实现
type TxPool struct {
	config     *Config
	storage    *MemoryStorage
	txsSync    txsynciface.TransactionSync
	syncConfig *txsync.Config

	// worker 提交专用任务池
	worker *workerpool.Pool
	logger logiface.Logger
}

// NewTxPool 创建交易池门面
func NewTxPool(config *Config, storage *MemoryStorage,
	transactionSync txsynciface.TransactionSync, syncConfig *txsync.Config) *TxPool {
	logger := config.Logger()
	if logger != nil {
		logger = logger.With("module", "txpool")
	}
	return &TxPool{
		config:     config,
		storage:    storage,
		txsSync:    transactionSync,
		syncConfig: syncConfig,
		worker:     workerpool.New("submitter", config.Options().VerifyWorkerNum, logger),
		logger:     logger,
	}
}

// Storage 交易池存储（测试与装配使用）
func (p *TxPool) Storage() *MemoryStorage {
	return p.storage
}

// TransactionSync 同步引擎（测试与装配使用）
func (p *TxPool) TransactionSync() txsynciface.TransactionSync {
	return p.txsSync
}

// Start 启动交易池
func (p *TxPool) Start() error {
	if err := p.txsSync.Start(); err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.Info("交易池已启动")
	}
	return nil
}

// Stop 停止交易池
func (p *TxPool) Stop() error {
	if err := p.txsSync.Stop(); err != nil {
		return err
	}
	p.worker.Stop()
	p.storage.Stop()
	if p.logger != nil {
		p.logger.Info("交易池已停止")
	}
	return nil
}

// AsyncSubmit 异步提交交易字节
// 本节点不在群组内时同步回调 RequestNotBelongToTheGroup 且不入池
func (p *TxPool) AsyncSubmit(txData []byte, callback protocol.TxSubmitCallback) {
	if !p.syncConfig.ExistsInGroup() {
		if callback != nil {
			callback(p.config.TxResultFactory().CreateTxSubmitResult(
				types.EmptyHash, protocol.RequestNotBelongToTheGroup))
		}
		if p.logger != nil {
			p.logger.Warn("节点不在群组内，拒绝交易提交")
		}
		return
	}
	enqueued := p.worker.Enqueue(func() {
		p.storage.SubmitTransaction(txData, callback)
	})
	if !enqueued && p.logger != nil {
		p.logger.Warn("提交任务池已停止，丢弃交易提交")
	}
}

// SealTxs 为打包器挑选未打包交易，返回选中交易的哈希列表
func (p *TxPool) SealTxs(txsLimit int, avoidTxs map[types.Hash]struct{}) []types.Hash {
	fetchedTxs := p.storage.BatchFetchTxs(txsLimit, avoidTxs, true)
	txsHash := make([]types.Hash, 0, len(fetchedTxs))
	for _, tx := range fetchedTxs {
		txsHash = append(txsHash, tx.Hash())
	}
	return txsHash
}

// FetchNewTxs 获取尚未转发过的新交易
func (p *TxPool) FetchNewTxs(txsLimit int) []protocol.Transaction {
	return p.storage.FetchNewTxs(txsLimit)
}

// NotifyBlockResult 区块落库通知
func (p *TxPool) NotifyBlockResult(batchID int64, txsResult []protocol.TxSubmitResult) {
	p.storage.BatchRemove(batchID, txsResult)
}

// AsyncVerifyBlock 验证对端提案区块
// 缺失交易向提案节点拉取；提案出自本节点时改从本地账本拉取
func (p *TxPool) AsyncVerifyBlock(generatedNodeID types.NodeID, blockData []byte,
	onVerifyFinished txpooliface.VerifyCallback) {
	block, err := p.config.BlockFactory().CreateBlock(blockData, false)
	if err != nil {
		if onVerifyFinished != nil {
			onVerifyFinished(err, false)
		}
		return
	}
	txsSize := block.TransactionsHashSize()
	if txsSize == 0 {
		if onVerifyFinished != nil {
			onVerifyFinished(nil, true)
		}
		return
	}
	var missedTxs []types.Hash
	for i := 0; i < txsSize; i++ {
		txHash := block.TransactionHash(i)
		if !p.storage.Exist(txHash) {
			missedTxs = append(missedTxs, txHash)
		}
	}
	if p.logger != nil {
		p.logger.Debugf("提案区块验证: totalTxs=%d, missedTxs=%d", txsSize, len(missedTxs))
	}
	if len(missedTxs) == 0 {
		if onVerifyFinished != nil {
			onVerifyFinished(nil, true)
		}
		return
	}
	// 本节点的提案缺失交易只可能在本地账本中
	fetchPeer := generatedNodeID
	if fetchPeer == p.syncConfig.NodeID() {
		fetchPeer = ""
	}
	p.txsSync.RequestMissedTxs(fetchPeer, missedTxs, block,
		txsynciface.VerifyResponseCallback(onVerifyFinished))
}

// FillBlock 仅用本地交易填充哈希列表
func (p *TxPool) FillBlock(txsHash []types.Hash) ([]protocol.Transaction, error) {
	found, missed := p.storage.FetchTxs(txsHash)
	if len(missed) > 0 {
		if p.logger != nil {
			p.logger.Warnf("填充区块缺失交易: missed=%d", len(missed))
		}
		return nil, ErrTransactionsMissing
	}
	return found, nil
}

// MarkTxs 批量翻转交易的打包标记
func (p *TxPool) MarkTxs(txsHash []types.Hash, sealFlag bool) {
	p.storage.BatchMarkTxs(txsHash, sealFlag)
}

// NotifyTxsSyncMessage 投递传输层收到的交易同步报文
func (p *TxPool) NotifyTxsSyncMessage(err error, fromNode types.NodeID, data []byte,
	sendResponse txpooliface.SendResponseFunc) {
	p.txsSync.OnRecvSyncMessage(err, fromNode, data, txsynciface.SendResponseFunc(sendResponse))
}

// NotifyConnectedNodes 更新已连接节点集合
func (p *TxPool) NotifyConnectedNodes(connectedNodes types.NodeIDSet) {
	p.syncConfig.SetConnectedNodeList(connectedNodes)
}

// NotifyConsensusNodeList 更新共识节点列表
func (p *TxPool) NotifyConsensusNodeList(consensusNodes []types.NodeID) {
	p.syncConfig.SetConsensusNodeList(consensusNodes)
}

// NotifyObserverNodeList 更新观察节点列表
func (p *TxPool) NotifyObserverNodeList(observerNodes []types.NodeID) {
	p.syncConfig.SetObserverNodeList(observerNodes)
}

var _ txpooliface.TxPool = (*TxPool)(nil)
