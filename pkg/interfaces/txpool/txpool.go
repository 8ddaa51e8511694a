// 文件说明：
// 本文件定义交易池对外门面（TxPool）接口。
// 客户端提交、打包器取交易、共识验证提案、区块落库通知与成员变更通知均经由该接口。
package txpool

import (
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// VerifyCallback 区块验证完成回调
type VerifyCallback func(err error, result bool)

// SendResponseFunc 对等请求的应答函数（沿请求关联回复）
type SendResponseFunc func(respData []byte)

// TxPool 交易池门面接口
type TxPool interface {
	// Start 启动交易池（同步引擎与后台线程池）
	Start() error
	// Stop 停止交易池
	Stop() error

	// AsyncSubmit 异步提交交易字节
	// 回调携带最终提交结果，对每笔交易恰好触发一次；
	// 本节点不在群组内时同步回调 RequestNotBelongToTheGroup 且不入池
	AsyncSubmit(txData []byte, callback protocol.TxSubmitCallback)

	// SealTxs 为打包器挑选未打包交易，返回选中交易的哈希列表
	SealTxs(txsLimit int, avoidTxs map[types.Hash]struct{}) []types.Hash

	// FetchNewTxs 获取尚未转发过的新交易（同时置位synced标记）
	FetchNewTxs(txsLimit int) []protocol.Transaction

	// NotifyBlockResult 区块落库通知：批量移除交易、推进nonce窗口并触发每笔回调
	NotifyBlockResult(batchID int64, txsResult []protocol.TxSubmitResult)

	// AsyncVerifyBlock 验证对端提案区块：本地缺失的交易向提案节点拉取
	AsyncVerifyBlock(generatedNodeID types.NodeID, blockData []byte, onVerifyFinished VerifyCallback)

	// FillBlock 仅用本地交易填充哈希列表，任一哈希缺失返回 TransactionsMissing
	FillBlock(txsHash []types.Hash) ([]protocol.Transaction, error)

	// MarkTxs 批量翻转交易的打包标记
	MarkTxs(txsHash []types.Hash, sealFlag bool)

	// NotifyTxsSyncMessage 投递传输层收到的交易同步报文
	NotifyTxsSyncMessage(err error, fromNode types.NodeID, data []byte, sendResponse SendResponseFunc)

	// NotifyConnectedNodes 更新已连接节点集合
	NotifyConnectedNodes(connectedNodes types.NodeIDSet)
	// NotifyConsensusNodeList 更新共识节点列表
	NotifyConsensusNodeList(consensusNodes []types.NodeID)
	// NotifyObserverNodeList 更新观察节点列表
	NotifyObserverNodeList(observerNodes []types.NodeID)
}
