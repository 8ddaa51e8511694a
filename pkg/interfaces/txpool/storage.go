// 文件说明：
// 本文件定义交易池内存存储（TxPoolStorage）接口：
// 并发哈希表 + 时间序扫描 + 状态位标记 + 批量失效与提交结果通知。
package txpool

import (
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// TxPoolStorage 交易池存储接口
type TxPoolStorage interface {
	// SubmitTransaction 解码交易字节并提交（验证→插入→异步预提交）
	SubmitTransaction(txData []byte, callback protocol.TxSubmitCallback) protocol.TransactionStatus
	// SubmitTx 提交已解码交易
	// enforceImport 为 true 时用于提案验证：池满仍须接纳
	SubmitTx(tx protocol.Transaction, enforceImport bool) protocol.TransactionStatus

	// Insert 插入交易（容量与重复检查）
	Insert(tx protocol.Transaction) protocol.TransactionStatus
	// BatchInsert 批量插入交易并清理对应的missed记录
	BatchInsert(txs []protocol.Transaction)

	// Remove 移除交易，返回被移除的交易（不存在时返回nil）
	Remove(txHash types.Hash) protocol.Transaction
	// RemoveSubmittedTx 移除交易并异步触发其提交回调
	RemoveSubmittedTx(txResult protocol.TxSubmitResult) protocol.Transaction
	// BatchRemove 区块落库时批量移除并推进nonce窗口
	BatchRemove(batchID int64, txsResult []protocol.TxSubmitResult)

	// FetchTxs 按哈希批量查找，返回命中交易与缺失哈希
	FetchTxs(txsHash []types.Hash) ([]protocol.Transaction, []types.Hash)
	// FetchNewTxs 时间序获取未转发交易并置位synced标记
	FetchNewTxs(txsLimit int) []protocol.Transaction
	// BatchFetchTxs 时间序为打包器挑选交易并置位sealed标记
	BatchFetchTxs(txsLimit int, avoidTxs map[types.Hash]struct{}, avoidDuplicate bool) []protocol.Transaction

	// BatchMarkTxs 批量翻转打包标记并向打包器发布新的未打包数量
	BatchMarkTxs(txsHash []types.Hash, sealFlag bool)

	// FilterUnknownTxs 过滤出本地未知的交易哈希，同时登记对端为已知节点
	FilterUnknownTxs(txsHash []types.Hash, peer types.NodeID) []types.Hash

	// Exist 判断交易是否在池中
	Exist(txHash types.Hash) bool
	// Size 池内交易总数
	Size() int
	// UnsealedTxsSize 未打包交易数量
	UnsealedTxsSize() int
	// Clear 清空交易池
	Clear()

	// Stop 停止后台线程池
	Stop()
}
