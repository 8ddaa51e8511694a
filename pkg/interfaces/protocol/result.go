// 文件说明：
// 本文件定义交易提交结果（TxSubmitResult）及其工厂与一次性提交回调类型。
// 提交回调对每笔交易最多触发一次：准入失败、最终上链结果或池内淘汰三者之一。
package protocol

import "github.com/cyjseagull/bcos-txpool/pkg/types"

// TxSubmitResult 交易提交结果
type TxSubmitResult interface {
	// TxHash 交易哈希
	TxHash() types.Hash
	// Status 提交状态码
	Status() TransactionStatus
	// BlockHash 交易所在区块哈希（未上链时为空）
	BlockHash() types.Hash
	// SetBlockHash 设置交易所在区块哈希
	SetBlockHash(hash types.Hash)
}

// TxSubmitResultFactory 交易提交结果工厂
type TxSubmitResultFactory interface {
	// CreateTxSubmitResult 根据哈希与状态码构造提交结果
	CreateTxSubmitResult(txHash types.Hash, status TransactionStatus) TxSubmitResult
}

// TxSubmitCallback 一次性提交回调
// 约束：对同一笔交易恰好触发一次，由交易池保证
type TxSubmitCallback func(result TxSubmitResult)
