// 文件说明：
// 本文件实现交易提交结果及其工厂。
package protocol

import (
	"sync"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// TxSubmitResult 交易提交结果实现
type TxSubmitResult struct {
	mu        sync.RWMutex
	txHash    types.Hash
	status    protocol.TransactionStatus
	blockHash types.Hash
}

// TxHash 交易哈希
func (r *TxSubmitResult) TxHash() types.Hash {
	return r.txHash
}

// Status 提交状态码
func (r *TxSubmitResult) Status() protocol.TransactionStatus {
	return r.status
}

// BlockHash 交易所在区块哈希
func (r *TxSubmitResult) BlockHash() types.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.blockHash
}

// SetBlockHash 设置交易所在区块哈希
func (r *TxSubmitResult) SetBlockHash(hash types.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockHash = hash
}

var _ protocol.TxSubmitResult = (*TxSubmitResult)(nil)

// TxSubmitResultFactory 交易提交结果工厂实现
type TxSubmitResultFactory struct{}

// NewTxSubmitResultFactory 创建提交结果工厂
func NewTxSubmitResultFactory() *TxSubmitResultFactory {
	return &TxSubmitResultFactory{}
}

// CreateTxSubmitResult 根据哈希与状态码构造提交结果
func (f *TxSubmitResultFactory) CreateTxSubmitResult(
	txHash types.Hash, status protocol.TransactionStatus) protocol.TxSubmitResult {
	return &TxSubmitResult{txHash: txHash, status: status}
}

var _ protocol.TxSubmitResultFactory = (*TxSubmitResultFactory)(nil)
