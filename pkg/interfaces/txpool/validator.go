// 文件说明：
// 本文件定义交易验证器与nonce检查器接口。
// 验证顺序与短路规则见 TxValidator.Verify 的实现约定。
package txpool

import (
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// TxValidator 交易验证器接口
type TxValidator interface {
	// Verify 完整准入验证：invalid标记→池内nonce→链上nonce/blockLimit→群组→链→签名
	Verify(tx protocol.Transaction) protocol.TransactionStatus
	// SubmittedToChain 轻量复查（链上nonce窗口 + blockLimit，不检查池内nonce），打包扫描使用，不重算签名
	SubmittedToChain(tx protocol.Transaction) protocol.TransactionStatus
}

// PoolNonceChecker 池内nonce检查器：维护当前在池交易的nonce多重集
type PoolNonceChecker interface {
	// CheckNonce 检查nonce是否重复，shouldInsert 为 true 时检查通过即登记
	CheckNonce(tx protocol.Transaction, shouldInsert bool) protocol.TransactionStatus
	// Insert 登记nonce
	Insert(nonce types.Nonce)
	// Remove 移除nonce
	Remove(nonce types.Nonce)
	// BatchRemove 批量移除nonce
	BatchRemove(nonces []types.Nonce)
	// Exists 判断nonce是否已登记
	Exists(nonce types.Nonce) bool
}

// LedgerNonceChecker 链上nonce检查器：维护最近blockLimit个区块的nonce滑动窗口
type LedgerNonceChecker interface {
	// CheckNonce 检查nonce是否已上链以及blockLimit是否在允许区间
	CheckNonce(tx protocol.Transaction) protocol.TransactionStatus
	// BatchInsert 推进窗口至batchID并登记该区块的nonce列表，淘汰过期槽位
	BatchInsert(batchID int64, nonces []types.Nonce)
	// BlockNumber 当前窗口指向的最高区块
	BlockNumber() int64
}
