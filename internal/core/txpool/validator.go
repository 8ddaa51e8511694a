// 文件说明：
// 本文件实现交易验证器。准入验证按固定顺序短路：
// invalid标记 → 池内nonce → 链上nonce/blockLimit → 群组 → 链 → 签名。
// 池内nonce在检查通过时即登记（检查+登记原子），后续任一检查失败需回滚登记，
// 以维持"nonce在池窗口中当且仅当交易在池中"的不变式。
package txpool

import (
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	txpooliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txpool"
)

// TxValidator 交易验证器实现
type TxValidator struct {
	poolNonceChecker   txpooliface.PoolNonceChecker
	ledgerNonceChecker txpooliface.LedgerNonceChecker
	groupID            string
	chainID            string
}

// NewTxValidator 创建交易验证器
func NewTxValidator(poolNonceChecker txpooliface.PoolNonceChecker,
	ledgerNonceChecker txpooliface.LedgerNonceChecker,
	groupID string, chainID string) *TxValidator {
	return &TxValidator{
		poolNonceChecker:   poolNonceChecker,
		ledgerNonceChecker: ledgerNonceChecker,
		groupID:            groupID,
		chainID:            chainID,
	}
}

// Verify 完整准入验证
func (v *TxValidator) Verify(tx protocol.Transaction) protocol.TransactionStatus {
	if tx.Invalid() {
		return protocol.InvalidSignature
	}
	// 池内nonce：检查通过即登记
	if status := v.poolNonceChecker.CheckNonce(tx, true); status != protocol.None {
		return status
	}
	// 后续检查失败时回滚已登记的nonce
	if status := v.ledgerNonceChecker.CheckNonce(tx); status != protocol.None {
		v.poolNonceChecker.Remove(tx.Nonce())
		return status
	}
	if tx.GroupID() != v.groupID {
		v.poolNonceChecker.Remove(tx.Nonce())
		return protocol.InvalidGroupID
	}
	if tx.ChainID() != v.chainID {
		v.poolNonceChecker.Remove(tx.Nonce())
		return protocol.InvalidChainID
	}
	if err := tx.VerifySignature(); err != nil {
		v.poolNonceChecker.Remove(tx.Nonce())
		return protocol.InvalidSignature
	}
	return protocol.None
}

// SubmittedToChain 轻量复查：链上nonce窗口与blockLimit，打包扫描使用
// 注意不检查池内nonce：被扫描的交易自身的nonce必然在池窗口中
func (v *TxValidator) SubmittedToChain(tx protocol.Transaction) protocol.TransactionStatus {
	return v.ledgerNonceChecker.CheckNonce(tx)
}

var _ txpooliface.TxValidator = (*TxValidator)(nil)
