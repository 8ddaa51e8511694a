// 文件说明：
// 本文件实现池内nonce检查器：维护当前在池交易的nonce集合，
// 准入路径上的检查与登记在同一把锁内完成，保证检查+登记的原子性。
package txpool

import (
	"sync"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	txpooliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txpool"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// TxPoolNonceChecker 池内nonce检查器实现
type TxPoolNonceChecker struct {
	mu     sync.RWMutex
	nonces map[types.Nonce]struct{}
}

// NewTxPoolNonceChecker 创建池内nonce检查器
func NewTxPoolNonceChecker() *TxPoolNonceChecker {
	return &TxPoolNonceChecker{
		nonces: make(map[types.Nonce]struct{}),
	}
}

// CheckNonce 检查nonce是否重复
// shouldInsert 为 true 时检查通过即登记，检查与登记在同一临界区内完成
func (c *TxPoolNonceChecker) CheckNonce(tx protocol.Transaction, shouldInsert bool) protocol.TransactionStatus {
	nonce := tx.Nonce()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.nonces[nonce]; exists {
		return protocol.NonceCheckFail
	}
	if shouldInsert {
		c.nonces[nonce] = struct{}{}
	}
	return protocol.None
}

// Insert 登记nonce
func (c *TxPoolNonceChecker) Insert(nonce types.Nonce) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[nonce] = struct{}{}
}

// Remove 移除nonce
func (c *TxPoolNonceChecker) Remove(nonce types.Nonce) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nonces, nonce)
}

// BatchRemove 批量移除nonce
func (c *TxPoolNonceChecker) BatchRemove(nonces []types.Nonce) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, nonce := range nonces {
		delete(c.nonces, nonce)
	}
}

// Exists 判断nonce是否已登记
func (c *TxPoolNonceChecker) Exists(nonce types.Nonce) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.nonces[nonce]
	return ok
}

var _ txpooliface.PoolNonceChecker = (*TxPoolNonceChecker)(nil)
