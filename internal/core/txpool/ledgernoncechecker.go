// 文件说明：
// 本文件实现链上nonce检查器：
// 以区块高度为索引维护最近blockLimit个区块的nonce滑动窗口，
// 窗口推进时淘汰过期槽位；blockLimit检查依据当前窗口指向的最高高度。
package txpool

import (
	"sync"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	txpooliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txpool"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// LedgerNonceChecker 链上nonce检查器实现
type LedgerNonceChecker struct {
	mu sync.RWMutex
	// blockNonces 高度→该区块内上链的nonce列表
	blockNonces map[int64][]types.Nonce
	// nonceIndex 窗口内全部nonce的倒排索引，检查路径O(1)
	nonceIndex map[types.Nonce]struct{}
	// blockNumber 窗口指向的最高区块
	blockNumber int64
	// blockLimit 窗口大小
	blockLimit int64
}

// NewLedgerNonceChecker 创建链上nonce检查器
func NewLedgerNonceChecker(blockLimit int64) *LedgerNonceChecker {
	return &LedgerNonceChecker{
		blockNonces: make(map[int64][]types.Nonce),
		nonceIndex:  make(map[types.Nonce]struct{}),
		blockLimit:  blockLimit,
	}
}

// CheckNonce 检查nonce是否已上链以及blockLimit是否在允许区间
// 允许区间为 (tip, tip+blockLimit]
func (c *LedgerNonceChecker) CheckNonce(tx protocol.Transaction) protocol.TransactionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, exists := c.nonceIndex[tx.Nonce()]; exists {
		return protocol.NonceCheckFail
	}
	blockLimit := tx.BlockLimit()
	if blockLimit <= c.blockNumber || blockLimit > c.blockNumber+c.blockLimit {
		return protocol.BlockLimitCheckFail
	}
	return protocol.None
}

// BatchInsert 推进窗口至batchID并登记该区块的nonce列表
// 高度不高于当前tip的重复通知只登记nonce，不回退窗口
func (c *LedgerNonceChecker) BatchInsert(batchID int64, nonces []types.Nonce) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := c.blockNonces[batchID]
	for _, nonce := range nonces {
		slot = append(slot, nonce)
		c.nonceIndex[nonce] = struct{}{}
	}
	c.blockNonces[batchID] = slot

	if batchID > c.blockNumber {
		c.blockNumber = batchID
	}
	// 淘汰窗口外的过期槽位
	expiredBoundary := c.blockNumber - c.blockLimit
	for number, expiredNonces := range c.blockNonces {
		if number > expiredBoundary {
			continue
		}
		for _, nonce := range expiredNonces {
			delete(c.nonceIndex, nonce)
		}
		delete(c.blockNonces, number)
	}
}

// BlockNumber 当前窗口指向的最高区块
func (c *LedgerNonceChecker) BlockNumber() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blockNumber
}

var _ txpooliface.LedgerNonceChecker = (*LedgerNonceChecker)(nil)
