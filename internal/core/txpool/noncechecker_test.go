// Package txpool 测试文件
package txpool

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreprotocol "github.com/cyjseagull/bcos-txpool/internal/core/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// newTestTx 构造指定nonce与blockLimit的签名交易
func newTestTx(t *testing.T, nonce []byte, blockLimit int64) *coreprotocol.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx, err := coreprotocol.NewSignedTransaction(nonce, blockLimit, "chain0", "group0", nil, key)
	require.NoError(t, err)
	return tx
}

// TestTxPoolNonceChecker_CheckAndInsert_RejectsDuplicate 测试检查+登记的原子防重
func TestTxPoolNonceChecker_CheckAndInsert_RejectsDuplicate(t *testing.T) {
	checker := NewTxPoolNonceChecker()
	tx := newTestTx(t, []byte("nonce-a"), 100)

	assert.Equal(t, protocol.None, checker.CheckNonce(tx, true), "首次检查应该通过并登记")
	assert.Equal(t, protocol.NonceCheckFail, checker.CheckNonce(tx, true), "重复nonce应该被拒绝")
	assert.True(t, checker.Exists(tx.Nonce()))
}

// TestTxPoolNonceChecker_CheckWithoutInsert_DoesNotRegister 测试只检查不登记
func TestTxPoolNonceChecker_CheckWithoutInsert_DoesNotRegister(t *testing.T) {
	checker := NewTxPoolNonceChecker()
	tx := newTestTx(t, []byte("nonce-b"), 100)

	assert.Equal(t, protocol.None, checker.CheckNonce(tx, false))
	assert.False(t, checker.Exists(tx.Nonce()), "未登记的nonce不应该存在")
}

// TestTxPoolNonceChecker_BatchRemove_ClearsNonces 测试批量移除
func TestTxPoolNonceChecker_BatchRemove_ClearsNonces(t *testing.T) {
	checker := NewTxPoolNonceChecker()
	nonces := []types.Nonce{"n1", "n2", "n3"}
	for _, nonce := range nonces {
		checker.Insert(nonce)
	}

	checker.BatchRemove(nonces[:2])

	assert.False(t, checker.Exists("n1"))
	assert.False(t, checker.Exists("n2"))
	assert.True(t, checker.Exists("n3"), "未移除的nonce应该保留")
}

// TestLedgerNonceChecker_BlockLimitBounds 测试blockLimit允许区间 (tip, tip+blockLimit]
func TestLedgerNonceChecker_BlockLimitBounds(t *testing.T) {
	checker := NewLedgerNonceChecker(10)
	checker.BatchInsert(20, nil) // tip=20

	// blockLimit = 20 → 不大于tip，过期
	assert.Equal(t, protocol.BlockLimitCheckFail,
		checker.CheckNonce(newTestTx(t, []byte("n-1"), 20)))
	// blockLimit = 31 → 超出 tip+blockLimit=30
	assert.Equal(t, protocol.BlockLimitCheckFail,
		checker.CheckNonce(newTestTx(t, []byte("n-2"), 31)))
	// 区间边界：21 与 30 合法
	assert.Equal(t, protocol.None, checker.CheckNonce(newTestTx(t, []byte("n-3"), 21)))
	assert.Equal(t, protocol.None, checker.CheckNonce(newTestTx(t, []byte("n-4"), 30)))
}

// TestLedgerNonceChecker_WindowEviction 测试窗口推进时淘汰过期槽位
func TestLedgerNonceChecker_WindowEviction(t *testing.T) {
	checker := NewLedgerNonceChecker(3)
	checker.BatchInsert(1, []types.Nonce{"mined-1"})
	checker.BatchInsert(2, []types.Nonce{"mined-2"})

	// 窗口内nonce应该被拒绝
	assert.Equal(t, protocol.NonceCheckFail,
		checker.CheckNonce(newTestTx(t, []byte("mined-1"), 4)))

	// 推进tip至5，槽位1、2（不大于5-3=2）被淘汰
	checker.BatchInsert(5, []types.Nonce{"mined-5"})
	assert.Equal(t, int64(5), checker.BlockNumber())
	assert.Equal(t, protocol.None,
		checker.CheckNonce(newTestTx(t, []byte("mined-1"), 7)),
		"淘汰后的nonce应该可以复用")
	assert.Equal(t, protocol.NonceCheckFail,
		checker.CheckNonce(newTestTx(t, []byte("mined-5"), 7)))
}

// TestLedgerNonceChecker_StaleBatchInsert_DoesNotRewindTip 测试旧高度通知不回退窗口
func TestLedgerNonceChecker_StaleBatchInsert_DoesNotRewindTip(t *testing.T) {
	checker := NewLedgerNonceChecker(10)
	checker.BatchInsert(20, nil)
	checker.BatchInsert(15, []types.Nonce{"late-nonce"})

	assert.Equal(t, int64(20), checker.BlockNumber(), "旧高度不应该回退tip")
	assert.Equal(t, protocol.NonceCheckFail,
		checker.CheckNonce(newTestTx(t, []byte("late-nonce"), 25)),
		"旧高度补登的nonce仍然生效")
}
