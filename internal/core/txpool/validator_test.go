// Package txpool 测试文件
package txpool

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreprotocol "github.com/cyjseagull/bcos-txpool/internal/core/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
)

// newTestValidator 构造tip=20、blockLimit=10的验证器
func newTestValidator() (*TxValidator, *TxPoolNonceChecker, *LedgerNonceChecker) {
	poolChecker := NewTxPoolNonceChecker()
	ledgerChecker := NewLedgerNonceChecker(10)
	ledgerChecker.BatchInsert(20, nil)
	return NewTxValidator(poolChecker, ledgerChecker, "group0", "chain0"), poolChecker, ledgerChecker
}

// signedTx 构造指定群组/链的签名交易
func signedTx(t *testing.T, nonce []byte, blockLimit int64, chainID, groupID string) *coreprotocol.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx, err := coreprotocol.NewSignedTransaction(nonce, blockLimit, chainID, groupID, nil, key)
	require.NoError(t, err)
	return tx
}

// TestTxValidator_Verify_ValidTx_ReturnsNone 测试合法交易通过验证并登记nonce
func TestTxValidator_Verify_ValidTx_ReturnsNone(t *testing.T) {
	validator, poolChecker, _ := newTestValidator()
	tx := signedTx(t, []byte("v-1"), 25, "chain0", "group0")

	assert.Equal(t, protocol.None, validator.Verify(tx))
	assert.True(t, poolChecker.Exists(tx.Nonce()), "验证通过后nonce应该已登记")
}

// TestTxValidator_Verify_InvalidFlag_ShortCircuits 测试invalid标记短路
func TestTxValidator_Verify_InvalidFlag_ShortCircuits(t *testing.T) {
	validator, poolChecker, _ := newTestValidator()
	tx := signedTx(t, []byte("v-2"), 25, "chain0", "group0")
	tx.SetInvalid(true)

	assert.Equal(t, protocol.InvalidSignature, validator.Verify(tx))
	assert.False(t, poolChecker.Exists(tx.Nonce()), "短路路径不应该登记nonce")
}

// TestTxValidator_Verify_DuplicatePoolNonce_ReturnsNonceCheckFail 测试池内nonce重复
func TestTxValidator_Verify_DuplicatePoolNonce_ReturnsNonceCheckFail(t *testing.T) {
	validator, _, _ := newTestValidator()
	first := signedTx(t, []byte("dup"), 25, "chain0", "group0")
	second := signedTx(t, []byte("dup"), 26, "chain0", "group0")

	require.Equal(t, protocol.None, validator.Verify(first))
	assert.Equal(t, protocol.NonceCheckFail, validator.Verify(second))
}

// TestTxValidator_Verify_BlockLimitOutOfRange_RollsBackNonce 测试blockLimit失败回滚nonce
func TestTxValidator_Verify_BlockLimitOutOfRange_RollsBackNonce(t *testing.T) {
	validator, poolChecker, _ := newTestValidator()
	tx := signedTx(t, []byte("v-3"), 31, "chain0", "group0") // tip=20, 上限30

	assert.Equal(t, protocol.BlockLimitCheckFail, validator.Verify(tx))
	assert.False(t, poolChecker.Exists(tx.Nonce()), "失败路径应该回滚nonce登记")
}

// TestTxValidator_Verify_WrongGroup_ReturnsInvalidGroupId 测试群组不匹配
func TestTxValidator_Verify_WrongGroup_ReturnsInvalidGroupId(t *testing.T) {
	validator, poolChecker, _ := newTestValidator()
	tx := signedTx(t, []byte("v-4"), 25, "chain0", "other-group")

	assert.Equal(t, protocol.InvalidGroupID, validator.Verify(tx))
	assert.False(t, poolChecker.Exists(tx.Nonce()))
}

// TestTxValidator_Verify_WrongChain_ReturnsInvalidChainId 测试链不匹配
func TestTxValidator_Verify_WrongChain_ReturnsInvalidChainId(t *testing.T) {
	validator, poolChecker, _ := newTestValidator()
	tx := signedTx(t, []byte("v-5"), 25, "other-chain", "group0")

	assert.Equal(t, protocol.InvalidChainID, validator.Verify(tx))
	assert.False(t, poolChecker.Exists(tx.Nonce()))
}

// TestTxValidator_Verify_CheckOrder_GroupBeforeChain 测试群组检查先于链检查
func TestTxValidator_Verify_CheckOrder_GroupBeforeChain(t *testing.T) {
	validator, _, _ := newTestValidator()
	tx := signedTx(t, []byte("v-6"), 25, "other-chain", "other-group")

	assert.Equal(t, protocol.InvalidGroupID, validator.Verify(tx),
		"群组与链同时不匹配时应该先报群组错误")
}

// TestTxValidator_SubmittedToChain_ChecksLedgerWindowOnly 测试轻量复查不受池内nonce影响
func TestTxValidator_SubmittedToChain_ChecksLedgerWindowOnly(t *testing.T) {
	validator, _, ledgerChecker := newTestValidator()
	tx := signedTx(t, []byte("v-7"), 25, "chain0", "group0")

	// 准入后其nonce进入池窗口，轻量复查仍然应该通过
	require.Equal(t, protocol.None, validator.Verify(tx))
	assert.Equal(t, protocol.None, validator.SubmittedToChain(tx))

	// 窗口推进后blockLimit过期
	ledgerChecker.BatchInsert(25, nil)
	assert.Equal(t, protocol.BlockLimitCheckFail, validator.SubmittedToChain(tx))
}
