// Package protocol 测试文件
package protocol

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	protocoliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// TestNewSignedTransaction_EncodeDecode_RoundTrip 测试交易编解码往返一致
func TestNewSignedTransaction_EncodeDecode_RoundTrip(t *testing.T) {
	// Arrange
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx, err := NewSignedTransaction([]byte("nonce-1"), 100, "chain0", "group0", []byte("input"), key)
	require.NoError(t, err, "应该成功构造签名交易")

	// Act
	encoded, err := tx.Encode()
	require.NoError(t, err)
	decoded, err := NewTransactionFactory().CreateTransaction(encoded, true)
	require.NoError(t, err, "解码并验签应该成功")

	// Assert
	assert.Equal(t, tx.Hash(), decoded.Hash(), "往返后哈希应该一致")
	assert.Equal(t, tx.Nonce(), decoded.Nonce(), "往返后nonce应该一致")
	assert.Equal(t, int64(100), decoded.BlockLimit())
	assert.Equal(t, "chain0", decoded.ChainID())
	assert.Equal(t, "group0", decoded.GroupID())
}

// TestTransaction_VerifySignature_WithTamperedSignature_ReturnsError 测试篡改签名被拒绝
func TestTransaction_VerifySignature_WithTamperedSignature_ReturnsError(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx, err := NewSignedTransaction([]byte("nonce-2"), 100, "chain0", "group0", nil, key)
	require.NoError(t, err)

	// 篡改签名首字节
	tx.payload.Signature[0] ^= 0xff

	assert.Error(t, tx.VerifySignature(), "篡改后的签名应该验证失败")
}

// TestTransaction_VerifySignature_CachesResult 测试验签结论缓存
func TestTransaction_VerifySignature_CachesResult(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx, err := NewSignedTransaction([]byte("nonce-3"), 100, "chain0", "group0", nil, key)
	require.NoError(t, err)

	require.NoError(t, tx.VerifySignature())
	// 第二次走缓存路径
	assert.NoError(t, tx.VerifySignature())
}

// TestTransaction_TakeSubmitCallback_ConsumesOnce 测试提交回调取走式消费
func TestTransaction_TakeSubmitCallback_ConsumesOnce(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx, err := NewSignedTransaction([]byte("nonce-4"), 100, "chain0", "group0", nil, key)
	require.NoError(t, err)

	tx.SetSubmitCallback(func(result protocoliface.TxSubmitResult) {})
	require.NotNil(t, tx.SubmitCallback(), "查询不应该消费回调")
	assert.NotNil(t, tx.TakeSubmitCallback(), "第一次取走应该返回回调")
	assert.Nil(t, tx.TakeSubmitCallback(), "第二次取走应该返回nil")
	assert.Nil(t, tx.SubmitCallback(), "取走后查询应该返回nil")
}

// TestTransaction_KnownBy_TracksPeers 测试knownBy集合
func TestTransaction_KnownBy_TracksPeers(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx, err := NewSignedTransaction([]byte("nonce-5"), 100, "chain0", "group0", nil, key)
	require.NoError(t, err)

	peer := types.NodeID("peer-a")
	assert.False(t, tx.IsKnownBy(peer))
	tx.AppendKnownNode(peer)
	assert.True(t, tx.IsKnownBy(peer), "登记后应该可查询到")
}

// TestBlock_EncodeDecode_WithTransactions_RoundTrip 测试携带交易的区块往返
func TestBlock_EncodeDecode_WithTransactions_RoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	block := NewBlock()
	txCount := 3
	expectedHashes := make([]types.Hash, 0, txCount)
	for i := 0; i < txCount; i++ {
		tx, txErr := NewSignedTransaction([]byte{byte(i)}, 100, "chain0", "group0", nil, key)
		require.NoError(t, txErr)
		block.AppendTransaction(tx)
		expectedHashes = append(expectedHashes, tx.Hash())
	}

	encoded, err := block.Encode()
	require.NoError(t, err)
	decoded, err := NewBlockFactory().CreateBlock(encoded, true)
	require.NoError(t, err)

	require.Equal(t, txCount, decoded.TransactionsSize())
	for i := 0; i < txCount; i++ {
		assert.Equal(t, expectedHashes[i], decoded.Transaction(i).Hash(), "交易顺序与哈希应该保持")
	}
	assert.Equal(t, int64(-1), decoded.Number(), "非提案区块不携带高度")
}

// TestBlock_EncodeDecode_AsProposal_RoundTrip 测试提案区块（头部+哈希列表）往返
func TestBlock_EncodeDecode_AsProposal_RoundTrip(t *testing.T) {
	block := NewBlock()
	block.SetNumber(42)
	proposalHash := types.BytesToHash([]byte("proposal"))
	block.SetHash(proposalHash)
	hashes := []types.Hash{
		types.BytesToHash([]byte("tx-1")),
		types.BytesToHash([]byte("tx-2")),
	}
	for _, hash := range hashes {
		block.AppendTransactionHash(hash)
	}

	encoded, err := block.Encode()
	require.NoError(t, err)
	decoded, err := NewBlockFactory().CreateBlock(encoded, false)
	require.NoError(t, err)

	assert.Equal(t, int64(42), decoded.Number())
	assert.Equal(t, proposalHash, decoded.Hash())
	require.Equal(t, len(hashes), decoded.TransactionsHashSize())
	for i, hash := range hashes {
		assert.Equal(t, hash, decoded.TransactionHash(i))
	}
}

// TestBlock_EncodeDecode_ProposalNumberZero_RoundTrip 测试高度为0的提案区块不丢失头部
func TestBlock_EncodeDecode_ProposalNumberZero_RoundTrip(t *testing.T) {
	block := NewBlock()
	block.SetNumber(0)
	block.SetHash(types.BytesToHash([]byte("genesis")))

	encoded, err := block.Encode()
	require.NoError(t, err)
	decoded, err := NewBlockFactory().CreateBlock(encoded, false)
	require.NoError(t, err)

	assert.Equal(t, int64(0), decoded.Number(), "高度0应该与无头部区分")
}
