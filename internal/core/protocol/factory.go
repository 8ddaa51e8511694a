// 文件说明：
// 本文件实现交易工厂与区块工厂，以及用于本地构造并签名交易的辅助入口。
package protocol

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
)

// TransactionFactory 交易工厂实现
type TransactionFactory struct{}

// NewTransactionFactory 创建交易工厂
func NewTransactionFactory() *TransactionFactory {
	return &TransactionFactory{}
}

// CreateTransaction 从字节序列解码交易，checkSig 为 true 时立即验证签名
func (f *TransactionFactory) CreateTransaction(data []byte, checkSig bool) (protocol.Transaction, error) {
	tx, err := decodeTransaction(data)
	if err != nil {
		return nil, err
	}
	if checkSig {
		if err := tx.VerifySignature(); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// NewSignedTransaction 构造并签名一笔交易
// 本地提交入口与测试夹具共用此辅助函数
func NewSignedTransaction(nonce []byte, blockLimit int64, chainID string, groupID string,
	input []byte, key *ecdsa.PrivateKey) (*Transaction, error) {
	if blockLimit < 0 {
		return nil, fmt.Errorf("blockLimit非法: %d", blockLimit)
	}
	payload := txPayload{
		Nonce:      nonce,
		BlockLimit: uint64(blockLimit),
		ChainID:    chainID,
		GroupID:    groupID,
		Input:      input,
	}
	tx, err := newTransaction(payload)
	if err != nil {
		return nil, err
	}
	signature, err := crypto.Sign(tx.hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("交易签名失败: %w", err)
	}
	tx.payload.Signature = signature

	encoded, err := rlp.EncodeToBytes(&tx.payload)
	if err != nil {
		return nil, fmt.Errorf("编码交易失败: %w", err)
	}
	tx.encoded = encoded
	return tx, nil
}

var _ protocol.TransactionFactory = (*TransactionFactory)(nil)

// BlockFactory 区块工厂实现
type BlockFactory struct{}

// NewBlockFactory 创建区块工厂
func NewBlockFactory() *BlockFactory {
	return &BlockFactory{}
}

// NewBlock 构造空区块
func (f *BlockFactory) NewBlock() protocol.Block {
	return NewBlock()
}

// CreateBlock 从字节序列解码区块
func (f *BlockFactory) CreateBlock(data []byte, decodeTxs bool) (protocol.Block, error) {
	return decodeBlock(data, decodeTxs)
}

var _ protocol.BlockFactory = (*BlockFactory)(nil)
