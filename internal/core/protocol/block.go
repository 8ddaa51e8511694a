// 文件说明：
// 本文件实现容器区块：交易同步协议中交易批次的统一载体。
// 提案区块携带高度/哈希与交易哈希列表；交易批次区块携带完整交易字节。
package protocol

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// blockPayload 区块的RLP编码载荷
// Number 以偏移1存储（0表示无头部信息），避免RLP无法表达负数
type blockPayload struct {
	Number   uint64
	Hash     []byte
	TxsBytes [][]byte
	TxHashes [][]byte
}

// Block 容器区块实现
type Block struct {
	mu       sync.RWMutex
	number   int64
	hash     types.Hash
	txs      []protocol.Transaction
	txHashes []types.Hash
}

// NewBlock 构造空区块
func NewBlock() *Block {
	return &Block{number: -1}
}

// decodeBlock 从RLP字节解码区块
func decodeBlock(data []byte, decodeTxs bool) (*Block, error) {
	var payload blockPayload
	if err := rlp.DecodeBytes(data, &payload); err != nil {
		return nil, fmt.Errorf("区块解码失败: %w", err)
	}
	block := NewBlock()
	if payload.Number > 0 {
		block.number = int64(payload.Number) - 1
		block.hash = types.BytesToHash(payload.Hash)
	}
	for _, hashBytes := range payload.TxHashes {
		block.txHashes = append(block.txHashes, types.BytesToHash(hashBytes))
	}
	if decodeTxs {
		for _, txBytes := range payload.TxsBytes {
			tx, err := decodeTransaction(txBytes)
			if err != nil {
				return nil, fmt.Errorf("区块内交易解码失败: %w", err)
			}
			block.txs = append(block.txs, tx)
		}
	}
	return block, nil
}

// Number 区块高度（非提案区块为-1）
func (b *Block) Number() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.number
}

// SetNumber 设置区块高度
func (b *Block) SetNumber(number int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.number = number
}

// Hash 区块哈希
func (b *Block) Hash() types.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hash
}

// SetHash 设置区块哈希
func (b *Block) SetHash(hash types.Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hash = hash
}

// AppendTransaction 追加一笔完整交易
func (b *Block) AppendTransaction(tx protocol.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txs = append(b.txs, tx)
}

// TransactionsSize 完整交易数量
func (b *Block) TransactionsSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.txs)
}

// Transaction 按序访问完整交易
func (b *Block) Transaction(index int) protocol.Transaction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if index < 0 || index >= len(b.txs) {
		return nil
	}
	return b.txs[index]
}

// AppendTransactionHash 追加一个交易哈希
func (b *Block) AppendTransactionHash(hash types.Hash) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txHashes = append(b.txHashes, hash)
}

// TransactionsHashSize 交易哈希数量
func (b *Block) TransactionsHashSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.txHashes)
}

// TransactionHash 按序访问交易哈希
func (b *Block) TransactionHash(index int) types.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if index < 0 || index >= len(b.txHashes) {
		return types.EmptyHash
	}
	return b.txHashes[index]
}

// Encode 编码为字节序列
func (b *Block) Encode() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	payload := blockPayload{
		TxsBytes: make([][]byte, 0, len(b.txs)),
		TxHashes: make([][]byte, 0, len(b.txHashes)),
	}
	if b.number >= 0 {
		payload.Number = uint64(b.number) + 1
		payload.Hash = b.hash.Bytes()
	}
	for _, tx := range b.txs {
		txBytes, err := tx.Encode()
		if err != nil {
			return nil, fmt.Errorf("编码区块内交易失败: %w", err)
		}
		payload.TxsBytes = append(payload.TxsBytes, txBytes)
	}
	for _, hash := range b.txHashes {
		payload.TxHashes = append(payload.TxHashes, hash.Bytes())
	}
	encoded, err := rlp.EncodeToBytes(&payload)
	if err != nil {
		return nil, fmt.Errorf("编码区块失败: %w", err)
	}
	return encoded, nil
}

var _ protocol.Block = (*Block)(nil)
