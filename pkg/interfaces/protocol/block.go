// 文件说明：
// 本文件定义容器区块（Block）接口与区块工厂接口。
// 交易同步协议用区块作为交易批次的统一载体：
// TxsPacket/TxsResponsePacket携带完整交易，提案区块携带交易哈希列表。
package protocol

import "github.com/cyjseagull/bcos-txpool/pkg/types"

// Block 容器区块接口
type Block interface {
	// Number 区块高度（非提案区块为-1）
	Number() int64
	// SetNumber 设置区块高度
	SetNumber(number int64)
	// Hash 区块哈希（非提案区块为空）
	Hash() types.Hash
	// SetHash 设置区块哈希
	SetHash(hash types.Hash)

	// AppendTransaction 追加一笔完整交易
	AppendTransaction(tx Transaction)
	// TransactionsSize 完整交易数量
	TransactionsSize() int
	// Transaction 按序访问完整交易
	Transaction(index int) Transaction

	// AppendTransactionHash 追加一个交易哈希
	AppendTransactionHash(hash types.Hash)
	// TransactionsHashSize 交易哈希数量
	TransactionsHashSize() int
	// TransactionHash 按序访问交易哈希
	TransactionHash(index int) types.Hash

	// Encode 编码为字节序列
	Encode() ([]byte, error)
}

// BlockFactory 区块工厂
type BlockFactory interface {
	// NewBlock 构造空区块
	NewBlock() Block
	// CreateBlock 从字节序列解码区块
	// decodeTxs 为 true 时解码其中的完整交易
	CreateBlock(data []byte, decodeTxs bool) (Block, error)
}
