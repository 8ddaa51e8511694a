// 文件说明：
// 本文件定义交易（Transaction）接口与交易工厂接口。
// 交易实体由交易池独占管理，接口上除编解码与签名验证外，
// 还暴露池内状态位（sealed/synced/invalid）、knownBy集合与一次性提交回调。
// 实现必须保证状态位与knownBy的并发安全。
package protocol

import "github.com/cyjseagull/bcos-txpool/pkg/types"

// Transaction 交易实体接口
type Transaction interface {
	// Hash 交易哈希（唯一键）
	Hash() types.Hash
	// Nonce 交易防重标识
	Nonce() types.Nonce
	// BlockLimit 交易可被打包的最高区块高度
	BlockLimit() int64
	// ChainID 链标识
	ChainID() string
	// GroupID 群组标识
	GroupID() string

	// ImportTime 入池时间（UnixNano），作为时间序扫描的排序键
	ImportTime() int64
	// SetImportTime 设置入池时间
	SetImportTime(importTime int64)

	// Sealed 是否已交给打包器
	Sealed() bool
	// SetSealed 设置打包标记
	SetSealed(sealed bool)

	// Synced 是否已向对等节点转发过
	Synced() bool
	// SetSynced 设置转发标记
	SetSynced(synced bool)

	// Invalid 是否已标记为待回收
	Invalid() bool
	// SetInvalid 设置待回收标记
	SetInvalid(invalid bool)

	// BatchID 交易当前参与验证的提案高度（未参与时为-1）
	BatchID() int64
	// SetBatchID 设置提案高度
	SetBatchID(batchID int64)
	// BatchHash 交易当前参与验证的提案哈希
	BatchHash() types.Hash
	// SetBatchHash 设置提案哈希
	SetBatchHash(hash types.Hash)

	// AppendKnownNode 记录已知晓该交易的节点
	AppendKnownNode(node types.NodeID)
	// IsKnownBy 判断节点是否已知晓该交易
	IsKnownBy(node types.NodeID) bool

	// SetSubmitCallback 绑定一次性提交回调
	SetSubmitCallback(callback TxSubmitCallback)
	// SubmitCallback 查询是否绑定了提交回调（不消费）
	SubmitCallback() TxSubmitCallback
	// TakeSubmitCallback 取走提交回调（消费一次，之后返回nil）
	TakeSubmitCallback() TxSubmitCallback

	// VerifySignature 验证交易签名
	VerifySignature() error

	// Encode 编码为字节序列
	Encode() ([]byte, error)
}

// TransactionFactory 交易工厂
type TransactionFactory interface {
	// CreateTransaction 从字节序列解码交易
	// checkSig 为 true 时在解码后立即验证签名
	CreateTransaction(data []byte, checkSig bool) (Transaction, error)
}
