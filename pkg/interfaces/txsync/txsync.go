// 文件说明：
// 本文件定义交易同步引擎接口与同步报文（TxsSyncMsg）接口。
// 同步引擎负责新交易转发、状态广播、哈希请求应答与提案缺失交易拉取。
package txsync

import (
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// TxsSyncPacketType 同步报文类型
type TxsSyncPacketType uint8

const (
	// TxsPacket 完整交易广播报文（载荷为编码后的容器区块）
	TxsPacket TxsSyncPacketType = 1
	// TxsRequestPacket 交易请求报文（载荷为32字节哈希列表）
	TxsRequestPacket TxsSyncPacketType = 2
	// TxsResponsePacket 交易响应报文（载荷为编码后的容器区块，按命中顺序排列）
	TxsResponsePacket TxsSyncPacketType = 3
	// TxsStatusPacket 交易状态通告报文（载荷为发送方持有的哈希列表）
	TxsStatusPacket TxsSyncPacketType = 4
)

// String 返回报文类型的字符串表示
func (t TxsSyncPacketType) String() string {
	switch t {
	case TxsPacket:
		return "TxsPacket"
	case TxsRequestPacket:
		return "TxsRequestPacket"
	case TxsResponsePacket:
		return "TxsResponsePacket"
	case TxsStatusPacket:
		return "TxsStatusPacket"
	default:
		return "Unknown"
	}
}

// ModuleTxsSync 交易同步协议在传输层的模块标识
const ModuleTxsSync = 2000

// TxsSyncMsg 同步报文接口
type TxsSyncMsg interface {
	// Type 报文类型
	Type() TxsSyncPacketType
	// TxsHash 报文携带的哈希列表（请求/状态报文）
	TxsHash() []types.Hash
	// TxsData 报文携带的区块字节（交易/响应报文）
	TxsData() []byte
	// From 报文来源节点（由接收方填写）
	From() types.NodeID
	// SetFrom 设置报文来源节点
	SetFrom(from types.NodeID)
	// Encode 编码为字节序列
	Encode() ([]byte, error)
}

// TxsSyncMsgFactory 同步报文工厂
type TxsSyncMsgFactory interface {
	// CreateTxsSyncMsg 解码同步报文
	CreateTxsSyncMsg(data []byte) (TxsSyncMsg, error)
	// CreateTxsSyncMsgWithHashes 用哈希列表构造请求/状态报文
	CreateTxsSyncMsgWithHashes(packetType TxsSyncPacketType, txsHash []types.Hash) TxsSyncMsg
	// CreateTxsSyncMsgWithData 用区块字节构造交易/响应报文
	CreateTxsSyncMsgWithData(packetType TxsSyncPacketType, txsData []byte) TxsSyncMsg
}

// VerifyResponseCallback 缺失交易拉取完成回调
type VerifyResponseCallback func(err error, result bool)

// SendResponseFunc 对等请求的应答函数
type SendResponseFunc func(respData []byte)

// TransactionSync 交易同步引擎接口
type TransactionSync interface {
	// Start 启动同步主循环
	Start() error
	// Stop 停止同步主循环与线程池
	Stop() error

	// OnRecvSyncMessage 处理传输层投递的同步报文
	OnRecvSyncMessage(err error, fromNode types.NodeID, data []byte, sendResponse SendResponseFunc)

	// RequestMissedTxs 拉取缺失交易
	// generatedNodeID 为空时从本地账本拉取，否则向该节点发起请求；
	// verifiedProposal 非nil时为强制导入模式，导入失败即验证失败
	RequestMissedTxs(generatedNodeID types.NodeID, missedTxs []types.Hash,
		verifiedProposal protocol.Block, onVerifyFinished VerifyResponseCallback)

	// NoteNewTransactions 通知有新交易待转发并唤醒主循环
	NoteNewTransactions()
}
