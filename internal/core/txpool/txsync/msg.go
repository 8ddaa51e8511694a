// 文件说明：
// 本文件实现交易同步报文的RLP编解码与报文工厂。
// 报文类型与载荷约定见 pkg/interfaces/txsync。
package txsync

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/txsync"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// msgPayload 同步报文的RLP编码载荷
type msgPayload struct {
	Type    uint8
	TxsHash [][]byte
	TxsData []byte
}

// TxsSyncMsg 同步报文实现
type TxsSyncMsg struct {
	payload msgPayload
	from    types.NodeID
}

// Type 报文类型
func (m *TxsSyncMsg) Type() txsync.TxsSyncPacketType {
	return txsync.TxsSyncPacketType(m.payload.Type)
}

// TxsHash 报文携带的哈希列表
func (m *TxsSyncMsg) TxsHash() []types.Hash {
	hashes := make([]types.Hash, 0, len(m.payload.TxsHash))
	for _, hashBytes := range m.payload.TxsHash {
		hashes = append(hashes, types.BytesToHash(hashBytes))
	}
	return hashes
}

// TxsData 报文携带的区块字节
func (m *TxsSyncMsg) TxsData() []byte {
	return m.payload.TxsData
}

// From 报文来源节点
func (m *TxsSyncMsg) From() types.NodeID {
	return m.from
}

// SetFrom 设置报文来源节点
func (m *TxsSyncMsg) SetFrom(from types.NodeID) {
	m.from = from
}

// Encode 编码为字节序列
func (m *TxsSyncMsg) Encode() ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(&m.payload)
	if err != nil {
		return nil, fmt.Errorf("编码同步报文失败: %w", err)
	}
	return encoded, nil
}

var _ txsync.TxsSyncMsg = (*TxsSyncMsg)(nil)

// TxsSyncMsgFactory 同步报文工厂实现
type TxsSyncMsgFactory struct{}

// NewTxsSyncMsgFactory 创建同步报文工厂
func NewTxsSyncMsgFactory() *TxsSyncMsgFactory {
	return &TxsSyncMsgFactory{}
}

// CreateTxsSyncMsg 解码同步报文
func (f *TxsSyncMsgFactory) CreateTxsSyncMsg(data []byte) (txsync.TxsSyncMsg, error) {
	var payload msgPayload
	if err := rlp.DecodeBytes(data, &payload); err != nil {
		return nil, fmt.Errorf("解码同步报文失败: %w", err)
	}
	return &TxsSyncMsg{payload: payload}, nil
}

// CreateTxsSyncMsgWithHashes 用哈希列表构造请求/状态报文
func (f *TxsSyncMsgFactory) CreateTxsSyncMsgWithHashes(
	packetType txsync.TxsSyncPacketType, txsHash []types.Hash) txsync.TxsSyncMsg {
	hashBytes := make([][]byte, 0, len(txsHash))
	for _, hash := range txsHash {
		hashBytes = append(hashBytes, hash.Bytes())
	}
	return &TxsSyncMsg{payload: msgPayload{
		Type:    uint8(packetType),
		TxsHash: hashBytes,
	}}
}

// CreateTxsSyncMsgWithData 用区块字节构造交易/响应报文
func (f *TxsSyncMsgFactory) CreateTxsSyncMsgWithData(
	packetType txsync.TxsSyncPacketType, txsData []byte) txsync.TxsSyncMsg {
	return &TxsSyncMsg{payload: msgPayload{
		Type:    uint8(packetType),
		TxsData: txsData,
	}}
}

var _ txsync.TxsSyncMsgFactory = (*TxsSyncMsgFactory)(nil)
