// 文件说明：
// 本文件定义交易池各组件共享的基础类型：
// - Hash：32字节交易/区块哈希，作为全局唯一键；
// - NodeID：节点标识（十六进制编码的公钥），用于对等节点寻址与 knownBy 记录；
// - Nonce：交易防重标识（不透明字节序列，可直接作为 map 键）；
// - NodeIDSet：节点集合辅助类型。
package types

import "encoding/hex"

// HashLength 哈希字节长度
const HashLength = 32

// Hash 32字节哈希，交易与区块的唯一键
type Hash [HashLength]byte

// EmptyHash 空哈希（全零）
var EmptyHash = Hash{}

// BytesToHash 从字节切片构造哈希（超长时截取尾部，不足时左侧补零）
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Bytes 返回哈希的字节切片副本
func (h Hash) Bytes() []byte {
	return h[:]
}

// Hex 返回十六进制表示
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Abridged 返回缩略十六进制表示（前8个字符），用于日志输出
func (h Hash) Abridged() string {
	full := h.Hex()
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}

// IsEmpty 判断是否为空哈希
func (h Hash) IsEmpty() bool {
	return h == EmptyHash
}

// NodeID 节点标识（十六进制编码的公钥）
type NodeID string

// Abridged 返回缩略表示，用于日志输出
func (n NodeID) Abridged() string {
	if len(n) <= 8 {
		return string(n)
	}
	return string(n[:8])
}

// NodeIDSet 节点集合
type NodeIDSet map[NodeID]struct{}

// NewNodeIDSet 从节点列表构造集合
func NewNodeIDSet(nodes ...NodeID) NodeIDSet {
	s := make(NodeIDSet, len(nodes))
	for _, n := range nodes {
		s[n] = struct{}{}
	}
	return s
}

// Contains 判断节点是否在集合中
func (s NodeIDSet) Contains(node NodeID) bool {
	_, ok := s[node]
	return ok
}

// Nonce 交易防重标识（不透明字节序列，字符串形式便于作为 map 键）
type Nonce string

// Bytes 返回底层字节
func (n Nonce) Bytes() []byte {
	return []byte(n)
}

// BlockNumber 区块高度
type BlockNumber = int64
