// 文件说明：
// 本文件实现基于RLP编码与secp256k1签名的交易实体：
// - 编码：RLP序列化，哈希为未签名字段的Keccak-256摘要；
// - 签名：65字节[R||S||V]格式，验证通过公钥恢复完成；
// - 池内状态：sealed/synced/invalid等状态位使用原子量，knownBy集合使用读写锁；
// - 提交回调：取走式消费（TakeSubmitCallback），由类型层面保证恰好一次触发。
package protocol

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// 错误定义
var (
	ErrInvalidSignatureLen = errors.New("签名长度非法")
	ErrDecodeTransaction   = errors.New("交易解码失败")
)

// txPayload 交易的RLP编码载荷
type txPayload struct {
	Nonce      []byte
	BlockLimit uint64
	ChainID    string
	GroupID    string
	Input      []byte
	Signature  []byte
}

// Transaction 交易实体实现
type Transaction struct {
	payload txPayload

	hash types.Hash

	// encMu 保护编码结果缓存（预提交与响应编码可能并发触发）
	encMu   sync.Mutex
	encoded []byte

	// 池内状态位
	importTime atomic.Int64
	sealed     atomic.Bool
	synced     atomic.Bool
	invalid    atomic.Bool
	batchID    atomic.Int64

	// 签名验证结论缓存：0未验证 1通过 -1失败
	sigState atomic.Int32

	batchMu   sync.RWMutex
	batchHash types.Hash

	// knownBy 已知晓该交易的节点集合
	knownMu sync.RWMutex
	knownBy types.NodeIDSet

	// 一次性提交回调
	callbackMu     sync.Mutex
	submitCallback protocol.TxSubmitCallback
}

// newTransaction 从载荷构造交易并计算哈希
func newTransaction(payload txPayload) (*Transaction, error) {
	unsigned := txPayload{
		Nonce:      payload.Nonce,
		BlockLimit: payload.BlockLimit,
		ChainID:    payload.ChainID,
		GroupID:    payload.GroupID,
		Input:      payload.Input,
	}
	unsignedBytes, err := rlp.EncodeToBytes(&unsigned)
	if err != nil {
		return nil, fmt.Errorf("编码未签名字段失败: %w", err)
	}
	tx := &Transaction{
		payload: payload,
		hash:    types.BytesToHash(crypto.Keccak256(unsignedBytes)),
		knownBy: make(types.NodeIDSet),
	}
	tx.batchID.Store(-1)
	return tx, nil
}

// decodeTransaction 从RLP字节解码交易
func decodeTransaction(data []byte) (*Transaction, error) {
	var payload txPayload
	if err := rlp.DecodeBytes(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeTransaction, err)
	}
	tx, err := newTransaction(payload)
	if err != nil {
		return nil, err
	}
	tx.encoded = append([]byte(nil), data...)
	return tx, nil
}

// Hash 交易哈希
func (t *Transaction) Hash() types.Hash {
	return t.hash
}

// Nonce 交易防重标识
func (t *Transaction) Nonce() types.Nonce {
	return types.Nonce(t.payload.Nonce)
}

// BlockLimit 交易可被打包的最高区块高度
func (t *Transaction) BlockLimit() int64 {
	return int64(t.payload.BlockLimit)
}

// ChainID 链标识
func (t *Transaction) ChainID() string {
	return t.payload.ChainID
}

// GroupID 群组标识
func (t *Transaction) GroupID() string {
	return t.payload.GroupID
}

// Input 交易输入数据
func (t *Transaction) Input() []byte {
	return t.payload.Input
}

// ImportTime 入池时间（UnixNano）
func (t *Transaction) ImportTime() int64 {
	return t.importTime.Load()
}

// SetImportTime 设置入池时间
func (t *Transaction) SetImportTime(importTime int64) {
	t.importTime.Store(importTime)
}

// Sealed 是否已交给打包器
func (t *Transaction) Sealed() bool {
	return t.sealed.Load()
}

// SetSealed 设置打包标记
func (t *Transaction) SetSealed(sealed bool) {
	t.sealed.Store(sealed)
}

// Synced 是否已向对等节点转发过
func (t *Transaction) Synced() bool {
	return t.synced.Load()
}

// SetSynced 设置转发标记
func (t *Transaction) SetSynced(synced bool) {
	t.synced.Store(synced)
}

// Invalid 是否已标记为待回收
func (t *Transaction) Invalid() bool {
	return t.invalid.Load()
}

// SetInvalid 设置待回收标记
func (t *Transaction) SetInvalid(invalid bool) {
	t.invalid.Store(invalid)
}

// BatchID 交易当前参与验证的提案高度
func (t *Transaction) BatchID() int64 {
	return t.batchID.Load()
}

// SetBatchID 设置提案高度
func (t *Transaction) SetBatchID(batchID int64) {
	t.batchID.Store(batchID)
}

// BatchHash 交易当前参与验证的提案哈希
func (t *Transaction) BatchHash() types.Hash {
	t.batchMu.RLock()
	defer t.batchMu.RUnlock()
	return t.batchHash
}

// SetBatchHash 设置提案哈希
func (t *Transaction) SetBatchHash(hash types.Hash) {
	t.batchMu.Lock()
	defer t.batchMu.Unlock()
	t.batchHash = hash
}

// AppendKnownNode 记录已知晓该交易的节点
func (t *Transaction) AppendKnownNode(node types.NodeID) {
	t.knownMu.Lock()
	defer t.knownMu.Unlock()
	t.knownBy[node] = struct{}{}
}

// IsKnownBy 判断节点是否已知晓该交易
func (t *Transaction) IsKnownBy(node types.NodeID) bool {
	t.knownMu.RLock()
	defer t.knownMu.RUnlock()
	_, ok := t.knownBy[node]
	return ok
}

// SetSubmitCallback 绑定一次性提交回调
func (t *Transaction) SetSubmitCallback(callback protocol.TxSubmitCallback) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.submitCallback = callback
}

// SubmitCallback 查询提交回调（不消费）
func (t *Transaction) SubmitCallback() protocol.TxSubmitCallback {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	return t.submitCallback
}

// TakeSubmitCallback 取走提交回调，之后再次调用返回nil
func (t *Transaction) TakeSubmitCallback() protocol.TxSubmitCallback {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	callback := t.submitCallback
	t.submitCallback = nil
	return callback
}

// VerifySignature 验证交易签名（公钥恢复，结论缓存）
func (t *Transaction) VerifySignature() error {
	switch t.sigState.Load() {
	case 1:
		return nil
	case -1:
		return errors.New("签名验证失败")
	}
	if err := t.verifySignature(); err != nil {
		t.sigState.Store(-1)
		return err
	}
	t.sigState.Store(1)
	return nil
}

func (t *Transaction) verifySignature() error {
	if len(t.payload.Signature) != crypto.SignatureLength {
		return ErrInvalidSignatureLen
	}
	pubkey, err := crypto.Ecrecover(t.hash.Bytes(), t.payload.Signature)
	if err != nil {
		return fmt.Errorf("公钥恢复失败: %w", err)
	}
	if !crypto.VerifySignature(pubkey, t.hash.Bytes(), t.payload.Signature[:crypto.SignatureLength-1]) {
		return errors.New("签名验证失败")
	}
	return nil
}

// Encode 编码为字节序列（结果缓存）
func (t *Transaction) Encode() ([]byte, error) {
	t.encMu.Lock()
	defer t.encMu.Unlock()
	if t.encoded != nil {
		return t.encoded, nil
	}
	encoded, err := rlp.EncodeToBytes(&t.payload)
	if err != nil {
		return nil, fmt.Errorf("编码交易失败: %w", err)
	}
	t.encoded = encoded
	return encoded, nil
}

var _ protocol.Transaction = (*Transaction)(nil)
