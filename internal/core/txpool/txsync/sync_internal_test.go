// Package txsync 白盒测试：节点挑选、状态转发与响应校验
package txsync

import (
	"crypto/ecdsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreprotocol "github.com/cyjseagull/bcos-txpool/internal/core/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/front"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	txsynciface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txsync"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// stubStorage 可注入行为的存储桩
type stubStorage struct {
	mu          sync.Mutex
	existing    map[types.Hash]struct{}
	submitted   []types.Hash
	submitRet   protocol.TransactionStatus
	newTxs      []protocol.Transaction
	unknownRet  []types.Hash
	unknownArgs [][]types.Hash
}

func newStubStorage() *stubStorage {
	return &stubStorage{existing: make(map[types.Hash]struct{})}
}

func (s *stubStorage) SubmitTransaction(txData []byte, callback protocol.TxSubmitCallback) protocol.TransactionStatus {
	return protocol.None
}

func (s *stubStorage) SubmitTx(tx protocol.Transaction, enforceImport bool) protocol.TransactionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, tx.Hash())
	return s.submitRet
}

func (s *stubStorage) Insert(tx protocol.Transaction) protocol.TransactionStatus { return protocol.None }
func (s *stubStorage) BatchInsert(txs []protocol.Transaction)                    {}
func (s *stubStorage) Remove(txHash types.Hash) protocol.Transaction             { return nil }
func (s *stubStorage) RemoveSubmittedTx(txResult protocol.TxSubmitResult) protocol.Transaction {
	return nil
}
func (s *stubStorage) BatchRemove(batchID int64, txsResult []protocol.TxSubmitResult) {}

func (s *stubStorage) FetchTxs(txsHash []types.Hash) ([]protocol.Transaction, []types.Hash) {
	return nil, txsHash
}

func (s *stubStorage) FetchNewTxs(txsLimit int) []protocol.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs := s.newTxs
	s.newTxs = nil
	return txs
}

func (s *stubStorage) BatchFetchTxs(txsLimit int, avoidTxs map[types.Hash]struct{}, avoidDuplicate bool) []protocol.Transaction {
	return nil
}
func (s *stubStorage) BatchMarkTxs(txsHash []types.Hash, sealFlag bool) {}

func (s *stubStorage) FilterUnknownTxs(txsHash []types.Hash, peer types.NodeID) []types.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unknownArgs = append(s.unknownArgs, txsHash)
	return s.unknownRet
}

func (s *stubStorage) Exist(txHash types.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.existing[txHash]
	return ok
}

func (s *stubStorage) Size() int            { return 0 }
func (s *stubStorage) UnsealedTxsSize() int { return 0 }
func (s *stubStorage) Clear()               {}
func (s *stubStorage) Stop()                {}

// sentPacket 记录一次发送
type sentPacket struct {
	toNode types.NodeID
	data   []byte
}

// stubFrontService 记录发送的传输桩
type stubFrontService struct {
	mu    sync.Mutex
	sent  []sentPacket
	onReq func(data []byte, onResponse front.ResponseCallback)
}

func (s *stubFrontService) AsyncSendMessageByNodeID(moduleID int, nodeID types.NodeID,
	data []byte, timeout time.Duration, onResponse front.ResponseCallback) string {
	s.mu.Lock()
	s.sent = append(s.sent, sentPacket{toNode: nodeID, data: data})
	handler := s.onReq
	s.mu.Unlock()
	if handler != nil && onResponse != nil {
		handler(data, onResponse)
	}
	return "correlation-id"
}

func (s *stubFrontService) AsyncGetNodeIDs(onGetNodeIDs func(err error, nodeIDs []types.NodeID)) {
	onGetNodeIDs(nil, nil)
}

func (s *stubFrontService) sentPackets() []sentPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentPacket(nil), s.sent...)
}

// newWhiteboxSync 构造带桩协作方的同步引擎（不启动主循环）
func newWhiteboxSync(selfNodeID types.NodeID) (*TransactionSync, *stubStorage, *stubFrontService) {
	storage := newStubStorage()
	frontStub := &stubFrontService{}
	config := NewConfig(selfNodeID, frontStub, storage, NewTxsSyncMsgFactory(),
		coreprotocol.NewBlockFactory(), nil, nil,
		200*time.Millisecond, 25, 1000)
	return NewTransactionSync(config, nil), storage, frontStub
}

// newSyncTx 构造测试交易
func newSyncTx(t *testing.T, key *ecdsa.PrivateKey, nonce []byte) *coreprotocol.Transaction {
	t.Helper()
	tx, err := coreprotocol.NewSignedTransaction(nonce, 100, "chain0", "group0", nil, key)
	require.NoError(t, err)
	return tx
}

// TestSelectPeers_FiltersSelfDisconnectedAndKnown 测试节点挑选的三重过滤
func TestSelectPeers_FiltersSelfDisconnectedAndKnown(t *testing.T) {
	self := types.NodeID("node-self")
	engine, _, _ := newWhiteboxSync(self)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx := newSyncTx(t, key, []byte("sp-1"))

	peerKnown := types.NodeID("node-known")
	peerOffline := types.NodeID("node-offline")
	peerOK := types.NodeID("node-ok")
	tx.AppendKnownNode(peerKnown)

	consensus := []types.NodeID{self, peerKnown, peerOffline, peerOK}
	connected := types.NewNodeIDSet(self, peerKnown, peerOK)

	selected := engine.selectPeers(tx, connected, consensus, 10)

	assert.Equal(t, []types.NodeID{peerOK}, selected,
		"应该过滤本节点、未连接节点与已知晓节点")
	assert.True(t, tx.IsKnownBy(peerOK), "选中即登记knownBy")
}

// TestSelectPeers_StopsAtExpectedSize 测试挑选数量上限与确定性顺序
func TestSelectPeers_StopsAtExpectedSize(t *testing.T) {
	self := types.NodeID("node-self")
	engine, _, _ := newWhiteboxSync(self)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx := newSyncTx(t, key, []byte("sp-2"))

	consensus := []types.NodeID{"p1", "p2", "p3", "p4"}
	connected := types.NewNodeIDSet("p1", "p2", "p3", "p4")

	selected := engine.selectPeers(tx, connected, consensus, 2)

	assert.Equal(t, []types.NodeID{"p1", "p2"}, selected,
		"按共识列表顺序挑选并止步于期望数量")
}

// TestForwardTxsFromP2P_SuppressesKnownPeers 测试状态转发不重复通告已知晓节点
// 对应场景：F与P都持有交易T时，F的转发目标不包含P
func TestForwardTxsFromP2P_SuppressesKnownPeers(t *testing.T) {
	self := types.NodeID("node-f")
	engine, _, frontStub := newWhiteboxSync(self)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx := newSyncTx(t, key, []byte("fw-1"))

	peerP := types.NodeID("node-p")
	peerQ := types.NodeID("node-q")
	tx.AppendKnownNode(peerP)

	engine.config.SetConsensusNodeList([]types.NodeID{self, peerP, peerQ})
	engine.config.SetConnectedNodeList(types.NewNodeIDSet(self, peerP, peerQ))

	engine.forwardTxsFromP2P([]protocol.Transaction{tx})

	sent := frontStub.sentPackets()
	require.Len(t, sent, 1, "只应该向未知晓的节点发送状态通告")
	assert.Equal(t, peerQ, sent[0].toNode)

	decoded, err := engine.config.MsgFactory().CreateTxsSyncMsg(sent[0].data)
	require.NoError(t, err)
	assert.Equal(t, txsynciface.TxsStatusPacket, decoded.Type())
	assert.Equal(t, []types.Hash{tx.Hash()}, decoded.TxsHash())
}

// TestBroadcastTxsFromRpc_OnlyCallbackCarryingTxs 测试广播只覆盖RPC来源交易
func TestBroadcastTxsFromRpc_OnlyCallbackCarryingTxs(t *testing.T) {
	self := types.NodeID("node-f")
	engine, _, frontStub := newWhiteboxSync(self)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	rpcTx := newSyncTx(t, key, []byte("rpc"))
	rpcTx.SetSubmitCallback(func(result protocol.TxSubmitResult) {})
	gossipTx := newSyncTx(t, key, []byte("gossip"))

	peerP := types.NodeID("node-p")
	engine.config.SetConsensusNodeList([]types.NodeID{self, peerP})

	engine.broadcastTxsFromRpc([]protocol.Transaction{rpcTx, gossipTx})

	sent := frontStub.sentPackets()
	require.Len(t, sent, 1, "广播应该跳过本节点")
	require.Equal(t, peerP, sent[0].toNode)

	msg, err := engine.config.MsgFactory().CreateTxsSyncMsg(sent[0].data)
	require.NoError(t, err)
	require.Equal(t, txsynciface.TxsPacket, msg.Type())
	block, err := engine.config.BlockFactory().CreateBlock(msg.TxsData(), true)
	require.NoError(t, err)
	require.Equal(t, 1, block.TransactionsSize(), "中继来源的交易不应该进入广播")
	assert.Equal(t, rpcTx.Hash(), block.Transaction(0).Hash())
}

// TestVerifyFetchedTxs_TransportError_NotifiesFailure 测试传输错误路径
func TestVerifyFetchedTxs_TransportError_NotifiesFailure(t *testing.T) {
	engine, _, _ := newWhiteboxSync("node-f")
	transportErr := errors.New("网络请求超时")

	var notifiedErr error
	notifiedResult := true
	engine.verifyFetchedTxs(transportErr, "node-p", nil,
		[]types.Hash{types.BytesToHash([]byte("h"))}, nil,
		func(err error, result bool) {
			notifiedErr = err
			notifiedResult = result
		})

	assert.ErrorIs(t, notifiedErr, transportErr)
	assert.False(t, notifiedResult)
}

// TestVerifyFetchedTxs_WrongPacketType_ReturnsFetchFailed 测试非响应报文路径
func TestVerifyFetchedTxs_WrongPacketType_ReturnsFetchFailed(t *testing.T) {
	engine, _, _ := newWhiteboxSync("node-f")
	wrongPacket := engine.config.MsgFactory().CreateTxsSyncMsgWithHashes(
		txsynciface.TxsStatusPacket, []types.Hash{types.BytesToHash([]byte("h"))})
	data, err := wrongPacket.Encode()
	require.NoError(t, err)

	var notifiedErr error
	engine.verifyFetchedTxs(nil, "node-p", data,
		[]types.Hash{types.BytesToHash([]byte("h"))}, nil,
		func(cbErr error, result bool) {
			notifiedErr = cbErr
		})

	status, ok := StatusOf(notifiedErr)
	require.True(t, ok, "错误应该携带状态码")
	assert.Equal(t, protocol.FetchTransactionsFailed, status)
}

// TestVerifyFetchedTxs_CountMismatch_NotifiesThenImportsBestEffort 测试计数不一致路径
// 先应答TransactionsMissing，再以非强制模式导入部分响应
func TestVerifyFetchedTxs_CountMismatch_NotifiesThenImportsBestEffort(t *testing.T) {
	engine, storage, _ := newWhiteboxSync("node-f")
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx := newSyncTx(t, key, []byte("partial"))

	block := coreprotocol.NewBlock()
	block.AppendTransaction(tx)
	blockData, err := block.Encode()
	require.NoError(t, err)
	response := engine.config.MsgFactory().CreateTxsSyncMsgWithData(
		txsynciface.TxsResponsePacket, blockData)
	data, err := response.Encode()
	require.NoError(t, err)

	missed := []types.Hash{tx.Hash(), types.BytesToHash([]byte("absent"))}
	var notifiedErr error
	engine.verifyFetchedTxs(nil, "node-p", data, missed, nil,
		func(cbErr error, result bool) {
			notifiedErr = cbErr
		})

	status, ok := StatusOf(notifiedErr)
	require.True(t, ok)
	assert.Equal(t, protocol.TransactionsMissing, status)
	storage.mu.Lock()
	defer storage.mu.Unlock()
	assert.Equal(t, []types.Hash{tx.Hash()}, storage.submitted,
		"计数不一致后仍然应该尽力导入部分响应")
}

// TestVerifyFetchedTxs_IndexMismatch_ReturnsInconsistent 测试逐项哈希不一致路径
func TestVerifyFetchedTxs_IndexMismatch_ReturnsInconsistent(t *testing.T) {
	engine, _, _ := newWhiteboxSync("node-f")
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	txGood := newSyncTx(t, key, []byte("good"))
	txWrong := newSyncTx(t, key, []byte("wrong"))

	block := coreprotocol.NewBlock()
	block.AppendTransaction(txGood)
	block.AppendTransaction(txWrong)
	blockData, err := block.Encode()
	require.NoError(t, err)
	response := engine.config.MsgFactory().CreateTxsSyncMsgWithData(
		txsynciface.TxsResponsePacket, blockData)
	data, err := response.Encode()
	require.NoError(t, err)

	// 第二个请求哈希与响应中的交易不一致
	missed := []types.Hash{txGood.Hash(), types.BytesToHash([]byte("expected-other"))}
	var notifiedErr error
	notifiedResult := true
	engine.verifyFetchedTxs(nil, "node-p", data, missed, nil,
		func(cbErr error, result bool) {
			notifiedErr = cbErr
			notifiedResult = result
		})

	status, ok := StatusOf(notifiedErr)
	require.True(t, ok)
	assert.Equal(t, protocol.InconsistentTransactions, status)
	assert.False(t, notifiedResult)
}

// TestRequestMissedTxsFromPeer_EmptyMissed_SucceedsImmediately 测试空缺失列表直接成功
func TestRequestMissedTxsFromPeer_EmptyMissed_SucceedsImmediately(t *testing.T) {
	engine, _, frontStub := newWhiteboxSync("node-f")

	var notifiedResult bool
	engine.requestMissedTxsFromPeer("node-p", nil, nil, func(err error, result bool) {
		notifiedResult = result
	})

	assert.True(t, notifiedResult)
	assert.Empty(t, frontStub.sentPackets(), "空缺失列表不应该发起网络请求")
}

// TestOnPeerTxsStatus_RequestsUnknownTxs 测试状态通告触发缺失交易请求
func TestOnPeerTxsStatus_RequestsUnknownTxs(t *testing.T) {
	engine, storage, frontStub := newWhiteboxSync("node-f")
	unknownHash := types.BytesToHash([]byte("unknown"))
	storage.unknownRet = []types.Hash{unknownHash}

	statusMsg := engine.config.MsgFactory().CreateTxsSyncMsgWithHashes(
		txsynciface.TxsStatusPacket, []types.Hash{unknownHash})

	engine.onPeerTxsStatus("node-p", statusMsg)

	sent := frontStub.sentPackets()
	require.Len(t, sent, 1, "未知哈希应该触发一次交易请求")
	request, err := engine.config.MsgFactory().CreateTxsSyncMsg(sent[0].data)
	require.NoError(t, err)
	assert.Equal(t, txsynciface.TxsRequestPacket, request.Type())
	assert.Equal(t, []types.Hash{unknownHash}, request.TxsHash())
}
