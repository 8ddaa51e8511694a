// Package txsync_test 同步引擎集成测试
// 多个交易池夹具共享同一进程内传输交换机，覆盖提案验证与交易传播链路。
package txsync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreprotocol "github.com/cyjseagull/bcos-txpool/internal/core/protocol"
	"github.com/cyjseagull/bcos-txpool/internal/core/txpool/testutil"
	"github.com/cyjseagull/bcos-txpool/internal/core/txpool/txsync"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/front"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	txsynciface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txsync"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// newSyncNetwork 构造共享交换机的两个节点夹具并互相加入共识列表
func newSyncNetwork(t *testing.T) (*testutil.FakeFrontService, *testutil.TxPoolFixture, *testutil.TxPoolFixture) {
	t.Helper()
	frontService := testutil.NewFakeFrontService()
	local := testutil.NewTxPoolFixture(t, frontService, nil, nil)
	peer := testutil.NewTxPoolFixture(t, frontService, nil, nil)
	for _, fixture := range []*testutil.TxPoolFixture{local, peer} {
		fixture.AppendSealer(local.NodeID)
		fixture.AppendSealer(peer.NodeID)
	}
	return frontService, local, peer
}

// submitTx 向夹具提交交易并等待入池
func submitTx(t *testing.T, fixture *testutil.TxPoolFixture, tx *coreprotocol.Transaction) {
	t.Helper()
	txData, err := tx.Encode()
	require.NoError(t, err)
	statusCh := make(chan protocol.TransactionStatus, 1)
	fixture.Pool.AsyncSubmit(txData, func(result protocol.TxSubmitResult) {
		statusCh <- result.Status()
	})
	// 准入成功时回调要等到落库或过期才触发，以交易出现在池中作为入池完成；
	// 准入失败时回调同步携带失败状态
	deadline := time.After(3 * time.Second)
	for !fixture.Pool.Storage().Exist(tx.Hash()) {
		select {
		case status := <-statusCh:
			require.Equal(t, protocol.None, status, "交易应该成功入池")
		case <-deadline:
			t.Fatal("等待交易入池超时")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

// proposalData 构造携带指定交易哈希的提案区块字节
func proposalData(t *testing.T, number int64, txsHash ...types.Hash) []byte {
	t.Helper()
	proposal := coreprotocol.NewBlock()
	proposal.SetNumber(number)
	proposal.SetHash(types.BytesToHash([]byte("proposal-hash")))
	for _, txHash := range txsHash {
		proposal.AppendTransactionHash(txHash)
	}
	data, err := proposal.Encode()
	require.NoError(t, err)
	return data
}

// TestVerifyBlock_MissingTxsFetchedFromProposer_Succeeds 场景：提案缺失交易从提案节点拉取
func TestVerifyBlock_MissingTxsFetchedFromProposer_Succeeds(t *testing.T) {
	_, local, proposer := newSyncNetwork(t)

	// 提案节点持有三笔交易，本地只持有第一笔
	tx1 := proposer.NewSignedTx(t, 20)
	tx2 := proposer.NewSignedTx(t, 20)
	tx3 := proposer.NewSignedTx(t, 20)
	submitTx(t, proposer, tx1)
	submitTx(t, proposer, tx2)
	submitTx(t, proposer, tx3)

	localTx1, err := coreprotocol.NewTransactionFactory().CreateTransaction(mustEncode(t, tx1), false)
	require.NoError(t, err)
	require.Equal(t, protocol.None, local.Pool.Storage().SubmitTx(localTx1, false))

	resultCh := make(chan bool, 1)
	errCh := make(chan error, 1)
	local.Pool.AsyncVerifyBlock(proposer.NodeID,
		proposalData(t, 11, tx1.Hash(), tx2.Hash(), tx3.Hash()),
		func(verifyErr error, result bool) {
			errCh <- verifyErr
			resultCh <- result
		})

	select {
	case result := <-resultCh:
		assert.True(t, result, "缺失交易拉取成功后验证应该通过")
		assert.NoError(t, <-errCh)
	case <-time.After(5 * time.Second):
		t.Fatal("等待提案验证回调超时")
	}

	// 拉取的交易应该已导入本地池
	assert.True(t, local.Pool.Storage().Exist(tx2.Hash()))
	assert.True(t, local.Pool.Storage().Exist(tx3.Hash()))
}

// TestVerifyBlock_AllTxsLocal_SucceedsWithoutNetwork 测试全部命中时不发起网络请求
func TestVerifyBlock_AllTxsLocal_SucceedsWithoutNetwork(t *testing.T) {
	_, local, proposer := newSyncNetwork(t)
	tx := local.NewSignedTx(t, 20)
	submitTx(t, local, tx)

	resultCh := make(chan bool, 1)
	local.Pool.AsyncVerifyBlock(proposer.NodeID, proposalData(t, 11, tx.Hash()),
		func(verifyErr error, result bool) {
			resultCh <- result
		})

	select {
	case result := <-resultCh:
		assert.True(t, result)
	case <-time.After(3 * time.Second):
		t.Fatal("等待提案验证回调超时")
	}
}

// TestVerifyBlock_InconsistentResponse_Fails 场景：响应逐项哈希不一致导致验证失败
func TestVerifyBlock_InconsistentResponse_Fails(t *testing.T) {
	frontService := testutil.NewFakeFrontService()
	local := testutil.NewTxPoolFixture(t, frontService, nil, nil)
	local.AppendSealer(local.NodeID)

	// 恶意提案节点：应答计数正确但第二笔交易哈希不符
	maliciousNodeID := types.NodeID("malicious-proposer")
	local.AppendSealer(maliciousNodeID)
	msgFactory := txsync.NewTxsSyncMsgFactory()
	txGood := local.NewSignedTx(t, 20)
	txWrong := local.NewSignedTx(t, 20)
	txExpected := local.NewSignedTx(t, 20)

	frontService.AddRawHandler(maliciousNodeID,
		func(fromNode types.NodeID, data []byte, sendResponse front.SendResponseFunc) {
			request, err := msgFactory.CreateTxsSyncMsg(data)
			if err != nil || request.Type() != txsynciface.TxsRequestPacket {
				return
			}
			block := coreprotocol.NewBlock()
			block.AppendTransaction(txGood)
			block.AppendTransaction(txWrong)
			blockData, _ := block.Encode()
			response := msgFactory.CreateTxsSyncMsgWithData(txsynciface.TxsResponsePacket, blockData)
			responseData, _ := response.Encode()
			if sendResponse != nil {
				sendResponse(responseData)
			}
		})

	errCh := make(chan error, 1)
	resultCh := make(chan bool, 1)
	local.Pool.AsyncVerifyBlock(maliciousNodeID,
		proposalData(t, 11, txGood.Hash(), txExpected.Hash()),
		func(verifyErr error, result bool) {
			errCh <- verifyErr
			resultCh <- result
		})

	select {
	case result := <-resultCh:
		assert.False(t, result, "逐项哈希不一致应该导致验证失败")
		status, ok := txsync.StatusOf(<-errCh)
		require.True(t, ok, "错误应该携带状态码")
		assert.Equal(t, protocol.InconsistentTransactions, status)
	case <-time.After(5 * time.Second):
		t.Fatal("等待提案验证回调超时")
	}
}

// TestVerifyBlock_UnreachablePeer_FailsWithTransportError 测试对端不可达路径
func TestVerifyBlock_UnreachablePeer_FailsWithTransportError(t *testing.T) {
	frontService := testutil.NewFakeFrontService()
	local := testutil.NewTxPoolFixture(t, frontService, nil, nil)
	local.AppendSealer(local.NodeID)

	ghostPeer := types.NodeID("ghost-peer")
	missing := local.NewSignedTx(t, 20)

	errCh := make(chan error, 1)
	resultCh := make(chan bool, 1)
	local.Pool.AsyncVerifyBlock(ghostPeer, proposalData(t, 11, missing.Hash()),
		func(verifyErr error, result bool) {
			errCh <- verifyErr
			resultCh <- result
		})

	select {
	case result := <-resultCh:
		assert.False(t, result)
		assert.Error(t, <-errCh, "传输失败应该透传错误")
	case <-time.After(5 * time.Second):
		t.Fatal("等待提案验证回调超时")
	}
}

// TestMaintainTransactions_PropagatesTxsToPeers 测试新交易经广播传播到共识对端
func TestMaintainTransactions_PropagatesTxsToPeers(t *testing.T) {
	_, local, peer := newSyncNetwork(t)

	tx := local.NewSignedTx(t, 20)
	submitTx(t, local, tx)

	assert.True(t, testutil.WaitUntil(t, 5*time.Second, func() bool {
		return peer.Pool.Storage().Exist(tx.Hash())
	}), "RPC来源交易应该通过TxsPacket广播传播到对端")
}

// mustEncode 编码交易
func mustEncode(t *testing.T, tx *coreprotocol.Transaction) []byte {
	t.Helper()
	data, err := tx.Encode()
	require.NoError(t, err)
	return data
}
