// 文件说明：
// 本文件实现交易池测试夹具（TxPoolFixture）：
// 组装 内存账本 + 传输交换机 + 打包器模拟 + 交易池工厂，
// 多个夹具共享同一交换机即可构成进程内的多节点同步网络。
package testutil

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	txpoolconfig "github.com/cyjseagull/bcos-txpool/internal/config/txpool"
	ledgerimpl "github.com/cyjseagull/bcos-txpool/internal/core/ledger"
	coreprotocol "github.com/cyjseagull/bcos-txpool/internal/core/protocol"
	"github.com/cyjseagull/bcos-txpool/internal/core/txpool"
	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// FixtureOptions 夹具配置
type FixtureOptions struct {
	GroupID    string
	ChainID    string
	BlockLimit int64
	PoolLimit  int
	// Tip 账本初始最高高度（提交空区块至该高度）
	Tip int64
	// ForwardPercent 状态转发比例
	ForwardPercent int
}

// DefaultFixtureOptions 默认夹具配置
func DefaultFixtureOptions() *FixtureOptions {
	return &FixtureOptions{
		GroupID:        "test-group",
		ChainID:        "test-chain",
		BlockLimit:     15,
		PoolLimit:      10240,
		Tip:            10,
		ForwardPercent: 100,
	}
}

// TxPoolFixture 交易池测试夹具
type TxPoolFixture struct {
	NodeID  types.NodeID
	Key     *ecdsa.PrivateKey
	Factory *txpool.TxPoolFactory
	Pool    *txpool.TxPool
	Ledger  *ledgerimpl.BadgerLedger
	Sealer  *FakeSealer
	Front   *FakeFrontService

	GroupID string
	ChainID string

	consensusNodes []types.NodeID
	nonceSeq       uint64
}

// NewTxPoolFixture 创建夹具并启动交易池
func NewTxPoolFixture(t *testing.T, frontService *FakeFrontService,
	options *FixtureOptions, logger logiface.Logger) *TxPoolFixture {
	t.Helper()
	if options == nil {
		options = DefaultFixtureOptions()
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("生成节点密钥失败: %v", err)
	}
	nodeID := types.NodeID(hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)))

	txFactory := coreprotocol.NewTransactionFactory()
	ledgerService, err := ledgerimpl.NewBadgerLedger("", txFactory, logger)
	if err != nil {
		t.Fatalf("创建内存账本失败: %v", err)
	}
	for number := int64(0); number <= options.Tip; number++ {
		if err := ledgerService.CommitBlock(number, nil); err != nil {
			t.Fatalf("预置账本区块失败: %v", err)
		}
	}

	poolOptions := txpoolconfig.New(&txpoolconfig.TxPoolOptions{
		PoolLimit:      options.PoolLimit,
		GroupID:        options.GroupID,
		ChainID:        options.ChainID,
		BlockLimit:     options.BlockLimit,
		ForwardPercent: options.ForwardPercent,
	}).GetOptions()

	factory := txpool.NewTxPoolFactory(
		nodeID,
		poolOptions,
		txFactory,
		coreprotocol.NewBlockFactory(),
		coreprotocol.NewTxSubmitResultFactory(),
		frontService.ServiceFor(nodeID),
		ledgerService,
		logger,
	)

	fixture := &TxPoolFixture{
		NodeID:  nodeID,
		Key:     key,
		Factory: factory,
		Pool:    factory.TxPool(),
		Ledger:  ledgerService,
		Sealer:  NewFakeSealer(),
		Front:   frontService,
		GroupID: options.GroupID,
		ChainID: options.ChainID,
	}

	frontService.AddNode(nodeID, fixture.Pool)
	if err := factory.Init(fixture.Sealer); err != nil {
		t.Fatalf("初始化交易池失败: %v", err)
	}
	if err := fixture.Pool.Start(); err != nil {
		t.Fatalf("启动交易池失败: %v", err)
	}
	t.Cleanup(func() {
		_ = fixture.Pool.Stop()
		_ = ledgerService.Close()
	})
	return fixture
}

// AppendSealer 将节点加入共识列表并标记为已连接
func (f *TxPoolFixture) AppendSealer(nodeID types.NodeID) {
	f.consensusNodes = append(f.consensusNodes, nodeID)
	f.Pool.NotifyConsensusNodeList(f.consensusNodes)
	connected := types.NewNodeIDSet(f.consensusNodes...)
	f.Pool.NotifyConnectedNodes(connected)
}

// ConsensusNodes 当前共识节点列表
func (f *TxPoolFixture) ConsensusNodes() []types.NodeID {
	return append([]types.NodeID(nil), f.consensusNodes...)
}

// NextNonce 生成夹具内单调递增的nonce
func (f *TxPoolFixture) NextNonce() []byte {
	f.nonceSeq++
	nonce := make([]byte, 16)
	binary.BigEndian.PutUint64(nonce, uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint64(nonce[8:], f.nonceSeq)
	return nonce
}

// NewSignedTx 构造一笔由夹具密钥签名的合法交易
func (f *TxPoolFixture) NewSignedTx(t *testing.T, blockLimit int64) *coreprotocol.Transaction {
	t.Helper()
	tx, err := coreprotocol.NewSignedTransaction(
		f.NextNonce(), blockLimit, f.ChainID, f.GroupID,
		[]byte(fmt.Sprintf("payload-%d", f.nonceSeq)), f.Key)
	if err != nil {
		t.Fatalf("构造签名交易失败: %v", err)
	}
	return tx
}

// NewSignedTxWithNonce 构造指定nonce的签名交易
func (f *TxPoolFixture) NewSignedTxWithNonce(t *testing.T, nonce []byte, blockLimit int64) *coreprotocol.Transaction {
	t.Helper()
	tx, err := coreprotocol.NewSignedTransaction(
		nonce, blockLimit, f.ChainID, f.GroupID, []byte("payload"), f.Key)
	if err != nil {
		t.Fatalf("构造签名交易失败: %v", err)
	}
	return tx
}

// WaitUntil 轮询等待条件满足
func WaitUntil(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return condition()
}
