// 文件说明：
// 本文件实现交易池工厂：
// 按 验证器→核心配置→存储→同步配置→同步引擎→门面 的顺序装配组件，
// Init 阶段注入打包器并从账本拉取最新高度与nonce窗口，预热链上nonce检查器。
package txpool

import (
	"fmt"
	"time"

	txpoolconfig "github.com/cyjseagull/bcos-txpool/internal/config/txpool"
	"github.com/cyjseagull/bcos-txpool/internal/core/txpool/txsync"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/front"
	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/ledger"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/sealer"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// initFetchTimeout 初始化阶段账本查询的等待上限
const initFetchTimeout = 10 * time.Second

// TxPoolFactory 交易池工厂
type TxPoolFactory struct {
	config     *Config
	syncConfig *txsync.Config
	txpool     *TxPool
	logger     logiface.Logger
}

// NewTxPoolFactory 创建交易池工厂并完成组件装配
func NewTxPoolFactory(
	nodeID types.NodeID,
	options *txpoolconfig.TxPoolOptions,
	txFactory protocol.TransactionFactory,
	blockFactory protocol.BlockFactory,
	txResultFactory protocol.TxSubmitResultFactory,
	frontService front.FrontService,
	ledgerService ledger.Ledger,
	logger logiface.Logger,
) *TxPoolFactory {
	if options == nil {
		options = txpoolconfig.New(nil).GetOptions()
	}

	poolNonceChecker := NewTxPoolNonceChecker()
	ledgerNonceChecker := NewLedgerNonceChecker(options.BlockLimit)
	validator := NewTxValidator(poolNonceChecker, ledgerNonceChecker,
		options.GroupID, options.ChainID)

	config := NewConfig(options, txFactory, blockFactory, txResultFactory,
		validator, poolNonceChecker, ledgerNonceChecker, ledgerService, logger)

	var metrics *Metrics
	var syncMetrics *txsync.Metrics
	if options.MetricsEnabled {
		metrics = NewMetrics(nil)
		syncMetrics = txsync.NewMetrics(nil)
	}

	storage := NewMemoryStorage(config, metrics)

	syncConfig := txsync.NewConfig(nodeID, frontService, storage,
		txsync.NewTxsSyncMsgFactory(), blockFactory, ledgerService, logger,
		options.NetworkTimeout, options.ForwardPercent, options.MaxSendTransactions)
	transactionSync := txsync.NewTransactionSync(syncConfig, syncMetrics)

	// 新交易入池后唤醒同步主循环
	storage.SetSyncNotifier(transactionSync.NoteNewTransactions)

	pool := NewTxPool(config, storage, transactionSync, syncConfig)

	if logger != nil {
		logger.Info("交易池组件装配完成")
	}
	return &TxPoolFactory{
		config:     config,
		syncConfig: syncConfig,
		txpool:     pool,
		logger:     logger,
	}
}

// TxPool 交易池门面
func (f *TxPoolFactory) TxPool() *TxPool {
	return f.txpool
}

// Config 交易池核心配置
func (f *TxPoolFactory) Config() *Config {
	return f.config
}

// SyncConfig 交易同步配置
func (f *TxPoolFactory) SyncConfig() *txsync.Config {
	return f.syncConfig
}

// Init 注入打包器并用账本数据预热链上nonce检查器
// 拉取区间为最近blockLimit个区块的nonce列表
func (f *TxPoolFactory) Init(sealerService sealer.Sealer) error {
	f.config.SetSealer(sealerService)

	ledgerService := f.config.Ledger()
	if ledgerService == nil {
		return fmt.Errorf("账本协作方未注入")
	}

	blockNumberCh := make(chan int64, 1)
	errCh := make(chan error, 1)
	ledgerService.AsyncGetBlockNumber(func(err error, blockNumber int64) {
		if err != nil {
			errCh <- err
			return
		}
		blockNumberCh <- blockNumber
	})
	var blockNumber int64
	select {
	case blockNumber = <-blockNumberCh:
	case err := <-errCh:
		return fmt.Errorf("拉取最新区块高度失败: %w", err)
	case <-time.After(initFetchTimeout):
		return fmt.Errorf("拉取最新区块高度超时")
	}

	blockLimit := f.config.Options().BlockLimit
	startNumber := int64(0)
	if blockNumber > blockLimit {
		startNumber = blockNumber - blockLimit + 1
	}
	offset := blockNumber - startNumber

	noncesCh := make(chan map[int64][]types.Nonce, 1)
	ledgerService.AsyncGetNonces(startNumber, offset, func(err error, nonces map[int64][]types.Nonce) {
		if err != nil {
			errCh <- err
			return
		}
		noncesCh <- nonces
	})
	var nonces map[int64][]types.Nonce
	select {
	case nonces = <-noncesCh:
	case err := <-errCh:
		return fmt.Errorf("拉取nonce窗口失败: %w", err)
	case <-time.After(initFetchTimeout):
		return fmt.Errorf("拉取nonce窗口超时")
	}

	// 按高度升序预热窗口，保证窗口最终指向最新高度
	ledgerNonceChecker := f.config.LedgerNonceChecker()
	for number := startNumber; number <= blockNumber; number++ {
		ledgerNonceChecker.BatchInsert(number, nonces[number])
	}

	if f.logger != nil {
		f.logger.Infof("交易池初始化完成: blockNumber=%d, nonceWindow=[%d,%d]",
			blockNumber, startNumber, blockNumber)
	}
	return nil
}
