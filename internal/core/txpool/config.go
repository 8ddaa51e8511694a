// 文件说明：
// 本文件定义交易池核心配置（Config）：
// 聚合配置选项、验证器、nonce检查器、协议工厂与账本/打包器协作方，
// 供存储层与门面共享。打包器在初始化阶段注入。
package txpool

import (
	"sync"

	txpoolconfig "github.com/cyjseagull/bcos-txpool/internal/config/txpool"
	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/ledger"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/sealer"
	txpooliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txpool"
)

// Config 交易池核心配置
type Config struct {
	options *txpoolconfig.TxPoolOptions

	txFactory       protocol.TransactionFactory
	blockFactory    protocol.BlockFactory
	txResultFactory protocol.TxSubmitResultFactory

	validator          txpooliface.TxValidator
	poolNonceChecker   txpooliface.PoolNonceChecker
	ledgerNonceChecker txpooliface.LedgerNonceChecker

	ledger ledger.Ledger
	logger logiface.Logger

	sealerMu sync.RWMutex
	sealer   sealer.Sealer
}

// NewConfig 创建交易池核心配置
func NewConfig(
	options *txpoolconfig.TxPoolOptions,
	txFactory protocol.TransactionFactory,
	blockFactory protocol.BlockFactory,
	txResultFactory protocol.TxSubmitResultFactory,
	validator txpooliface.TxValidator,
	poolNonceChecker txpooliface.PoolNonceChecker,
	ledgerNonceChecker txpooliface.LedgerNonceChecker,
	ledgerService ledger.Ledger,
	logger logiface.Logger,
) *Config {
	return &Config{
		options:            options,
		txFactory:          txFactory,
		blockFactory:       blockFactory,
		txResultFactory:    txResultFactory,
		validator:          validator,
		poolNonceChecker:   poolNonceChecker,
		ledgerNonceChecker: ledgerNonceChecker,
		ledger:             ledgerService,
		logger:             logger,
	}
}

// Options 配置选项
func (c *Config) Options() *txpoolconfig.TxPoolOptions {
	return c.options
}

// PoolLimit 交易池容量上限
func (c *Config) PoolLimit() int {
	return c.options.PoolLimit
}

// TxFactory 交易工厂
func (c *Config) TxFactory() protocol.TransactionFactory {
	return c.txFactory
}

// BlockFactory 区块工厂
func (c *Config) BlockFactory() protocol.BlockFactory {
	return c.blockFactory
}

// TxResultFactory 提交结果工厂
func (c *Config) TxResultFactory() protocol.TxSubmitResultFactory {
	return c.txResultFactory
}

// Validator 交易验证器
func (c *Config) Validator() txpooliface.TxValidator {
	return c.validator
}

// PoolNonceChecker 池内nonce检查器
func (c *Config) PoolNonceChecker() txpooliface.PoolNonceChecker {
	return c.poolNonceChecker
}

// LedgerNonceChecker 链上nonce检查器
func (c *Config) LedgerNonceChecker() txpooliface.LedgerNonceChecker {
	return c.ledgerNonceChecker
}

// Ledger 账本协作方
func (c *Config) Ledger() ledger.Ledger {
	return c.ledger
}

// Logger 日志记录器
func (c *Config) Logger() logiface.Logger {
	return c.logger
}

// SetSealer 注入打包器协作方
func (c *Config) SetSealer(s sealer.Sealer) {
	c.sealerMu.Lock()
	defer c.sealerMu.Unlock()
	c.sealer = s
}

// Sealer 打包器协作方（初始化前为nil）
func (c *Config) Sealer() sealer.Sealer {
	c.sealerMu.RLock()
	defer c.sealerMu.RUnlock()
	return c.sealer
}
