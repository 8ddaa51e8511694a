package txpool

import "time"

// TxPoolOptions 交易池配置选项
type TxPoolOptions struct {
	// 基础池配置
	PoolLimit int    `json:"pool_limit"`
	GroupID   string `json:"group_id"`
	ChainID   string `json:"chain_id"`

	// 验证配置
	BlockLimit int64 `json:"block_limit"`

	// 线程池配置
	NotifierWorkerNum int `json:"notifier_worker_num"`
	VerifyWorkerNum   int `json:"verify_worker_num"`

	// 同步配置
	NetworkTimeout      time.Duration `json:"network_timeout"`
	ForwardPercent      int           `json:"forward_percent"`
	MaxSendTransactions int           `json:"max_send_transactions"`

	// 性能和监控配置
	MetricsEnabled bool `json:"metrics_enabled"`

	// 缓存配置
	EncodedCacheEnabled bool          `json:"encoded_cache_enabled"`
	EncodedCacheWindow  time.Duration `json:"encoded_cache_window"`
}

// Config 交易池配置实现
type Config struct {
	options *TxPoolOptions
}

// New 创建交易池配置实现（options 为 nil 时使用默认配置）
func New(options *TxPoolOptions) *Config {
	defaults := createDefaultTxPoolOptions()
	if options != nil {
		if options.PoolLimit > 0 {
			defaults.PoolLimit = options.PoolLimit
		}
		if options.GroupID != "" {
			defaults.GroupID = options.GroupID
		}
		if options.ChainID != "" {
			defaults.ChainID = options.ChainID
		}
		if options.BlockLimit > 0 {
			defaults.BlockLimit = options.BlockLimit
		}
		if options.NotifierWorkerNum > 0 {
			defaults.NotifierWorkerNum = options.NotifierWorkerNum
		}
		if options.VerifyWorkerNum > 0 {
			defaults.VerifyWorkerNum = options.VerifyWorkerNum
		}
		if options.NetworkTimeout > 0 {
			defaults.NetworkTimeout = options.NetworkTimeout
		}
		if options.ForwardPercent > 0 {
			defaults.ForwardPercent = options.ForwardPercent
		}
		if options.MaxSendTransactions > 0 {
			defaults.MaxSendTransactions = options.MaxSendTransactions
		}
		defaults.MetricsEnabled = options.MetricsEnabled
		defaults.EncodedCacheEnabled = options.EncodedCacheEnabled
		if options.EncodedCacheWindow > 0 {
			defaults.EncodedCacheWindow = options.EncodedCacheWindow
		}
	}
	return &Config{options: defaults}
}

// createDefaultTxPoolOptions 创建默认交易池配置
func createDefaultTxPoolOptions() *TxPoolOptions {
	return &TxPoolOptions{
		PoolLimit:           defaultPoolLimit,
		GroupID:             defaultGroupID,
		ChainID:             defaultChainID,
		BlockLimit:          defaultBlockLimit,
		NotifierWorkerNum:   defaultNotifierWorkerNum,
		VerifyWorkerNum:     defaultVerifyWorkerNum,
		NetworkTimeout:      defaultNetworkTimeout,
		ForwardPercent:      defaultForwardPercent,
		MaxSendTransactions: defaultMaxSendTransactions,
		MetricsEnabled:      defaultMetricsEnabled,
		EncodedCacheEnabled: defaultEncodedCacheEnabled,
		EncodedCacheWindow:  defaultEncodedCacheWindow,
	}
}

// GetOptions 获取完整的交易池配置选项
func (c *Config) GetOptions() *TxPoolOptions {
	return c.options
}

// GetPoolLimit 获取交易池容量上限
func (c *Config) GetPoolLimit() int {
	return c.options.PoolLimit
}

// GetGroupID 获取群组标识
func (c *Config) GetGroupID() string {
	return c.options.GroupID
}

// GetChainID 获取链标识
func (c *Config) GetChainID() string {
	return c.options.ChainID
}

// GetBlockLimit 获取blockLimit（账本nonce窗口大小）
func (c *Config) GetBlockLimit() int64 {
	return c.options.BlockLimit
}

// GetNotifierWorkerNum 获取通知线程池大小
func (c *Config) GetNotifierWorkerNum() int {
	return c.options.NotifierWorkerNum
}

// GetVerifyWorkerNum 获取验证线程池大小
func (c *Config) GetVerifyWorkerNum() int {
	return c.options.VerifyWorkerNum
}

// GetNetworkTimeout 获取对等请求超时
func (c *Config) GetNetworkTimeout() time.Duration {
	return c.options.NetworkTimeout
}

// GetForwardPercent 获取状态转发的共识节点比例
func (c *Config) GetForwardPercent() int {
	return c.options.ForwardPercent
}

// GetMaxSendTransactions 获取单次广播的最大交易数
func (c *Config) GetMaxSendTransactions() int {
	return c.options.MaxSendTransactions
}

// IsMetricsEnabled 是否启用性能指标收集
func (c *Config) IsMetricsEnabled() bool {
	return c.options.MetricsEnabled
}

// IsEncodedCacheEnabled 是否启用交易编码字节缓存
func (c *Config) IsEncodedCacheEnabled() bool {
	return c.options.EncodedCacheEnabled
}

// GetEncodedCacheWindow 获取编码字节缓存的生命周期窗口
func (c *Config) GetEncodedCacheWindow() time.Duration {
	return c.options.EncodedCacheWindow
}
