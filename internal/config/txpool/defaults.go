package txpool

import "time"

// 交易池配置默认值
// 这些默认值基于联盟链交易池的负载特征与同步协议的节奏要求
const (
	// === 基础池配置 ===

	// defaultPoolLimit 默认交易池容量上限设为15000
	// 原因：15000笔在高吞吐场景下为共识提供充足缓冲
	// 同时限制了最坏情况下的内存占用
	defaultPoolLimit = 15000

	// defaultGroupID 默认群组标识
	// 原因：单群组部署的惯用名，多群组部署由配置覆盖
	defaultGroupID = "group0"

	// defaultChainID 默认链标识
	defaultChainID = "chain0"

	// === 验证配置 ===

	// defaultBlockLimit 默认blockLimit设为600
	// 原因：600个区块的窗口允许交易在提交后约10分钟内被打包
	// 同时限定账本nonce窗口的内存规模
	defaultBlockLimit = 600

	// === 线程池配置 ===

	// defaultNotifierWorkerNum 默认通知线程池大小设为1
	// 原因：提交回调与失效交易回收串行化即可满足吞吐
	// 单线程避免回调乱序
	defaultNotifierWorkerNum = 1

	// defaultVerifyWorkerNum 默认验证线程池大小设为1
	// 原因：预提交写入与请求应答的并发度由调用方控制
	defaultVerifyWorkerNum = 1

	// === 同步配置 ===

	// defaultNetworkTimeout 默认对等请求超时设为200毫秒
	// 原因：共识对提案验证时延敏感，200ms超时后快速失败重试
	defaultNetworkTimeout = 200 * time.Millisecond

	// defaultForwardPercent 默认状态转发比例设为25%
	// 原因：每笔交易向四分之一的共识节点通告状态即可保证传播覆盖
	// 同时避免全量通告造成的报文放大
	defaultForwardPercent = 25

	// defaultMaxSendTransactions 默认单次广播最大交易数设为1000
	// 原因：1000笔的批次控制单个TxsPacket的体积
	// 与打包节奏匹配，避免同步循环长期占用存储读锁
	defaultMaxSendTransactions = 1000

	// === 性能和监控配置 ===

	// defaultMetricsEnabled 默认启用性能指标收集
	// 原因：池容量与准入结果分布是运维诊断的核心信号
	defaultMetricsEnabled = true

	// === 缓存配置 ===

	// defaultEncodedCacheEnabled 默认启用交易编码字节缓存
	// 原因：入池时缓存交易编码字节，可按哈希直接取回（EncodedTx）
	// TxsRequestPacket的应答按交易对象重新编码，不读取此缓存
	defaultEncodedCacheEnabled = true

	// defaultEncodedCacheWindow 默认编码字节缓存窗口设为10分钟
	// 原因：与blockLimit允许的最大滞留时间同阶，过期条目自然淘汰
	defaultEncodedCacheWindow = 10 * time.Minute
)
