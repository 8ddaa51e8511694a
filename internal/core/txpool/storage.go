// 文件说明：
// 本文件实现交易池内存存储（MemoryStorage）：
// - 并发控制：读写锁保护主表；missed集合与失效回收集合各自独立加锁，避免与热表争用；
// - 时间序扫描：扫描开始时在读锁内做按(importTime, hash)排序的快照；
// - 延迟回收：打包扫描在读锁内登记失效交易，由通知线程池稍后在写锁内批量回收；
// - 提交回调：通过TakeSubmitCallback消费，保证恰好一次触发；
// - 预提交：入池交易异步写入账本，失败按退避有限重试；
// - 打包器通知：未打包数量变化即异步通告，失败按退避有限重试。
package txpool

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/cyjseagull/bcos-txpool/internal/core/infrastructure/workerpool"
	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	txpooliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txpool"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

const (
	// maxNotifyRetry 打包器通知与预提交的最大重试次数
	maxNotifyRetry = 5
	// notifyRetryBaseInterval 重试退避基准间隔
	notifyRetryBaseInterval = 100 * time.Millisecond
)

// MemoryStorage 交易池内存存储实现
type MemoryStorage struct {
	config    *Config
	logger    logiface.Logger
	metrics   *Metrics
	eventSink TxEventSink

	// mu 保护主表
	mu       sync.RWMutex
	txsTable map[types.Hash]protocol.Transaction

	// sealMu 保护打包标记的边沿翻转与sealedCount的一致性
	sealMu      sync.Mutex
	sealedCount atomic.Int64

	// missedMu 保护missedTxs集合
	missedMu  sync.Mutex
	missedTxs map[types.Hash]struct{}

	// invalidMu 保护延迟回收集合
	invalidMu     sync.Mutex
	invalidTxs    map[types.Hash]struct{}
	invalidNonces map[types.Nonce]struct{}

	// notifier 提交回调与延迟回收专用线程池
	notifier *workerpool.Pool
	// worker 预提交写入专用线程池
	worker *workerpool.Pool

	// encodedCache 在池交易的编码字节缓存
	encodedCache *bigcache.BigCache

	// syncNotifier 新交易入池后唤醒同步引擎
	syncNotifierMu sync.RWMutex
	syncNotifier   func()

	stopped atomic.Bool
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage(config *Config, metrics *Metrics) *MemoryStorage {
	logger := config.Logger()
	if logger != nil {
		logger = logger.With("module", "txpool")
	}
	s := &MemoryStorage{
		config:        config,
		logger:        logger,
		metrics:       metrics,
		eventSink:     NoopTxEventSink{},
		txsTable:      make(map[types.Hash]protocol.Transaction),
		missedTxs:     make(map[types.Hash]struct{}),
		invalidTxs:    make(map[types.Hash]struct{}),
		invalidNonces: make(map[types.Nonce]struct{}),
		notifier:      workerpool.New("txNotifier", config.Options().NotifierWorkerNum, logger),
		worker:        workerpool.New("submitter", config.Options().VerifyWorkerNum, logger),
	}
	if config.Options().EncodedCacheEnabled {
		cache, err := bigcache.New(context.Background(),
			bigcache.DefaultConfig(config.Options().EncodedCacheWindow))
		if err != nil {
			if logger != nil {
				logger.Warnf("创建编码字节缓存失败，降级为直接编码: %v", err)
			}
		} else {
			s.encodedCache = cache
		}
	}
	return s
}

// SetEventSink 注入事件下沉实现（nil 时降级为 Noop）
func (s *MemoryStorage) SetEventSink(sink TxEventSink) {
	if sink == nil {
		s.eventSink = NoopTxEventSink{}
		return
	}
	s.eventSink = sink
}

// SetSyncNotifier 注入同步引擎唤醒函数
func (s *MemoryStorage) SetSyncNotifier(notifier func()) {
	s.syncNotifierMu.Lock()
	defer s.syncNotifierMu.Unlock()
	s.syncNotifier = notifier
}

// noteNewTransaction 唤醒同步引擎
func (s *MemoryStorage) noteNewTransaction() {
	s.syncNotifierMu.RLock()
	notifier := s.syncNotifier
	s.syncNotifierMu.RUnlock()
	if notifier != nil {
		notifier()
	}
}

// SubmitTransaction 解码交易字节并提交
func (s *MemoryStorage) SubmitTransaction(
	txData []byte, callback protocol.TxSubmitCallback) protocol.TransactionStatus {
	tx, err := s.config.TxFactory().CreateTransaction(txData, false)
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("交易解码失败: %v", err)
		}
		s.notifyInvalidReceipt(types.EmptyHash, protocol.Malform, callback)
		s.metrics.RecordSubmitResult(protocol.Malform)
		return protocol.Malform
	}
	if callback != nil {
		tx.SetSubmitCallback(callback)
	}
	return s.SubmitTx(tx, false)
}

// SubmitTx 提交已解码交易
// enforceImport 为 true 时用于提案验证：跳过容量检查，池满仍须接纳
func (s *MemoryStorage) SubmitTx(tx protocol.Transaction, enforceImport bool) protocol.TransactionStatus {
	result := s.txpoolStorageCheck(tx, enforceImport)
	if result == protocol.None {
		result = s.config.Validator().Verify(tx)
	}
	if result == protocol.None {
		result = s.insert(tx, enforceImport)
		if result == protocol.None {
			s.missedMu.Lock()
			delete(s.missedTxs, tx.Hash())
			s.missedMu.Unlock()

			s.preCommitTransaction(tx)
			s.notifyUnsealedTxsSize()
			s.eventSink.OnTxAccepted(tx.Hash())
			s.noteNewTransaction()
		} else if result == protocol.TxPoolIsFull {
			// 验证阶段登记的nonce随入池失败回滚
			s.config.PoolNonceChecker().Remove(tx.Nonce())
		}
	}
	if result != protocol.None {
		if callback := tx.TakeSubmitCallback(); callback != nil {
			// 准入失败的回调同步触发
			s.notifyInvalidReceipt(tx.Hash(), result, callback)
		}
	}
	s.metrics.RecordSubmitResult(result)
	return result
}

// txpoolStorageCheck 准入前置检查：容量与重复
func (s *MemoryStorage) txpoolStorageCheck(tx protocol.Transaction, enforceImport bool) protocol.TransactionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !enforceImport && len(s.txsTable) >= s.config.PoolLimit() {
		return protocol.TxPoolIsFull
	}
	if _, exists := s.txsTable[tx.Hash()]; exists {
		return protocol.AlreadyInTxPool
	}
	return protocol.None
}

// notifyInvalidReceipt 将准入失败结果同步送达提交回调
func (s *MemoryStorage) notifyInvalidReceipt(
	txHash types.Hash, status protocol.TransactionStatus, callback protocol.TxSubmitCallback) {
	if callback == nil {
		return
	}
	txResult := s.config.TxResultFactory().CreateTxSubmitResult(txHash, status)
	callback(txResult)
	if s.logger != nil {
		s.logger.Warnf("拒绝非法交易: tx=%s, status=%s", txHash.Abridged(), status)
	}
}

// Insert 插入交易（容量与重复检查）
func (s *MemoryStorage) Insert(tx protocol.Transaction) protocol.TransactionStatus {
	return s.insert(tx, false)
}

// insert 插入交易的内部实现
func (s *MemoryStorage) insert(tx protocol.Transaction, enforceImport bool) protocol.TransactionStatus {
	txHash := tx.Hash()
	s.mu.Lock()
	if !enforceImport && len(s.txsTable) >= s.config.PoolLimit() {
		s.mu.Unlock()
		return protocol.TxPoolIsFull
	}
	if _, exists := s.txsTable[txHash]; exists {
		s.mu.Unlock()
		return protocol.AlreadyInTxPool
	}
	tx.SetImportTime(time.Now().UnixNano())
	s.txsTable[txHash] = tx
	s.mu.Unlock()

	s.cacheEncodedTx(tx)
	return protocol.None
}

// BatchInsert 批量插入交易并清理对应的missed记录
func (s *MemoryStorage) BatchInsert(txs []protocol.Transaction) {
	for _, tx := range txs {
		s.Insert(tx)
	}
	s.missedMu.Lock()
	for _, tx := range txs {
		delete(s.missedTxs, tx.Hash())
	}
	s.missedMu.Unlock()
}

// cacheEncodedTx 缓存交易的编码字节
func (s *MemoryStorage) cacheEncodedTx(tx protocol.Transaction) {
	if s.encodedCache == nil {
		return
	}
	encoded, err := tx.Encode()
	if err != nil {
		return
	}
	_ = s.encodedCache.Set(tx.Hash().Hex(), encoded)
}

// EncodedTx 查询在池交易的编码字节缓存
func (s *MemoryStorage) EncodedTx(txHash types.Hash) ([]byte, bool) {
	if s.encodedCache == nil {
		return nil, false
	}
	encoded, err := s.encodedCache.Get(txHash.Hex())
	if err != nil {
		return nil, false
	}
	return encoded, true
}

// Remove 移除交易，返回被移除的交易
func (s *MemoryStorage) Remove(txHash types.Hash) protocol.Transaction {
	s.mu.Lock()
	tx := s.removeWithoutLock(txHash)
	s.mu.Unlock()
	return tx
}

// removeWithoutLock 移除交易（调用方持有写锁）
func (s *MemoryStorage) removeWithoutLock(txHash types.Hash) protocol.Transaction {
	tx, exists := s.txsTable[txHash]
	if !exists {
		return nil
	}
	delete(s.txsTable, txHash)
	if tx.Sealed() {
		s.sealedCount.Add(-1)
	}
	if s.encodedCache != nil {
		_ = s.encodedCache.Delete(txHash.Hex())
	}
	return tx
}

// RemoveSubmittedTx 移除交易并异步触发其提交回调
func (s *MemoryStorage) RemoveSubmittedTx(txResult protocol.TxSubmitResult) protocol.Transaction {
	tx := s.Remove(txResult.TxHash())
	if tx == nil {
		return nil
	}
	s.notifyTxResult(tx, txResult)
	return tx
}

// notifyTxResult 在通知线程池上触发提交回调
func (s *MemoryStorage) notifyTxResult(tx protocol.Transaction, txResult protocol.TxSubmitResult) {
	callback := tx.TakeSubmitCallback()
	if callback == nil {
		return
	}
	txHash := tx.Hash()
	s.notifier.Enqueue(func() {
		callback(txResult)
		if s.logger != nil {
			s.logger.Debugf("通知提交结果: tx=%s, status=%s", txHash.Abridged(), txResult.Status())
		}
	})
}

// BatchRemove 区块落库时批量移除并推进nonce窗口
// 缺失的哈希直接跳过；单个写临界区内完成全部移除，回调在释放锁后入队
func (s *MemoryStorage) BatchRemove(batchID int64, txsResult []protocol.TxSubmitResult) {
	type removedTx struct {
		tx       protocol.Transaction
		txResult protocol.TxSubmitResult
	}
	nonces := make([]types.Nonce, 0, len(txsResult))
	removedTxs := make([]removedTx, 0, len(txsResult))
	s.mu.Lock()
	for _, txResult := range txsResult {
		tx := s.removeWithoutLock(txResult.TxHash())
		if tx == nil {
			continue
		}
		nonces = append(nonces, tx.Nonce())
		removedTxs = append(removedTxs, removedTx{tx: tx, txResult: txResult})
	}
	s.mu.Unlock()
	removed := len(removedTxs)

	// 锁外推进账本nonce窗口，再清理池内nonce
	s.config.LedgerNonceChecker().BatchInsert(batchID, nonces)
	s.config.PoolNonceChecker().BatchRemove(nonces)

	for _, entry := range removedTxs {
		s.notifyTxResult(entry.tx, entry.txResult)
	}

	s.notifyUnsealedTxsSize()
	s.eventSink.OnTxsRemoved(removed)
	if s.logger != nil {
		s.logger.Infof("区块落库批量移除: batchId=%d, expected=%d, removed=%d",
			batchID, len(txsResult), removed)
	}
}

// FetchTxs 按哈希批量查找，返回命中交易与缺失哈希
func (s *MemoryStorage) FetchTxs(txsHash []types.Hash) ([]protocol.Transaction, []types.Hash) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := make([]protocol.Transaction, 0, len(txsHash))
	var missed []types.Hash
	for _, txHash := range txsHash {
		tx, exists := s.txsTable[txHash]
		if !exists {
			missed = append(missed, txHash)
			continue
		}
		found = append(found, tx)
	}
	return found, missed
}

// snapshotByImportTime 在读锁内做按(importTime, hash)排序的快照
// 调用方持有读锁
func (s *MemoryStorage) snapshotByImportTime() []protocol.Transaction {
	snapshot := make([]protocol.Transaction, 0, len(s.txsTable))
	for _, tx := range s.txsTable {
		snapshot = append(snapshot, tx)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		ti, tj := snapshot[i].ImportTime(), snapshot[j].ImportTime()
		if ti != tj {
			return ti < tj
		}
		hi, hj := snapshot[i].Hash(), snapshot[j].Hash()
		for k := 0; k < types.HashLength; k++ {
			if hi[k] != hj[k] {
				return hi[k] < hj[k]
			}
		}
		return false
	})
	return snapshot
}

// FetchNewTxs 时间序获取未转发交易并置位synced标记
func (s *MemoryStorage) FetchNewTxs(txsLimit int) []protocol.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fetched := make([]protocol.Transaction, 0, txsLimit)
	for _, tx := range s.snapshotByImportTime() {
		if tx == nil || tx.Synced() {
			continue
		}
		tx.SetSynced(true)
		fetched = append(fetched, tx)
		if len(fetched) >= txsLimit {
			break
		}
	}
	return fetched
}

// BatchFetchTxs 时间序为打包器挑选交易并置位sealed标记
// 扫描在读锁内登记失效交易，扫描结束后异步回收
func (s *MemoryStorage) BatchFetchTxs(
	txsLimit int, avoidTxs map[types.Hash]struct{}, avoidDuplicate bool) []protocol.Transaction {
	fetched := make([]protocol.Transaction, 0, txsLimit)
	s.mu.RLock()
	for _, tx := range s.snapshotByImportTime() {
		if tx == nil {
			continue
		}
		if avoidDuplicate && tx.Sealed() {
			continue
		}
		txHash := tx.Hash()
		s.invalidMu.Lock()
		_, isInvalid := s.invalidTxs[txHash]
		s.invalidMu.Unlock()
		if isInvalid {
			continue
		}
		switch s.config.Validator().SubmittedToChain(tx) {
		case protocol.NonceCheckFail:
			continue
		case protocol.BlockLimitCheckFail:
			// 读锁内只登记，由通知线程池稍后回收
			s.invalidMu.Lock()
			s.invalidTxs[txHash] = struct{}{}
			s.invalidNonces[tx.Nonce()] = struct{}{}
			s.invalidMu.Unlock()
			continue
		}
		if avoidTxs != nil {
			if _, avoided := avoidTxs[txHash]; avoided {
				continue
			}
		}
		fetched = append(fetched, tx)
		s.markSealed(tx, true)
		if len(fetched) >= txsLimit {
			break
		}
	}
	s.mu.RUnlock()

	s.removeInvalidTxs()
	s.notifyUnsealedTxsSize()
	s.metrics.RecordSealed(len(fetched))
	return fetched
}

// markSealed 带边沿计数的打包标记翻转
func (s *MemoryStorage) markSealed(tx protocol.Transaction, sealFlag bool) {
	s.sealMu.Lock()
	defer s.sealMu.Unlock()
	if tx.Sealed() == sealFlag {
		return
	}
	tx.SetSealed(sealFlag)
	if sealFlag {
		s.sealedCount.Add(1)
	} else {
		s.sealedCount.Add(-1)
	}
}

// removeInvalidTxs 异步回收扫描期间登记的失效交易
// 交易移除与nonce清理两个子任务并行执行
func (s *MemoryStorage) removeInvalidTxs() {
	s.notifier.Enqueue(func() {
		s.invalidMu.Lock()
		invalidTxs := s.invalidTxs
		invalidNonces := s.invalidNonces
		s.invalidTxs = make(map[types.Hash]struct{})
		s.invalidNonces = make(map[types.Nonce]struct{})
		s.invalidMu.Unlock()

		if len(invalidTxs) == 0 && len(invalidNonces) == 0 {
			return
		}
		var wg sync.WaitGroup
		removed := 0
		wg.Add(2)
		go func() {
			defer wg.Done()
			for txHash := range invalidTxs {
				txResult := s.config.TxResultFactory().CreateTxSubmitResult(
					txHash, protocol.BlockLimitCheckFail)
				if s.RemoveSubmittedTx(txResult) != nil {
					removed++
				}
			}
		}()
		go func() {
			defer wg.Done()
			for nonce := range invalidNonces {
				s.config.PoolNonceChecker().Remove(nonce)
			}
		}()
		wg.Wait()
		if removed > 0 {
			s.eventSink.OnTxsRemoved(removed)
		}

		if s.logger != nil {
			s.logger.Debugf("失效交易回收完成: txs=%d, nonces=%d", len(invalidTxs), len(invalidNonces))
		}
		// 已在通知线程池上下文内，直接通告而不再入队
		s.noteUnsealedTxsSizeWithRetry(0)
	})
}

// BatchMarkTxs 批量翻转打包标记并向打包器发布新的未打包数量
func (s *MemoryStorage) BatchMarkTxs(txsHash []types.Hash, sealFlag bool) {
	s.mu.RLock()
	for _, txHash := range txsHash {
		tx, exists := s.txsTable[txHash]
		if !exists {
			continue
		}
		s.markSealed(tx, sealFlag)
	}
	s.mu.RUnlock()
	s.notifyUnsealedTxsSize()
}

// FilterUnknownTxs 过滤出本地未知的交易哈希，同时登记对端为已知节点
// missed集合达到池容量上限时整体清空（有界性）
func (s *MemoryStorage) FilterUnknownTxs(txsHash []types.Hash, peer types.NodeID) []types.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, txHash := range txsHash {
		if tx, exists := s.txsTable[txHash]; exists {
			tx.AppendKnownNode(peer)
		}
	}
	var unknown []types.Hash
	s.missedMu.Lock()
	defer s.missedMu.Unlock()
	for _, txHash := range txsHash {
		if _, exists := s.txsTable[txHash]; exists {
			continue
		}
		if _, requested := s.missedTxs[txHash]; requested {
			continue
		}
		unknown = append(unknown, txHash)
		s.missedTxs[txHash] = struct{}{}
	}
	if len(s.missedTxs) >= s.config.PoolLimit() {
		s.missedTxs = make(map[types.Hash]struct{})
	}
	return unknown
}

// Exist 判断交易是否在池中
func (s *MemoryStorage) Exist(txHash types.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.txsTable[txHash]
	return exists
}

// Size 池内交易总数
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txsTable)
}

// UnsealedTxsSize 未打包交易数量
func (s *MemoryStorage) UnsealedTxsSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unsealedTxsSizeWithoutLock()
}

// unsealedTxsSizeWithoutLock 未打包数量（调用方持有锁）
func (s *MemoryStorage) unsealedTxsSizeWithoutLock() int {
	unsealed := len(s.txsTable) - int(s.sealedCount.Load())
	if unsealed < 0 {
		return 0
	}
	return unsealed
}

// Clear 清空交易池
func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	nonces := make([]types.Nonce, 0, len(s.txsTable))
	for txHash, tx := range s.txsTable {
		nonces = append(nonces, tx.Nonce())
		if s.encodedCache != nil {
			_ = s.encodedCache.Delete(txHash.Hex())
		}
	}
	s.txsTable = make(map[types.Hash]protocol.Transaction)
	s.sealedCount.Store(0)
	s.mu.Unlock()

	s.config.PoolNonceChecker().BatchRemove(nonces)
	s.notifyUnsealedTxsSize()
}

// preCommitTransaction 异步预提交交易到账本，失败按退避有限重试
func (s *MemoryStorage) preCommitTransaction(tx protocol.Transaction) {
	s.worker.Enqueue(func() {
		encoded, err := tx.Encode()
		if err != nil {
			if s.logger != nil {
				s.logger.Warnf("预提交编码失败: tx=%s, error=%v", tx.Hash().Abridged(), err)
			}
			return
		}
		s.storeTxWithRetry([][]byte{encoded}, []types.Hash{tx.Hash()}, 0)
	})
}

// storeTxWithRetry 带退避的预提交写入
func (s *MemoryStorage) storeTxWithRetry(txsBytes [][]byte, txsHash []types.Hash, attempt int) {
	if s.config.Ledger() == nil || s.stopped.Load() {
		return
	}
	s.config.Ledger().AsyncStoreTransactions(txsBytes, txsHash, func(err error) {
		if err == nil {
			return
		}
		if attempt >= maxNotifyRetry {
			if s.logger != nil {
				s.logger.Warnf("预提交重试耗尽: txs=%d, error=%v", len(txsHash), err)
			}
			return
		}
		backoff := notifyRetryBaseInterval * time.Duration(1<<attempt)
		time.AfterFunc(backoff, func() {
			s.storeTxWithRetry(txsBytes, txsHash, attempt+1)
		})
	})
}

// notifyUnsealedTxsSize 向打包器异步通告未打包数量，失败按退避有限重试
func (s *MemoryStorage) notifyUnsealedTxsSize() {
	s.notifier.Enqueue(func() {
		s.noteUnsealedTxsSizeWithRetry(0)
	})
}

// noteUnsealedTxsSizeWithRetry 带退避的打包器通知
func (s *MemoryStorage) noteUnsealedTxsSizeWithRetry(attempt int) {
	size := s.Size()
	unsealed := s.UnsealedTxsSize()
	s.metrics.UpdatePoolState(size, unsealed)
	s.eventSink.OnPoolState(size, unsealed)

	sealerService := s.config.Sealer()
	if sealerService == nil || s.stopped.Load() {
		return
	}
	sealerService.AsyncNoteUnsealedTxsSize(unsealed, func(err error) {
		if err == nil {
			return
		}
		if attempt >= maxNotifyRetry {
			if s.logger != nil {
				s.logger.Warnf("打包器通知重试耗尽: unsealed=%d, error=%v", unsealed, err)
			}
			return
		}
		backoff := notifyRetryBaseInterval * time.Duration(1<<attempt)
		time.AfterFunc(backoff, func() {
			s.noteUnsealedTxsSizeWithRetry(attempt + 1)
		})
	})
}

// Stop 停止后台线程池
func (s *MemoryStorage) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.notifier.Stop()
	s.worker.Stop()
	if s.encodedCache != nil {
		_ = s.encodedCache.Close()
	}
	if s.logger != nil {
		s.logger.Info("交易池存储已停止")
	}
}

var _ txpooliface.TxPoolStorage = (*MemoryStorage)(nil)
