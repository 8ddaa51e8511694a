// 文件说明：
// 本文件实现基于BadgerDB的参考账本：
// - 交易归档：预提交的交易字节按哈希落盘，供缺失交易的本地回查；
// - nonce索引：按区块高度存储该区块上链的nonce列表，支撑滑动窗口预热；
// - 高度元数据：CommitBlock推进最高高度并原子写入nonce索引。
// 接口均为异步风格（goroutine + 完成回调），与交易池的调用模型一致；
// 支持纯内存模式（测试）与磁盘模式（部署）。
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/rlp"

	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
	ledgeriface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/ledger"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// 键前缀约定
var (
	txKeyPrefix    = []byte("t/")
	nonceKeyPrefix = []byte("n/")
	blockNumberKey = []byte("meta/block_number")
)

// ErrLedgerClosed 账本已关闭
var ErrLedgerClosed = errors.New("账本已关闭")

// BadgerLedger 基于BadgerDB的参考账本实现
type BadgerLedger struct {
	db        *badger.DB
	txFactory protocol.TransactionFactory
	logger    logiface.Logger

	// commitMu 保证CommitBlock的高度推进与索引写入原子
	commitMu sync.Mutex
	closed   sync.Once
}

// NewBadgerLedger 创建账本
// path 为空时使用纯内存模式
func NewBadgerLedger(path string, txFactory protocol.TransactionFactory,
	logger logiface.Logger) (*BadgerLedger, error) {
	var options badger.Options
	if path == "" {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		options = badger.DefaultOptions(path)
	}
	options = options.WithLogger(nil)
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("打开账本存储失败: %w", err)
	}
	if logger != nil {
		logger = logger.With("module", "ledger")
	}
	return &BadgerLedger{
		db:        db,
		txFactory: txFactory,
		logger:    logger,
	}, nil
}

// Close 关闭账本
func (l *BadgerLedger) Close() error {
	var err error
	l.closed.Do(func() {
		err = l.db.Close()
	})
	return err
}

// txKey 交易归档键
func txKey(txHash types.Hash) []byte {
	return append(append([]byte(nil), txKeyPrefix...), txHash.Bytes()...)
}

// nonceKey nonce索引键（大端高度保证遍历有序）
func nonceKey(blockNumber int64) []byte {
	key := append([]byte(nil), nonceKeyPrefix...)
	var numberBytes [8]byte
	binary.BigEndian.PutUint64(numberBytes[:], uint64(blockNumber))
	return append(key, numberBytes[:]...)
}

// BlockNumber 当前最高区块高度（无区块时为0）
func (l *BadgerLedger) BlockNumber() (int64, error) {
	var blockNumber int64
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockNumberKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			blockNumber = int64(binary.BigEndian.Uint64(value))
			return nil
		})
	})
	return blockNumber, err
}

// CommitBlock 推进最高高度并写入该区块的nonce索引
func (l *BadgerLedger) CommitBlock(blockNumber int64, nonces []types.Nonce) error {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	nonceBytes := make([][]byte, 0, len(nonces))
	for _, nonce := range nonces {
		nonceBytes = append(nonceBytes, nonce.Bytes())
	}
	encodedNonces, err := rlp.EncodeToBytes(nonceBytes)
	if err != nil {
		return fmt.Errorf("编码nonce列表失败: %w", err)
	}

	current, err := l.BlockNumber()
	if err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(nonceKey(blockNumber), encodedNonces); err != nil {
			return err
		}
		if blockNumber > current {
			var numberBytes [8]byte
			binary.BigEndian.PutUint64(numberBytes[:], uint64(blockNumber))
			if err := txn.Set(blockNumberKey, numberBytes[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

// StoreTransactions 同步存储交易字节
func (l *BadgerLedger) StoreTransactions(txsBytes [][]byte, txsHash []types.Hash) error {
	if len(txsBytes) != len(txsHash) {
		return fmt.Errorf("交易字节与哈希数量不一致: %d != %d", len(txsBytes), len(txsHash))
	}
	return l.db.Update(func(txn *badger.Txn) error {
		for i := range txsBytes {
			if err := txn.Set(txKey(txsHash[i]), txsBytes[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// AsyncGetBlockNumber 查询当前最高区块高度
func (l *BadgerLedger) AsyncGetBlockNumber(onGetBlockNumber func(err error, blockNumber int64)) {
	go func() {
		blockNumber, err := l.BlockNumber()
		onGetBlockNumber(err, blockNumber)
	}()
}

// AsyncGetBatchTxsByHashList 按哈希批量查询交易
// 缺失的哈希直接省略，由调用方比对结果集
func (l *BadgerLedger) AsyncGetBatchTxsByHashList(txsHash []types.Hash, withProof bool,
	onGetTxs func(err error, txs []protocol.Transaction)) {
	go func() {
		txs := make([]protocol.Transaction, 0, len(txsHash))
		err := l.db.View(func(txn *badger.Txn) error {
			for _, txHash := range txsHash {
				item, getErr := txn.Get(txKey(txHash))
				if errors.Is(getErr, badger.ErrKeyNotFound) {
					continue
				}
				if getErr != nil {
					return getErr
				}
				valueErr := item.Value(func(value []byte) error {
					tx, decodeErr := l.txFactory.CreateTransaction(value, false)
					if decodeErr != nil {
						return decodeErr
					}
					txs = append(txs, tx)
					return nil
				})
				if valueErr != nil {
					return valueErr
				}
			}
			return nil
		})
		if err != nil {
			onGetTxs(err, nil)
			return
		}
		onGetTxs(nil, txs)
	}()
}

// AsyncStoreTransactions 批量存储交易字节（预提交）
func (l *BadgerLedger) AsyncStoreTransactions(txsBytes [][]byte, txsHash []types.Hash,
	onTxsStored func(err error)) {
	go func() {
		err := l.StoreTransactions(txsBytes, txsHash)
		if err != nil && l.logger != nil {
			l.logger.Warnf("预提交存储失败: txs=%d, error=%v", len(txsHash), err)
		}
		if onTxsStored != nil {
			onTxsStored(err)
		}
	}()
}

// AsyncGetNonces 查询[startNumber, startNumber+offset]区间内各区块的nonce列表
func (l *BadgerLedger) AsyncGetNonces(startNumber int64, offset int64,
	onGetNonces func(err error, nonces map[int64][]types.Nonce)) {
	go func() {
		nonces := make(map[int64][]types.Nonce)
		err := l.db.View(func(txn *badger.Txn) error {
			for number := startNumber; number <= startNumber+offset; number++ {
				item, getErr := txn.Get(nonceKey(number))
				if errors.Is(getErr, badger.ErrKeyNotFound) {
					continue
				}
				if getErr != nil {
					return getErr
				}
				valueErr := item.Value(func(value []byte) error {
					var nonceBytes [][]byte
					if decodeErr := rlp.DecodeBytes(value, &nonceBytes); decodeErr != nil {
						return decodeErr
					}
					blockNonces := make([]types.Nonce, 0, len(nonceBytes))
					for _, nonce := range nonceBytes {
						blockNonces = append(blockNonces, types.Nonce(nonce))
					}
					nonces[number] = blockNonces
					return nil
				})
				if valueErr != nil {
					return valueErr
				}
			}
			return nil
		})
		if err != nil {
			onGetNonces(err, nil)
			return
		}
		onGetNonces(nil, nonces)
	}()
}

var _ ledgeriface.Ledger = (*BadgerLedger)(nil)
