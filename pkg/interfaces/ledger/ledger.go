// 文件说明：
// 本文件定义账本协作方接口。交易池只通过异步接口访问账本：
// 按哈希批量取交易、预提交存储与nonce窗口查询；实现内部保证线程安全。
package ledger

import (
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// Ledger 账本协作方接口
type Ledger interface {
	// AsyncGetBlockNumber 查询当前最高区块高度
	AsyncGetBlockNumber(onGetBlockNumber func(err error, blockNumber int64))

	// AsyncGetBatchTxsByHashList 按哈希批量查询交易
	AsyncGetBatchTxsByHashList(txsHash []types.Hash, withProof bool,
		onGetTxs func(err error, txs []protocol.Transaction))

	// AsyncStoreTransactions 批量存储交易字节（预提交），失败由调用方重试
	AsyncStoreTransactions(txsBytes [][]byte, txsHash []types.Hash, onTxsStored func(err error))

	// AsyncGetNonces 查询[startNumber, startNumber+offset]区间内各区块的nonce列表
	AsyncGetNonces(startNumber int64, offset int64,
		onGetNonces func(err error, nonces map[int64][]types.Nonce))
}
