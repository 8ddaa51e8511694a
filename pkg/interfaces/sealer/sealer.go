// 文件说明：
// 本文件定义打包器协作方接口。交易池通过未打包数量通知驱动打包节奏。
package sealer

// Sealer 打包器协作方接口
type Sealer interface {
	// AsyncNoteUnsealedTxsSize 通知当前未打包交易数量
	// 通知失败时交易池按退避策略重试
	AsyncNoteUnsealedTxsSize(unsealedTxsSize int, onRecvResponse func(err error))
}
