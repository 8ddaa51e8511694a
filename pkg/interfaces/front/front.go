// 文件说明：
// 本文件定义传输协作方（FrontService）接口。
// 交易池按节点标识发送定向报文；请求/响应沿传输层给定的关联标识配对。
package front

import (
	"time"

	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// SendResponseFunc 应答函数：沿请求关联回复数据
type SendResponseFunc func(respData []byte)

// ResponseCallback 定向请求的响应回调
// err 非nil表示传输错误或超时；sendResponse 用于继续沿关联应答（通常为nil）
type ResponseCallback func(err error, fromNode types.NodeID, data []byte, sendResponse SendResponseFunc)

// FrontService 传输协作方接口
type FrontService interface {
	// AsyncSendMessageByNodeID 向指定节点发送报文
	// timeout 为0时表示单向发送（不等待响应）；返回本次发送的关联标识
	AsyncSendMessageByNodeID(moduleID int, nodeID types.NodeID, data []byte,
		timeout time.Duration, onResponse ResponseCallback) string

	// AsyncGetNodeIDs 查询当前已连接的节点列表
	AsyncGetNodeIDs(onGetNodeIDs func(err error, nodeIDs []types.NodeID))
}
