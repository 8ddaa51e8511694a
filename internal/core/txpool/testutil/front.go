// Package testutil 提供交易池测试所需的夹具与协作方模拟实现。
// 本文件实现进程内传输模拟（FakeFrontService）：
// 多个节点的交易池注册到同一交换机，定向报文直接投递到目标节点门面，
// 请求/响应用uuid关联并支持超时。
package testutil

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/front"
	txpooliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txpool"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// ErrPeerUnreachable 目标节点未注册
var ErrPeerUnreachable = errors.New("目标节点不可达")

// ErrNetworkTimeout 等待响应超时
var ErrNetworkTimeout = errors.New("网络请求超时")

// RawMessageHandler 原始报文处理器（注册后优先于交易池门面处理投递）
type RawMessageHandler func(fromNode types.NodeID, data []byte, sendResponse front.SendResponseFunc)

// FakeFrontService 进程内传输交换机
type FakeFrontService struct {
	mu       sync.RWMutex
	txpools  map[types.NodeID]txpooliface.TxPool
	handlers map[types.NodeID]RawMessageHandler
	// dropPeers 模拟断连的节点：单向报文被静默丢弃，请求以ErrPeerUnreachable回调
	dropPeers types.NodeIDSet
}

// NewFakeFrontService 创建传输交换机
func NewFakeFrontService() *FakeFrontService {
	return &FakeFrontService{
		txpools:   make(map[types.NodeID]txpooliface.TxPool),
		handlers:  make(map[types.NodeID]RawMessageHandler),
		dropPeers: make(types.NodeIDSet),
	}
}

// AddNode 注册节点的交易池门面
func (f *FakeFrontService) AddNode(nodeID types.NodeID, pool txpooliface.TxPool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txpools[nodeID] = pool
}

// AddRawHandler 注册节点的原始报文处理器（用于构造异常应答场景）
func (f *FakeFrontService) AddRawHandler(nodeID types.NodeID, handler RawMessageHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[nodeID] = handler
}

// DropPeer 模拟节点断连（单向报文静默丢弃，请求回调ErrPeerUnreachable）
func (f *FakeFrontService) DropPeer(nodeID types.NodeID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropPeers[nodeID] = struct{}{}
}

// ServiceFor 返回绑定发送方标识的传输句柄
func (f *FakeFrontService) ServiceFor(selfNodeID types.NodeID) front.FrontService {
	return &boundFrontService{switchboard: f, selfNodeID: selfNodeID}
}

// deliver 投递报文到目标节点
func (f *FakeFrontService) deliver(fromNode types.NodeID, toNode types.NodeID, data []byte,
	timeout time.Duration, onResponse front.ResponseCallback) {
	f.mu.RLock()
	target, exists := f.txpools[toNode]
	handler, hasHandler := f.handlers[toNode]
	_, dropped := f.dropPeers[toNode]
	f.mu.RUnlock()

	if hasHandler && !dropped {
		if onResponse == nil {
			go handler(fromNode, data, nil)
			return
		}
		respCh := make(chan []byte, 1)
		go handler(fromNode, data, func(respData []byte) {
			select {
			case respCh <- respData:
			default:
			}
		})
		go func() {
			if timeout <= 0 {
				timeout = time.Second
			}
			select {
			case respData := <-respCh:
				onResponse(nil, toNode, respData, nil)
			case <-time.After(timeout):
				onResponse(ErrNetworkTimeout, toNode, nil, nil)
			}
		}()
		return
	}

	if !exists || dropped {
		if onResponse != nil {
			go onResponse(ErrPeerUnreachable, toNode, nil, nil)
		}
		return
	}

	if onResponse == nil {
		// 单向发送
		go target.NotifyTxsSyncMessage(nil, fromNode, data, nil)
		return
	}

	respCh := make(chan []byte, 1)
	go target.NotifyTxsSyncMessage(nil, fromNode, data, func(respData []byte) {
		select {
		case respCh <- respData:
		default:
		}
	})
	go func() {
		if timeout <= 0 {
			timeout = time.Second
		}
		select {
		case respData := <-respCh:
			onResponse(nil, toNode, respData, nil)
		case <-time.After(timeout):
			onResponse(ErrNetworkTimeout, toNode, nil, nil)
		}
	}()
}

// boundFrontService 绑定发送方标识的传输句柄
type boundFrontService struct {
	switchboard *FakeFrontService
	selfNodeID  types.NodeID
}

// AsyncSendMessageByNodeID 向指定节点发送报文
func (s *boundFrontService) AsyncSendMessageByNodeID(moduleID int, nodeID types.NodeID,
	data []byte, timeout time.Duration, onResponse front.ResponseCallback) string {
	correlationID := uuid.NewString()
	s.switchboard.deliver(s.selfNodeID, nodeID, data, timeout, onResponse)
	return correlationID
}

// AsyncGetNodeIDs 查询已注册节点列表
func (s *boundFrontService) AsyncGetNodeIDs(onGetNodeIDs func(err error, nodeIDs []types.NodeID)) {
	s.switchboard.mu.RLock()
	nodeIDs := make([]types.NodeID, 0, len(s.switchboard.txpools))
	for nodeID := range s.switchboard.txpools {
		nodeIDs = append(nodeIDs, nodeID)
	}
	s.switchboard.mu.RUnlock()
	go onGetNodeIDs(nil, nodeIDs)
}

var _ front.FrontService = (*boundFrontService)(nil)
