// 文件说明：
// 本文件实现打包器模拟（FakeSealer）：记录未打包数量通知，支持错误注入。
package testutil

import (
	"sync"

	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/sealer"
)

// FakeSealer 打包器模拟实现
type FakeSealer struct {
	mu sync.Mutex
	// lastUnsealedSize 最近一次通告的未打包数量
	lastUnsealedSize int
	// notifyCount 通告次数
	notifyCount int
	// injectedErr 注入的通知错误
	injectedErr error
}

// NewFakeSealer 创建打包器模拟
func NewFakeSealer() *FakeSealer {
	return &FakeSealer{}
}

// AsyncNoteUnsealedTxsSize 记录未打包数量通告
func (s *FakeSealer) AsyncNoteUnsealedTxsSize(unsealedTxsSize int, onRecvResponse func(err error)) {
	s.mu.Lock()
	s.lastUnsealedSize = unsealedTxsSize
	s.notifyCount++
	injectedErr := s.injectedErr
	s.mu.Unlock()
	if onRecvResponse != nil {
		onRecvResponse(injectedErr)
	}
}

// InjectError 注入通知错误（nil 表示恢复正常）
func (s *FakeSealer) InjectError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injectedErr = err
}

// LastUnsealedSize 最近一次通告的未打包数量
func (s *FakeSealer) LastUnsealedSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUnsealedSize
}

// NotifyCount 通告次数
func (s *FakeSealer) NotifyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifyCount
}

var _ sealer.Sealer = (*FakeSealer)(nil)
