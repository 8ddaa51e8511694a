// 文件说明：
// 本文件实现命名的固定大小任务池：
// - 固定数量的工作协程消费任务队列；
// - 任务中的panic被捕获并记录，不向外传播；
// - 停止后拒绝新任务，已入队任务尽力执行。
package workerpool

import (
	"sync"
	"sync/atomic"

	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
)

// defaultQueueCapacity 任务队列默认容量
const defaultQueueCapacity = 4096

// Pool 命名任务池
type Pool struct {
	name    string
	tasks   chan func()
	quit    chan struct{}
	wg      sync.WaitGroup
	stopped atomic.Bool
	logger  logiface.Logger
}

// New 创建任务池并启动工作协程
// workerNum 小于1时按1处理
func New(name string, workerNum int, logger logiface.Logger) *Pool {
	if workerNum < 1 {
		workerNum = 1
	}
	p := &Pool{
		name:   name,
		tasks:  make(chan func(), defaultQueueCapacity),
		quit:   make(chan struct{}),
		logger: logger,
	}
	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// run 工作协程主循环
func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			p.execute(task)
		case <-p.quit:
			// 停止后清空剩余任务（尽力执行）
			for {
				select {
				case task := <-p.tasks:
					p.execute(task)
				default:
					return
				}
			}
		}
	}
}

// execute 执行单个任务，捕获panic
func (p *Pool) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.Errorf("任务池 %s 任务执行panic: %v", p.name, r)
			}
		}
	}()
	task()
}

// Enqueue 提交任务
// 池已停止时返回false；队列满时阻塞等待
func (p *Pool) Enqueue(task func()) bool {
	if p.stopped.Load() {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	case <-p.quit:
		return false
	}
}

// Stop 停止任务池并等待工作协程退出
func (p *Pool) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	close(p.quit)
	p.wg.Wait()
}
