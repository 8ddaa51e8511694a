// 文件说明：
// 本文件实现交易同步引擎（TransactionSync）：
// - 单个长驻工作协程驱动主循环：导入下载缓冲→转发新交易→空闲时带超时等待唤醒；
// - 请求应答与状态处理分别由独立任务池承接，传输回调不被阻塞；
// - 新交易转发分两步：先向全部共识节点广播RPC来源交易（TxsPacket），
//   节流100ms后按forwardPercent比例向未知晓节点通告状态（TxsStatusPacket）；
// - 提案验证缺失交易：无指定节点时从本地账本拉取，否则向提案节点发起定向请求，
//   响应经过计数、签名与逐项哈希三重校验。
package txsync

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyjseagull/bcos-txpool/internal/core/infrastructure/workerpool"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/front"
	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	txsynciface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txsync"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

const (
	// idleWaitInterval 空闲时主循环的等待超时
	idleWaitInterval = 10 * time.Millisecond
	// statusForwardDelay 广播与状态通告之间的节流间隔
	// 留给对端解码TxsPacket的时间，减少冗余的交易拉取
	statusForwardDelay = 100 * time.Millisecond
)

// StatusError 携带状态码的同步错误
type StatusError struct {
	Status protocol.TransactionStatus
}

// Error 实现error接口
func (e *StatusError) Error() string {
	return e.Status.String()
}

// NewStatusError 用状态码构造同步错误
func NewStatusError(status protocol.TransactionStatus) *StatusError {
	return &StatusError{Status: status}
}

// StatusOf 提取错误携带的状态码，非StatusError返回None与false
func StatusOf(err error) (protocol.TransactionStatus, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, true
	}
	return protocol.None, false
}

// TransactionSync 交易同步引擎实现
type TransactionSync struct {
	config  *Config
	logger  logiface.Logger
	metrics *Metrics

	// downloadMu 保护下载缓冲
	downloadMu        sync.Mutex
	downloadTxsBuffer []txsynciface.TxsSyncMsg

	// worker 请求应答任务池
	worker *workerpool.Pool
	// txsRequester 状态处理任务池
	txsRequester *workerpool.Pool

	// signalCh 主循环唤醒信号
	signalCh chan struct{}
	quitCh   chan struct{}
	wg       sync.WaitGroup

	newTransactions atomic.Bool
	running         atomic.Bool
}

// NewTransactionSync 创建交易同步引擎
func NewTransactionSync(config *Config, metrics *Metrics) *TransactionSync {
	logger := config.Logger()
	if logger != nil {
		logger = logger.With("module", "txsync")
	}
	return &TransactionSync{
		config:       config,
		logger:       logger,
		metrics:      metrics,
		worker:       workerpool.New("syncWorker", 1, logger),
		txsRequester: workerpool.New("txsRequester", 1, logger),
		signalCh:     make(chan struct{}, 1),
		quitCh:       make(chan struct{}),
	}
}

// Config 同步配置
func (s *TransactionSync) Config() *Config {
	return s.config
}

// Start 启动同步主循环
func (s *TransactionSync) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("交易同步引擎已启动")
	}
	s.wg.Add(1)
	go s.mainLoop()
	if s.logger != nil {
		s.logger.Info("交易同步引擎已启动")
	}
	return nil
}

// Stop 停止同步主循环与任务池
func (s *TransactionSync) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	close(s.quitCh)
	s.wg.Wait()
	s.worker.Stop()
	s.txsRequester.Stop()
	if s.logger != nil {
		s.logger.Info("交易同步引擎已停止")
	}
	return nil
}

// NoteNewTransactions 通知有新交易待转发并唤醒主循环
func (s *TransactionSync) NoteNewTransactions() {
	s.newTransactions.Store(true)
	s.signal()
}

// signal 唤醒主循环（信号聚合，不阻塞）
func (s *TransactionSync) signal() {
	select {
	case s.signalCh <- struct{}{}:
	default:
	}
}

// mainLoop 主循环
func (s *TransactionSync) mainLoop() {
	defer s.wg.Done()
	for s.running.Load() {
		s.executeWorker()
		select {
		case <-s.quitCh:
			return
		default:
		}
	}
}

// executeWorker 单轮工作：导入下载缓冲→转发新交易→空闲等待
func (s *TransactionSync) executeWorker() {
	if !s.downloadTxsBufferEmpty() {
		s.maintainDownloadingTransactions()
	}
	if s.config.ExistsInGroup() && s.downloadTxsBufferEmpty() && s.newTransactions.Load() {
		s.maintainTransactions()
	}
	if !s.newTransactions.Load() && s.downloadTxsBufferEmpty() {
		select {
		case <-s.signalCh:
		case <-time.After(idleWaitInterval):
		case <-s.quitCh:
		}
	}
}

// downloadTxsBufferEmpty 下载缓冲是否为空
func (s *TransactionSync) downloadTxsBufferEmpty() bool {
	s.downloadMu.Lock()
	defer s.downloadMu.Unlock()
	return len(s.downloadTxsBuffer) == 0
}

// appendDownloadTxsBuffer 追加下载缓冲
func (s *TransactionSync) appendDownloadTxsBuffer(msg txsynciface.TxsSyncMsg) {
	s.downloadMu.Lock()
	defer s.downloadMu.Unlock()
	s.downloadTxsBuffer = append(s.downloadTxsBuffer, msg)
}

// swapDownloadTxsBuffer 原子换出下载缓冲
func (s *TransactionSync) swapDownloadTxsBuffer() []txsynciface.TxsSyncMsg {
	s.downloadMu.Lock()
	defer s.downloadMu.Unlock()
	buffer := s.downloadTxsBuffer
	s.downloadTxsBuffer = nil
	return buffer
}

// OnRecvSyncMessage 处理传输层投递的同步报文
func (s *TransactionSync) OnRecvSyncMessage(
	err error, fromNode types.NodeID, data []byte, sendResponse txsynciface.SendResponseFunc) {
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("收到同步报文错误: peer=%s, error=%v", fromNode.Abridged(), err)
		}
		return
	}
	msg, decodeErr := s.config.MsgFactory().CreateTxsSyncMsg(data)
	if decodeErr != nil {
		if s.logger != nil {
			s.logger.Warnf("同步报文解码失败: peer=%s, error=%v", fromNode.Abridged(), decodeErr)
		}
		return
	}
	s.metrics.RecordPacketIn(msg.Type().String())
	switch msg.Type() {
	case txsynciface.TxsPacket:
		msg.SetFrom(fromNode)
		s.appendDownloadTxsBuffer(msg)
		s.signal()
	case txsynciface.TxsRequestPacket:
		request := msg
		s.worker.Enqueue(func() {
			s.onReceiveTxsRequest(request, sendResponse, fromNode)
		})
	case txsynciface.TxsStatusPacket:
		status := msg
		s.txsRequester.Enqueue(func() {
			s.onPeerTxsStatus(fromNode, status)
		})
	default:
		if s.logger != nil {
			s.logger.Warnf("未知同步报文类型: peer=%s, type=%d", fromNode.Abridged(), msg.Type())
		}
	}
}

// onReceiveTxsRequest 应答交易请求：命中的交易按序编入容器区块返回
// 缺失的交易静默省略，由请求方通过计数不一致感知
func (s *TransactionSync) onReceiveTxsRequest(
	request txsynciface.TxsSyncMsg, sendResponse txsynciface.SendResponseFunc, peer types.NodeID) {
	if sendResponse == nil {
		return
	}
	txsHash := request.TxsHash()
	txs, missed := s.config.Storage().FetchTxs(txsHash)
	if len(missed) > 0 && s.logger != nil {
		s.logger.Debugf("应答交易请求存在缺失: peer=%s, missed=%d", peer.Abridged(), len(missed))
	}
	block := s.config.BlockFactory().NewBlock()
	for _, tx := range txs {
		block.AppendTransaction(tx)
	}
	blockData, err := block.Encode()
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("编码交易响应失败: peer=%s, error=%v", peer.Abridged(), err)
		}
		return
	}
	response := s.config.MsgFactory().CreateTxsSyncMsgWithData(txsynciface.TxsResponsePacket, blockData)
	responseData, err := response.Encode()
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("编码响应报文失败: peer=%s, error=%v", peer.Abridged(), err)
		}
		return
	}
	s.metrics.RecordPacketOut(txsynciface.TxsResponsePacket.String())
	sendResponse(responseData)
	if s.logger != nil {
		s.logger.Debugf("应答交易请求: peer=%s, txs=%d", peer.Abridged(), len(txs))
	}
}

// onPeerTxsStatus 处理对端状态通告：先排空下载缓冲，再请求本地未知的交易
func (s *TransactionSync) onPeerTxsStatus(fromNode types.NodeID, status txsynciface.TxsSyncMsg) {
	for !s.downloadTxsBufferEmpty() {
		s.maintainDownloadingTransactions()
	}
	txsHash := status.TxsHash()
	if len(txsHash) == 0 {
		return
	}
	unknownTxs := s.config.Storage().FilterUnknownTxs(txsHash, fromNode)
	if len(unknownTxs) == 0 {
		return
	}
	s.RequestMissedTxs(fromNode, unknownTxs, nil, nil)
	if s.logger != nil {
		s.logger.Debugf("对端状态触发交易请求: peer=%s, peerTxs=%d, request=%d",
			fromNode.Abridged(), len(txsHash), len(unknownTxs))
	}
}

// RequestMissedTxs 拉取缺失交易
// generatedNodeID 为空时从本地账本拉取，否则向该节点发起定向请求
func (s *TransactionSync) RequestMissedTxs(generatedNodeID types.NodeID, missedTxs []types.Hash,
	verifiedProposal protocol.Block, onVerifyFinished txsynciface.VerifyResponseCallback) {
	if generatedNodeID == "" {
		missedSet := make(map[types.Hash]struct{}, len(missedTxs))
		for _, txHash := range missedTxs {
			missedSet[txHash] = struct{}{}
		}
		s.config.Ledger().AsyncGetBatchTxsByHashList(missedTxs, false,
			func(err error, txs []protocol.Transaction) {
				if s.onGetMissedTxsFromLedger(missedSet, err, txs, verifiedProposal, onVerifyFinished) == 0 {
					return
				}
				if onVerifyFinished != nil {
					onVerifyFinished(NewStatusError(protocol.TransactionsMissing), false)
				}
			})
		return
	}
	s.requestMissedTxsFromPeer(generatedNodeID, missedTxs, verifiedProposal, onVerifyFinished)
	if s.logger != nil {
		s.logger.Infof("向对端请求缺失交易: peer=%s, txs=%d",
			generatedNodeID.Abridged(), len(missedTxs))
	}
}

// onGetMissedTxsFromLedger 处理账本拉取结果，返回仍然缺失的交易数量
func (s *TransactionSync) onGetMissedTxsFromLedger(missedTxs map[types.Hash]struct{},
	err error, fetchedTxs []protocol.Transaction, verifiedProposal protocol.Block,
	onVerifyFinished txsynciface.VerifyResponseCallback) int {
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("从账本拉取缺失交易失败: %v", err)
		}
		return len(missedTxs)
	}
	if !s.importDownloadedTxsList(s.config.NodeID(), fetchedTxs, verifiedProposal) {
		if s.logger != nil {
			s.logger.Warn("账本拉取的交易验证失败")
		}
		return len(missedTxs)
	}
	for _, tx := range fetchedTxs {
		if tx == nil {
			continue
		}
		if _, expected := missedTxs[tx.Hash()]; !expected {
			if s.logger != nil {
				s.logger.Warnf("账本返回了未请求的交易: tx=%s", tx.Hash().Abridged())
			}
			continue
		}
		delete(missedTxs, tx.Hash())
	}
	if len(missedTxs) == 0 && onVerifyFinished != nil {
		if s.logger != nil {
			s.logger.Info("账本命中全部缺失交易")
		}
		onVerifyFinished(nil, true)
	}
	return len(missedTxs)
}

// requestMissedTxsFromPeer 向指定节点发起交易请求
func (s *TransactionSync) requestMissedTxsFromPeer(peer types.NodeID, missedTxs []types.Hash,
	verifiedProposal protocol.Block, onVerifyFinished txsynciface.VerifyResponseCallback) {
	if len(missedTxs) == 0 {
		if onVerifyFinished != nil {
			onVerifyFinished(nil, true)
		}
		return
	}
	request := s.config.MsgFactory().CreateTxsSyncMsgWithHashes(txsynciface.TxsRequestPacket, missedTxs)
	requestData, err := request.Encode()
	if err != nil {
		if onVerifyFinished != nil {
			onVerifyFinished(err, false)
		}
		return
	}
	s.metrics.RecordPacketOut(txsynciface.TxsRequestPacket.String())
	s.config.FrontService().AsyncSendMessageByNodeID(
		txsynciface.ModuleTxsSync, peer, requestData, s.config.NetworkTimeout(),
		func(respErr error, fromNode types.NodeID, data []byte, _ front.SendResponseFunc) {
			s.verifyFetchedTxs(respErr, fromNode, data, missedTxs, verifiedProposal, onVerifyFinished)
		})
}

// verifyFetchedTxs 校验拉取到的交易响应
// 校验顺序：传输错误→报文类型→计数一致→签名导入→逐项哈希一致
func (s *TransactionSync) verifyFetchedTxs(err error, fromNode types.NodeID, data []byte,
	missedTxs []types.Hash, verifiedProposal protocol.Block,
	onVerifyFinished txsynciface.VerifyResponseCallback) {
	notify := func(notifyErr error, result bool) {
		if onVerifyFinished != nil {
			onVerifyFinished(notifyErr, result)
		}
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Infof("拉取缺失交易失败: peer=%s, missed=%d, error=%v",
				fromNode.Abridged(), len(missedTxs), err)
		}
		notify(err, false)
		return
	}
	response, decodeErr := s.config.MsgFactory().CreateTxsSyncMsg(data)
	if decodeErr != nil {
		notify(NewStatusError(protocol.FetchTransactionsFailed), false)
		return
	}
	if response.Type() != txsynciface.TxsResponsePacket {
		if s.logger != nil {
			s.logger.Warnf("收到非法的交易响应: peer=%s, type=%s",
				fromNode.Abridged(), response.Type())
		}
		notify(NewStatusError(protocol.FetchTransactionsFailed), false)
		return
	}
	block, blockErr := s.config.BlockFactory().CreateBlock(response.TxsData(), true)
	if blockErr != nil {
		notify(NewStatusError(protocol.FetchTransactionsFailed), false)
		return
	}
	if len(missedTxs) != block.TransactionsSize() {
		if s.logger != nil {
			s.logger.Infof("交易响应计数不一致: expected=%d, fetched=%d, peer=%s",
				len(missedTxs), block.TransactionsSize(), fromNode.Abridged())
		}
		// 先应答验证结论，再尽力导入部分响应（非强制模式）
		notify(NewStatusError(protocol.TransactionsMissing), false)
		s.importDownloadedTxs(fromNode, block, nil)
		return
	}
	if !s.importDownloadedTxs(fromNode, block, verifiedProposal) {
		notify(NewStatusError(protocol.TxsSignatureVerifyFailed), false)
		return
	}
	for i := 0; i < len(missedTxs); i++ {
		tx := block.Transaction(i)
		if tx == nil || missedTxs[i] != tx.Hash() {
			notify(NewStatusError(protocol.InconsistentTransactions), false)
			return
		}
	}
	notify(nil, true)
	if s.logger != nil {
		s.logger.Debugf("缺失交易拉取并校验成功: peer=%s, txs=%d",
			fromNode.Abridged(), len(missedTxs))
	}
}

// maintainDownloadingTransactions 原子换出下载缓冲并逐批导入
func (s *TransactionSync) maintainDownloadingTransactions() {
	if s.downloadTxsBufferEmpty() {
		return
	}
	localBuffer := s.swapDownloadTxsBuffer()
	if !s.config.ExistsInGroup() {
		if s.logger != nil {
			s.logger.Debugf("节点不在群组内，跳过下载交易导入: buffer=%d", len(localBuffer))
		}
		return
	}
	for _, msg := range localBuffer {
		block, err := s.config.BlockFactory().CreateBlock(msg.TxsData(), true)
		if err != nil {
			if s.logger != nil {
				s.logger.Warnf("下载交易解码失败: peer=%s, error=%v", msg.From().Abridged(), err)
			}
			continue
		}
		s.importDownloadedTxs(msg.From(), block, nil)
	}
}

// importDownloadedTxs 导入区块载体中的交易
func (s *TransactionSync) importDownloadedTxs(
	fromNode types.NodeID, block protocol.Block, verifiedProposal protocol.Block) bool {
	txs := make([]protocol.Transaction, 0, block.TransactionsSize())
	for i := 0; i < block.TransactionsSize(); i++ {
		txs = append(txs, block.Transaction(i))
	}
	return s.importDownloadedTxsList(fromNode, txs, verifiedProposal)
}

// importDownloadedTxsList 并行验签后顺序导入交易
// verifiedProposal 非nil时为强制导入：任一签名或导入失败即整体失败
func (s *TransactionSync) importDownloadedTxsList(
	fromNode types.NodeID, txs []protocol.Transaction, verifiedProposal protocol.Block) bool {
	if len(txs) == 0 {
		return true
	}
	enforceImport := verifiedProposal != nil

	// 数据并行验签
	var verifySuccess atomic.Bool
	verifySuccess.Store(true)
	workerNum := runtime.NumCPU()
	if workerNum > len(txs) {
		workerNum = len(txs)
	}
	var wg sync.WaitGroup
	chunk := (len(txs) + workerNum - 1) / workerNum
	for begin := 0; begin < len(txs); begin += chunk {
		end := begin + chunk
		if end > len(txs) {
			end = len(txs)
		}
		wg.Add(1)
		go func(batch []protocol.Transaction) {
			defer wg.Done()
			for _, tx := range batch {
				if tx == nil {
					continue
				}
				tx.AppendKnownNode(fromNode)
				if enforceImport {
					tx.SetBatchID(verifiedProposal.Number())
					tx.SetBatchHash(verifiedProposal.Hash())
				}
				if s.config.Storage().Exist(tx.Hash()) {
					continue
				}
				if err := tx.VerifySignature(); err != nil {
					tx.SetInvalid(true)
					verifySuccess.Store(false)
					if s.logger != nil {
						s.logger.Warnf("下载交易验签失败: tx=%s, error=%v", tx.Hash().Abridged(), err)
					}
				}
			}
		}(txs[begin:end])
	}
	wg.Wait()

	if enforceImport && !verifySuccess.Load() {
		return false
	}

	// 顺序导入
	successImportTxs := 0
	for _, tx := range txs {
		if tx == nil || tx.Invalid() {
			continue
		}
		result := s.config.Storage().SubmitTx(tx, enforceImport)
		if result != protocol.None {
			// 强制导入时重复在池视为成功，其余失败导致整体验证失败
			if enforceImport && result != protocol.AlreadyInTxPool {
				if s.logger != nil {
					s.logger.Debugf("提案交易导入失败: tx=%s, result=%s",
						tx.Hash().Abridged(), result)
				}
				return false
			}
			continue
		}
		successImportTxs++
	}
	if s.logger != nil {
		s.logger.Debugf("下载交易导入完成: success=%d, total=%d", successImportTxs, len(txs))
	}
	return true
}

// maintainTransactions 转发新交易：广播RPC来源交易，节流后通告状态
func (s *TransactionSync) maintainTransactions() {
	txs := s.config.Storage().FetchNewTxs(s.config.MaxSendTransactions())
	if len(txs) == 0 {
		s.newTransactions.Store(false)
		return
	}
	s.broadcastTxsFromRpc(txs)
	// 节流：留给对端解码TxsPacket的时间，避免状态通告抢先到达
	time.Sleep(statusForwardDelay)
	s.forwardTxsFromP2P(txs)
}

// broadcastTxsFromRpc 向全部共识节点广播RPC来源的交易（携带提交回调的交易）
func (s *TransactionSync) broadcastTxsFromRpc(txs []protocol.Transaction) {
	block := s.config.BlockFactory().NewBlock()
	for _, tx := range txs {
		if tx.SubmitCallback() == nil {
			continue
		}
		block.AppendTransaction(tx)
	}
	if block.TransactionsSize() == 0 {
		return
	}
	blockData, err := block.Encode()
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("编码广播交易失败: %v", err)
		}
		return
	}
	packet := s.config.MsgFactory().CreateTxsSyncMsgWithData(txsynciface.TxsPacket, blockData)
	packetData, err := packet.Encode()
	if err != nil {
		return
	}
	selfNodeID := s.config.NodeID()
	for _, consensusNode := range s.config.ConsensusNodeList() {
		if consensusNode == selfNodeID {
			continue
		}
		s.metrics.RecordPacketOut(txsynciface.TxsPacket.String())
		s.config.FrontService().AsyncSendMessageByNodeID(
			txsynciface.ModuleTxsSync, consensusNode, packetData, 0, nil)
		if s.logger != nil {
			s.logger.Debugf("广播RPC交易: to=%s, txs=%d, bytes=%d",
				consensusNode.Abridged(), block.TransactionsSize(), len(packetData))
		}
	}
}

// forwardTxsFromP2P 按forwardPercent比例向未知晓节点通告交易状态
func (s *TransactionSync) forwardTxsFromP2P(txs []protocol.Transaction) {
	consensusNodes := s.config.ConsensusNodeList()
	connectedNodes := s.config.ConnectedNodeList()
	expectedPeers := (len(consensusNodes)*s.config.ForwardPercent() + 99) / 100
	peerToForwardedTxs := make(map[types.NodeID][]types.Hash)
	for _, tx := range txs {
		for _, peer := range s.selectPeers(tx, connectedNodes, consensusNodes, expectedPeers) {
			peerToForwardedTxs[peer] = append(peerToForwardedTxs[peer], tx.Hash())
		}
	}
	for peer, txsHash := range peerToForwardedTxs {
		statusPacket := s.config.MsgFactory().CreateTxsSyncMsgWithHashes(
			txsynciface.TxsStatusPacket, txsHash)
		packetData, err := statusPacket.Encode()
		if err != nil {
			continue
		}
		s.metrics.RecordPacketOut(txsynciface.TxsStatusPacket.String())
		s.metrics.RecordForwardedTxs(len(txsHash))
		s.config.FrontService().AsyncSendMessageByNodeID(
			txsynciface.ModuleTxsSync, peer, packetData, 0, nil)
		if s.logger != nil {
			s.logger.Debugf("通告交易状态: to=%s, txs=%d", peer.Abridged(), len(txsHash))
		}
	}
}

// selectPeers 按共识列表顺序为交易挑选转发节点
// 要求节点已连接、非本节点且未知晓该交易；选中即登记knownBy
func (s *TransactionSync) selectPeers(tx protocol.Transaction, connectedNodes types.NodeIDSet,
	consensusNodes []types.NodeID, expectedSize int) []types.NodeID {
	selectedPeers := make([]types.NodeID, 0, expectedSize)
	selfNodeID := s.config.NodeID()
	for _, nodeID := range consensusNodes {
		if !connectedNodes.Contains(nodeID) {
			continue
		}
		if nodeID == selfNodeID {
			continue
		}
		if tx.IsKnownBy(nodeID) {
			continue
		}
		selectedPeers = append(selectedPeers, nodeID)
		tx.AppendKnownNode(nodeID)
		if len(selectedPeers) >= expectedSize {
			break
		}
	}
	return selectedPeers
}

var _ txsynciface.TransactionSync = (*TransactionSync)(nil)
