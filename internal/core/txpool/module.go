// 文件说明：
// 本文件定义交易池组件的 Fx 模块装配入口，负责：
// 1) 通过依赖注入构造交易池工厂并输出 TxPool 接口实现；
// 2) 绑定事件下沉（可选依赖事件总线）；
// 3) 统一管理组件生命周期（Init/Start/Stop）。
package txpool

import (
	"context"

	evbus "github.com/asaskevich/EventBus"
	"go.uber.org/fx"

	txpoolconfig "github.com/cyjseagull/bcos-txpool/internal/config/txpool"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/front"
	logiface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/infrastructure/log"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/ledger"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/protocol"
	"github.com/cyjseagull/bcos-txpool/pkg/interfaces/sealer"
	txpooliface "github.com/cyjseagull/bcos-txpool/pkg/interfaces/txpool"
	"github.com/cyjseagull/bcos-txpool/pkg/types"
)

// ModuleInput 定义交易池模块的输入依赖
type ModuleInput struct {
	fx.In

	// ========== 配置依赖 ==========
	Options *txpoolconfig.TxPoolOptions `optional:"true"`
	NodeID  types.NodeID                `name:"node_id"`

	// ========== 基础设施依赖 ==========
	Logger   logiface.Logger `optional:"true"`
	EventBus evbus.Bus       `optional:"true"`

	// ========== 协议工厂依赖 ==========
	TxFactory       protocol.TransactionFactory
	BlockFactory    protocol.BlockFactory
	TxResultFactory protocol.TxSubmitResultFactory

	// ========== 协作方依赖 ==========
	FrontService front.FrontService
	Ledger       ledger.Ledger
	Sealer       sealer.Sealer `optional:"true"`
}

// ModuleOutput 定义交易池模块的统一输出
type ModuleOutput struct {
	fx.Out

	TxPool  txpooliface.TxPool `name:"tx_pool"`
	Factory *TxPoolFactory
}

// Module 返回交易池 Fx 模块
func Module() fx.Option {
	return fx.Module("txpool",
		fx.Provide(ProvideServices),
		fx.Invoke(fx.Annotate(func(
			lc fx.Lifecycle,
			logger logiface.Logger,
			factory *TxPoolFactory,
			sealerService sealer.Sealer,
		) {
			var txpoolLogger logiface.Logger
			if logger != nil {
				txpoolLogger = logger.With("module", "txpool")
			}
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if err := factory.Init(sealerService); err != nil {
						return err
					}
					if txpoolLogger != nil {
						txpoolLogger.Info("交易池模块启动")
					}
					return factory.TxPool().Start()
				},
				OnStop: func(ctx context.Context) error {
					if err := factory.TxPool().Stop(); err != nil {
						if txpoolLogger != nil {
							txpoolLogger.Errorf("停止交易池失败: %v", err)
						}
						return err
					}
					if txpoolLogger != nil {
						txpoolLogger.Info("交易池模块停止完成")
					}
					return nil
				},
			})
		}, fx.ParamTags(``, `optional:"true"`, ``, `optional:"true"`))),
	)
}

// ProvideServices 构造交易池工厂与门面
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	factory := NewTxPoolFactory(
		input.NodeID,
		input.Options,
		input.TxFactory,
		input.BlockFactory,
		input.TxResultFactory,
		input.FrontService,
		input.Ledger,
		input.Logger,
	)

	// 绑定事件下沉（未注入事件总线时保持Noop）
	if input.EventBus != nil {
		factory.TxPool().Storage().SetEventSink(NewEventBusTxEventSink(input.EventBus))
	}

	return ModuleOutput{
		TxPool:  factory.TxPool(),
		Factory: factory,
	}, nil
}
