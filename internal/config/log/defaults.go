package log

import "go.uber.org/zap/zapcore"

// 日志配置默认值
const (
	// defaultLogLevel 默认日志级别设为info
	// 原因：info级别覆盖正常运行的关键事件，调试时再切换debug
	defaultLogLevel = "info"

	// defaultToConsole 默认输出到控制台
	// 原因：未指定文件路径时控制台输出是最直接的观察手段
	defaultToConsole = true

	// defaultFilePath 默认不写日志文件
	// 原因：文件输出由部署方按环境显式指定，避免污染工作目录
	defaultFilePath = ""

	// defaultMaxSize 默认单个日志文件最大100MB
	// 原因：100MB在排查窗口和磁盘占用之间取得平衡
	defaultMaxSize = 100

	// defaultMaxBackups 默认最多保留10个备份文件
	defaultMaxBackups = 10

	// defaultMaxAge 默认日志保留30天
	defaultMaxAge = 30

	// defaultCompress 默认压缩历史日志文件
	defaultCompress = true

	// defaultEnableCaller 默认启用调用者信息
	defaultEnableCaller = true

	// defaultEnableStacktrace 默认关闭堆栈跟踪
	// 原因：堆栈跟踪开销较大，仅在深度排查时开启
	defaultEnableStacktrace = false
)

// levelMap 日志级别名称到zap级别的映射
var levelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}
