// Package log 提供日志级别接口定义
//
// 本文件定义日志级别的别名常量，具体类型定义位于 pkg/types。
package log

import "github.com/cyjseagull/bcos-txpool/pkg/types"

// LogLevel 日志级别别名（定义位于 pkg/types）
type LogLevel = types.LogLevel

// 常量别名
const (
	DebugLevel = types.DebugLevel
	InfoLevel  = types.InfoLevel
	WarnLevel  = types.WarnLevel
	ErrorLevel = types.ErrorLevel
	FatalLevel = types.FatalLevel
)
