// Package log 测试文件
package log

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logconfig "github.com/cyjseagull/bcos-txpool/internal/config/log"
)

// TestNew_WithDefaultConfig_ReturnsLogger 测试默认配置创建日志记录器
func TestNew_WithDefaultConfig_ReturnsLogger(t *testing.T) {
	logger, err := New(logconfig.New(nil))

	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.NotNil(t, logger.GetZapLogger())
}

// TestNew_WithFileOutput_CreatesLogFile 测试文件输出
func TestNew_WithFileOutput_CreatesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "txpool.log")
	logger, err := New(logconfig.New(&logconfig.LogOptions{
		Level:    "debug",
		FilePath: logPath,
	}))
	require.NoError(t, err)

	logger.Info("测试日志输出")
	require.NoError(t, logger.Sync())

	assert.FileExists(t, logPath, "日志文件应该被创建")
}

// TestLogger_With_AttachesFields 测试附加字段
func TestLogger_With_AttachesFields(t *testing.T) {
	logger, err := New(logconfig.New(nil))
	require.NoError(t, err)

	scoped := logger.With("module", "txpool")
	require.NotNil(t, scoped)
	scoped.Debugf("带字段日志: %d", 1)
}

// TestGetLogger_ReturnsGlobalInstance 测试全局日志实例
func TestGetLogger_ReturnsGlobalInstance(t *testing.T) {
	assert.NotNil(t, GetLogger(), "init后全局日志实例应该可用")
}
