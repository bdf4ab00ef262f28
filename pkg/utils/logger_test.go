package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	// 测试控制台日志
	err := InitLogger(LogLevelNormal, "")
	assert.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())

	// 测试文件日志
	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	err = InitLogger(LogLevelVerbose, logFile)
	assert.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	assert.FileExists(t, logFile)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("verbose"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel(LogLevelQuiet))
	assert.Equal(t, logrus.ErrorLevel, ParseLevel(LogLevelError))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("unknown"))
}

func TestLogLevels(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "level_test.log")
	require.NoError(t, InitLogger(LogLevelQuiet, logFile))

	Debug("debug message")
	Info("info message")
	Warn("warn message %d", 1)
	Error("error message")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	content := string(data)
	assert.False(t, strings.Contains(content, "debug message"))
	assert.False(t, strings.Contains(content, "info message"))
	assert.Contains(t, content, "warn message 1")
	assert.Contains(t, content, "error message")

	require.NoError(t, InitLogger(LogLevelNormal, ""))
}

func TestWithFieldLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "fields.log")
	require.NoError(t, InitLogger(LogLevelNormal, logFile))

	WithField("task", "abc").Info("带字段日志")
	WithFields(logrus.Fields{
		"key1": "value1",
		"key2": "value2",
	}).Info("带多个字段日志")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "task=abc")
	assert.Contains(t, string(data), "key2=value2")

	require.NoError(t, InitLogger(LogLevelNormal, ""))
}
