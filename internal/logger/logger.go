package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// maxLogSize 超过该大小的日志文件在启动时轮转
const maxLogSize = 10 * 1024 * 1024

var (
	std     = logrus.New()
	logFile *os.File
	logPath string
)

func init() {
	std.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
}

// Init 设置日志级别和输出文件，file 为空时输出到 stderr
func Init(level, file string) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		std.SetLevel(lvl)
	}

	if file == "" {
		std.SetOutput(os.Stderr)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// 文件过大时先改名备份
	if info, err := os.Stat(file); err == nil && info.Size() > maxLogSize {
		backupPath := fmt.Sprintf("%s.%d", file, time.Now().Unix())
		_ = os.Rename(file, backupPath)
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	Close()
	logFile = f
	logPath = file
	std.SetOutput(f)

	LogInfo("Logger initialized, log file: %s", logPath)
	return nil
}

// InitClient 客户端日志写入 ~/.doudizhu/debug.log，避免干扰终端界面
func InitClient() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return Init("debug", filepath.Join(homeDir, ".doudizhu", "debug.log"))
}

// SetOutput 替换输出目标，测试中使用
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Close 关闭日志文件
func Close() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// WithRoom 带房间号的日志条目
func WithRoom(roomID int64) *logrus.Entry {
	return std.WithField("room", roomID)
}

// WithPlayer 带玩家信息的日志条目
func WithPlayer(userID int64, name string) *logrus.Entry {
	return std.WithFields(logrus.Fields{"uid": userID, "player": name})
}

// LogDebug logs a debug message
func LogDebug(format string, args ...any) {
	std.Debugf(format, args...)
}

// LogInfo logs an info message
func LogInfo(format string, args ...any) {
	std.Infof(format, args...)
}

// LogWarn logs a warning message
func LogWarn(format string, args ...any) {
	std.Warnf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...any) {
	std.Errorf(format, args...)
}

// LogPanic logs a panic with stack trace
func LogPanic(r any) {
	std.WithField("stack", string(debug.Stack())).Errorf("panic: %v", r)
}

// GetLogPath returns the current log file path
func GetLogPath() string {
	return logPath
}
