package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const LOG_BUFFER_SIZE = 1000

var (
	ErrLogNotInitialized = errors.New("log object is not initialized yet")
	ErrUnknownLogLevel   = errors.New("unknown log level, use one of: error, warn, info, debug")
	globalLogLevel       = LOG_LEVEL_INFO
)

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// LoggerConfig selects where MetricsLogger writes. With an empty Dir the log
// goes to stderr only.
type LoggerConfig struct {
	Dir       string
	FileName  string
	MaxSizeMB int
	Console   bool
}

type MetricsLogger struct {
	mu                sync.RWMutex
	logBuffer         chan LeveledLogger
	rotator           *lumberjack.Logger
	wg                *sync.WaitGroup
	loggerInitialized bool
	zapLogger         *zap.Logger
}

type LeveledLogger struct {
	level  int
	logMsg string
}

func (m *MetricsLogger) Init(cfg LoggerConfig) error {
	var writers []zapcore.WriteSyncer

	if cfg.Dir != "" {
		if err := CheckAndCreateFolder(cfg.Dir); err != nil {
			return err
		}
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 64
		}
		m.rotator = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, cfg.FileName),
			MaxSize:    maxSize, // megabytes
			MaxBackups: 5,
			MaxAge:     7,    // days
			Compress:   true, // compress the rotated files
		}
		writers = append(writers, zapcore.AddSync(m.rotator))
	}
	if cfg.Dir == "" || cfg.Console {
		writers = append(writers, zapcore.Lock(os.Stderr))
	}

	m.zapLoggerInit(zapcore.NewMultiWriteSyncer(writers...))

	m.wg = new(sync.WaitGroup)
	m.logBuffer = make(chan LeveledLogger, LOG_BUFFER_SIZE)

	m.wg.Add(1)
	go m.logWritter()

	m.mu.Lock()
	m.loggerInitialized = true
	m.mu.Unlock()
	return nil
}

func (m *MetricsLogger) zapLoggerInit(writer zapcore.WriteSyncer) {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), writer, GlobalLogLevelSetter())
	m.zapLogger = zap.New(core)
}

// Zap exposes the underlying logger for packages that log with fields.
// It never returns nil.
func (m *MetricsLogger) Zap() *zap.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.loggerInitialized {
		return zap.NewNop()
	}
	return m.zapLogger
}

func GlobalLogLevelSetter() zapcore.Level {
	switch globalLogLevel {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLogLevel maps a config string onto a LOG_LEVEL_* value.
func ParseLogLevel(level string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return LOG_LEVEL_ERROR, nil
	case "warn", "warning":
		return LOG_LEVEL_WARN, nil
	case "", "info":
		return LOG_LEVEL_INFO, nil
	case "debug":
		return LOG_LEVEL_DEBUG, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLogLevel, level)
}

func (m *MetricsLogger) logWritter() {
	for logdata := range m.logBuffer {
		switch logdata.level {
		case LOG_LEVEL_ERROR:
			m.zapLogger.Error(logdata.logMsg)
		case LOG_LEVEL_WARN:
			m.zapLogger.Warn(logdata.logMsg)
		case LOG_LEVEL_INFO:
			m.zapLogger.Info(logdata.logMsg)
		case LOG_LEVEL_DEBUG:
			m.zapLogger.Debug(logdata.logMsg)
		}
	}
	m.wg.Done()
}

// LogEvent queues a message. The first argument may be a LOG_LEVEL_*
// value; otherwise the message is logged at info.
func (m *MetricsLogger) LogEvent(v ...interface{}) error {
	var msg string
	level := LOG_LEVEL_INFO

	if len(v) == 1 {
		msg = fmt.Sprint(v[0])
	} else if len(v) > 1 {
		if l, ok := v[0].(int); ok && l >= LOG_LEVEL_ERROR && l <= LOG_LEVEL_DEBUG {
			level = l
			msg = fmt.Sprintln(v[1:]...)
		} else {
			msg = fmt.Sprintln(v...)
		}
		msg = strings.TrimSuffix(msg, "\n")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.loggerInitialized {
		return ErrLogNotInitialized
	}
	m.logBuffer <- LeveledLogger{level, msg}
	return nil
}

// DeInit drains queued messages and closes the log file.
func (m *MetricsLogger) DeInit() {
	m.mu.Lock()
	if !m.loggerInitialized {
		m.mu.Unlock()
		return
	}
	m.loggerInitialized = false
	close(m.logBuffer)
	m.mu.Unlock()

	m.wg.Wait()
	_ = m.zapLogger.Sync()

	if m.rotator != nil {
		m.rotator.Close()
	}
}

func SetCommonLoggerAttributes(GlobalLogLevel int) {
	globalLogLevel = GlobalLogLevel
}

func CheckAndCreateFolder(FolderNameWithPath string) error {
	_, err := os.Stat(FolderNameWithPath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(FolderNameWithPath, 0755); err != nil {
			return fmt.Errorf("failed to create folder %q: %w", FolderNameWithPath, err)
		}
		return nil
	}
	return err
}
