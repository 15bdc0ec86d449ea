package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	MaxSize    = 10 * 1024 * 1024 // 10MB
	MaxBackups = 7
)

// Log levels
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[int]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var levelFromString = map[string]int{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// Global logger instance
var globalLogger *Logger

// Logger is a rotating file logger with level support. It always mirrors
// to stderr in addition to its file, matching boss-engine's dual-writer
// behavior so a foreground run and its log file never disagree.
type Logger struct {
	path  string
	file  *os.File
	size  int64
	level int
	mu    sync.Mutex
}

// New opens (creating parent directories as needed) the rotating log file
// at path and installs it as the package-level global logger.
func New(path string) (*Logger, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	l := &Logger{path: path, level: LevelInfo}
	if err := l.openFile(); err != nil {
		return nil, err
	}

	globalLogger = l
	return l, nil
}

// SetLevel sets the log level from string (debug, info, warn, error)
func (l *Logger) SetLevel(levelStr string) {
	if level, ok := levelFromString[levelStr]; ok {
		l.level = level
	}
}

// SetGlobalLevel sets the global logger level
func SetGlobalLevel(levelStr string) {
	if globalLogger != nil {
		globalLogger.SetLevel(levelStr)
	}
}

// Debug logs at debug level
func Debug(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelDebug, format, args...)
	}
}

// Info logs at info level
func Info(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelInfo, format, args...)
	}
}

// Warn logs at warn level
func Warn(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelWarn, format, args...)
	}
}

// Error logs at error level
func Error(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelError, format, args...)
	}
}

// Tagged logs a debug-level line under a named subsystem tag, e.g. the
// adapter subprocess's stderr drain ("acp_stderr").
func Tagged(tag, format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.log(LevelDebug, "["+tag+"] "+format, args...)
	}
}

func (l *Logger) log(level int, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("[%s] [%s] %s\n", timestamp, levelNames[level], msg)

	l.Write([]byte(line))
}

func (l *Logger) Write(p []byte) (n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size+int64(len(p)) > MaxSize {
		l.rotate()
	}

	n, err = l.file.Write(p)
	l.size += int64(n)
	os.Stderr.Write(p)
	return
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) openFile() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	info, _ := f.Stat()
	l.file = f
	l.size = info.Size()
	return nil
}

// rotate shifts path, path.1, ... path.(MaxBackups-1) down one slot and
// reopens path fresh, dropping anything past MaxBackups.
func (l *Logger) rotate() {
	l.file.Close()

	for i := MaxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", l.path, i)
		dst := fmt.Sprintf("%s.%d", l.path, i+1)
		if _, err := os.Stat(src); err == nil {
			os.Rename(src, dst)
		}
	}
	os.Rename(l.path, l.path+".1")

	l.openFile()
}

// Writer returns an io.Writer for use with log.SetOutput. Unlike Write,
// it does not duplicate onto stderr itself — callers that want both
// streams should rely on Write's own stderr mirroring instead.
func (l *Logger) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.size+int64(len(p)) > MaxSize {
			l.rotate()
		}
		n, err := l.file.Write(p)
		l.size += int64(n)
		return n, err
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
