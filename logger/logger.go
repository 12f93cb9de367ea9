// Package logger provides the structured logging used across
// pagecachectl: a package-level logrus instance per severity, a
// timestamped formatter, and a small adapter that lets a
// pagecache.PageCacheController forward its free-form debug callback into
// this logger without the core package importing logrus itself.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// Log is the general-purpose logger, level-gated by Config.Level.
	Log *logrus.Logger
	// InfoLog carries info-and-above messages, defaulting to stdout.
	InfoLog *logrus.Logger
	// ErrorLog carries warnings and errors, defaulting to stderr.
	ErrorLog *logrus.Logger
)

// Config selects the log level and optional file sinks (in addition to
// the default stdout/stderr streams).
type Config struct {
	Level        string
	InfoLogPath  string
	ErrorLogPath string
}

// callerFormatter stamps every entry with a wall-clock time and the first
// call frame outside logger.go and logrus itself.
type callerFormatter struct{}

func (callerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := entry.Time.Format("15:04:05 2006-01-02")
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	return []byte(fmt.Sprintf("[%s] [%s] (%s) %s\n", ts, level, caller(), entry.Message)), nil
}

func caller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "sirupsen/logrus") || strings.Contains(file, "logger/logger.go") {
			continue
		}
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), runtime.FuncForPC(pc).Name(), line)
	}
	return "unknown:unknown:0"
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// Init wires Log/InfoLog/ErrorLog according to cfg. Safe to call more than
// once (e.g. after reloading configuration).
func Init(cfg Config) error {
	formatter := callerFormatter{}
	level := parseLevel(cfg.Level)

	InfoLog = logrus.New()
	InfoLog.SetFormatter(formatter)
	InfoLog.SetLevel(level)
	InfoLog.SetOutput(sinkOrDefault(cfg.InfoLogPath, os.Stdout))

	ErrorLog = logrus.New()
	ErrorLog.SetFormatter(formatter)
	ErrorLog.SetLevel(level)
	ErrorLog.SetOutput(sinkOrDefault(cfg.ErrorLogPath, os.Stderr))

	Log = logrus.New()
	Log.SetFormatter(formatter)
	Log.SetLevel(level)
	Log.SetOutput(InfoLog.Out)
	return nil
}

func sinkOrDefault(path string, fallback *os.File) io.Writer {
	if path == "" {
		return fallback
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fallback
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fallback
	}
	return io.MultiWriter(fallback, f)
}

func init() {
	// Usable before Init is called, e.g. from package-level test helpers.
	_ = Init(Config{Level: "info"})
}

func Debug(args ...interface{}) { Log.Debug(args...) }
func Debugf(format string, args ...interface{}) { Log.Debugf(format, args...) }
func Info(args ...interface{})  { InfoLog.Info(args...) }
func Infof(format string, args ...interface{}) { InfoLog.Infof(format, args...) }
func Warn(args ...interface{})  { ErrorLog.Warn(args...) }
func Error(args ...interface{}) { ErrorLog.Error(args...) }
func Errorf(format string, args ...interface{}) { ErrorLog.Errorf(format, args...) }
