// Package logger provides the structured, level-gated logging facility
// used throughout kvfsd: a log/slog.Logger wrapped with a custom
// "severity" field and JSON/text output, rotated to disk via
// gopkg.in/natefinch/lumberjack.v2 when a file path is configured.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kvsfs/kvsfs-core/cfg"
)

// Level vars mirror the severities package cfg accepts in
// LoggingConfig.Severity.
var (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

var severityLevels = map[string]slog.Level{
	cfg.TRACE:   LevelTrace,
	cfg.DEBUG:   LevelDebug,
	cfg.INFO:    LevelInfo,
	cfg.WARNING: LevelWarn,
	cfg.ERROR:   LevelError,
	cfg.OFF:     LevelOff,
}

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
	LevelOff:   "OFF",
}

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, new(slog.LevelVar), ""))

type loggerFactory struct {
	format string
}

var defaultLoggerFactory = &loggerFactory{format: "text"}

// severityReplaceAttr renders the level attribute as "severity" with the
// domain's own level names, rather than slog's built-in DEBUG/INFO/WARN/ERROR.
func severityReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		name, ok := levelNames[level]
		if !ok {
			name = level.String()
		}
		a.Key = "severity"
		a.Value = slog.StringValue(name)
	}
	return a
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: severityReplaceAttr}
	if prefix != "" {
		w = &prefixWriter{w: w, prefix: prefix}
	}
	if strings.EqualFold(f.format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type prefixWriter struct {
	w      io.Writer
	prefix string
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(append([]byte(p.prefix), b...))
	if n > len(p.prefix) {
		n -= len(p.prefix)
	}
	return n, err
}

func setLoggingLevel(severity string, programLevel *slog.LevelVar) {
	level, ok := severityLevels[strings.ToUpper(severity)]
	if !ok {
		level = LevelInfo
	}
	programLevel.Set(level)
}

// Init reconfigures the package-level default logger per c, rotating to
// disk through lumberjack when c.FilePath is set.
func Init(c cfg.LoggingConfig) {
	var w io.Writer = os.Stderr
	if c.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.LogRotate.MaxFileSizeMb,
			MaxBackups: c.LogRotate.BackupFileCount,
			Compress:   c.LogRotate.Compress,
		}
	}

	defaultLoggerFactory.format = c.Format

	programLevel := new(slog.LevelVar)
	setLoggingLevel(c.Severity, programLevel)

	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
}

func Tracef(format string, args ...interface{}) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...interface{}) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...interface{}) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}
