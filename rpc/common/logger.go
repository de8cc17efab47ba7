package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// logLevels maps the accepted --log-level values to dragonboat levels
var logLevels = map[string]logger.LogLevel{
	"debug":   logger.DEBUG,
	"info":    logger.INFO,
	"warn":    logger.WARNING,
	"warning": logger.WARNING,
	"error":   logger.ERROR,
}

var levelTags = map[logger.LogLevel]string{
	logger.DEBUG:   "DBG",
	logger.INFO:    "INF",
	logger.WARNING: "WRN",
	logger.ERROR:   "ERR",
}

// netcomLogger writes "<time> [LVL] <name>: <message>" lines.
// Logs go to stderr so command output (csv, metrics) stays parseable.
type netcomLogger struct {
	name  string
	level logger.LogLevel
	out   *log.Logger
}

func (l *netcomLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *netcomLogger) Debugf(format string, args ...interface{}) {
	l.printf(logger.DEBUG, format, args...)
}

func (l *netcomLogger) Infof(format string, args ...interface{}) {
	l.printf(logger.INFO, format, args...)
}

func (l *netcomLogger) Warningf(format string, args ...interface{}) {
	l.printf(logger.WARNING, format, args...)
}

func (l *netcomLogger) Errorf(format string, args ...interface{}) {
	l.printf(logger.ERROR, format, args...)
}

func (l *netcomLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("[PNC] %s: %s", l.name, msg)
	panic(msg)
}

func (l *netcomLogger) printf(level logger.LogLevel, format string, args ...interface{}) {
	if l.level < level {
		return
	}
	l.out.Printf("[%s] %s: %s", levelTags[level], l.name, fmt.Sprintf(format, args...))
}

// NewLogger returns a logger named name that writes to w at INFO level
func NewLogger(name string, w io.Writer) logger.ILogger {
	return &netcomLogger{
		name:  name,
		level: logger.INFO,
		out:   log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
}

// CreateLogger is the dragonboat logger.Factory used by InitLoggers
func CreateLogger(pkgName string) logger.ILogger {
	return NewLogger(pkgName, os.Stderr)
}

// ParseLogLevel converts a level name (case-insensitive) to a logger.LogLevel.
// An empty string means info.
func ParseLogLevel(level string) (logger.LogLevel, error) {
	key := strings.ToLower(strings.TrimSpace(level))
	if key == "" {
		return logger.INFO, nil
	}
	if lvl, ok := logLevels[key]; ok {
		return lvl, nil
	}

	valid := make([]string, 0, len(logLevels))
	for name := range logLevels {
		valid = append(valid, name)
	}
	sort.Strings(valid)
	return logger.INFO, fmt.Errorf("invalid log level %q: must be one of %s", level, strings.Join(valid, ", "))
}

// LoggerNames lists the loggers used throughout netcom
var LoggerNames = []string{"client", "pool", "transport", "server", "cli"}

// InitLoggers installs CreateLogger as the logger factory and sets the level
// of every netcom logger
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
