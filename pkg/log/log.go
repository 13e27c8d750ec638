package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = map[Level]string{
	TraceLevel: "TRACE",
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	FatalLevel: "FATAL",
}

var levelColors = map[Level]string{
	TraceLevel: "\033[37m",
	DebugLevel: "\033[36m",
	InfoLevel:  "\033[32m",
	WarnLevel:  "\033[33m",
	ErrorLevel: "\033[31m",
	FatalLevel: "\033[35m",
}

type logger struct {
	mu               sync.Mutex
	level            Level
	file             *os.File
	filePath         string
	fileDay          int
	maxDays          int64
	disableColor     bool
	disableTimestamp bool
}

var std = &logger{level: InfoLevel, disableColor: true}

func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// InitLog configures the global logger. logWay is "console" or "file".
func InitLog(logWay string, logFile string, logLevel string, maxDays int64, disableColor bool, disableTimestamp bool) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = ParseLevel(logLevel)
	std.maxDays = maxDays
	std.disableColor = disableColor
	std.disableTimestamp = disableTimestamp
	if logWay == "file" && logFile != "" {
		std.filePath = logFile
		std.disableColor = true
		std.openFileLocked(time.Now())
	}
}

func (l *logger) openFileLocked(now time.Time) {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
	if err := os.MkdirAll(filepath.Dir(l.filePath), 0700); err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		return
	}
	name := fmt.Sprintf("%v.%v", l.filePath, now.Format("2006-01-02"))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		return
	}
	l.file = f
	l.fileDay = now.YearDay()
	l.pruneLocked(now)
}

func (l *logger) pruneLocked(now time.Time) {
	if l.maxDays <= 0 {
		return
	}
	matches, err := filepath.Glob(l.filePath + ".*")
	if err != nil {
		return
	}
	deadline := now.AddDate(0, 0, -int(l.maxDays))
	for _, m := range matches {
		day, err := time.Parse("2006-01-02", strings.TrimPrefix(m, l.filePath+"."))
		if err != nil {
			continue
		}
		if day.Before(deadline) {
			_ = os.Remove(m)
		}
	}
}

func (l *logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	now := time.Now()
	var sb strings.Builder
	if !l.disableTimestamp {
		sb.WriteString(now.Format("2006-01-02 15:04:05"))
		sb.WriteByte(' ')
	}
	if l.disableColor {
		sb.WriteString(fmt.Sprintf("[%v] ", levelNames[level]))
	} else {
		sb.WriteString(fmt.Sprintf("%v[%v]\033[0m ", levelColors[level], levelNames[level]))
	}
	sb.WriteString(fmt.Sprintf(format, args...))
	sb.WriteByte('\n')
	if l.file != nil {
		if now.YearDay() != l.fileDay {
			l.openFileLocked(now)
		}
		_, _ = l.file.WriteString(sb.String())
	} else {
		_, _ = os.Stdout.WriteString(sb.String())
	}
	if level == FatalLevel {
		os.Exit(1)
	}
}

func Trace(format string, args ...interface{}) { std.log(TraceLevel, format, args...) }
func Debug(format string, args ...interface{}) { std.log(DebugLevel, format, args...) }
func Info(format string, args ...interface{})  { std.log(InfoLevel, format, args...) }
func Warn(format string, args ...interface{})  { std.log(WarnLevel, format, args...) }
func Error(format string, args ...interface{}) { std.log(ErrorLevel, format, args...) }
func Fatal(format string, args ...interface{}) { std.log(FatalLevel, format, args...) }
