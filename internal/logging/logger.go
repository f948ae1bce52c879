package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel converts a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	for level, name := range levelNames {
		if strings.EqualFold(s, name) {
			return level
		}
	}
	if strings.EqualFold(s, "warning") {
		return WARN
	}
	return INFO
}

// Logger writes formatted entries for one component. Loggers derived with
// Named, WithContext or WithFields share the parent's writer and lock.
type Logger struct {
	level     Level
	component string
	output    io.Writer
	mu        *sync.Mutex
	fields    map[string]interface{}
	formatter *LogFormatter
	now       func() time.Time
}

// NewLogger creates a logger for a component. A nil output means stdout.
func NewLogger(component string, level Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		level:     level,
		component: component,
		output:    output,
		mu:        &sync.Mutex{},
		formatter: NewLogFormatter(),
		now:       time.Now,
	}
}

// Named returns a logger for another component sharing the same output.
func (l *Logger) Named(component string) *Logger {
	c := l.clone(nil)
	c.component = component
	return c
}

// Level returns the minimum level this logger emits.
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// WithContext returns a child logger carrying one extra field.
func (l *Logger) WithContext(key string, value interface{}) *Logger {
	return l.clone(map[string]interface{}{key: value})
}

// WithFields returns a child logger carrying the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.clone(fields)
}

func (l *Logger) clone(extra map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	c := *l
	c.fields = merged
	return &c
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	// 2 frames: log() and Debug/Info/Warn/Error
	src := SourceLocation{File: "unknown", Function: "unknown"}
	if pc, file, line, ok := runtime.Caller(2); ok {
		src.File = filepath.Base(file)
		src.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			src.Function = filepath.Base(fn.Name())
		}
	}

	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	line := l.formatter.Format(LogEntry{
		Timestamp: l.now(),
		Level:     level,
		Component: l.component,
		Source:    src,
		Message:   msg,
		Context:   l.fields,
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.output, line)
}
