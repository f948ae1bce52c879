package logging

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SourceLocation is the call site of a log statement.
type SourceLocation struct {
	File     string
	Line     int
	Function string
}

// LogEntry is one structured log record before formatting.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Component string
	Source    SourceLocation
	Message   string
	Context   map[string]interface{}
}

// LogFormatter renders entries as single text lines:
//
//	[2006-01-02 15:04:05] LEVEL [component] file.go:42 pkg.Func message key=value
//
// Context keys are sorted so identical entries always produce identical lines.
type LogFormatter struct {
	TimeLayout string
}

func NewLogFormatter() *LogFormatter {
	return &LogFormatter{TimeLayout: "2006-01-02 15:04:05"}
}

func (f *LogFormatter) Format(entry LogEntry) string {
	var sb strings.Builder

	sb.WriteByte('[')
	sb.WriteString(entry.Timestamp.Format(f.TimeLayout))
	sb.WriteString("] ")
	sb.WriteString(entry.Level.String())
	sb.WriteString(" [")
	sb.WriteString(entry.Component)
	sb.WriteString("] ")
	sb.WriteString(entry.Source.File)
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(entry.Source.Line))
	sb.WriteByte(' ')
	sb.WriteString(entry.Source.Function)
	sb.WriteByte(' ')
	sb.WriteString(sanitizeMessage(entry.Message))

	keys := make([]string, 0, len(entry.Context))
	for k := range entry.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte(' ')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(formatValue(entry.Context[k]))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// formatValue quotes values containing whitespace so key=value pairs stay parseable.
func formatValue(v interface{}) string {
	s := sanitizeMessage(fmt.Sprintf("%v", v))
	if strings.ContainsAny(s, " \t\n=\"") {
		return strconv.Quote(s)
	}
	return s
}

// sanitizeMessage replaces control characters other than \n and \t so user
// supplied text cannot forge log lines.
func sanitizeMessage(msg string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, msg)
}
