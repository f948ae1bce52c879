package logging

import (
	"bytes"
	"io"
)

// MultiWriter routes formatted lines between the console and a log file.
// With a file configured, DEBUG and INFO go to the file only and WARN and
// ERROR go to both. Without a file everything goes to the console.
type MultiWriter struct {
	console io.Writer
	file    io.Writer
}

func NewMultiWriter(console, file io.Writer) *MultiWriter {
	return &MultiWriter{console: console, file: file}
}

func (m *MultiWriter) Write(p []byte) (int, error) {
	if m.file == nil {
		return m.console.Write(p)
	}

	n, fileErr := m.file.Write(p)
	switch levelOf(p) {
	case WARN, ERROR:
		if _, err := m.console.Write(p); err != nil && fileErr == nil {
			return n, err
		}
	}
	return n, fileErr
}

// levelOf reads the level token that follows the timestamp bracket.
func levelOf(p []byte) Level {
	i := bytes.Index(p, []byte("] "))
	if i < 0 {
		return INFO
	}
	rest := p[i+2:]
	if j := bytes.IndexByte(rest, ' '); j >= 0 {
		rest = rest[:j]
	}
	return ParseLevel(string(rest))
}
