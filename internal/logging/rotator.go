package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LogRotator shifts a log file into numbered backups (app.log.1, app.log.2, ...)
// once it grows past a size threshold.
type LogRotator struct {
	basePath   string
	maxBytes   int64
	maxBackups int
}

func NewLogRotator(basePath string, maxSizeMB, maxBackups int) *LogRotator {
	return &LogRotator{
		basePath:   basePath,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
	}
}

// ShouldRotate reports whether a file of currentSize has reached the threshold.
// A non-positive threshold disables rotation.
func (r *LogRotator) ShouldRotate(currentSize int64) bool {
	return r.maxBytes > 0 && currentSize >= r.maxBytes
}

func (r *LogRotator) backup(n int) string {
	return fmt.Sprintf("%s.%d", r.basePath, n)
}

// Rotate drops the oldest backup, shifts the rest up by one and moves the
// live file to .1. With zero backups the live file is simply removed.
func (r *LogRotator) Rotate() error {
	if r.maxBackups <= 0 {
		return removeIfExists(r.basePath)
	}

	if err := removeIfExists(r.backup(r.maxBackups)); err != nil {
		return fmt.Errorf("rotate: drop oldest: %w", err)
	}
	for i := r.maxBackups - 1; i >= 1; i-- {
		if err := renameIfExists(r.backup(i), r.backup(i+1)); err != nil {
			return fmt.Errorf("rotate: shift backup %d: %w", i, err)
		}
	}
	if err := renameIfExists(r.basePath, r.backup(1)); err != nil {
		return fmt.Errorf("rotate: move live file: %w", err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func renameIfExists(from, to string) error {
	if err := os.Rename(from, to); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
