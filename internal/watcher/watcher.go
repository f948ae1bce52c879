// Package watcher imports report snapshot files dropped into configured
// folders and keeps the report store in step with them.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"reportview/internal/logging"
	"reportview/internal/report"
)

// Store receives imported snapshots
type Store interface {
	SaveReport(ctx context.Context, rec *report.Record) error
	DeleteReport(ctx context.Context, id string) error
}

// Watcher monitors snapshot folders for *.json changes
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	store     Store
	maxSize   int64
	logger    *logging.Logger

	mu      sync.Mutex
	folders []string
	ids     map[string]string // file path -> report ID
}

// NewWatcher creates a folder watcher. maxSizeMB <= 0 means 20MB.
func NewWatcher(store Store, maxSizeMB int, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithContext("error", err.Error()).Error("failed to create fsnotify watcher")
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}

	return &Watcher{
		fsWatcher: fsw,
		store:     store,
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		logger:    logger,
		ids:       make(map[string]string),
	}, nil
}

// Start imports the snapshots already present in folders, then watches
// them until ctx is done. Invalid folders are skipped with a warning.
func (w *Watcher) Start(ctx context.Context, folders []string) error {
	w.logger.Debug("starting snapshot watcher")

	for _, folder := range folders {
		if err := w.AddFolder(ctx, folder); err != nil {
			w.logger.WithFields(map[string]interface{}{
				"folder_path": folder,
				"error":       err.Error(),
			}).Warn("skipping snapshot folder")
		}
	}

	go w.eventLoop(ctx)

	w.logger.WithContext("folder_count", len(w.Folders())).Info("snapshot watcher started")
	return nil
}

// AddFolder validates and watches path and imports its existing snapshots.
func (w *Watcher) AddFolder(ctx context.Context, path string) error {
	logger := w.logger.WithContext("folder_path", path)

	if err := validatePath(path); err != nil {
		return err
	}
	if err := w.fsWatcher.Add(path); err != nil {
		return fmt.Errorf("failed to add folder to watcher: %w", err)
	}

	w.mu.Lock()
	w.folders = append(w.folders, path)
	w.mu.Unlock()

	imported, err := w.scan(ctx, path)
	if err != nil {
		logger.WithContext("error", err.Error()).Warn("initial scan incomplete")
	}
	logger.WithContext("imported", imported).Debug("watching folder")
	return nil
}

// Folders lists the folders being watched
func (w *Watcher) Folders() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.folders...)
}

// Close stops watching. The event loop also stops when its context ends.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func (w *Watcher) scan(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() || !w.shouldProcess(path) {
			continue
		}
		if err := w.ImportFile(ctx, path); err == nil {
			n++
		}
	}
	return n, nil
}

// eventLoop processes filesystem events
func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.fsWatcher.Close()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.WithContext("error", err.Error()).Error("watcher error")
		}
	}
}

// handleEvent maps create/write to an import and remove/rename to a delete
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !w.shouldProcess(event.Name) {
		return
	}
	logger := w.logger.WithFields(map[string]interface{}{
		"file_path":  event.Name,
		"event_type": event.Op.String(),
	})

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		logger.Debug("snapshot changed")
		w.ImportFile(ctx, event.Name)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		logger.Debug("snapshot removed")
		w.RemoveFile(ctx, event.Name)
	}
}

// shouldProcess accepts .json files within the size limit. Paths that no
// longer exist pass so removals are seen.
func (w *Watcher) shouldProcess(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return os.IsNotExist(err)
	}
	if info.IsDir() {
		return false
	}
	if info.Size() > w.maxSize {
		w.logger.WithFields(map[string]interface{}{
			"file_path": path,
			"size":      info.Size(),
			"limit":     w.maxSize,
		}).Warn("snapshot exceeds size limit")
		return false
	}
	return true
}

// ImportFile parses the snapshot at path and saves it. A snapshot without
// an id gets one derived from its path, so rewriting the file updates the
// same report.
func (w *Watcher) ImportFile(ctx context.Context, path string) error {
	logger := w.logger.WithContext("file_path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithContext("error", err.Error()).Error("failed to read snapshot")
		return err
	}
	rec, err := report.ParseSnapshot(data)
	if err != nil {
		// a partially written file fails here and is retried on its next write
		logger.WithContext("error", err.Error()).Warn("invalid snapshot")
		return err
	}
	if rec.ID == "" {
		rec.ID = pathID(path)
	}

	if err := w.store.SaveReport(ctx, rec); err != nil {
		logger.WithContext("error", err.Error()).Error("failed to save snapshot")
		return err
	}

	w.mu.Lock()
	w.ids[path] = rec.ID
	w.mu.Unlock()

	logger.WithContext("report", rec.ID).Info("snapshot imported")
	return nil
}

// RemoveFile deletes the report imported from path.
func (w *Watcher) RemoveFile(ctx context.Context, path string) error {
	w.mu.Lock()
	id, ok := w.ids[path]
	delete(w.ids, path)
	w.mu.Unlock()
	if !ok {
		id = pathID(path)
	}

	logger := w.logger.WithFields(map[string]interface{}{"file_path": path, "report": id})
	if err := w.store.DeleteReport(ctx, id); err != nil {
		logger.WithContext("error", err.Error()).Error("failed to delete report")
		return err
	}
	logger.Info("report removed")
	return nil
}

func pathID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(path))).String()
}

// validatePath blocks system directories
func validatePath(path string) error {
	systemDirs := []string{"/etc", "/System", "/Windows", "/sys", "/proc", "C:\\Windows", "C:\\System"}
	for _, sysDir := range systemDirs {
		if strings.HasPrefix(path, sysDir) {
			return fmt.Errorf("cannot watch system directory: %s", path)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}
