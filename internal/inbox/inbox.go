// Package inbox ingests nota images dropped into a watched folder. Each file
// is handled once and then moved to processed/ or failed/.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gmsas95/notakopi/internal/config"
	"go.uber.org/zap"
)

const DefaultDebounce = 750 * time.Millisecond

// allowedExts are the file types picked up from the inbox.
var allowedExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"pdf":  {},
	"txt":  {},
}

// Handler consumes one nota file. A nil error moves the file to processed/.
type Handler func(ctx context.Context, path string, data []byte) error

type Inbox struct {
	dir          string
	processedDir string
	failedDir    string
	debounce     time.Duration
	handle       Handler
	logger       *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an inbox over cfg's directories
func New(cfg config.InboxConfig, handle Handler, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	processed := cfg.ProcessedDir
	if processed == "" {
		processed = filepath.Join(cfg.Dir, "processed")
	}
	failed := cfg.FailedDir
	if failed == "" {
		failed = filepath.Join(cfg.Dir, "failed")
	}
	return &Inbox{
		dir:          cfg.Dir,
		processedDir: processed,
		failedDir:    failed,
		debounce:     DefaultDebounce,
		handle:       handle,
		logger:       logger,
		inflight:     make(map[string]struct{}),
	}
}

// SetDebounce changes how long the watcher waits for writes to settle.
func (in *Inbox) SetDebounce(d time.Duration) {
	in.debounce = d
}

// Dir returns the watched directory
func (in *Inbox) Dir() string {
	return in.dir
}

// EnsureDirs creates the inbox, processed and failed directories.
func (in *Inbox) EnsureDirs() error {
	for _, dir := range []string{in.dir, in.processedDir, in.failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Sweep handles every nota currently in the inbox. Its signature matches a
// cron job.
func (in *Inbox) Sweep(ctx context.Context) (processed, failed int, err error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, 0, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(in.dir, e.Name())
		if allowed(path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return processed, failed, ctx.Err()
		}
		ok, handled := in.processFile(ctx, path)
		if !handled {
			continue
		}
		if ok {
			processed++
		} else {
			failed++
		}
	}
	return processed, failed, nil
}

// Watch processes files as they arrive until ctx is done. Bursts of events
// for one file are coalesced by the debounce window.
func (in *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(in.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", in.dir, err)
	}
	in.logger.Info("Watching nota inbox", zap.String("dir", in.dir))

	pending := map[string]struct{}{}
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
			delete(pending, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			in.processFile(ctx, p)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !allowed(e.Name) || e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending[e.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(in.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(in.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			flush()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn("Inbox watcher error", zap.Error(err))
		}
	}
}

// processFile handles one file. handled is false when the file was already
// gone or another goroutine had it.
func (in *Inbox) processFile(ctx context.Context, path string) (ok, handled bool) {
	in.mu.Lock()
	if _, busy := in.inflight[path]; busy {
		in.mu.Unlock()
		return false, false
	}
	in.inflight[path] = struct{}{}
	in.mu.Unlock()
	defer func() {
		in.mu.Lock()
		delete(in.inflight, path)
		in.mu.Unlock()
	}()

	var data []byte
	err := checkInDir(path, in.dir)
	if err == nil {
		data, err = os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return false, false
		}
	}

	if err == nil {
		err = in.handle(ctx, path, data)
	}

	dest := in.processedDir
	if err != nil {
		dest = in.failedDir
		in.logger.Warn("Failed to process inbox nota", zap.String("file", path), zap.Error(err))
	} else {
		in.logger.Info("Processed inbox nota", zap.String("file", path))
	}

	if moveErr := move(path, dest); moveErr != nil {
		in.logger.Error("Failed to move inbox nota", zap.String("file", path), zap.Error(moveErr))
	}
	return err == nil, true
}

// move renames path into dir, prefixing a timestamp when the name is taken.
func move(path, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	name := filepath.Base(path)
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(dir, time.Now().Format("20060102-150405.000")+"-"+name)
	}
	return os.Rename(path, dest)
}

func allowed(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	_, ok := allowedExts[ext]
	return ok
}
