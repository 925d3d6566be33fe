package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	maxRemoveAttempts = 5
	removeBackoff     = 50 * time.Millisecond
)

// Workspace is a scratch directory owned by a single run. The directory is
// created on first use and removed by Close. Sub-directories are addressed
// by fixed names, so concurrent users never collide as long as they stay
// inside their own partition.
type Workspace struct {
	base   string
	logger *zap.Logger

	once    sync.Once
	root    string
	initErr error
}

// New prepares a workspace under base (the OS temp dir when empty).
// Nothing is created on disk yet.
func New(base string, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{base: base, logger: logger}
}

func (w *Workspace) init() error {
	w.once.Do(func() {
		if w.base != "" {
			if err := os.MkdirAll(w.base, 0o755); err != nil {
				w.initErr = err
				return
			}
		}
		root, err := os.MkdirTemp(w.base, "tsbump-")
		if err != nil {
			w.initErr = fmt.Errorf("creating scratch workspace: %w", err)
			return
		}
		w.root = root
		w.logger.Debug("scratch workspace created", zap.String("path", root))
	})
	return w.initErr
}

// Root returns the workspace root, creating it if needed.
func (w *Workspace) Root() (string, error) {
	if err := w.init(); err != nil {
		return "", err
	}
	return w.root, nil
}

// Dir returns the sub-directory named by parts, creating it if needed.
func (w *Workspace) Dir(parts ...string) (string, error) {
	root, err := w.Root()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(append([]string{root}, parts...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Close removes the workspace recursively, retrying a few times since
// package managers occasionally hold files open briefly after exiting.
// Closing a workspace that was never used is a no-op.
func (w *Workspace) Close() error {
	if w.root == "" {
		return nil
	}
	var err error
	for attempt := 1; attempt <= maxRemoveAttempts; attempt++ {
		if err = os.RemoveAll(w.root); err == nil {
			w.logger.Debug("scratch workspace removed", zap.String("path", w.root))
			return nil
		}
		w.logger.Debug("retrying scratch removal", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(removeBackoff * time.Duration(attempt))
	}
	return fmt.Errorf("removing scratch workspace %s: %w", w.root, err)
}
