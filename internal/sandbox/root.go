package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zpdzap/sandshell/internal/jobs"
)

// Prepare makes sure path holds the sandbox skeleton. It is idempotent: a
// root whose recorded state matches the skeleton and whose directories are
// all present is returned without touching the filesystem. Existing
// directories are accepted; anything else in the way is an error.
func Prepare(path string) (*Root, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sandbox root: %w", jobs.ErrInvalidArgument)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}

	state, err := loadState(abs)
	if err != nil {
		// A corrupt state file only costs us the fast path.
		state = nil
	}
	if state.covers() && skeletonPresent(abs) {
		return &Root{Path: abs, Prepared: true, State: state}, nil
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating sandbox root: %w", err)
	}
	for _, d := range skeleton {
		dir := filepath.Join(abs, d.path)
		if err := os.MkdirAll(dir, d.mode.Perm()); err != nil {
			return nil, fmt.Errorf("creating %s: %w", d.path, err)
		}
		// MkdirAll is subject to the umask and ignores the sticky bit.
		if err := os.Chmod(dir, d.mode); err != nil {
			return nil, fmt.Errorf("setting mode on %s: %w", d.path, err)
		}
	}

	if state == nil {
		state = &State{}
	}
	state.PreparedAt = time.Now()
	state.Skeleton = SkeletonDirs()
	if err := saveState(abs, state); err != nil {
		return nil, fmt.Errorf("recording root state: %w", err)
	}
	return &Root{Path: abs, Prepared: true, State: state}, nil
}

func skeletonPresent(root string) bool {
	for _, d := range skeleton {
		fi, err := os.Stat(filepath.Join(root, d.path))
		if err != nil || !fi.IsDir() || fi.Mode()&(os.ModePerm|os.ModeSticky) != d.mode {
			return false
		}
	}
	return true
}
