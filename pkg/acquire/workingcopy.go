package acquire

import (
	"os"
	"path/filepath"
)

// WorkingCopy describes the local source tree: where it lives, whether it
// exists, whether it carries revision history, and whether it looks valid
// (at least one known entry-point script present).
type WorkingCopy struct {
	Root string

	// entryPoints are the relative entry-point paths used to probe validity.
	entryPoints []string
}

// NewWorkingCopy creates a WorkingCopy rooted at root, validated against the
// given platform entry-point map.
func NewWorkingCopy(root string, entryPoints map[string]string) *WorkingCopy {
	paths := make([]string, 0, len(entryPoints))
	for _, p := range entryPoints {
		paths = append(paths, p)
	}
	return &WorkingCopy{Root: root, entryPoints: paths}
}

// Exists reports whether the working copy directory is present.
func (w *WorkingCopy) Exists() bool {
	info, err := os.Stat(w.Root)
	return err == nil && info.IsDir()
}

// HasHistory reports whether the working copy retains revision history.
func (w *WorkingCopy) HasHistory() bool {
	_, err := os.Stat(filepath.Join(w.Root, ".git"))
	return err == nil
}

// HasEntryPoint reports whether any known platform entry-point script is
// present under the root.
func (w *WorkingCopy) HasEntryPoint() bool {
	for _, rel := range w.entryPoints {
		if _, err := os.Stat(filepath.Join(w.Root, rel)); err == nil {
			return true
		}
	}
	return false
}

// SideStorageRoot is the holding area for local modifications displaced by
// an update, a sibling of the working copy.
func (w *WorkingCopy) SideStorageRoot() string {
	return w.Root + ".backup"
}
