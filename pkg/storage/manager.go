// Package storage computes the deterministic download tree and performs the
// file writes. The tree doubles as the crawl's resumption state: an item is
// considered downloaded exactly when a file exists at one of its candidate
// paths, so there is no separate manifest to keep in sync.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// MediaExtensions are the candidate extensions for one logical media item.
// The real extension is unknown until the response's content type is seen.
var MediaExtensions = []string{"jpg", "png", "mp4"}

// ExtensionForContentType maps a response content type to a media extension.
func ExtensionForContentType(contentType string) (string, bool) {
	switch contentType {
	case "image/jpeg":
		return "jpg", true
	case "image/png":
		return "png", true
	case "video/mp4":
		return "mp4", true
	default:
		return "", false
	}
}

// MediaTarget identifies one media item's location in the tree. Year, Month,
// and Day are already rendered (four-digit, two-digit, two-digit).
type MediaTarget struct {
	Child string
	Year  string
	Month string
	Day   string
	ID    string
}

// ReportTarget identifies one daily report's location in the tree.
type ReportTarget struct {
	Child string
	Year  string
	Month string
	Day   string
}

// Manager owns the download tree root.
type Manager struct {
	baseDir string
}

// NewManager creates a storage manager rooted at baseDir.
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the tree root.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

func (m *Manager) itemDir(child, year, month string) string {
	return filepath.Join(m.baseDir, child, year, month)
}

// MediaPath returns the path for a media target with a known extension.
func (m *Manager) MediaPath(t MediaTarget, ext string) string {
	name := fmt.Sprintf("tadpoles-%s-%s-%s-%s-%s.%s", t.Child, t.Year, t.Month, t.Day, t.ID, ext)
	return filepath.Join(m.itemDir(t.Child, t.Year, t.Month), name)
}

// MediaCandidates returns every path the media target could resolve to. The
// idempotence key is this whole set, not any single path.
func (m *Manager) MediaCandidates(t MediaTarget) []string {
	paths := make([]string, 0, len(MediaExtensions))
	for _, ext := range MediaExtensions {
		paths = append(paths, m.MediaPath(t, ext))
	}
	return paths
}

// ReportPath returns the path for a daily report.
func (m *Manager) ReportPath(t ReportTarget) string {
	name := fmt.Sprintf("tadpoles-%s-%s-%s-%s.html", t.Child, t.Year, t.Month, t.Day)
	return filepath.Join(m.itemDir(t.Child, t.Year, t.Month), name)
}

// Exists reports whether a file is present at path.
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// AnyExists returns the first existing path of the set, if any.
func (m *Manager) AnyExists(paths []string) (string, bool) {
	for _, p := range paths {
		if m.Exists(p) {
			return p, true
		}
	}
	return "", false
}

// WriteFile writes data to path atomically, creating parent directories.
func (m *Manager) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// LazyWriter streams a response body to a path, opening the destination only
// on the first chunk so a body that never yields data leaves no file behind.
// The data lands in a temporary file that is atomically renamed on Commit.
type LazyWriter struct {
	path string
	tmp  *os.File
}

// NewLazyWriter creates a writer targeting path. Nothing touches the
// filesystem until the first Write.
func (m *Manager) NewLazyWriter(path string) *LazyWriter {
	return &LazyWriter{path: path}
}

// Opened reports whether any chunk has been written yet.
func (w *LazyWriter) Opened() bool {
	return w.tmp != nil
}

func (w *LazyWriter) Write(p []byte) (int, error) {
	if w.tmp == nil {
		if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
			return 0, fmt.Errorf("failed to create parent directory: %w", err)
		}
		tmp, err := os.Create(w.path + ".tmp")
		if err != nil {
			return 0, fmt.Errorf("failed to create temporary file: %w", err)
		}
		w.tmp = tmp
	}
	return w.tmp.Write(p)
}

// Commit finalizes the write. If nothing was ever written, no file is
// created and Commit is a no-op.
func (w *LazyWriter) Commit() error {
	if w.tmp == nil {
		return nil
	}
	tmpName := w.tmp.Name()
	if err := w.tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	w.tmp = nil
	return nil
}

// Discard drops anything written so far.
func (w *LazyWriter) Discard() {
	if w.tmp == nil {
		return
	}
	name := w.tmp.Name()
	w.tmp.Close()
	os.Remove(name)
	w.tmp = nil
}
