package savedlog

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DestinationPath returns <root>/<root folder>/<boss>/<difficulty>/<file name>.
func DestinationPath(root string, info Info) string {
	n := info.Normalize()
	return filepath.Join(root, n.RootFolder, n.BossFolder, n.DifficultyFolder, n.FileName())
}

// Export copies the source log into the export tree under root, creating
// directories as needed and replacing any file already there. The copy is
// written to a temporary sibling and renamed into place, so a reader never
// sees a half-copied log.
func Export(root string, info Info) (string, error) {
	if info.SourcePath == "" || info.FileName() == "" {
		return "", ErrNoSource
	}
	dst := DestinationPath(root, info)

	src, err := os.Open(info.SourcePath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	w, err := newAtomicWriter(dst, 0644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.abort()
		return "", fmt.Errorf("copy %s: %w", info.SourcePath, err)
	}
	if err := w.commit(); err != nil {
		return "", err
	}
	return dst, nil
}

// ExportLatest exports the snapshot held by x.
func ExportLatest(root string, x *Index) (string, error) {
	info, ok := x.TryGet()
	if !ok {
		return "", ErrNoSavedLog
	}
	return Export(root, info)
}

type atomicWriter struct {
	path     string
	tempPath string
	file     *os.File
}

func newAtomicWriter(path string, perm os.FileMode) (*atomicWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	tempPath := path + ".tmp." + randomSuffix()
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &atomicWriter{path: path, tempPath: tempPath, file: f}, nil
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *atomicWriter) commit() error {
	if err := w.file.Sync(); err != nil {
		w.abort()
		return fmt.Errorf("sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tempPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(w.tempPath, w.path); err != nil {
		os.Remove(w.tempPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (w *atomicWriter) abort() {
	w.file.Close()
	os.Remove(w.tempPath)
}

func randomSuffix() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
