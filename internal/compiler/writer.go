package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ArtifactWriter persists rendered artifacts. Paths are relative to the
// project root. Writing replaces any previous content at the same path.
type ArtifactWriter interface {
	Write(ctx context.Context, path string, content []byte) error
}

// FSWriter writes artifacts under Root using a temp file and rename so a
// reader never observes a partial file.
type FSWriter struct {
	Root string
}

// NewFSWriter creates a writer rooted at root.
func NewFSWriter(root string) *FSWriter {
	return &FSWriter{Root: root}
}

// Write atomically replaces path with content.
func (w *FSWriter) Write(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(w.Root, path)
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(full)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath) // Clean up
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// MemoryWriter keeps artifacts in memory. Preview and tests use it.
type MemoryWriter struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryWriter creates an empty in-memory writer.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{files: make(map[string][]byte)}
}

func (w *MemoryWriter) Write(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[filepath.ToSlash(path)] = append([]byte(nil), content...)
	return nil
}

// Get returns the content written to path.
func (w *MemoryWriter) Get(path string) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.files[filepath.ToSlash(path)]
	return c, ok
}

// Paths returns every written path, sorted.
func (w *MemoryWriter) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
