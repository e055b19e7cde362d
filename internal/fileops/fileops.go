// Package fileops stages and runs the pipeline's file work: copies, moves,
// and deletes, executed with bounded concurrency and per-item results so
// one bad file never aborts its batch.
//
// The package has three layers. The helpers (CopyFile, MoveFile,
// RemoveFile) do single operations with wrapped errors. Executor runs a
// batch of tasks in parallel under a concurrency limit with cooperative
// cancellation. Limiter gates whole operations above that, one slot per
// running operation, so two rebuilds cannot churn the same disk at once.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyFile copies src to dest, creating dest's parent directory first. An
// existing dest is overwritten.
func CopyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return nil
}

// MoveFile renames src to dest, creating dest's parent directory first.
// When the rename fails, as it does across filesystems, it falls back to
// copy then delete.
func MoveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := CopyFile(src, dest); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("move %s: remove source: %w", filepath.Base(src), err)
	}
	return nil
}

// RemoveFile deletes path. A path that does not exist is not an error, so
// stale-file cleanup stays idempotent.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
	}
	return nil
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
