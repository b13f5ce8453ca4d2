// filepath: internal/storage/file.go
// Package storage provides crash-safe file writes for documents, backups and archives.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/shared"
)

// SaveFile streams fileData to path through a temporary sibling file that is
// fsynced and then renamed over the destination. A crash at any point leaves
// either the old file or the new one, never a truncated mix.
func SaveFile(fileData io.Reader, path string, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("could not create directory: %w", err)
	}

	// 1. Write into a temp file in the same directory so the rename stays on one volume.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrorCreateFile, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	size, err := io.Copy(tmp, fileData)
	if err != nil {
		return 0, fmt.Errorf("could not write file: %w", err)
	}

	// 2. Flush to disk before the swap.
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("could not sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("could not close file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return 0, fmt.Errorf("could not set permissions: %w", err)
	}

	// 3. Atomic swap.
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("could not replace file: %w", err)
	}
	committed = true
	syncDir(dir)

	return size, nil
}

// WriteFile is SaveFile for an in-memory buffer.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.Open(path)
	if err == nil {
		if st, statErr := f.Stat(); statErr == nil {
			perm = st.Mode().Perm()
		}
		f.Close()
	}
	_, err = SaveFile(bytesReader(data), path, perm)
	return err
}

// CopyFile copies src to dst atomically and returns the number of bytes copied.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	st, err := in.Stat()
	if err != nil {
		return 0, err
	}
	if !st.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: %w", src, shared.ErrNotRegular)
	}
	return SaveFile(in, dst, st.Mode().Perm())
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// syncDir flushes a directory entry after a rename. Not every platform
// supports fsync on directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
