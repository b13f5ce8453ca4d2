// internal/storage/paths.go
package storage

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/shared"
)

// ResolveUnder joins a slash-separated relative path onto root and rejects
// anything that would escape root (absolute paths, "..", volume names).
func ResolveUnder(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", shared.ErrPathTraversal)
	}
	native := filepath.FromSlash(rel)
	if filepath.IsAbs(native) || filepath.VolumeName(native) != "" || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %s", shared.ErrPathTraversal, rel)
	}

	// --- SECURITY: Prevent Path Traversal ---
	cleanedRoot := filepath.Clean(root)
	cleaned := filepath.Clean(filepath.Join(cleanedRoot, native))
	if cleaned == cleanedRoot || !strings.HasPrefix(cleaned, cleanedRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", shared.ErrPathTraversal, rel)
	}
	return cleaned, nil
}

// RelSlash returns path relative to root using forward slashes, as stored in
// archives and manifests.
func RelSlash(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", shared.ErrPathTraversal, path)
	}
	return filepath.ToSlash(rel), nil
}

// Stem strips every extension from a file name: "Hiyori.vtube.json" -> "Hiyori".
func Stem(name string) string {
	base := filepath.Base(name)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }
