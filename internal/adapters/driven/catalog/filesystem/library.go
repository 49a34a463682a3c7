package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
)

// Ensure FileLibrary implements the interface.
var _ driven.FileLibrary = (*FileLibrary)(nil)

// FileLibrary copies files into a private sandbox directory before
// extraction, so the original can move or disappear afterwards.
type FileLibrary struct {
	dir string
}

// NewFileLibrary creates the library under the given directory,
// creating it if needed.
func NewFileLibrary(dir string) (*FileLibrary, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating library directory: %w", err)
	}
	return &FileLibrary{dir: dir}, nil
}

// Dir returns the library directory.
func (l *FileLibrary) Dir() string {
	return l.dir
}

// Import copies srcPath into the library as <itemID>_<basename>.
// The item ID prefix keeps distinct items with the same filename apart.
func (l *FileLibrary) Import(ctx context.Context, srcPath, itemID string) (domain.CopiedFile, error) {
	if err := ctx.Err(); err != nil {
		return domain.CopiedFile{}, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return domain.CopiedFile{}, fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return domain.CopiedFile{}, fmt.Errorf("reading source info: %w", err)
	}

	name := filepath.Base(srcPath)
	destPath := filepath.Join(l.dir, itemID+"_"+name)

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return domain.CopiedFile{}, fmt.Errorf("creating library copy: %w", err)
	}

	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(destPath) //nolint:errcheck
		return domain.CopiedFile{}, fmt.Errorf("copying file: %w", err)
	}
	if err := dest.Close(); err != nil {
		os.Remove(destPath) //nolint:errcheck
		return domain.CopiedFile{}, fmt.Errorf("closing library copy: %w", err)
	}

	modTime := info.ModTime().UTC()
	return domain.CopiedFile{
		LocalPath:        destPath,
		OriginalFilename: name,
		SizeBytes:        info.Size(),
		ModifiedAt:       &modTime,
	}, nil
}

// Exists reports whether a library path is still present.
func (l *FileLibrary) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes a library copy. Missing paths are not an error.
func (l *FileLibrary) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing library copy: %w", err)
	}
	return nil
}
