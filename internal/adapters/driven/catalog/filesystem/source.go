package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
)

// Ensure DropFolder implements the interface.
var _ driven.FileSource = (*DropFolder)(nil)

// DropFolder enumerates files the user placed in a watched intake
// directory. Hidden files are skipped.
type DropFolder struct {
	dir string
}

// NewDropFolder creates a file source over the given directory.
func NewDropFolder(dir string) *DropFolder {
	return &DropFolder{dir: dir}
}

// Enumerate returns up to max file paths from the drop folder, sorted
// by name for a stable intake order. A missing or unconfigured folder
// yields no files.
func (d *DropFolder) Enumerate(ctx context.Context, max int) ([]string, error) {
	if d.dir == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading drop folder: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(d.dir, entry.Name()))
	}
	sort.Strings(paths)

	if max > 0 && len(paths) > max {
		paths = paths[:max]
	}
	return paths, nil
}
