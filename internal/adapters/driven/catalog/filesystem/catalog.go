// Package filesystem implements the photo catalog, file library and
// drop-folder ports on top of local directories.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/davidsparrow/findmysh/internal/core/domain"
	"github.com/davidsparrow/findmysh/internal/core/ports/driven"
)

// Ensure PhotoCatalog implements the interface.
var _ driven.PhotoCatalog = (*PhotoCatalog)(nil)

// photoExtensions are the image formats the catalog enumerates.
var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".heic": true, ".tiff": true, ".bmp": true,
}

// PhotoCatalog enumerates a photos directory. The asset ID is the
// path relative to the root, which stays stable across runs.
type PhotoCatalog struct {
	root string
}

// NewPhotoCatalog creates a catalog over the given photos directory.
// An empty root means the user never pointed findmysh at their photos;
// access is then denied.
func NewPhotoCatalog(root string) *PhotoCatalog {
	return &PhotoCatalog{root: root}
}

// RequestAccess verifies the photos directory is configured and readable.
func (c *PhotoCatalog) RequestAccess(_ context.Context) error {
	if c.root == "" {
		return fmt.Errorf("%w: photos directory not configured", domain.ErrPermissionDenied)
	}
	info, err := os.Stat(c.root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: photos directory %s not readable", domain.ErrPermissionDenied, c.root)
	}
	return nil
}

// Enumerate walks the photos directory and returns up to max assets,
// oldest first by modification time.
func (c *PhotoCatalog) Enumerate(ctx context.Context, max int) ([]domain.PhotoAsset, error) {
	if err := c.RequestAccess(ctx); err != nil {
		return nil, err
	}

	var assets []domain.PhotoAsset
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if !photoExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		modTime := info.ModTime().UTC()
		assets = append(assets, domain.PhotoAsset{
			AssetID:    rel,
			Filename:   d.Name(),
			URI:        path,
			CreatedAt:  &modTime,
			ModifiedAt: &modTime,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating photos: %w", err)
	}

	sort.Slice(assets, func(i, j int) bool {
		return assets[i].ModifiedAt.Before(*assets[j].ModifiedAt)
	})
	if max > 0 && len(assets) > max {
		assets = assets[:max]
	}
	return assets, nil
}

// Contains reports whether the asset still exists under the root.
func (c *PhotoCatalog) Contains(_ context.Context, assetID string) (bool, error) {
	if c.root == "" {
		return false, fmt.Errorf("%w: photos directory not configured", domain.ErrPermissionDenied)
	}
	_, err := os.Stat(filepath.Join(c.root, assetID))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking asset %s: %w", assetID, err)
}
