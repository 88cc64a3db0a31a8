package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zey041022/poem-web-app/internal/domain"
)

// tempPrefix marks in-flight writes; leftovers from an interrupted Save are
// pruned like generated assets.
const tempPrefix = ".tmp-"

// ErrInvalidAssetID is returned for names that would escape the store.
var ErrInvalidAssetID = errors.New("invalid asset id")

// FileAssetStore keeps assets as files in a single directory
type FileAssetStore struct {
	dir string
}

// NewFileAssetStore creates dir if needed and returns a store rooted there
func NewFileAssetStore(dir string) (*FileAssetStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	return &FileAssetStore{dir: dir}, nil
}

// Dir returns the directory the store writes to
func (s *FileAssetStore) Dir() string { return s.dir }

// Path returns the file path for id
func (s *FileAssetStore) Path(id domain.AssetID) (string, error) {
	name := string(id)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetID, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Save writes the asset through a temporary file and renames it into place,
// so readers never observe a partial image.
func (s *FileAssetStore) Save(_ context.Context, id domain.AssetID, asset domain.ImageAsset) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(asset.Bytes); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to store %s: %w", id, err)
	}
	return nil
}

// Exists reports whether id has been stored
func (s *FileAssetStore) Exists(_ context.Context, id domain.AssetID) (bool, error) {
	path, err := s.Path(id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PruneBefore deletes generated assets and abandoned temp files last modified
// before cutoff. The placeholder and unrelated files are never touched.
func (s *FileAssetStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list assets: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || !prunable(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, err
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func prunable(name string) bool {
	return domain.AssetID(name).Generated() || strings.HasPrefix(name, tempPrefix)
}
