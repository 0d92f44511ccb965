// internal/heal/file.go
package heal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-locator/internal/locator"
)

// FileStore keeps one overlay file per page under dir.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file backed store. The directory is created on the
// first save.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, logger: logger.Named("heal_file_store")}
}

// Path returns the overlay file of a page.
func (s *FileStore) Path(page string) string {
	return filepath.Join(s.dir, page+".json")
}

// Load reads the overlay of a page. A missing file is an empty overlay, and so
// is one that cannot be read or parsed.
func (s *FileStore) Load(ctx context.Context, page string) (locator.Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := locator.ValidatePage(page); err != nil {
		return nil, err
	}
	path := s.Path(page)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to read healed overlay, ignoring it.", zap.String("path", path), zap.Error(err))
		}
		return locator.Overlay{}, nil
	}
	entries, err := locator.Decode(data)
	if err != nil {
		s.logger.Warn("Corrupt healed overlay, ignoring it.", zap.String("path", path), zap.Error(err))
		return locator.Overlay{}, nil
	}
	return locator.Overlay(entries), nil
}

// Save writes the overlay of a page. An empty overlay removes the file.
func (s *FileStore) Save(ctx context.Context, page string, overlay locator.Overlay) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := locator.ValidatePage(page); err != nil {
		return err
	}
	path := s.Path(page)

	if len(overlay) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove healed overlay %s: %w", path, err)
		}
		s.logger.Debug("Removed empty healed overlay.", zap.String("path", path))
		return nil
	}

	data, err := locator.Encode(overlay)
	if err != nil {
		return fmt.Errorf("failed to encode healed overlay: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create healed directory %s: %w", s.dir, err)
	}

	// 1. Write next to the target, then rename over it.
	tmp, err := os.CreateTemp(s.dir, "."+page+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set overlay permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write healed overlay: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write healed overlay: %w", err)
	}

	// 2. Swap.
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace healed overlay %s: %w", path, err)
	}
	s.logger.Debug("Saved healed overlay.", zap.String("path", path), zap.Int("entries", len(overlay)))
	return nil
}
