// internal/locator/store.go
package locator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrFileNotFound is returned when a page has no base definition file.
	ErrFileNotFound = errors.New("locator definition file not found")
	// ErrInvalidPage is returned for page names that would escape the
	// definitions directory.
	ErrInvalidPage = errors.New("invalid page name")
)

// OverlaySource supplies the healed overlay for a page. Heal stores implement
// it.
type OverlaySource interface {
	Load(ctx context.Context, page string) (Overlay, error)
}

// Store reads base locator definitions from <dir>/<page>.json and layers the
// healed overlay on top.
type Store struct {
	dir      string
	overlays OverlaySource
	logger   *zap.Logger
}

// NewStore creates a store rooted at dir. overlays may be nil, in which case
// LoadMerged returns the base definitions unchanged.
func NewStore(dir string, overlays OverlaySource, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:      dir,
		overlays: overlays,
		logger:   logger.Named("locator_store"),
	}
}

// Dir returns the definitions directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the definition file path for a page.
func (s *Store) Path(page string) string {
	return filepath.Join(s.dir, page+".json")
}

// Load reads the base definitions of a page.
func (s *Store) Load(page string) (map[string]Entry, error) {
	if err := ValidatePage(page); err != nil {
		return nil, err
	}
	path := s.Path(page)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read locator file %s: %w", path, err)
	}
	entries, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// LoadMerged reads the base definitions and merges the page's overlay over
// them. A failing overlay source degrades to "no overlay".
func (s *Store) LoadMerged(ctx context.Context, page string) (map[string]Entry, error) {
	base, err := s.Load(page)
	if err != nil {
		return nil, err
	}
	if s.overlays == nil {
		return base, nil
	}
	overlay, err := s.overlays.Load(ctx, page)
	if err != nil {
		s.logger.Warn("Failed to load healed overlay, continuing without it.",
			zap.String("page", page), zap.Error(err))
		return base, nil
	}
	if len(overlay) == 0 {
		return base, nil
	}
	s.logger.Debug("Merged healed overlay.", zap.String("page", page), zap.Int("healed", len(overlay)))
	return MergeAll(base, overlay), nil
}

// ValidatePage rejects empty page names and names containing path elements.
func ValidatePage(page string) error {
	if page == "" || page == "." || page == ".." ||
		strings.ContainsAny(page, `/\`) || strings.Contains(page, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidPage, page)
	}
	return nil
}
