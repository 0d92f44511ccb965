// internal/heal/heal.go
package heal

import (
	"context"

	"github.com/xkilldash9x/scalpel-locator/internal/locator"
)

// Store persists healed overlays per page. Load degrades to an empty overlay
// on unreadable data so healing never blocks resolution.
//
// Writers are not coordinated: two processes healing the same page can
// overwrite each other's overlay. Use Disabled for parallel workers.
type Store interface {
	locator.OverlaySource
	Save(ctx context.Context, page string, overlay locator.Overlay) error
}

// Record applies a heal to the overlay in place: sel is prepended to the
// entry's alternates (duplicates removed, capped at max) and becomes its
// explicit selector.
func Record(overlay locator.Overlay, name, sel string, max int) {
	if max <= 0 {
		max = locator.MaxAlternates
	}
	e := overlay[name]
	alts := make([]string, 0, len(e.Alternates)+1)
	alts = append(alts, sel)
	for _, a := range e.Alternates {
		if a != sel {
			alts = append(alts, a)
		}
	}
	if len(alts) > max {
		alts = alts[:max]
	}
	e.Alternates = alts
	e.SetSelector(sel)
	overlay[name] = e
}

// Remove deletes an entry from the overlay and reports whether it existed.
func Remove(overlay locator.Overlay, name string) bool {
	if _, ok := overlay[name]; !ok {
		return false
	}
	delete(overlay, name)
	return true
}

// Disabled never persists anything.
type Disabled struct{}

var _ Store = Disabled{}

func (Disabled) Load(context.Context, string) (locator.Overlay, error) {
	return locator.Overlay{}, nil
}

func (Disabled) Save(context.Context, string, locator.Overlay) error { return nil }
