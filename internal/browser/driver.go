// internal/browser/driver.go
package browser

import (
	"context"
	"errors"

	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// ErrStale is returned by Element accessors when the underlying node is no
// longer attached to the document the driver is looking at.
var ErrStale = errors.New("stale element reference")

// Driver is the only capability the resolution engine needs from a browser:
// run a classified query against the current document.
type Driver interface {
	// FindElements returns every element matching q in document order. Zero
	// matches is not an error.
	FindElements(ctx context.Context, q selector.Query) ([]Element, error)
}

// Element is a read-only handle on one matched node.
type Element interface {
	TagName() (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(name string) (string, bool, error)
	// Text returns the rendered text content.
	Text() (string, error)
	Visible() (bool, error)
}

// Actor is an optional capability for drivers that can interact with the page.
type Actor interface {
	Click(ctx context.Context, q selector.Query) error
	Type(ctx context.Context, q selector.Query, text string) error
}

// Navigator is implemented by live drivers that can load a URL.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}
