// internal/resolver/errors.go
package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrEntryNotFound is returned when the logical name is absent from the
	// merged definitions of the page.
	ErrEntryNotFound = errors.New("locator entry not found")
	// ErrResolutionFailed matches every *ResolutionError.
	ErrResolutionFailed = errors.New("locator resolution failed")
	// ErrNoExplicitSelector is returned by ResolveStrict for entries without
	// xpath or css.
	ErrNoExplicitSelector = errors.New("locator entry declares no explicit selector")
)

// ResolutionError reports that no strategy produced an acceptable match.
type ResolutionError struct {
	Page string
	Name string
	// Err is the context error when resolution was cut short, nil otherwise.
	Err error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("could not resolve %q on page %q", e.Name, e.Page)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrResolutionFailed) hold.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolutionFailed
}

func (e *ResolutionError) Unwrap() error { return e.Err }
