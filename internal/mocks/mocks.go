// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/scalpel-locator/internal/browser"
	"github.com/xkilldash9x/scalpel-locator/internal/locator"
	"github.com/xkilldash9x/scalpel-locator/internal/selector"
)

// -- Browser Mocks --

// MockDriver mocks browser.Driver and browser.Actor.
type MockDriver struct {
	mock.Mock
}

var (
	_ browser.Driver = (*MockDriver)(nil)
	_ browser.Actor  = (*MockDriver)(nil)
)

func (m *MockDriver) FindElements(ctx context.Context, q selector.Query) ([]browser.Element, error) {
	args := m.Called(ctx, q)
	var els []browser.Element
	if v := args.Get(0); v != nil {
		els = v.([]browser.Element)
	}
	return els, args.Error(1)
}

func (m *MockDriver) Click(ctx context.Context, q selector.Query) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockDriver) Type(ctx context.Context, q selector.Query, text string) error {
	args := m.Called(ctx, q, text)
	return args.Error(0)
}

// MockElement mocks browser.Element.
type MockElement struct {
	mock.Mock
}

var _ browser.Element = (*MockElement)(nil)

func (m *MockElement) TagName() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockElement) Attribute(name string) (string, bool, error) {
	args := m.Called(name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockElement) Text() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockElement) Visible() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

// -- Heal Store Mock --

// MockHealStore mocks heal.Store.
type MockHealStore struct {
	mock.Mock
}

func (m *MockHealStore) Load(ctx context.Context, page string) (locator.Overlay, error) {
	args := m.Called(ctx, page)
	var o locator.Overlay
	if v := args.Get(0); v != nil {
		o = v.(locator.Overlay)
	}
	return o, args.Error(1)
}

func (m *MockHealStore) Save(ctx context.Context, page string, overlay locator.Overlay) error {
	args := m.Called(ctx, page, overlay)
	return args.Error(0)
}
