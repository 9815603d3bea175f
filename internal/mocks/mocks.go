// Package mocks provides testify mocks for the collaborator and persistence
// contracts so engine tests can run without a browser or a database.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/cartographer/api/schemas"
	"github.com/xkilldash9x/cartographer/internal/store"
)

// -- Capturer Mock --

// MockCapturer mocks the schemas.Capturer interface.
type MockCapturer struct {
	mock.Mock
}

func (m *MockCapturer) Capture(ctx context.Context) (schemas.ImageRef, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.ImageRef), args.Error(1)
}

// -- Detector Mock --

// MockDetector mocks the schemas.Detector interface.
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Detect(ctx context.Context, image schemas.ImageRef) ([]schemas.RawElement, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.RawElement), args.Error(1)
}

// -- Activator Mock --

// MockActivator mocks the schemas.Activator interface.
type MockActivator struct {
	mock.Mock
}

func (m *MockActivator) Activate(ctx context.Context, ref schemas.NodeRef, node *schemas.Node) (schemas.ActivationResult, error) {
	args := m.Called(ctx, ref, node)
	return args.Get(0).(schemas.ActivationResult), args.Error(1)
}

// -- Selection Policy Mock --

// MockPolicy mocks the schemas.SelectionPolicy interface.
type MockPolicy struct {
	mock.Mock
}

func (m *MockPolicy) Select(pending []schemas.NodeRef) (schemas.NodeRef, bool) {
	args := m.Called(pending)
	return args.Get(0).(schemas.NodeRef), args.Bool(1)
}

// -- Document Store Mock --

// MockDocumentStore mocks the store.DocumentStore interface.
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Load(ctx context.Context, appName string) (*schemas.ExplorationGraph, error) {
	args := m.Called(ctx, appName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.ExplorationGraph), args.Error(1)
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *schemas.ExplorationGraph) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockDocumentStore) Exists(ctx context.Context, appName string) (bool, error) {
	args := m.Called(ctx, appName)
	return args.Bool(0), args.Error(1)
}

// Compile-time interface checks.
var (
	_ schemas.Capturer        = (*MockCapturer)(nil)
	_ schemas.Detector        = (*MockDetector)(nil)
	_ schemas.Activator       = (*MockActivator)(nil)
	_ schemas.SelectionPolicy = (*MockPolicy)(nil)
	_ store.DocumentStore     = (*MockDocumentStore)(nil)
)
