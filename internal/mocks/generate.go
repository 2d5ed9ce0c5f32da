// Package mocks provides mock implementations for testing the storefront auth system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockStore := mocks.NewMockRoleStore(ctrl)
//	mockStore.EXPECT().FetchRole(gomock.Any(), "user-1").Return("seller", true, nil)
package mocks

// Generate mock for RoleStore interface from internal/ports package.
// This creates MockRoleStore with methods for all RoleStore interface methods:
// FetchRole
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=role_store_mock.go github.com/marketbay/storefront/internal/ports RoleStore

// Generate mock for CacheStore interface from internal/ports package.
// This creates MockCacheStore with methods for all CacheStore interface methods:
// Set, Get, Delete, Clear
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_store_mock.go github.com/marketbay/storefront/internal/ports CacheStore
