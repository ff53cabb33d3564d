// Package mocks provides generated mock implementations of the core ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces
// in internal/core. The mocks are generated using go:generate directives.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockJobStore(ctrl)
//	store.EXPECT().Get(gomock.Any(), "job-1").Return(job, nil)
package mocks

// Generate mock for JobStore interface from internal/core package.
// This creates MockJobStore with methods for all JobStore interface methods:
// Get, Put, Update, Delete, ListExpired
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_store_mock.go github.com/target/marketlens/internal/core JobStore

// Generate mock for MarketDataProvider interface from internal/core package.
// This creates MockMarketDataProvider with methods for all MarketDataProvider interface methods:
// MarketSize
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=market_data_provider_mock.go github.com/target/marketlens/internal/core MarketDataProvider

// Generate mock for Classifier interface from internal/core package.
// This creates MockClassifier with methods for all Classifier interface methods:
// Name, Classify
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=classifier_mock.go github.com/target/marketlens/internal/core Classifier
