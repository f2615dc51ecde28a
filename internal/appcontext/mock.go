package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/seekmed/medharvest"
	"github.com/seekmed/medharvest/internal/config"
	"github.com/seekmed/medharvest/internal/source"
	"github.com/seekmed/medharvest/internal/store"
)

// Mock implements Interface for command tests. Each method delegates to
// the corresponding function field; a nil field yields a default or
// zero value.
type Mock struct {
	ConfigFunc       func() *config.Config
	LoggerFunc       func() *zerolog.Logger
	StoreFunc        func(ctx context.Context) (*store.Store, error)
	SourceFunc       func() *source.Remote
	HarvesterFunc    func(ctx context.Context) (*medharvest.Harvester, error)
	OutputFormatFunc func() string
	QuietFunc        func() bool
}

// Config returns a config using the mock function or nil.
func (m *Mock) Config() *config.Config {
	if m.ConfigFunc != nil {
		return m.ConfigFunc()
	}
	return nil
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// Store returns a store using the mock function or nil.
func (m *Mock) Store(ctx context.Context) (*store.Store, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx)
	}
	return nil, nil
}

// Source returns a source using the mock function or nil.
func (m *Mock) Source() *source.Remote {
	if m.SourceFunc != nil {
		return m.SourceFunc()
	}
	return nil
}

// Harvester returns a harvester using the mock function or nil.
func (m *Mock) Harvester(ctx context.Context) (*medharvest.Harvester, error) {
	if m.HarvesterFunc != nil {
		return m.HarvesterFunc(ctx)
	}
	return nil, nil
}

// OutputFormat returns a format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Quiet reports quiet mode using the mock function or false.
func (m *Mock) Quiet() bool {
	if m.QuietFunc != nil {
		return m.QuietFunc()
	}
	return false
}

// Ensure Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
