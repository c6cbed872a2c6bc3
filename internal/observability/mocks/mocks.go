// Package mocks provides mock implementations of the observability
// interfaces for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"usage-harvester/internal/observability"
)

// MockLogger is a mock implementation of the Logger interface.
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(ctx context.Context, msg string, fields observability.Fields) {
	m.Called(ctx, msg, fields)
}

func (m *MockLogger) Info(ctx context.Context, msg string, fields observability.Fields) {
	m.Called(ctx, msg, fields)
}

func (m *MockLogger) Warn(ctx context.Context, msg string, fields observability.Fields) {
	m.Called(ctx, msg, fields)
}

func (m *MockLogger) Error(ctx context.Context, msg string, err error, fields observability.Fields) {
	m.Called(ctx, msg, err, fields)
}

func (m *MockLogger) WithFields(fields observability.Fields) observability.Logger {
	args := m.Called(fields)
	if logger, ok := args.Get(0).(observability.Logger); ok {
		return logger
	}
	return m
}

// NopLogger discards every entry. Useful where log assertions add noise.
type NopLogger struct{}

func (NopLogger) Debug(context.Context, string, observability.Fields)        {}
func (NopLogger) Info(context.Context, string, observability.Fields)         {}
func (NopLogger) Warn(context.Context, string, observability.Fields)         {}
func (NopLogger) Error(context.Context, string, error, observability.Fields) {}
func (n NopLogger) WithFields(observability.Fields) observability.Logger     { return n }

// MockMetrics is a mock implementation of the Metrics interface.
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordSuccess(operation string) {
	m.Called(operation)
}

func (m *MockMetrics) RecordError(operation, errorType string) {
	m.Called(operation, errorType)
}

func (m *MockMetrics) RecordDuration(operation string, seconds float64) {
	m.Called(operation, seconds)
}

func (m *MockMetrics) RecordPayloadSize(reportType string, bytes int64) {
	m.Called(reportType, bytes)
}

func (m *MockMetrics) StartOperation(operation string) {
	m.Called(operation)
}

func (m *MockMetrics) EndOperation(operation string) {
	m.Called(operation)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordSuccess(string)            {}
func (NopMetrics) RecordError(string, string)      {}
func (NopMetrics) RecordDuration(string, float64)  {}
func (NopMetrics) RecordPayloadSize(string, int64) {}
func (NopMetrics) StartOperation(string)           {}
func (NopMetrics) EndOperation(string)             {}
