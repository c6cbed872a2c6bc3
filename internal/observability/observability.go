// Package observability provides the structured logging and Prometheus
// metrics components used throughout the harvester.
package observability

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Fields is a map of key-value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger provides structured, leveled logging with context support.
type Logger interface {
	Debug(ctx context.Context, msg string, fields Fields)
	Info(ctx context.Context, msg string, fields Fields)
	Warn(ctx context.Context, msg string, fields Fields)
	Error(ctx context.Context, msg string, err error, fields Fields)
	WithFields(fields Fields) Logger
}

// Metrics collects Prometheus-compatible metrics for one component.
type Metrics interface {
	RecordSuccess(operation string)
	RecordError(operation, errorType string)
	RecordDuration(operation string, seconds float64)
	RecordPayloadSize(reportType string, bytes int64)
	StartOperation(operation string)
	EndOperation(operation string)
}

// Config holds the observability settings shared by all components.
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string
	// LogOutput defaults to os.Stdout.
	LogOutput io.Writer
}

// Provider hands out Logger and Metrics instances per component. Each
// component name maps to a single instance; creation is lazy and
// thread-safe. All metrics register against the provider's registry so
// independent providers (e.g. in tests) never collide.
type Provider struct {
	config   Config
	registry *prometheus.Registry

	mu      sync.Mutex
	loggers map[string]Logger
	metrics map[string]Metrics
}

// NewProvider creates a provider with its own Prometheus registry.
func NewProvider(config Config) *Provider {
	if config.LogOutput == nil {
		config.LogOutput = os.Stdout
	}
	return &Provider{
		config:   config,
		registry: prometheus.NewRegistry(),
		loggers:  make(map[string]Logger),
		metrics:  make(map[string]Metrics),
	}
}

// Logger returns the logger for the named component. The component name
// becomes a persistent log field.
func (p *Provider) Logger(component string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.loggers[component]; ok {
		return l
	}
	l := newJSONLogger(
		p.config.ServiceName,
		p.config.Environment,
		p.config.LogLevel,
		p.config.LogOutput,
		Fields{"component": component},
	)
	p.loggers[component] = l
	return l
}

// Metrics returns the metrics collector for the named component. Metric
// names are prefixed with the component name.
func (p *Provider) Metrics(component string) Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.metrics[component]; ok {
		return m
	}
	m := newPrometheusMetrics(component, p.registry)
	p.metrics[component] = m
	return m
}

// Registry exposes the underlying registry for metrics endpoints.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}
