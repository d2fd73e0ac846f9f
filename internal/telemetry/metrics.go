package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/wolfeidau/hostident"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Provisioning metrics
	ProvisionRunsTotal   metric.Int64Counter
	ProvisionErrorsTotal metric.Int64Counter
	KeygenDuration       metric.Float64Histogram

	// Store operation metrics
	PersistDuration   metric.Float64Histogram
	StoreRetriesTotal metric.Int64Counter
	StoreRollbacks    metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer used for provisioning spans.
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(instrumentationName)
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	m.ProvisionRunsTotal, _ = meter.Int64Counter(
		"hostident.provision.runs.total",
		metric.WithDescription("Total number of identity provisioning runs"),
		metric.WithUnit("{run}"),
	)

	m.ProvisionErrorsTotal, _ = meter.Int64Counter(
		"hostident.provision.errors.total",
		metric.WithDescription("Total number of failed provisioning runs by stage"),
		metric.WithUnit("{error}"),
	)

	m.KeygenDuration, _ = meter.Float64Histogram(
		"hostident.keygen.duration",
		metric.WithDescription("Duration of RSA key pair generation"),
		metric.WithUnit("ms"),
	)

	m.PersistDuration, _ = meter.Float64Histogram(
		"hostident.persist.duration",
		metric.WithDescription("Duration of identity persistence"),
		metric.WithUnit("ms"),
	)

	m.StoreRetriesTotal, _ = meter.Int64Counter(
		"hostident.store.retries.total",
		metric.WithDescription("Total number of throttled store writes retried"),
		metric.WithUnit("{retry}"),
	)

	m.StoreRollbacks, _ = meter.Int64Counter(
		"hostident.store.rollbacks.total",
		metric.WithDescription("Total number of partial writes rolled back"),
		metric.WithUnit("{rollback}"),
	)

	return m
}
