package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/fragpack"
)

// Metrics holds the OpenTelemetry instruments recorded by builds and the dev server
type Metrics struct {
	// Configuration metrics
	ResolutionErrorsTotal metric.Int64Counter

	// Build metrics
	BuildsTotal       metric.Int64Counter
	BuildErrorsTotal  metric.Int64Counter
	BuildDuration     metric.Float64Histogram
	OutputFilesTotal  metric.Int64Counter
	PluginErrorsTotal metric.Int64Counter

	// Dev server metrics
	RebuildsTotal        metric.Int64Counter
	DevServerRequests    metric.Int64Counter
	LiveReloadClients    metric.Int64UpDownCounter
	FragmentReloadsTotal metric.Int64Counter
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

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ResolutionErrorsTotal, _ = meter.Int64Counter(
		"fragpack.resolution.errors.total",
		metric.WithDescription("Mode or preset names that could not be resolved"),
		metric.WithUnit("{error}"),
	)

	m.BuildsTotal, _ = meter.Int64Counter(
		"fragpack.builds.total",
		metric.WithDescription("Total number of bundler runs"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"fragpack.builds.errors.total",
		metric.WithDescription("Total number of bundler runs that reported errors"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"fragpack.build.duration",
		metric.WithDescription("Duration of a bundler run including post-build plugins"),
		metric.WithUnit("ms"),
	)

	m.OutputFilesTotal, _ = meter.Int64Counter(
		"fragpack.build.outputs.total",
		metric.WithDescription("Total number of files emitted by the bundler"),
		metric.WithUnit("{file}"),
	)

	m.PluginErrorsTotal, _ = meter.Int64Counter(
		"fragpack.plugins.errors.total",
		metric.WithDescription("Total number of post-build plugin failures"),
		metric.WithUnit("{error}"),
	)

	m.RebuildsTotal, _ = meter.Int64Counter(
		"fragpack.devserver.rebuilds.total",
		metric.WithDescription("Total number of watch mode rebuilds"),
		metric.WithUnit("{build}"),
	)

	m.DevServerRequests, _ = meter.Int64Counter(
		"fragpack.devserver.requests.total",
		metric.WithDescription("Total number of requests served by the dev server"),
		metric.WithUnit("{request}"),
	)

	m.LiveReloadClients, _ = meter.Int64UpDownCounter(
		"fragpack.devserver.livereload.clients",
		metric.WithDescription("Number of connected live reload clients"),
		metric.WithUnit("{client}"),
	)

	m.FragmentReloadsTotal, _ = meter.Int64Counter(
		"fragpack.devserver.fragment_reloads.total",
		metric.WithDescription("Total number of configuration reloads triggered by fragment file changes"),
		metric.WithUnit("{reload}"),
	)

	return m
}
