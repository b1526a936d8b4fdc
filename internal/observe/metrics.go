// Package observe provides application-wide observability primitives for
// RiskGuard: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all RiskGuard metrics.
const meterName = "github.com/MrWong99/riskguard"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// CallsObserved counts call sessions opened. Use with attribute:
	//   attribute.String("direction", ...)
	CallsObserved metric.Int64Counter

	// CallsBlocked counts sessions whose number was on the block list at
	// ringing time.
	CallsBlocked metric.Int64Counter

	// AIDetections counts sessions where the synthetic-voice probability
	// crossed the alert threshold.
	AIDetections metric.Int64Counter

	// NotificationsSent counts notifications handed to the sink. Use with
	// attribute:
	//   attribute.String("kind", ...)
	NotificationsSent metric.Int64Counter

	// RecordingsStarted counts capture sessions opened by the recording
	// controller.
	RecordingsStarted metric.Int64Counter

	// --- Histograms ---

	// CallDuration tracks completed call duration in seconds.
	CallDuration metric.Float64Histogram

	// RiskScore tracks the final risk score of completed sessions.
	RiskScore metric.Int64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks the number of live call sessions. The
	// coordinator is single-session, so this is 0 or 1 in practice.
	ActiveSessions metric.Int64UpDownCounter
}

// durationBuckets defines histogram bucket boundaries (in seconds) sized for
// phone-call durations.
var durationBuckets = []float64{
	5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200,
}

// scoreBuckets covers the 0–100 risk score range.
var scoreBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.CallsObserved, err = m.Int64Counter("riskguard.calls.observed",
		metric.WithDescription("Total call sessions opened by direction."),
	); err != nil {
		return nil, err
	}
	if met.CallsBlocked, err = m.Int64Counter("riskguard.calls.blocked",
		metric.WithDescription("Total sessions suppressed by the block list."),
	); err != nil {
		return nil, err
	}
	if met.AIDetections, err = m.Int64Counter("riskguard.ai.detections",
		metric.WithDescription("Total sessions flagged as synthetic voice."),
	); err != nil {
		return nil, err
	}
	if met.NotificationsSent, err = m.Int64Counter("riskguard.notifications.sent",
		metric.WithDescription("Total notifications delivered by kind."),
	); err != nil {
		return nil, err
	}
	if met.RecordingsStarted, err = m.Int64Counter("riskguard.recordings.started",
		metric.WithDescription("Total audio capture sessions started."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.CallDuration, err = m.Float64Histogram("riskguard.call.duration",
		metric.WithDescription("Duration of completed calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RiskScore, err = m.Int64Histogram("riskguard.call.risk_score",
		metric.WithDescription("Final risk score of completed sessions."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("riskguard.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("riskguard.active_sessions",
		metric.WithDescription("Number of live call sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
