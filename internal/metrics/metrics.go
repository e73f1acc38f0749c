// Package metrics provides Prometheus metrics for wansync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names use the wansync_ prefix.
const (
	Namespace = "wansync"
)

var (
	// BuildInfo is always 1 and carries version labels.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information. Always 1.",
	}, []string{"version", "go_version"})

	// PassesTotal counts reconciliation passes by outcome (success, error).
	PassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "passes_total",
		Help:      "Total reconciliation passes by status.",
	}, []string{"status"})

	// PassDuration tracks how long a full pass takes.
	PassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "pass_duration_seconds",
		Help:      "Duration of reconciliation passes in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// LastPassTimestamp is the unix time the most recent pass finished.
	LastPassTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix time the most recent pass finished.",
	})

	// LastSuccessTimestamp is the unix time of the most recent pass with no
	// failed target.
	LastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time the most recent fully successful pass finished.",
	})

	// RecordsUpdatedTotal counts records whose value was replaced.
	RecordsUpdatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_updated_total",
		Help:      "Total records upserted with a new address.",
	}, []string{"type"})

	// RecordsUnchangedTotal counts records that already matched.
	RecordsUnchangedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_unchanged_total",
		Help:      "Total records that already held the observed address.",
	}, []string{"type"})

	// RecordsDryRunTotal counts changes that were only logged.
	RecordsDryRunTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_dry_run_total",
		Help:      "Total record changes skipped because of dry-run mode.",
	}, []string{"type"})

	// RecordsAbsentTotal counts targets skipped because the address family
	// is not configured upstream.
	RecordsAbsentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_absent_total",
		Help:      "Total targets skipped because the gateway has no address of that family.",
	}, []string{"type"})

	// RecordsFailedTotal counts failed targets by the stage that failed.
	RecordsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "records_failed_total",
		Help:      "Total failed targets by record type and stage.",
	}, []string{"type", "stage"})

	// ObservedAddress is 1 for the address most recently observed per family.
	ObservedAddress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "observed_address_info",
		Help:      "Most recently observed WAN address per family. Always 1.",
	}, []string{"family", "address"})

	// SourceRequestsTotal counts calls against the address source.
	SourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "source_requests_total",
		Help:      "Total address source calls by source, operation and status.",
	}, []string{"source", "operation", "status"})

	// ProviderAPIRequestsTotal counts calls against the DNS provider.
	ProviderAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "provider_api_requests_total",
		Help:      "Total DNS provider API calls by provider, operation and status.",
	}, []string{"provider", "operation", "status"})

	// ProviderAPIDuration tracks DNS provider call latency.
	ProviderAPIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "provider_api_duration_seconds",
		Help:      "Duration of DNS provider API calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	// ProviderHealthy is 1 when the last readiness ping succeeded.
	ProviderHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "provider_healthy",
		Help:      "Whether the last readiness check against the component succeeded (1) or not (0).",
	}, []string{"component"})
)

// SetBuildInfo publishes the running version.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// SetObservedAddress replaces the published address for a family. An empty
// address clears the family.
func SetObservedAddress(family, address string) {
	ObservedAddress.DeletePartialMatch(prometheus.Labels{"family": family})
	if address != "" {
		ObservedAddress.WithLabelValues(family, address).Set(1)
	}
}

// SetHealthy records the outcome of a readiness check.
func SetHealthy(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	ProviderHealthy.WithLabelValues(component).Set(v)
}
