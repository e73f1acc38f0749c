// Package reconciler implements the core logic for comparing the observed WAN
// addresses (from a source) with the published DNS records (from a provider)
// and applying changes.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gitlab.bluewillows.net/root/wansync/internal/metrics"
	"gitlab.bluewillows.net/root/wansync/pkg/provider"
	"gitlab.bluewillows.net/root/wansync/pkg/source"
)

// ErrNoTargets is returned by Reconcile when there is nothing to reconcile.
var ErrNoTargets = errors.New("no targets configured")

// Config holds reconciler configuration options.
type Config struct {
	// DryRun if true, logs changes without applying them.
	DryRun bool

	// Parallel if true, reconciles targets concurrently. Targets never share
	// a record set, so ordering only affects log output.
	Parallel bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{}
}

// Reconciler keeps DNS records pointed at the gateway's WAN addresses.
//
// Each pass:
//  1. Opens a session with the address source and reads the WAN status once
//  2. For each target, reads the published record from the provider
//  3. Upserts the record when the published value differs from the observed one
//  4. Closes the source session
//
// Nothing is carried between passes except the last result, which is kept
// for the health endpoint.
type Reconciler struct {
	source   source.Source
	provider provider.Provider
	targets  []Target
	config   Config
	logger   *slog.Logger

	// mu protects last during concurrent access from the health server
	mu   sync.RWMutex
	last *Result
}

// Option is a functional option for configuring the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger for the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithConfig sets the reconciler configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		r.config = cfg
	}
}

// New creates a new Reconciler with the given dependencies.
func New(src source.Source, prov provider.Provider, targets []Target, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:   src,
		provider: prov,
		targets:  append([]Target(nil), targets...),
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile performs one reconciliation pass over every target.
//
// Failures are recorded per target in the Result and never stop the pass.
// The returned error is reserved for a reconciler with no targets.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	if len(r.targets) == 0 {
		return nil, ErrNoTargets
	}

	result := NewResult(r.config.DryRun)
	result.Source = r.source.Name()
	logger := r.logger.With(slog.String("pass_id", result.PassID))

	logger.Info("starting reconciliation",
		slog.String("source", result.Source),
		slog.Int("targets", len(r.targets)),
		slog.Bool("dry_run", r.config.DryRun),
	)

	obs, failure := r.observe(ctx, logger)

	outcomes := make([]*Outcome, len(r.targets))

	var g errgroup.Group
	if !r.config.Parallel {
		g.SetLimit(1)
	}
	for i, target := range r.targets {
		i, target := i, target
		g.Go(func() error {
			outcomes[i] = r.reconcileTarget(ctx, logger, target, obs, failure)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		if o == nil {
			result.Absent++
			metrics.RecordsAbsentTotal.WithLabelValues(string(r.targets[i].Type)).Inc()
			continue
		}
		result.AddOutcome(*o)
	}

	result.Complete()

	r.recordMetrics(result, obs, failure)

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	logger.Info("reconciliation complete",
		slog.Int("updated", len(result.Updated())),
		slog.Int("unchanged", len(result.Unchanged())),
		slog.Int("dry_run", len(result.Pending())),
		slog.Int("absent", result.Absent),
		slog.Int("failed", result.FailedCount()),
		slog.Duration("duration", result.Duration()),
	)

	return result, nil
}

// sourceFailure describes why the source could not be read at all.
type sourceFailure struct {
	stage Stage
	err   error
}

// observe opens a source session, reads the WAN status and closes the
// session again. A non-nil failure applies to every target.
func (r *Reconciler) observe(ctx context.Context, logger *slog.Logger) (source.Observation, *sourceFailure) {
	name := r.source.Name()

	sess, err := r.source.Open(ctx)
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(name, "open", "error").Inc()
		logger.Error("failed to open source session",
			slog.String("source", name),
			slog.String("error", err.Error()),
		)
		return source.Observation{}, &sourceFailure{stage: StageGatewayAuth, err: err}
	}
	metrics.SourceRequestsTotal.WithLabelValues(name, "open", "success").Inc()

	defer func() {
		if err := sess.Close(ctx); err != nil {
			logger.Warn("failed to close source session",
				slog.String("source", name),
				slog.String("error", err.Error()),
			)
		}
	}()

	obs, err := sess.WANStatus(ctx)
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(name, "wan_status", "error").Inc()
		logger.Error("failed to read WAN status",
			slog.String("source", name),
			slog.String("error", err.Error()),
		)
		return source.Observation{}, &sourceFailure{stage: StageGatewayFetch, err: err}
	}
	metrics.SourceRequestsTotal.WithLabelValues(name, "wan_status", "success").Inc()

	if obs.Empty() {
		logger.Warn("source reported no WAN addresses, every target will be skipped",
			slog.String("source", name),
		)
	}

	logger.Debug("observed WAN addresses",
		slog.String("source", name),
		slog.String("ipv4", displayValue(obs.IPv4)),
		slog.String("ipv6", displayValue(obs.IPv6)),
	)

	return obs, nil
}

// reconcileTarget evaluates one target. It returns nil when the target's
// family is not configured upstream.
func (r *Reconciler) reconcileTarget(ctx context.Context, logger *slog.Logger, t Target, obs source.Observation, failure *sourceFailure) *Outcome {
	outcome := &Outcome{Type: t.Type, Name: t.Name}

	if failure != nil {
		return r.fail(logger, outcome, failure.stage, failure.err)
	}

	addr, ok, err := obs.Lookup(t.Family())
	if err != nil {
		return r.fail(logger, outcome, StageGatewayFetch, err)
	}
	if !ok {
		logger.Info("address family not configured on gateway",
			slog.String("type", string(t.Type)),
			slog.String("name", t.Name),
			slog.String("family", string(t.Family())),
		)
		return nil
	}
	outcome.Current = addr

	published, err := r.getRecord(ctx, t)
	if err != nil {
		return r.fail(logger, outcome, StageDNSLookup, err)
	}
	outcome.Previous = published

	if !needsUpdate(published, addr) {
		outcome.Status = StatusUnchanged
		r.logOutcome(logger, slog.LevelInfo, "record unchanged", outcome)
		return outcome
	}
	outcome.Changed = true

	if r.config.DryRun {
		outcome.Status = StatusDryRun
		r.logOutcome(logger, slog.LevelInfo, "record update skipped (dry-run)", outcome)
		return outcome
	}

	if err := r.upsertRecord(ctx, t.Record(addr)); err != nil {
		return r.fail(logger, outcome, StageDNSUpdate, err)
	}

	outcome.Applied = true
	outcome.Status = StatusUpdated
	r.logOutcome(logger, slog.LevelInfo, "record updated", outcome)
	return outcome
}

// getRecord returns the published value, or "" when no record exists.
func (r *Reconciler) getRecord(ctx context.Context, t Target) (string, error) {
	start := time.Now()
	rec, err := r.provider.GetRecord(ctx, t.ZoneID, t.Name, t.Type)
	if provider.IsNotFound(err) {
		r.observeProviderCall("get", start, nil)
		return "", nil
	}
	r.observeProviderCall("get", start, err)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", nil
	}
	return rec.Value, nil
}

func (r *Reconciler) upsertRecord(ctx context.Context, rec provider.Record) error {
	start := time.Now()
	err := r.provider.UpsertRecord(ctx, rec)
	r.observeProviderCall("upsert", start, err)
	return err
}

func (r *Reconciler) fail(logger *slog.Logger, o *Outcome, stage Stage, err error) *Outcome {
	o.Status = StatusFailed
	o.Stage = stage
	o.Error = err
	r.logOutcome(logger, slog.LevelError, "record reconciliation failed", o)
	return o
}

// logOutcome writes the single per-target line for a pass.
func (r *Reconciler) logOutcome(logger *slog.Logger, level slog.Level, msg string, o *Outcome) {
	attrs := []slog.Attr{
		slog.String("type", string(o.Type)),
		slog.String("name", o.Name),
		slog.String("previous", displayValue(o.Previous)),
		slog.String("current", displayValue(o.Current)),
		slog.Bool("applied", o.Applied),
	}
	if o.Status == StatusFailed {
		attrs = append(attrs,
			slog.String("stage", string(o.Stage)),
			slog.String("error", o.Error.Error()),
		)
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LastResult returns the most recent pass, or nil before the first pass.
func (r *Reconciler) LastResult() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Status returns the last pass as a JSON snapshot, or nil before the first
// pass. It matches health.StatusFunc.
func (r *Reconciler) Status() any {
	last := r.LastResult()
	if last == nil {
		return nil
	}
	return last.Snapshot()
}

// Degraded reports whether the last pass left any target failed. It matches
// health.DegradedChecker.
func (r *Reconciler) Degraded(_ context.Context) (bool, string) {
	last := r.LastResult()
	if last == nil {
		return true, "no reconciliation pass has completed yet"
	}
	if last.HasErrors() {
		return true, fmt.Sprintf("%d of %d targets failed in pass %s", last.FailedCount(), len(last.Outcomes), last.PassID)
	}
	return false, ""
}

func (r *Reconciler) observeProviderCall(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	name := r.provider.Name()
	metrics.ProviderAPIRequestsTotal.WithLabelValues(name, operation, status).Inc()
	metrics.ProviderAPIDuration.WithLabelValues(name, operation).Observe(time.Since(start).Seconds())
}

// recordMetrics records Prometheus metrics from a pass result.
func (r *Reconciler) recordMetrics(result *Result, obs source.Observation, failure *sourceFailure) {
	status := "success"
	if result.HasErrors() {
		status = "error"
	}
	metrics.PassesTotal.WithLabelValues(status).Inc()
	metrics.PassDuration.Observe(result.Duration().Seconds())
	metrics.LastPassTimestamp.Set(float64(result.EndTime.Unix()))
	if !result.HasErrors() {
		metrics.LastSuccessTimestamp.Set(float64(result.EndTime.Unix()))
	}

	if failure == nil {
		metrics.SetObservedAddress(string(source.FamilyIPv4), obs.IPv4)
		metrics.SetObservedAddress(string(source.FamilyIPv6), obs.IPv6)
	}

	for _, o := range result.Outcomes {
		rt := string(o.Type)
		switch o.Status {
		case StatusUpdated:
			metrics.RecordsUpdatedTotal.WithLabelValues(rt).Inc()
		case StatusUnchanged:
			metrics.RecordsUnchangedTotal.WithLabelValues(rt).Inc()
		case StatusDryRun:
			metrics.RecordsDryRunTotal.WithLabelValues(rt).Inc()
		case StatusFailed:
			metrics.RecordsFailedTotal.WithLabelValues(rt, string(o.Stage)).Inc()
		}
	}
}
