package reconciler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gitlab.bluewillows.net/root/wansync/pkg/provider"
)

// Status is the outcome of reconciling one target.
type Status string

const (
	// StatusUnchanged indicates the published value already matched.
	StatusUnchanged Status = "unchanged"
	// StatusUpdated indicates the record was upserted.
	StatusUpdated Status = "updated"
	// StatusDryRun indicates a change was detected but not applied.
	StatusDryRun Status = "dry-run"
	// StatusFailed indicates the target could not be reconciled.
	StatusFailed Status = "failed"
)

// Stage names the step at which a target failed.
type Stage string

const (
	StageGatewayAuth  Stage = "gateway_auth"
	StageGatewayFetch Stage = "gateway_fetch"
	StageDNSLookup    Stage = "dns_lookup"
	StageDNSUpdate    Stage = "dns_update"
)

// Outcome is the result of reconciling a single target.
type Outcome struct {
	// Type is the record type (A or AAAA).
	Type provider.RecordType

	// Name is the record FQDN.
	Name string

	// Previous is the published value before the pass. Empty means no record.
	Previous string

	// Current is the observed address.
	Current string

	// Changed is true when Previous and Current differ.
	Changed bool

	// Applied is true when an upsert succeeded.
	Applied bool

	Status Status

	// Stage and Error are set when Status is StatusFailed.
	Stage Stage
	Error error
}

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	if o.Status == StatusFailed {
		return fmt.Sprintf("[%s] %s %s (%s): %v", o.Status, o.Type, o.Name, o.Stage, o.Error)
	}
	return fmt.Sprintf("[%s] %s %s %s -> %s", o.Status, o.Type, o.Name, displayValue(o.Previous), displayValue(o.Current))
}

// Result holds the complete result of a reconciliation pass.
type Result struct {
	// PassID correlates the log lines of one pass.
	PassID string

	// StartTime is when the pass started.
	StartTime time.Time

	// EndTime is when the pass completed.
	EndTime time.Time

	// Source is the address source that was consulted.
	Source string

	// Outcomes holds one entry per evaluated target, in target order.
	Outcomes []Outcome

	// Absent counts targets skipped because the family is not configured
	// upstream. They are neither outcomes nor failures.
	Absent int

	// DryRun indicates if this was a dry-run (no changes applied).
	DryRun bool
}

// NewResult creates a new Result with a fresh pass ID and the start time set
// to now.
func NewResult(dryRun bool) *Result {
	return &Result{
		PassID:    uuid.NewString(),
		StartTime: time.Now(),
		Outcomes:  make([]Outcome, 0),
		DryRun:    dryRun,
	}
}

// Complete marks the result as complete with the end time set to now.
func (r *Result) Complete() {
	r.EndTime = time.Now()
}

// Duration returns the total pass duration.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// AddOutcome appends an outcome to the result.
func (r *Result) AddOutcome(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Updated returns all applied updates.
func (r *Result) Updated() []Outcome {
	return r.filter(StatusUpdated)
}

// Unchanged returns all targets that already matched.
func (r *Result) Unchanged() []Outcome {
	return r.filter(StatusUnchanged)
}

// Pending returns all changes that were skipped in dry-run mode.
func (r *Result) Pending() []Outcome {
	return r.filter(StatusDryRun)
}

// Failed returns all failed targets.
func (r *Result) Failed() []Outcome {
	return r.filter(StatusFailed)
}

func (r *Result) filter(status Status) []Outcome {
	var filtered []Outcome
	for _, o := range r.Outcomes {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// FailedCount returns the number of failed targets.
func (r *Result) FailedCount() int {
	return len(r.Failed())
}

// HasErrors returns true if any target failed.
func (r *Result) HasErrors() bool {
	return r.FailedCount() > 0
}

// Err joins the errors of all failed targets, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s %s (%s): %w", o.Type, o.Name, o.Stage, o.Error))
	}
	return errors.Join(errs...)
}

// Summary returns a human-readable summary of the pass.
func (r *Result) Summary() string {
	var sb strings.Builder

	mode := "applied"
	if r.DryRun {
		mode = "dry-run"
	}

	fmt.Fprintf(&sb, "Reconciliation complete (%s) in %s\n", mode, r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "  Records updated: %d\n", len(r.Updated()))
	fmt.Fprintf(&sb, "  Records unchanged: %d\n", len(r.Unchanged()))
	if r.DryRun {
		fmt.Fprintf(&sb, "  Changes not applied: %d\n", len(r.Pending()))
	}
	fmt.Fprintf(&sb, "  Families not configured: %d\n", r.Absent)

	if r.HasErrors() {
		fmt.Fprintf(&sb, "  Failed: %d\n", r.FailedCount())
		for _, o := range r.Failed() {
			fmt.Fprintf(&sb, "    - %s\n", o.String())
		}
	}

	return sb.String()
}

// Snapshot is a JSON view of a finished pass for the status endpoint.
type Snapshot struct {
	PassID     string            `json:"pass_id"`
	Source     string            `json:"source"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DryRun     bool              `json:"dry_run"`
	Absent     int               `json:"absent"`
	Outcomes   []OutcomeSnapshot `json:"outcomes"`
}

// OutcomeSnapshot is the JSON view of one Outcome.
type OutcomeSnapshot struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Previous string `json:"previous,omitempty"`
	Current  string `json:"current,omitempty"`
	Changed  bool   `json:"changed"`
	Applied  bool   `json:"applied"`
	Status   string `json:"status"`
	Stage    string `json:"stage,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Snapshot converts the result for JSON encoding.
func (r *Result) Snapshot() Snapshot {
	s := Snapshot{
		PassID:     r.PassID,
		Source:     r.Source,
		StartedAt:  r.StartTime,
		FinishedAt: r.EndTime,
		DryRun:     r.DryRun,
		Absent:     r.Absent,
		Outcomes:   make([]OutcomeSnapshot, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		snap := OutcomeSnapshot{
			Type:     string(o.Type),
			Name:     o.Name,
			Previous: o.Previous,
			Current:  o.Current,
			Changed:  o.Changed,
			Applied:  o.Applied,
			Status:   string(o.Status),
			Stage:    string(o.Stage),
		}
		if o.Error != nil {
			snap.Error = o.Error.Error()
		}
		s.Outcomes = append(s.Outcomes, snap)
	}
	return s
}
