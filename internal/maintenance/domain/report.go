package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	alerts "smart-maintenance/internal/alerts/domain"
	evidence "smart-maintenance/internal/evidence/domain"
	plan "smart-maintenance/internal/plan/domain"
	risk "smart-maintenance/internal/risk/domain"
)

// ErrNotFound indicates a missing report.
var ErrNotFound = errors.New("maintenance: report not found")

// State is a pipeline stage.
type State string

const (
	StateIdle               State = "idle"
	StateScoringRisk        State = "scoring_risk"
	StateRetrievingEvidence State = "retrieving_evidence"
	StateGeneratingPlan     State = "generating_plan"
	StateDispatching        State = "dispatching"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

var transitions = map[State]State{
	StateIdle:               StateScoringRisk,
	StateScoringRisk:        StateRetrievingEvidence,
	StateRetrievingEvidence: StateGeneratingPlan,
	StateGeneratingPlan:     StateDispatching,
	StateDispatching:        StateDone,
}

// CanTransition reports whether from -> to is allowed. Any non-terminal state may fail.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateDone && from != StateFailed
	}
	next, ok := transitions[from]
	return ok && next == to
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// DegradedMarker notes a non-fatal stage failure.
type DegradedMarker struct {
	Stage  State  `json:"stage"`
	Reason string `json:"reason"`
}

// Report is the outcome of one completed run.
type Report struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenant_id,omitempty"`
	DeviceID    string             `json:"device_id"`
	Assessment  risk.Assessment    `json:"assessment"`
	Evidence    []evidence.Snippet `json:"evidence"`
	Plan        plan.RepairPlan    `json:"plan"`
	Alert       alerts.Event       `json:"alert"`
	Degraded    []DegradedMarker   `json:"degraded"`
	States      []State            `json:"states"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// IsDegraded reports whether any stage degraded.
func (r Report) IsDegraded() bool {
	return len(r.Degraded) > 0
}

// RunError is returned when a run ends in the failed state.
type RunError struct {
	DeviceID string
	Stage    State
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("maintenance run %s failed at %s: %v", e.DeviceID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ReportSink persists completed reports.
type ReportSink interface {
	Save(ctx context.Context, report *Report) error
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	TenantID string
	DeviceID string
	From     time.Time
	To       time.Time
	Limit    int
}

// ReportRepository reads stored reports.
type ReportRepository interface {
	ReportSink
	Get(ctx context.Context, id string) (*Report, error)
	List(ctx context.Context, filter ReportFilter) ([]Report, error)
}
