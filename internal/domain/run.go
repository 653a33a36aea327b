package domain

import "time"

// Outcome classifies a single availability check.
type Outcome string

const (
	// OutcomeAvailable means the results page offered selectable sailings.
	OutcomeAvailable Outcome = "available"
	// OutcomeUnavailable means the results page showed a no-availability indicator.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeError means the check could not reach a recognisable results page.
	OutcomeError Outcome = "error"
)

// Succeeded reports whether the check itself worked, regardless of seat availability.
func (o Outcome) Succeeded() bool {
	return o == OutcomeAvailable || o == OutcomeUnavailable
}

// Diagnostic is the page state captured when a run ends in error.
type Diagnostic struct {
	Screenshot []byte
	PageText   string
	HTML       string
	URL        string
	Title      string
	CapturedAt time.Time
}

// RunResult is everything a single run produced. Nothing in it outlives the process
// except what run observers choose to persist.
type RunResult struct {
	RunID      string
	Criteria   SearchCriteria
	Outcome    Outcome
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time

	Err           error
	Diagnostic    *Diagnostic
	ArtifactPaths []string

	Notified  bool
	NotifyErr error
}

// Duration returns how long the run took.
func (r RunResult) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunSummary is the persisted view of a finished run, as listed by the history command.
type RunSummary struct {
	RunID         string
	Outbound      Leg
	Return        Leg
	Outcome       Outcome
	Reason        string
	ErrorLabel    string
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
	Notified      bool
	NotifyError   string
	ArtifactPaths []string
}

// Duration returns how long the run took.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Summarise flattens a result into its persisted view.
func (r RunResult) Summarise() RunSummary {
	summary := RunSummary{
		RunID:         r.RunID,
		Outbound:      r.Criteria.Outbound,
		Return:        r.Criteria.Return,
		Outcome:       r.Outcome,
		Reason:        r.Reason,
		ErrorLabel:    ErrorLabel(r.Err),
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		Notified:      r.Notified,
		ArtifactPaths: r.ArtifactPaths,
	}
	if r.Err != nil {
		summary.Error = r.Err.Error()
	}
	if r.NotifyErr != nil {
		summary.NotifyError = r.NotifyErr.Error()
	}
	return summary
}
