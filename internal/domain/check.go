package domain

import "time"

// Outcome is the terminal state of a check run.
type Outcome string

const (
	OutcomeValidated          Outcome = "validated"
	OutcomeSchemaMismatch     Outcome = "schema_mismatch"
	OutcomeConfigurationError Outcome = "configuration_error"
	OutcomePassed             Outcome = "passed"
	OutcomeFailed             Outcome = "failed"
)

// OK reports whether the outcome counts as success.
func (o Outcome) OK() bool {
	return o == OutcomeValidated || o == OutcomePassed
}

// ExitCode maps an outcome to the process exit status.
func (o Outcome) ExitCode() int {
	switch {
	case o.OK():
		return 0
	case o == OutcomeConfigurationError:
		return 2
	default:
		return 1
	}
}

// Check names.
const (
	CheckMapping = "mapping"
	CheckTables  = "tables"
	CheckCrawl   = "crawl"
)

// CheckRun is a historical record of one check execution.
type CheckRun struct {
	ID         string    `json:"id"`
	Check      string    `json:"check"`
	Outcome    Outcome   `json:"outcome"`
	Message    string    `json:"message,omitempty"`
	DetailJSON string    `json:"detailJson,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration returns how long the run took.
func (r *CheckRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// CheckRunStore persists check runs.
type CheckRunStore interface {
	CreateRun(r *CheckRun) error
	ListRuns(check string, limit int) ([]CheckRun, error)
	PruneRuns(cutoff time.Time) (int64, error)
}
