package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"pipecheck/internal/domain"
)

// HistoryStore implements domain.CheckRunStore.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

var _ domain.CheckRunStore = (*HistoryStore)(nil)

// CreateRun inserts r, assigning an id when it has none.
func (s *HistoryStore) CreateRun(r *domain.CheckRun) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = r.StartedAt
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO check_runs (id, check_name, outcome, message, detail_json, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Check, string(r.Outcome), r.Message, r.DetailJSON,
		r.StartedAt.UTC(), r.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert check run: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs first. An empty check lists every check;
// limit <= 0 means no limit.
func (s *HistoryStore) ListRuns(check string, limit int) ([]domain.CheckRun, error) {
	q := `SELECT id, check_name, outcome, message, detail_json, started_at, finished_at
		 FROM check_runs`
	var args []any
	if check != "" {
		q += ` WHERE check_name = ?`
		args = append(args, check)
	}
	q += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query check runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.CheckRun
	for rows.Next() {
		var r domain.CheckRun
		var outcome string
		if err := rows.Scan(&r.ID, &r.Check, &outcome, &r.Message, &r.DetailJSON, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.Outcome = domain.Outcome(outcome)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PruneRuns deletes runs that started before cutoff and returns how many
// were removed.
func (s *HistoryStore) PruneRuns(cutoff time.Time) (int64, error) {
	res, err := s.db.conn.Exec(`DELETE FROM check_runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune check runs: %w", err)
	}
	return res.RowsAffected()
}
