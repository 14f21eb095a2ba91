package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jdsingh122918/forge/pkg/models"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// Run represents one execution of a phase plan.
type Run struct {
	ID         string     `json:"id"`
	PlanName   string     `json:"plan_name"`
	PlanPath   string     `json:"plan_path"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Status     RunStatus  `json:"status"`
}

// PhaseEvent records one status transition of a phase or sub-phase.
type PhaseEvent struct {
	RunID          string             `json:"run_id"`
	PhaseID        string             `json:"phase_id"`
	Status         models.PhaseStatus `json:"status"`
	IterationsUsed int                `json:"iterations_used"`
	Error          string             `json:"error,omitempty"`
	RecordedAt     time.Time          `json:"recorded_at"`
}

// DecompositionRecord records a successful decomposition of a phase.
type DecompositionRecord struct {
	RunID       string    `json:"run_id"`
	PhaseID     string    `json:"phase_id"`
	Reason      string    `json:"reason"`
	TaskCount   int       `json:"task_count"`
	TotalBudget int       `json:"total_budget"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// CompactionRecord records one context compaction during a phase.
type CompactionRecord struct {
	RunID       string    `json:"run_id"`
	PhaseID     string    `json:"phase_id"`
	CharsBefore int64     `json:"chars_before"`
	CharsAfter  int64     `json:"chars_after"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// CreateRun records a new run.
func (db *DB) CreateRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, plan_name, plan_path, started_at, finished_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.PlanName, r.PlanPath, formatTime(r.StartedAt), nil, string(r.Status))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, plan_name, plan_path, started_at, finished_at, status
		FROM runs WHERE id = ?
	`, id)

	var r Run
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(&r.ID, &r.PlanName, &r.PlanPath, &startedAt, &finishedAt, &r.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// FinishRun marks a run terminal with the given status.
func (db *DB) FinishRun(id string, status RunStatus) error {
	_, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
	`, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// ListRuns lists all runs, optionally filtered by status, newest first.
func (db *DB) ListRuns(status *RunStatus) ([]Run, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT id, plan_name, plan_path, started_at, finished_at, status
			FROM runs WHERE status = ? ORDER BY started_at DESC
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT id, plan_name, plan_path, started_at, finished_at, status
			FROM runs ORDER BY started_at DESC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.PlanName, &r.PlanPath, &startedAt, &finishedAt, &r.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		runs = append(runs, r)
	}
	return runs, nil
}

// GetActiveRun returns the current active run, if any.
func (db *DB) GetActiveRun() (*Run, error) {
	status := RunActive
	runs, err := db.ListRuns(&status)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// RecordPhaseEvent appends a phase status transition.
func (db *DB) RecordPhaseEvent(e *PhaseEvent) error {
	var errStr *string
	if e.Error != "" {
		errStr = &e.Error
	}

	_, err := db.Exec(`
		INSERT INTO phase_events (run_id, phase_id, status, iterations_used, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.RunID, e.PhaseID, string(e.Status), e.IterationsUsed, errStr, formatTime(e.RecordedAt))
	if err != nil {
		return fmt.Errorf("record phase event: %w", err)
	}
	return nil
}

// ListPhaseEvents lists events for a run in recording order.
func (db *DB) ListPhaseEvents(runID string) ([]PhaseEvent, error) {
	rows, err := db.Query(`
		SELECT run_id, phase_id, status, iterations_used, error, recorded_at
		FROM phase_events WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list phase events: %w", err)
	}
	defer rows.Close()

	var events []PhaseEvent
	for rows.Next() {
		var e PhaseEvent
		var recordedAt string
		var errStr sql.NullString
		if err := rows.Scan(&e.RunID, &e.PhaseID, &e.Status, &e.IterationsUsed, &errStr, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan phase event: %w", err)
		}
		if errStr.Valid {
			e.Error = errStr.String
		}
		e.RecordedAt, _ = parseTime(recordedAt)
		events = append(events, e)
	}
	return events, nil
}

// LatestPhaseStatuses returns the most recent recorded status per phase
// for a run.
func (db *DB) LatestPhaseStatuses(runID string) (map[string]models.PhaseStatus, error) {
	events, err := db.ListPhaseEvents(runID)
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]models.PhaseStatus, len(events))
	for _, e := range events {
		statuses[e.PhaseID] = e.Status
	}
	return statuses, nil
}

// RecordDecomposition records a successful decomposition.
func (db *DB) RecordDecomposition(d *DecompositionRecord) error {
	_, err := db.Exec(`
		INSERT INTO decompositions (run_id, phase_id, reason, task_count, total_budget, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.RunID, d.PhaseID, d.Reason, d.TaskCount, d.TotalBudget, formatTime(d.RecordedAt))
	if err != nil {
		return fmt.Errorf("record decomposition: %w", err)
	}
	return nil
}

// ListDecompositions lists decompositions for a run.
func (db *DB) ListDecompositions(runID string) ([]DecompositionRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, phase_id, reason, task_count, total_budget, recorded_at
		FROM decompositions WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list decompositions: %w", err)
	}
	defer rows.Close()

	var records []DecompositionRecord
	for rows.Next() {
		var d DecompositionRecord
		var recordedAt string
		if err := rows.Scan(&d.RunID, &d.PhaseID, &d.Reason, &d.TaskCount, &d.TotalBudget, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan decomposition: %w", err)
		}
		d.RecordedAt, _ = parseTime(recordedAt)
		records = append(records, d)
	}
	return records, nil
}

// RecordCompaction records a context compaction.
func (db *DB) RecordCompaction(c *CompactionRecord) error {
	_, err := db.Exec(`
		INSERT INTO compactions (run_id, phase_id, chars_before, chars_after, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.RunID, c.PhaseID, c.CharsBefore, c.CharsAfter, formatTime(c.RecordedAt))
	if err != nil {
		return fmt.Errorf("record compaction: %w", err)
	}
	return nil
}

// ListCompactions lists compactions for a run.
func (db *DB) ListCompactions(runID string) ([]CompactionRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, phase_id, chars_before, chars_after, recorded_at
		FROM compactions WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list compactions: %w", err)
	}
	defer rows.Close()

	var records []CompactionRecord
	for rows.Next() {
		var c CompactionRecord
		var recordedAt string
		if err := rows.Scan(&c.RunID, &c.PhaseID, &c.CharsBefore, &c.CharsAfter, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan compaction: %w", err)
		}
		c.RecordedAt, _ = parseTime(recordedAt)
		records = append(records, c)
	}
	return records, nil
}
