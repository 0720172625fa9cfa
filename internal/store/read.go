package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/seqguard/internal/guard"
)

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded harness result.
type Run struct {
	ID         string      `json:"id"`
	Scenario   string      `json:"scenario"`
	Discipline string      `json:"discipline"`
	Pass       bool        `json:"pass"`
	Seq        int64       `json:"seq"`
	Errors     []string    `json:"errors"`
	Stats      guard.Stats `json:"stats"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Event is one recorded trace event. Args and Result hold canonical JSON;
// Result is nil for steps that returned no value.
type Event struct {
	RunID   string          `json:"run_id"`
	Index   int             `json:"idx"`
	Step    string          `json:"step"`
	Op      string          `json:"op"`
	Args    json.RawMessage `json:"args"`
	Outcome string          `json:"outcome"`
	Result  json.RawMessage `json:"result,omitempty"`
}

const runColumns = `id, scenario, discipline, pass, seq, errors, stats, created_at`

// ReadRun returns a single run by ID, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs ordered by seq ASC, id ASC. An empty scenario
// lists every run. Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns a run's trace in recording order.
// Returns an empty slice (not nil) for a run without events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, idx, step, op, args, outcome, result
		FROM run_events
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e      Event
			args   string
			result sql.NullString
		)
		if err := rows.Scan(&e.RunID, &e.Index, &e.Step, &e.Op, &args, &e.Outcome, &result); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Args = json.RawMessage(args)
		if result.Valid {
			e.Result = json.RawMessage(result.String)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run        Run
		errorsJSON string
		statsJSON  string
		createdAt  string
	)
	if err := sc.Scan(&run.ID, &run.Scenario, &run.Discipline, &run.Pass, &run.Seq, &errorsJSON, &statsJSON, &createdAt); err != nil {
		return Run{}, err
	}

	if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
		return Run{}, fmt.Errorf("unmarshal errors: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return Run{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at: %w", err)
	}
	run.CreatedAt = t
	return run, nil
}
