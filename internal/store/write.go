package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/seqguard/internal/harness"
)

// WriteRun records one harness result and its trace in a single
// transaction. The run gets a fresh ID and the next seq; both are returned
// in the Run.
//
// Event args and results are stored as canonical JSON so identical traces
// produce identical rows.
func (s *Store) WriteRun(ctx context.Context, result *harness.Result) (Run, error) {
	errorsJSON, err := marshalErrors(result.Errors)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return Run{}, fmt.Errorf("write run: marshal stats: %w", err)
	}

	events := make([]Event, len(result.Trace))
	for i, ev := range result.Trace {
		e, err := newEvent(i, ev)
		if err != nil {
			return Run{}, fmt.Errorf("write run: event %s: %w", ev.Step, err)
		}
		events[i] = e
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("write run: next seq: %w", err)
	}

	run := Run{
		ID:         s.ids.Generate(),
		Scenario:   result.Scenario,
		Discipline: result.Discipline,
		Pass:       result.Pass,
		Seq:        seq,
		Errors:     append([]string{}, result.Errors...),
		Stats:      result.Stats,
		CreatedAt:  s.now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, discipline, pass, seq, errors, stats, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.Discipline,
		run.Pass,
		run.Seq,
		errorsJSON,
		string(statsJSON),
		run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_events
		(run_id, idx, step, op, args, outcome, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Run{}, fmt.Errorf("write run: prepare events: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		events[i].RunID = run.ID
		e := events[i]

		var resultCol sql.NullString
		if e.Result != nil {
			resultCol = sql.NullString{String: string(e.Result), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, e.RunID, e.Index, e.Step, e.Op, string(e.Args), e.Outcome, resultCol); err != nil {
			return Run{}, fmt.Errorf("write run: insert event %s: %w", e.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}

	return run, nil
}

func newEvent(idx int, ev harness.TraceEvent) (Event, error) {
	args := []byte("{}")
	if len(ev.Args) > 0 {
		b, err := harness.MarshalCanonical(ev.Args)
		if err != nil {
			return Event{}, fmt.Errorf("marshal args: %w", err)
		}
		args = b
	}

	var result json.RawMessage
	if ev.Result != nil {
		b, err := harness.MarshalCanonical(ev.Result)
		if err != nil {
			return Event{}, fmt.Errorf("marshal result: %w", err)
		}
		result = b
	}

	return Event{
		Index:   idx,
		Step:    ev.Step,
		Op:      ev.Op,
		Args:    args,
		Outcome: ev.Outcome,
		Result:  result,
	}, nil
}

func marshalErrors(errs []string) (string, error) {
	list := make([]any, len(errs))
	for i, e := range errs {
		list[i] = e
	}
	b, err := harness.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(b), nil
}
