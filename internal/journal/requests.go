package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Request is one journaled request.
type Request struct {
	CorrelationID string
	Kind          string
	State         string
	CreatedAt     time.Time
	Acked         bool
	CompletedAt   *time.Time
	ResponseText  string
	Attachments   int
	LegacySlot    bool
}

// Outcome describes how a request ended.
type Outcome struct {
	State       string
	Text        string
	Attachments int
	LegacySlot  bool
	CompletedAt time.Time
}

// RecordEmitted inserts a request in the awaiting-ack state.
func (j *Journal) RecordEmitted(ctx context.Context, id, kind string, createdAt time.Time) error {
	_, err := j.exec(ctx,
		`INSERT INTO requests (correlation_id, kind, state, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(correlation_id) DO UPDATE SET kind = excluded.kind, state = excluded.state, created_at = excluded.created_at`,
		id, kind, StateAwaitingAck, formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("journal emitted %s: %w", id, err)
	}
	return nil
}

// RecordAck marks the request acknowledged and awaiting its response.
func (j *Journal) RecordAck(ctx context.Context, id string) error {
	_, err := j.exec(ctx,
		`UPDATE requests SET acked = 1, state = CASE WHEN state = ? THEN ? ELSE state END WHERE correlation_id = ?`,
		StateAwaitingAck, StateAwaitingResponse, id,
	)
	if err != nil {
		return fmt.Errorf("journal ack %s: %w", id, err)
	}
	return nil
}

// RecordOutcome stores the terminal state of a request.
func (j *Journal) RecordOutcome(ctx context.Context, id string, out Outcome) error {
	completed := out.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	_, err := j.exec(ctx,
		`UPDATE requests SET state = ?, completed_at = ?, response_text = ?, attachments = ?, legacy_slot = ?
		 WHERE correlation_id = ?`,
		out.State, formatTime(completed), nullableString(out.Text), out.Attachments, boolToInt(out.LegacySlot), id,
	)
	if err != nil {
		return fmt.Errorf("journal outcome %s: %w", id, err)
	}
	return nil
}

// History returns the most recent requests, newest first.
func (j *Journal) History(ctx context.Context, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT correlation_id, kind, state, created_at, acked, completed_at, response_text, attachments, legacy_slot
		 FROM requests ORDER BY created_at DESC, correlation_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var (
			r         Request
			created   string
			completed sql.NullString
			text      sql.NullString
			acked     int
			legacy    int
		)
		if err := rows.Scan(&r.CorrelationID, &r.Kind, &r.State, &created, &acked, &completed, &text, &r.Attachments, &legacy); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.CreatedAt = parseTime(created)
		r.Acked = acked != 0
		r.LegacySlot = legacy != 0
		r.ResponseText = text.String
		if completed.Valid {
			t := parseTime(completed.String)
			r.CompletedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats counts requests by state.
func (j *Journal) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM requests GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// MarkAbandoned moves requests still waiting from a previous daemon run to
// cancelled, since delivery does not survive a restart.
func (j *Journal) MarkAbandoned(ctx context.Context) (int64, error) {
	res, err := j.exec(ctx,
		`UPDATE requests SET state = ?, completed_at = ? WHERE state IN (?, ?)`,
		StateCancelled, formatTime(time.Now()), StateAwaitingAck, StateAwaitingResponse,
	)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes requests and speech jobs recorded before cutoff.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := formatTime(cutoff)
	res, err := j.exec(ctx, `DELETE FROM requests WHERE created_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("prune requests: %w", err)
	}
	removed, _ := res.RowsAffected()
	res, err = j.exec(ctx, `DELETE FROM speech_jobs WHERE recorded_at < ?`, ts)
	if err != nil {
		return removed, fmt.Errorf("prune speech jobs: %w", err)
	}
	more, _ := res.RowsAffected()
	return removed + more, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
