package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reviewgate/internal/speech"
)

// SpeechJob is one journaled transcription.
type SpeechJob struct {
	TriggerID  string
	Success    bool
	Error      string
	Chars      int
	Source     string
	RecordedAt time.Time
}

// RecordSpeechJob stores a transcription result. It satisfies speech.Recorder.
func (j *Journal) RecordSpeechJob(ctx context.Context, res speech.Result) error {
	var errText any
	if res.Error != nil {
		errText = *res.Error
	}
	_, err := j.exec(ctx,
		`INSERT INTO speech_jobs (trigger_id, success, error, chars, source, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		res.TriggerID, boolToInt(res.Success), errText, len(res.Transcription), res.Source, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("journal speech job %s: %w", res.TriggerID, err)
	}
	return nil
}

// SpeechJobs returns the most recent transcriptions, newest first.
func (j *Journal) SpeechJobs(ctx context.Context, limit int) ([]SpeechJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT trigger_id, success, error, chars, source, recorded_at FROM speech_jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query speech jobs: %w", err)
	}
	defer rows.Close()

	var out []SpeechJob
	for rows.Next() {
		var (
			job      SpeechJob
			success  int
			errText  sql.NullString
			source   sql.NullString
			recorded string
		)
		if err := rows.Scan(&job.TriggerID, &success, &errText, &job.Chars, &source, &recorded); err != nil {
			return nil, fmt.Errorf("scan speech job: %w", err)
		}
		job.Success = success != 0
		job.Error = errText.String
		job.Source = source.String
		job.RecordedAt = parseTime(recorded)
		out = append(out, job)
	}
	return out, rows.Err()
}
