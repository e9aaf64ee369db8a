// Package speech watches the mailbox for transcription jobs and answers each
// one with a keyed result record.
//
// The watcher runs on its own goroutine with its own cadence, so a slow
// transcription never delays request handling. Each job is claimed by
// deleting its record before any work starts; a failure or panic inside one
// job becomes a failed result and the loop moves on.
package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"reviewgate/internal/fileutil"
	"reviewgate/internal/logging"
	"reviewgate/internal/mailbox"
	"reviewgate/internal/metrics"
	"reviewgate/internal/notifications"
	"reviewgate/internal/services"
)

// ToolName marks a trigger as a transcription job.
const ToolName = "speech_to_text"

// Transcriber converts an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Recorder persists job outcomes. The journal implements it.
type Recorder interface {
	RecordSpeechJob(ctx context.Context, res Result) error
}

// Job is a parsed transcription request.
type Job struct {
	TriggerID string
	AudioFile string
	Path      string
}

type jobDocument struct {
	Data struct {
		Tool      string `json:"tool"`
		AudioFile string `json:"audio_file"`
		TriggerID string `json:"trigger_id"`
	} `json:"data"`
}

// Result is the on-disk shape of a transcription response.
type Result struct {
	Timestamp     string  `json:"timestamp"`
	TriggerID     string  `json:"trigger_id"`
	Transcription string  `json:"transcription"`
	Success       bool    `json:"success"`
	Error         *string `json:"error"`
	Source        string  `json:"source"`
}

// Options tunes the watcher.
type Options struct {
	Interval time.Duration
	// MalformedGrace is how long an unparseable job may stay before it is
	// assumed abandoned rather than mid-write.
	MalformedGrace    time.Duration
	TranscribeTimeout time.Duration
	// Source is recorded in every result.
	Source   string
	Metrics  *metrics.Metrics
	Recorder Recorder
	Alerts   *notifications.Dispatcher
}

var (
	errNotAJob       = errors.New("not a speech job")
	errIncompleteJob = errors.New("job is missing audio_file or trigger_id")
)

// Watcher scans for and processes transcription jobs.
type Watcher struct {
	layout      mailbox.Layout
	transcriber Transcriber
	opts        Options
	logger      *slog.Logger
	now         func() time.Time
}

// New constructs a watcher. A nil transcriber makes every job fail with a
// clear error instead of disabling the watcher.
func New(layout mailbox.Layout, transcriber Transcriber, opts Options, logger *slog.Logger) *Watcher {
	if opts.Source == "" {
		opts.Source = "reviewgate"
	}
	return &Watcher{
		layout:      layout,
		transcriber: transcriber,
		opts:        opts,
		logger:      logging.NewComponentLogger(logger, "speech"),
		now:         time.Now,
	}
}

// Run scans every interval until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	w.logger.Info("speech watcher started", logging.Duration("interval", w.opts.Interval))
	for {
		w.Scan(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Scan processes every pending job once, oldest name first, and returns how
// many jobs were claimed.
func (w *Watcher) Scan(ctx context.Context) int {
	matches, err := filepath.Glob(w.layout.SpeechTriggerGlob())
	if err != nil {
		w.logger.Error("scan speech jobs", logging.Error(err))
		return 0
	}
	sort.Strings(matches)

	claimed := 0
	for _, path := range matches {
		if ctx.Err() != nil {
			break
		}
		if w.handle(ctx, path) {
			claimed++
		}
	}
	return claimed
}

// handle returns true when the job at path was claimed.
func (w *Watcher) handle(ctx context.Context, path string) bool {
	job, err := w.load(path)
	switch {
	case errors.Is(err, errNotAJob):
		return false
	case errors.Is(err, mailbox.ErrMalformedRecord):
		w.handleMalformed(path, err)
		return false
	case errors.Is(err, errIncompleteJob):
		if claimed, _ := fileutil.Claim(path); !claimed {
			return false
		}
		if job.TriggerID == "" {
			logging.WarnWithContext(w.logger, "discarded speech job without trigger id", "speech_job_invalid",
				logging.Path(path),
				logging.String(logging.FieldImpact, "no result can be addressed"),
			)
			return true
		}
		w.finish(ctx, job, "", err)
		return true
	case err != nil:
		w.logger.Debug("speech job unreadable", logging.Path(path), logging.Error(err))
		return false
	}

	claimed, err := fileutil.Claim(path)
	if err != nil {
		logging.WarnWithContext(w.logger, "could not claim speech job", "speech_claim_failed",
			logging.Path(path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job retried on next scan"),
		)
		return false
	}
	if !claimed {
		return false
	}

	text, runErr := w.transcribe(ctx, job)
	w.finish(ctx, job, text, runErr)
	return true
}

func (w *Watcher) load(path string) (Job, error) {
	data, ok, err := fileutil.ReadIfExists(path)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", mailbox.ErrTransientIO, err)
	}
	if !ok {
		return Job{}, errNotAJob
	}
	var doc jobDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Job{}, fmt.Errorf("%w: %v", mailbox.ErrMalformedRecord, err)
	}
	if doc.Data.Tool != ToolName {
		return Job{}, errNotAJob
	}
	job := Job{TriggerID: doc.Data.TriggerID, AudioFile: doc.Data.AudioFile, Path: path}
	if job.TriggerID == "" || job.AudioFile == "" {
		return job, errIncompleteJob
	}
	return job, nil
}

// handleMalformed leaves young records alone, since they may be mid-write,
// and removes ones older than the grace period.
func (w *Watcher) handleMalformed(path string, cause error) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if w.now().Sub(info.ModTime()) < w.opts.MalformedGrace {
		return
	}
	if claimed, _ := fileutil.Claim(path); claimed {
		logging.WarnWithContext(w.logger, "removed malformed speech job", "speech_job_malformed",
			logging.Path(path),
			logging.Error(cause),
			logging.String(logging.FieldImpact, "the dictation is dropped"),
			logging.String(logging.FieldErrorHint, "frontend must write {\"data\":{\"tool\":\"speech_to_text\",...}}"),
		)
		w.opts.Metrics.SpeechJob(false)
	}
}

// transcribe validates input and runs the transcriber, converting a panic
// into an error.
func (w *Watcher) transcribe(ctx context.Context, job Job) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transcriber panic: %v", r)
		}
	}()
	if w.transcriber == nil {
		return "", errors.New("transcriber not available")
	}
	if _, statErr := os.Stat(job.AudioFile); statErr != nil {
		return "", fmt.Errorf("audio file not found: %s", job.AudioFile)
	}
	runCtx := ctx
	if w.opts.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.opts.TranscribeTimeout)
		defer cancel()
	}
	return w.transcriber.Transcribe(runCtx, job.AudioFile)
}

func (w *Watcher) finish(ctx context.Context, job Job, text string, runErr error) {
	logger := w.logger.With(logging.CorrelationID(job.TriggerID))
	res := Result{
		Timestamp:     mailbox.Timestamp(w.now()),
		TriggerID:     job.TriggerID,
		Transcription: text,
		Success:       runErr == nil,
		Source:        w.opts.Source,
	}
	if runErr != nil {
		msg := runErr.Error()
		res.Error = &msg
		res.Transcription = ""
	}

	if err := w.writeResult(job.TriggerID, res); err != nil {
		logging.ErrorWithContext(logger, "speech result write failed", "speech_result_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check mailbox directory permissions"),
		)
	}

	if runErr != nil {
		logging.WarnWithContext(logger, "speech job failed", "speech_job_failed",
			logging.Error(runErr),
			logging.String("audio_file", job.AudioFile),
			logging.String(logging.FieldErrorHint, services.Hint(runErr)),
			logging.String(logging.FieldImpact, "the frontend receives a failed transcription"),
		)
		w.opts.Alerts.Publish(notifications.EventSpeechFailed, notifications.Payload{
			"id":    job.TriggerID,
			"error": runErr.Error(),
		})
	} else {
		logger.Info("speech job transcribed", logging.Int("chars", len(text)))
		if err := fileutil.RemoveIfExists(job.AudioFile); err != nil {
			logging.WarnWithContext(logger, "audio cleanup failed", "speech_audio_cleanup",
				logging.Path(job.AudioFile),
				logging.Error(err),
				logging.String(logging.FieldImpact, "audio file remains on disk"),
			)
		}
	}

	w.opts.Metrics.SpeechJob(res.Success)
	if w.opts.Recorder != nil {
		if err := w.opts.Recorder.RecordSpeechJob(ctx, res); err != nil {
			logger.Debug("journal speech job", logging.Error(err))
		}
	}
}

func (w *Watcher) writeResult(id string, res Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode speech result: %w", err)
	}
	return fileutil.WriteFileAtomic(w.layout.SpeechResponsePath(id), data, 0o644)
}

// ReadResult loads a speech result record, for tests and the CLI.
func ReadResult(layout mailbox.Layout, id string) (Result, bool, error) {
	data, ok, err := fileutil.ReadIfExists(layout.SpeechResponsePath(id))
	if err != nil || !ok {
		return Result{}, ok, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, true, fmt.Errorf("%w: %v", mailbox.ErrMalformedRecord, err)
	}
	return res, true, nil
}
