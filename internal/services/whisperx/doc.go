// Package whisperx transcribes dictation clips by invoking WhisperX through
// uvx.
//
// Service.Transcribe is the capability the speech job watcher delegates to:
// it runs WhisperX into a scratch directory, reads the JSON segments back and
// returns the joined text. Tests substitute the command runner.
package whisperx
