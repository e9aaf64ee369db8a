// Package services holds shared helpers for the external tools reviewgate
// drives, currently the WhisperX transcriber.
//
// Wrap tags failures with one of the sentinel markers so callers can log a
// consistent error hint via Hint without parsing tool output.
package services
