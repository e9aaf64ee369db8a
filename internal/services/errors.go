package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes service context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, service, operation, message string, err error) error {
	detail := buildDetail(service, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Hint returns operator guidance for a wrapped service failure, or "" when the
// error carries no marker.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "check the speech section of the config and that uvx is installed"
	case errors.Is(err, ErrTimeout):
		return "raise speech.transcribe_timeout_seconds or use a smaller model"
	case errors.Is(err, ErrValidation):
		return "frontend sent an unusable audio path"
	case errors.Is(err, ErrNotFound):
		return "transcriber exited without writing output; inspect its stderr in the error"
	case errors.Is(err, ErrExternalTool):
		return "transcriber failed; run it by hand against the audio file"
	case errors.Is(err, ErrTransient):
		return "retry; check disk space in the scratch directory"
	default:
		return ""
	}
}

func buildDetail(service, operation, message string) string {
	parts := make([]string, 0, 3)
	if service = strings.TrimSpace(service); service != "" {
		parts = append(parts, service)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
