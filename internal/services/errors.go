package services

import (
	"context"
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

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind reports a short label for the marker carried by err. Context deadline
// errors are reported as timeouts even when they were never wrapped.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "transient"
	}
}

// Hint returns an operator-facing next step for the error class.
func Hint(err error) string {
	switch Kind(err) {
	case "configuration":
		return "check config.toml and required credentials"
	case "validation":
		return "inspect the item; rerun with --force once the source is fixed"
	case "not_found":
		return "the remote source has no such document"
	case "timeout":
		return "rerun the stage; consider a larger --delay"
	case "external_tool":
		return "verify the external tool or service is reachable (archivist doctor)"
	case "":
		return ""
	default:
		return "rerun the stage; failed items are retried automatically"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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

// StatusMarker classifies an HTTP status returned by a collaborator:
// 404/410 as ErrNotFound, 408/429/5xx as ErrTransient, other 4xx as
// ErrExternalTool. Successful statuses yield nil.
func StatusMarker(code int) error {
	switch {
	case code < 300:
		return nil
	case code == 404 || code == 410:
		return ErrNotFound
	case code == 408 || code == 429 || code >= 500:
		return ErrTransient
	default:
		return ErrExternalTool
	}
}
