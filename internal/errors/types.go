package errors

import (
	"errors"
	"fmt"
	"time"
)

// SecurityViolation rejects a context before anything is persisted or
// spawned. Never retried automatically.
type SecurityViolation struct {
	Check  string // which validation check failed
	Field  string // offending field, e.g. the artifact path or env var name
	Reason string
}

func (e *SecurityViolation) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("security violation (%s): %s: %s", e.Check, e.Field, e.Reason)
	}
	return fmt.Sprintf("security violation (%s): %s", e.Check, e.Reason)
}

// EncodingError reports a serialization failure. Binary encode failures are
// recovered locally via the JSON fallback; this only surfaces when the
// fallback fails too, or on decode of malformed bytes / an unknown
// extension kind.
type EncodingError struct {
	Stage string // "encode", "fallback-encode", "decode"
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error during %s: %v", e.Stage, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// ChecksumMismatch means a persisted payload no longer matches its stored
// digest. The context is treated as corrupt; no partial load is attempted.
type ChecksumMismatch struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: stored %s, computed %s", e.Path, e.Expected, e.Actual)
}

// ProcessSpawnError means the child process could not be started at all.
// Distinct from a nonzero exit, which is reported as a failed TaskResult.
type ProcessSpawnError struct {
	Command string
	Err     error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Command, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error {
	return e.Err
}

// TimeoutError means the child exceeded its wall-clock budget and was
// forcibly terminated. No partial TaskResult accompanies it.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded timeout of %s and was killed", e.Command, e.Timeout)
}

// PreservedContextError wraps a handover failure whose context/checksum pair
// was intentionally left on disk for postmortem inspection. Path points at
// the preserved payload.
type PreservedContextError struct {
	Path string
	Err  error
}

func (e *PreservedContextError) Error() string {
	return fmt.Sprintf("%v (context preserved at %s)", e.Err, e.Path)
}

func (e *PreservedContextError) Unwrap() error {
	return e.Err
}

// IsSecurityViolation reports whether err is (or wraps) a SecurityViolation.
func IsSecurityViolation(err error) bool {
	var sv *SecurityViolation
	return errors.As(err, &sv)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsChecksumMismatch reports whether err is (or wraps) a ChecksumMismatch.
func IsChecksumMismatch(err error) bool {
	var cm *ChecksumMismatch
	return errors.As(err, &cm)
}

// PreservedPath extracts the preserved context file path from err, if any.
func PreservedPath(err error) string {
	var pe *PreservedContextError
	if errors.As(err, &pe) {
		return pe.Path
	}
	return ""
}

// IsRetryable classifies err for caller-side retry policies. Security
// violations and corrupt payloads never become valid by retrying; spawn
// failures and timeouts might (a missing executable may appear, a busy host
// may free up).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsSecurityViolation(err) || IsChecksumMismatch(err) {
		return false
	}
	var ee *EncodingError
	if errors.As(err, &ee) {
		return false
	}
	var se *ProcessSpawnError
	if errors.As(err, &se) {
		return true
	}
	return IsTimeout(err)
}
