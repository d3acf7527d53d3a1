// Package errors defines the error taxonomy shared across the operator.
//
// Transient errors indicate temporary conditions that resolve on their own
// and should be retried. Permanent errors indicate missing or invalid
// operator input and should surface as a Blocked status instead of a retry.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrWorkloadUnavailable indicates the workload container cannot be reached
// or its service is not running yet. Handlers respond by deferring the event
// or reporting a Waiting status, never by failing.
var ErrWorkloadUnavailable = errors.New("workload unavailable")

// ErrMissingIntegration indicates a required integration is absent. Only
// operator action (adding the integration) resolves it.
var ErrMissingIntegration = errors.New("missing integration")

// ErrClientNotFound indicates the authorization server has no client record
// for the requested identifier. It is a distinguished sub-case of command
// failure so administrative actions can report "not found" instead of a
// generic error.
var ErrClientNotFound = errors.New("oauth client not found")

// ErrMigrationFailed indicates the schema migration plan did not apply.
var ErrMigrationFailed = errors.New("database migration failed")

// ErrInvalidSecretContent indicates secret material failed validation, for
// example a key shorter than the minimum length the workload accepts.
var ErrInvalidSecretContent = errors.New("invalid secret content")

// clientNotFoundMarker is the substring the hydra CLI prints on stderr when
// a client id does not resolve. This is a CLI contract and must not change.
const clientNotFoundMarker = "Unable to locate the resource"

// ExecError is a failed invocation of the hydra binary inside the workload
// container. It carries the exit code and captured stderr so callers can
// classify the failure.
type ExecError struct {
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("command exited with code %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

// IsClientNotFound reports whether err represents a missing client record,
// either as the sentinel or as an ExecError whose stderr carries the
// not-found marker.
func IsClientNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClientNotFound) {
		return true
	}

	var execErr *ExecError
	if errors.As(err, &execErr) {
		return strings.Contains(execErr.Stderr, clientNotFoundMarker)
	}

	return false
}

// IsWorkloadUnavailable reports whether err is a transient workload
// availability problem: the sentinel itself, or a network-level failure
// reaching the container runtime.
func IsWorkloadUnavailable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrWorkloadUnavailable) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"context deadline exceeded",
		"i/o timeout",
		"no such host",
		"network is unreachable",
		"container not found",
		"pod not found",
		"broken pipe",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsPermanent reports whether err requires operator intervention.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrMissingIntegration) || errors.Is(err, ErrInvalidSecretContent)
}

// WrapWorkloadUnavailable wraps err as a workload availability problem.
// Already-classified errors are returned as-is.
func WrapWorkloadUnavailable(err error) error {
	if err == nil {
		return nil
	}

	if IsWorkloadUnavailable(err) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrWorkloadUnavailable, err)
}

// ShouldRequeue determines whether an error should trigger a requeue and
// after what delay. Transient errors requeue shortly; permanent errors wait
// for a spec change instead.
func ShouldRequeue(err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}

	if IsWorkloadUnavailable(err) {
		return true, 5 * time.Second
	}

	if IsPermanent(err) {
		return false, 0
	}

	// Unknown errors default to requeue; controller-runtime applies backoff.
	return true, 0
}
