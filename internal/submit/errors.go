package submit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSubmissionInFlight is returned when another attempt for the same
// declaration currently holds the lease.
var ErrSubmissionInFlight = errors.New("submission already in flight for this declaration")

// ErrNotRetryable is returned by Retry for records whose can-retry
// predicate does not hold.
var ErrNotRetryable = errors.New("record is not retryable")

// ConfigurationError means the channel is disabled or the credential is
// incomplete. Fails fast; no network attempt is made and no retry will
// help until configuration changes.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ValidationError carries the blocking precondition failures. Distinct
// from warnings, which never block.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("declaration failed validation: %s", strings.Join(e.Problems, "; "))
}
