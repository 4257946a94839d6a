// Package submit orchestrates declaration submission attempts across the
// FTP and web portal channels and owns the submission record lifecycle.
package submit

import (
	"time"

	"github.com/google/uuid"

	"tradewire/internal/credential"
)

// Status values for a submission record. A record starts pending and
// ends in exactly one terminal status; it never returns to pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
)

// Record is one submission attempt. Attempt history is append-only: a
// retry creates a fresh record instead of mutating the failed one.
type Record struct {
	ID                string             `json:"id"`
	DeclarationID     string             `json:"declaration_id"`
	Channel           credential.Channel `json:"channel"`
	Status            Status             `json:"status"`
	IsSuccessful      bool               `json:"is_successful"`
	ExternalReference string             `json:"external_reference,omitempty"`
	RequestData       string             `json:"request_data,omitempty"`
	ResponseData      string             `json:"response_data,omitempty"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	RetryCount        int                `json:"retry_count"`
	Retryable         bool               `json:"retryable"`
	Actor             string             `json:"actor,omitempty"`
	StartedAt         time.Time          `json:"started_at"`
	CompletedAt       time.Time          `json:"completed_at,omitempty"`
}

// NewRecord creates a pending record for one attempt.
func NewRecord(declarationID string, channel credential.Channel, actor string) *Record {
	return &Record{
		ID:            uuid.NewString(),
		DeclarationID: declarationID,
		Channel:       channel,
		Status:        StatusPending,
		Actor:         actor,
		StartedAt:     time.Now().UTC(),
	}
}

// MarkSubmitted moves the record to its terminal success state.
func (r *Record) MarkSubmitted(externalRef string) {
	r.Status = StatusSubmitted
	r.IsSuccessful = true
	r.ExternalReference = externalRef
	r.Retryable = false
	r.CompletedAt = time.Now().UTC()
}

// MarkFailed moves the record to its terminal failure state. retryable
// states whether a later attempt could plausibly succeed; configuration
// and validation failures are not retryable, transport and automation
// failures are.
func (r *Record) MarkFailed(errMsg string, retryable bool) {
	r.Status = StatusFailed
	r.IsSuccessful = false
	r.ErrorMessage = errMsg
	r.Retryable = retryable
	r.CompletedAt = time.Now().UTC()
}

// CanRetry reports whether a new attempt may be derived from this
// record. Successful records are never retryable.
func (r *Record) CanRetry() bool {
	return r.Status == StatusFailed && r.Retryable
}
