package quoteform

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// SubmissionPending represents a queued submission.
	SubmissionPending = "pending"
	// SubmissionProcessing represents a submission currently being processed.
	SubmissionProcessing = "processing"
	// SubmissionCompleted marks a submission that was accepted by the worker.
	SubmissionCompleted = "completed"
	// SubmissionFailed marks a submission the worker could not accept.
	SubmissionFailed = "failed"
)

// QuoteSubmission is a persisted quote request awaiting or finished processing.
type QuoteSubmission struct {
	ID              string            `json:"id" gorm:"type:uuid;primaryKey"`
	ClientReference string            `json:"clientReference" gorm:"type:varchar(128);uniqueIndex"`
	Status          string            `json:"status" gorm:"not null;index"`
	ErrorMessage    string            `json:"errorMessage"`
	Payload         datatypes.JSONMap `json:"payload" gorm:"type:jsonb"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	CompletedAt     *time.Time        `json:"completedAt"`
}

// TableName pins the table name.
func (QuoteSubmission) TableName() string {
	return "quote_submissions"
}

// BeforeCreate assigns defaults on submissions.
func (s *QuoteSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.ClientReference == "" {
		s.ClientReference = s.ID
	}
	if s.Status == "" {
		s.Status = SubmissionPending
	}
	return nil
}

// ToDTO exposes submission data for clients.
func (s QuoteSubmission) ToDTO() map[string]any {
	dto := map[string]any{
		"id":              s.ID,
		"clientReference": s.ClientReference,
		"status":          s.Status,
		"createdAt":       s.CreatedAt,
		"updatedAt":       s.UpdatedAt,
	}
	if s.Payload != nil {
		dto["fields"] = map[string]any(s.Payload)
	} else {
		dto["fields"] = map[string]any{}
	}
	if s.CompletedAt != nil {
		dto["completedAt"] = s.CompletedAt
	}
	if s.ErrorMessage != "" {
		dto["errorMessage"] = s.ErrorMessage
	}
	return dto
}

// ToAck converts the submission into the acknowledgement handed to the form.
func (s QuoteSubmission) ToAck() Ack {
	return Ack{ID: s.ID, Reference: s.ClientReference, ReceivedAt: s.CreatedAt}
}

func payloadFromRecord(r Record) datatypes.JSONMap {
	payload := make(datatypes.JSONMap, fieldCount)
	for _, f := range Fields() {
		payload[f.String()] = r.Get(f)
	}
	return payload
}

// ToRecord rebuilds the form record from the stored payload.
func (s QuoteSubmission) ToRecord() (Record, error) {
	if s.Payload == nil {
		return Record{}, errors.New("quote submission has no payload")
	}
	values := make(map[string]string, len(s.Payload))
	for key, raw := range s.Payload {
		value, ok := raw.(string)
		if !ok && raw != nil {
			return Record{}, fmt.Errorf("quote submission field %q is not a string", key)
		}
		values[key] = value
	}
	return RecordFromMap(values)
}
