package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent is written in the same transaction as the state change it
// describes and relayed to the broker by the worker.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// EventInvoiceSubmitted is published when an invoice is finalized.
const EventInvoiceSubmitted = "invoice.submitted"

// InvoiceSubmittedPayload is the outbox payload for EventInvoiceSubmitted.
type InvoiceSubmittedPayload struct {
	InvoiceID       uuid.UUID `json:"invoice_id"`
	Number          string    `json:"number"`
	ProviderID      uuid.UUID `json:"provider_id"`
	TotalValueCents int64     `json:"total_value_cents"`
	GuideCount      int       `json:"guide_count"`
	SubmittedAt     time.Time `json:"submitted_at"`
}
