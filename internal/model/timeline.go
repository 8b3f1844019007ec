package model

import (
	"time"
)

// TimelineEntry is one row of a patient's cross-entity history, served
// to providers that pass the access gate.
type TimelineEntry struct {
	Kind       string    `json:"kind"` // consultation | prescription | referral | invoice
	BusinessID string    `json:"business_id"`
	Status     string    `json:"status"`
	Summary    string    `json:"summary"`
	OccurredAt time.Time `json:"occurred_at"`
}
