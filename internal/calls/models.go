package calls

import (
	"time"

	"voicecrm/internal/store"
)

// Call is one tenant-scoped dialing attempt against a contact, driven by a
// campaign.
//
// Status transitions are monotonic: scheduled -> in_progress -> a terminal
// state, and nothing ever leaves a terminal state.
type Call struct {
	store.Meta

	TenantID   string `json:"tenant_id"`
	ContactID  string `json:"contact_id"`
	CampaignID string `json:"campaign_id"`

	PhoneNumber string `json:"phone_number"`

	Status CallStatus `json:"status"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	DurationSeconds int `json:"duration_seconds,omitempty"`

	Notes string `json:"notes,omitempty"`
}

type CallStatus string

const (
	StatusScheduled  CallStatus = "scheduled"
	StatusInProgress CallStatus = "in_progress"
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
	StatusNoAnswer   CallStatus = "no_answer"
	StatusBusy       CallStatus = "busy"
)

// Terminal reports whether no further transitions are allowed.
func (s CallStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusNoAnswer, StatusBusy:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is allowed.
func (s CallStatus) CanTransition(next CallStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusScheduled:
		return next == StatusInProgress || next == StatusFailed ||
			next == StatusNoAnswer || next == StatusBusy
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}
