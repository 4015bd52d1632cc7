package conversations

import (
	"time"

	"voicecrm/internal/store"
)

// Conversation is the tenant-scoped transcript and collected state of one
// call. Its Stage is always one of the owning campaign's declared stages;
// the agent validates transitions against the campaign definition.
type Conversation struct {
	store.Meta

	TenantID   string `json:"tenant_id"`
	ContactID  string `json:"contact_id"`
	CampaignID string `json:"campaign_id"`
	CallID     string `json:"call_id"`

	Stage string `json:"stage"`

	Transcript []Turn `json:"transcript,omitempty"`

	// CollectedData maps extraction field names to extracted values.
	CollectedData map[string]string `json:"collected_data,omitempty"`

	// StageHistory records every stage move with its trigger, oldest first.
	StageHistory []StageTransition `json:"stage_history,omitempty"`

	DurationSeconds int `json:"duration_seconds,omitempty"`
}

type Turn struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

type StageTransition struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// UserTurns counts the turns spoken by the callee.
func (c Conversation) UserTurns() int {
	n := 0
	for _, t := range c.Transcript {
		if t.Speaker == SpeakerUser {
			n++
		}
	}
	return n
}

// TranscriptText returns the transcript as plain lines for extraction.
func (c Conversation) TranscriptText() []string {
	out := make([]string, 0, len(c.Transcript))
	for _, t := range c.Transcript {
		out = append(out, t.Text)
	}
	return out
}
