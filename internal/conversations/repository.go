package conversations

import (
	"fmt"
	"path/filepath"
	"time"

	"voicecrm/internal/store"
)

// Repository provides tenant-scoped access to conversations. Each helper is
// one persisted mutation so a crash mid-call loses at most the in-flight turn.
type Repository struct {
	col   *store.Collection[Conversation, *Conversation]
	clock func() time.Time
}

func Open(dataDir string) (*Repository, error) {
	col, err := store.Open[Conversation, *Conversation](filepath.Join(dataDir, "conversations.json"))
	if err != nil {
		return nil, err
	}
	return &Repository{col: col, clock: time.Now}, nil
}

func (r *Repository) Create(tenantID string, c Conversation) (Conversation, error) {
	if tenantID == "" || c.CallID == "" || c.CampaignID == "" {
		return Conversation{}, fmt.Errorf("%w: tenant, call and campaign are required", store.ErrValidation)
	}
	if c.Stage == "" {
		return Conversation{}, fmt.Errorf("%w: initial stage is required", store.ErrValidation)
	}
	c.TenantID = tenantID
	return r.col.Create(c)
}

func (r *Repository) Get(tenantID, id string) (Conversation, error) {
	c, err := r.col.Get(id)
	if err != nil {
		return Conversation{}, err
	}
	if c.TenantID != tenantID {
		return Conversation{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Repository) GetByCall(tenantID, callID string) (Conversation, error) {
	c, ok := r.col.FindOne(func(c Conversation) bool {
		return c.TenantID == tenantID && c.CallID == callID
	})
	if !ok {
		return Conversation{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Repository) List(tenantID string) []Conversation {
	return r.col.Find(func(c Conversation) bool { return c.TenantID == tenantID })
}

// AppendTurn persists one transcript line.
func (r *Repository) AppendTurn(tenantID, id string, speaker Speaker, text string) (Conversation, error) {
	if _, err := r.Get(tenantID, id); err != nil {
		return Conversation{}, err
	}
	now := r.clock().UTC()
	return r.col.Update(id, func(c *Conversation) {
		c.Transcript = append(c.Transcript, Turn{Speaker: speaker, Text: text, At: now})
	})
}

// SetStage records a stage move with its trigger. Validation that the stage
// belongs to the campaign happens in the agent, which holds the campaign.
func (r *Repository) SetStage(tenantID, id, stage, reason string) (Conversation, error) {
	if _, err := r.Get(tenantID, id); err != nil {
		return Conversation{}, err
	}
	now := r.clock().UTC()
	return r.col.Update(id, func(c *Conversation) {
		if c.Stage == stage {
			return
		}
		c.StageHistory = append(c.StageHistory, StageTransition{
			From: c.Stage, To: stage, Reason: reason, At: now,
		})
		c.Stage = stage
	})
}

// MergeCollectedData merges newly extracted fields into the conversation.
func (r *Repository) MergeCollectedData(tenantID, id string, data map[string]string) (Conversation, error) {
	if _, err := r.Get(tenantID, id); err != nil {
		return Conversation{}, err
	}
	return r.col.Update(id, func(c *Conversation) {
		if c.CollectedData == nil {
			c.CollectedData = map[string]string{}
		}
		for k, v := range data {
			c.CollectedData[k] = v
		}
	})
}

func (r *Repository) SetDuration(tenantID, id string, seconds int) (Conversation, error) {
	if _, err := r.Get(tenantID, id); err != nil {
		return Conversation{}, err
	}
	return r.col.Update(id, func(c *Conversation) { c.DurationSeconds = seconds })
}

func (r *Repository) DeleteAll(tenantID string) (int, error) {
	removed := 0
	for _, c := range r.List(tenantID) {
		if err := r.col.Delete(c.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
