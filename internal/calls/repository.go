package calls

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"voicecrm/internal/store"
)

var ErrBadTransition = fmt.Errorf("%w: call status transition not allowed", store.ErrValidation)

// Repository provides tenant-scoped access to calls and guards the monotonic
// status machine.
type Repository struct {
	col   *store.Collection[Call, *Call]
	clock func() time.Time
}

func Open(dataDir string) (*Repository, error) {
	col, err := store.Open[Call, *Call](filepath.Join(dataDir, "calls.json"))
	if err != nil {
		return nil, err
	}
	return &Repository{col: col, clock: time.Now}, nil
}

func (r *Repository) Create(tenantID string, c Call) (Call, error) {
	if tenantID == "" || c.ContactID == "" || c.CampaignID == "" {
		return Call{}, fmt.Errorf("%w: tenant, contact and campaign are required", store.ErrValidation)
	}
	if strings.TrimSpace(c.PhoneNumber) == "" {
		return Call{}, fmt.Errorf("%w: phone_number is required", store.ErrValidation)
	}
	if c.Status == "" {
		c.Status = StatusScheduled
	}
	c.TenantID = tenantID
	return r.col.Create(c)
}

func (r *Repository) Get(tenantID, id string) (Call, error) {
	c, err := r.col.Get(id)
	if err != nil {
		return Call{}, err
	}
	if c.TenantID != tenantID {
		return Call{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Repository) List(tenantID string) []Call {
	return r.col.Find(func(c Call) bool { return c.TenantID == tenantID })
}

func (r *Repository) ListByCampaign(tenantID, campaignID string) []Call {
	return r.col.Find(func(c Call) bool {
		return c.TenantID == tenantID && c.CampaignID == campaignID
	})
}

func (r *Repository) ListByStatus(tenantID string, status CallStatus) []Call {
	return r.col.Find(func(c Call) bool {
		return c.TenantID == tenantID && c.Status == status
	})
}

// Transition moves the call to next, stamping start/end bookkeeping. It fails
// with ErrBadTransition when the move would leave a terminal state or skip
// in_progress.
func (r *Repository) Transition(tenantID, id string, next CallStatus) (Call, error) {
	cur, err := r.Get(tenantID, id)
	if err != nil {
		return Call{}, err
	}
	if !cur.Status.CanTransition(next) {
		return Call{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, cur.Status, next)
	}

	now := r.clock().UTC()
	return r.col.Update(id, func(c *Call) {
		c.Status = next
		switch {
		case next == StatusInProgress:
			c.StartedAt = &now
		case next.Terminal():
			c.EndedAt = &now
			if c.StartedAt != nil {
				c.DurationSeconds = int(now.Sub(*c.StartedAt) / time.Second)
			}
		}
	})
}

func (r *Repository) SetNotes(tenantID, id, notes string) (Call, error) {
	if _, err := r.Get(tenantID, id); err != nil {
		return Call{}, err
	}
	return r.col.Update(id, func(c *Call) { c.Notes = notes })
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
