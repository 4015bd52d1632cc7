package campaigns

import (
	"path/filepath"

	"voicecrm/internal/store"
)

// Repository provides tenant-scoped access to campaigns. Same contract as the
// other entity repositories: cross-tenant IDs are indistinguishable from
// missing ones.
type Repository struct {
	col *store.Collection[Campaign, *Campaign]
}

func Open(dataDir string) (*Repository, error) {
	col, err := store.Open[Campaign, *Campaign](filepath.Join(dataDir, "campaigns.json"))
	if err != nil {
		return nil, err
	}
	return &Repository{col: col}, nil
}

func (r *Repository) Create(tenantID string, c Campaign) (Campaign, error) {
	c.TenantID = tenantID
	return r.col.Create(c)
}

func (r *Repository) Get(tenantID, id string) (Campaign, error) {
	c, err := r.col.Get(id)
	if err != nil {
		return Campaign{}, err
	}
	if c.TenantID != tenantID {
		return Campaign{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Repository) List(tenantID string) []Campaign {
	return r.col.Find(func(c Campaign) bool { return c.TenantID == tenantID })
}

func (r *Repository) ListActive(tenantID string) []Campaign {
	return r.col.Find(func(c Campaign) bool { return c.TenantID == tenantID && c.Active })
}

func (r *Repository) Update(tenantID, id string, mutate func(*Campaign)) (Campaign, error) {
	if _, err := r.Get(tenantID, id); err != nil {
		return Campaign{}, err
	}
	return r.col.Update(id, func(c *Campaign) {
		mutate(c)
		c.TenantID = tenantID
	})
}

func (r *Repository) Delete(tenantID, id string) error {
	if _, err := r.Get(tenantID, id); err != nil {
		return err
	}
	return r.col.Delete(id)
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
