package contacts

import (
	"fmt"
	"path/filepath"
	"strings"

	"voicecrm/internal/store"
)

// Repository provides tenant-scoped access to contacts.
//
// Every operation requires a tenant ID. Reads filter on the owner before any
// other predicate; a cross-tenant ID resolves to the same store.ErrNotFound as
// a nonexistent one so callers cannot probe other tenants' records.

var (
	ErrPhoneRequired = fmt.Errorf("%w: phone_number is required", store.ErrValidation)
	ErrPhoneInUse    = fmt.Errorf("%w: phone number already in use", store.ErrValidation)
	ErrBadStatus     = fmt.Errorf("%w: unknown contact status", store.ErrValidation)
	ErrUnknownField  = fmt.Errorf("%w: custom field not allowed", store.ErrValidation)
)

type Repository struct {
	col *store.Collection[Contact, *Contact]

	// allowedFields returns the tenant's custom-field allow-list.
	// A nil func or nil slice permits any key.
	allowedFields func(tenantID string) []string
}

func Open(dataDir string) (*Repository, error) {
	col, err := store.Open[Contact, *Contact](filepath.Join(dataDir, "contacts.json"))
	if err != nil {
		return nil, err
	}
	return &Repository{col: col}, nil
}

func NewRepository(col *store.Collection[Contact, *Contact]) *Repository {
	return &Repository{col: col}
}

// SetCustomFieldPolicy installs the per-tenant custom-field allow-list lookup.
func (r *Repository) SetCustomFieldPolicy(fn func(tenantID string) []string) {
	r.allowedFields = fn
}

func (r *Repository) Create(tenantID string, c Contact) (Contact, error) {
	if tenantID == "" {
		return Contact{}, fmt.Errorf("%w: tenant id is required", store.ErrValidation)
	}
	if strings.TrimSpace(c.PhoneNumber) == "" {
		return Contact{}, ErrPhoneRequired
	}
	if c.Status == "" {
		c.Status = StatusNew
	}
	if !c.Status.Valid() {
		return Contact{}, ErrBadStatus
	}
	if err := r.checkCustomFields(tenantID, c.CustomFields); err != nil {
		return Contact{}, err
	}
	if _, err := r.FindByPhone(tenantID, c.PhoneNumber); err == nil {
		return Contact{}, ErrPhoneInUse
	}

	c.TenantID = tenantID
	return r.col.Create(c)
}

func (r *Repository) Get(tenantID, id string) (Contact, error) {
	c, err := r.col.Get(id)
	if err != nil {
		return Contact{}, err
	}
	if c.TenantID != tenantID {
		return Contact{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Repository) List(tenantID string) []Contact {
	return r.col.Find(func(c Contact) bool { return c.TenantID == tenantID })
}

func (r *Repository) FindByPhone(tenantID, phone string) (Contact, error) {
	c, ok := r.col.FindOne(func(c Contact) bool {
		return c.TenantID == tenantID && c.PhoneNumber == phone
	})
	if !ok {
		return Contact{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Repository) FindByStatus(tenantID string, status ContactStatus) []Contact {
	return r.col.Find(func(c Contact) bool {
		return c.TenantID == tenantID && c.Status == status
	})
}

func (r *Repository) FindByTag(tenantID, tag string) []Contact {
	return r.col.Find(func(c Contact) bool {
		if c.TenantID != tenantID {
			return false
		}
		for _, t := range c.Tags {
			if t == tag {
				return true
			}
		}
		return false
	})
}

// Update applies mutate to a tenant's contact. The tenant and phone-uniqueness
// invariants are re-checked after mutation.
func (r *Repository) Update(tenantID, id string, mutate func(*Contact)) (Contact, error) {
	cur, err := r.Get(tenantID, id)
	if err != nil {
		return Contact{}, err
	}

	probe := cur
	mutate(&probe)
	if !probe.Status.Valid() {
		return Contact{}, ErrBadStatus
	}
	if strings.TrimSpace(probe.PhoneNumber) == "" {
		return Contact{}, ErrPhoneRequired
	}
	if probe.PhoneNumber != cur.PhoneNumber {
		if _, err := r.FindByPhone(tenantID, probe.PhoneNumber); err == nil {
			return Contact{}, ErrPhoneInUse
		}
	}
	if err := r.checkCustomFields(tenantID, probe.CustomFields); err != nil {
		return Contact{}, err
	}

	return r.col.Update(id, func(c *Contact) {
		mutate(c)
		c.TenantID = tenantID // the owner is not mutable
	})
}

func (r *Repository) UpdateStatus(tenantID, id string, status ContactStatus) (Contact, error) {
	if !status.Valid() {
		return Contact{}, ErrBadStatus
	}
	return r.Update(tenantID, id, func(c *Contact) { c.Status = status })
}

func (r *Repository) AddTag(tenantID, id, tag string) (Contact, error) {
	return r.Update(tenantID, id, func(c *Contact) {
		for _, t := range c.Tags {
			if t == tag {
				return
			}
		}
		c.Tags = append(c.Tags, tag)
	})
}

func (r *Repository) RemoveTag(tenantID, id, tag string) (Contact, error) {
	return r.Update(tenantID, id, func(c *Contact) {
		out := c.Tags[:0]
		for _, t := range c.Tags {
			if t != tag {
				out = append(out, t)
			}
		}
		c.Tags = out
	})
}

func (r *Repository) SetCustomField(tenantID, id, field, value string) (Contact, error) {
	return r.Update(tenantID, id, func(c *Contact) {
		if c.CustomFields == nil {
			c.CustomFields = map[string]string{}
		}
		c.CustomFields[field] = value
	})
}

func (r *Repository) Delete(tenantID, id string) error {
	if _, err := r.Get(tenantID, id); err != nil {
		return err
	}
	return r.col.Delete(id)
}

// DeleteAll removes every contact owned by the tenant and reports the count.
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

func (r *Repository) checkCustomFields(tenantID string, fields map[string]string) error {
	if len(fields) == 0 || r.allowedFields == nil {
		return nil
	}
	allowed := r.allowedFields(tenantID)
	if allowed == nil {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		set[f] = struct{}{}
	}
	for k := range fields {
		if _, ok := set[k]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, k)
		}
	}
	return nil
}
