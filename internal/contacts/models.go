package contacts

import "voicecrm/internal/store"

// Contact is a tenant-scoped CRM contact.
//
// Multi-tenant invariant: TenantID is required on every record, and the phone
// number is unique within a tenant (not globally).
type Contact struct {
	store.Meta

	TenantID    string `json:"tenant_id"`
	PhoneNumber string `json:"phone_number"`

	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Company   string `json:"company,omitempty"`

	Status ContactStatus `json:"status"`

	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`

	Notes string `json:"notes,omitempty"`
}

// FullName falls back to the phone number when no name is on record.
func (c Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	default:
		return c.PhoneNumber
	}
}

type ContactStatus string

const (
	StatusNew           ContactStatus = "new"
	StatusContacted     ContactStatus = "contacted"
	StatusInterested    ContactStatus = "interested"
	StatusNotInterested ContactStatus = "not_interested"
	StatusConverted     ContactStatus = "converted"
	StatusClosed        ContactStatus = "closed"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusInterested, StatusNotInterested, StatusConverted, StatusClosed:
		return true
	default:
		return false
	}
}
