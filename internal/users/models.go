package users

import (
	"time"

	"voicecrm/internal/store"
)

// User is both an account and a tenant: its ID scopes every CRM record.
type User struct {
	store.Meta

	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`

	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`

	PhoneNumbers []string `json:"phone_numbers,omitempty"`

	Status Status `json:"status"`
	Plan   Plan   `json:"plan"`

	// Role feeds the JWT claims; authorization happens in the HTTP layer.
	Role string `json:"role"`

	Settings map[string]string `json:"settings,omitempty"`

	// ContactFields is the tenant's custom-field allow-list for contacts.
	// Empty means unrestricted.
	ContactFields []string `json:"contact_fields,omitempty"`

	APIKey string `json:"api_key,omitempty"`

	// Usage counters are historical and monotonic: they never decrease when
	// records are deleted.
	Usage UsageCounters `json:"usage"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}

func (u User) Active() bool { return u.Status == StatusActive }

// Role names. Keep these stable; they are part of the auth contract.
const (
	RoleOwner        = "owner"
	RoleReadOnly     = "read_only"
	RoleSupportAdmin = "support_admin"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusTrial     Status = "trial"
)

type Plan string

const (
	PlanFree         Plan = "free"
	PlanBasic        Plan = "basic"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanProfessional, PlanEnterprise:
		return true
	default:
		return false
	}
}

type UsageCounters struct {
	Contacts  int `json:"contacts"`
	Campaigns int `json:"campaigns"`
	Calls     int `json:"calls"`
}

// Limits are per-plan caps. Unlimited is -1.
type Limits struct {
	Contacts  int `json:"contacts"`
	Campaigns int `json:"campaigns"`
	Calls     int `json:"calls"`
}

const Unlimited = -1

var planLimits = map[Plan]Limits{
	PlanFree:         {Contacts: 100, Campaigns: 3, Calls: 50},
	PlanBasic:        {Contacts: 1000, Campaigns: 10, Calls: 500},
	PlanProfessional: {Contacts: 10000, Campaigns: 50, Calls: 5000},
	PlanEnterprise:   {Contacts: Unlimited, Campaigns: Unlimited, Calls: Unlimited},
}

// LimitsFor returns the caps for a plan; unknown plans get the free tier.
func LimitsFor(p Plan) Limits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[PlanFree]
}
