package users

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"voicecrm/internal/store"
)

// Manager owns registration, authentication, usage accounting and tenant data
// erasure.
//
// Authentication contract: every failure path (unknown email, inactive
// account, wrong password, unknown API key) returns the same
// ErrInvalidCredentials value so callers cannot enumerate accounts.

var (
	ErrDuplicateUser      = errors.New("users: email already registered")
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	ErrQuotaExceeded      = errors.New("users: plan quota exceeded")
	ErrErasureIncomplete  = errors.New("users: tenant data erasure incomplete")
)

// Resources countable against plan limits.
const (
	ResourceContacts  = "contacts"
	ResourceCampaigns = "campaigns"
	ResourceCalls     = "calls"
)

// Purger removes every record of one entity type owned by a tenant.
// Entity repositories implement it.
type Purger interface {
	DeleteAll(tenantID string) (int, error)
}

type Manager struct {
	repo    *Repository
	purgers map[string]Purger

	clock func() time.Time
}

func NewManager(repo *Repository) *Manager {
	return &Manager{
		repo:    repo,
		purgers: map[string]Purger{},
		clock:   time.Now,
	}
}

// RegisterPurger adds an entity type to the data-erasure sweep.
func (m *Manager) RegisterPurger(entityType string, p Purger) {
	m.purgers[entityType] = p
}

type RegisterRequest struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
}

func (m *Manager) Register(req RegisterRequest) (User, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: a valid email is required", store.ErrValidation)
	}
	if len(req.Password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", store.ErrValidation)
	}
	if _, err := m.repo.FindByEmail(email); err == nil {
		return User{}, ErrDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	key, err := newAPIKey()
	if err != nil {
		return User{}, err
	}

	return m.repo.Create(User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CompanyName:  req.CompanyName,
		Status:       StatusActive,
		Plan:         PlanFree,
		Role:         RoleOwner,
		APIKey:       key,
	})
}

func (m *Manager) Authenticate(email, password string) (User, error) {
	u, err := m.repo.FindByEmail(email)
	if err != nil {
		// Burn a hash comparison so unknown emails take as long as mismatches.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if !u.Active() {
		return User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}

	now := m.clock().UTC()
	return m.repo.Update(u.ID, func(u *User) { u.LastLoginAt = &now })
}

func (m *Manager) AuthenticateAPIKey(key string) (User, error) {
	u, err := m.repo.FindByAPIKey(key)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !u.Active() {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// ResolveAPIKey adapts key auth for the HTTP middleware.
func (m *Manager) ResolveAPIKey(key string) (string, string, error) {
	u, err := m.AuthenticateAPIKey(key)
	if err != nil {
		return "", "", err
	}
	return u.ID, u.Role, nil
}

func (m *Manager) Get(id string) (User, error) { return m.repo.Get(id) }

type ProfileUpdate struct {
	FirstName     *string
	LastName      *string
	CompanyName   *string
	PhoneNumbers  []string
	Settings      map[string]string
	ContactFields []string
}

// UpdateProfile mutates only the allow-listed profile fields.
func (m *Manager) UpdateProfile(id string, upd ProfileUpdate) (User, error) {
	return m.repo.Update(id, func(u *User) {
		if upd.FirstName != nil {
			u.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			u.LastName = *upd.LastName
		}
		if upd.CompanyName != nil {
			u.CompanyName = *upd.CompanyName
		}
		if upd.PhoneNumbers != nil {
			u.PhoneNumbers = upd.PhoneNumbers
		}
		if upd.Settings != nil {
			u.Settings = upd.Settings
		}
		if upd.ContactFields != nil {
			u.ContactFields = upd.ContactFields
		}
	})
}

func (m *Manager) ChangePassword(id, newPassword string) (User, error) {
	if len(newPassword) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", store.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	return m.repo.Update(id, func(u *User) { u.PasswordHash = string(hash) })
}

func (m *Manager) RegenerateAPIKey(id string) (User, error) {
	key, err := newAPIKey()
	if err != nil {
		return User{}, err
	}
	return m.repo.Update(id, func(u *User) { u.APIKey = key })
}

func (m *Manager) SetPlan(id string, plan Plan) (User, error) {
	if !plan.Valid() {
		return User{}, fmt.Errorf("%w: unknown plan %q", store.ErrValidation, plan)
	}
	return m.repo.Update(id, func(u *User) { u.Plan = plan })
}

func (m *Manager) SetStatus(id string, status Status) (User, error) {
	return m.repo.Update(id, func(u *User) { u.Status = status })
}

// ContactFieldAllowList exposes the tenant's custom-field policy for wiring
// into the contact repository. Nil means unrestricted.
func (m *Manager) ContactFieldAllowList(tenantID string) []string {
	u, err := m.repo.Get(tenantID)
	if err != nil || len(u.ContactFields) == 0 {
		return nil
	}
	return u.ContactFields
}

type UsageReport struct {
	Plan   Plan          `json:"plan"`
	Limits Limits        `json:"limits"`
	Usage  UsageCounters `json:"usage"`
}

func (m *Manager) Usage(tenantID string) (UsageReport, error) {
	u, err := m.repo.Get(tenantID)
	if err != nil {
		return UsageReport{}, err
	}
	return UsageReport{Plan: u.Plan, Limits: LimitsFor(u.Plan), Usage: u.Usage}, nil
}

// CheckQuota rejects a pending creation once the historical counter has
// reached the plan cap. Call it before delegating to the entity repository.
func (m *Manager) CheckQuota(tenantID, resource string) error {
	u, err := m.repo.Get(tenantID)
	if err != nil {
		return err
	}
	limits := LimitsFor(u.Plan)

	var used, limit int
	switch resource {
	case ResourceContacts:
		used, limit = u.Usage.Contacts, limits.Contacts
	case ResourceCampaigns:
		used, limit = u.Usage.Campaigns, limits.Campaigns
	case ResourceCalls:
		used, limit = u.Usage.Calls, limits.Calls
	default:
		return fmt.Errorf("%w: unknown resource %q", store.ErrValidation, resource)
	}
	if limit != Unlimited && used >= limit {
		return fmt.Errorf("%w: %s limit %d reached on plan %s", ErrQuotaExceeded, resource, limit, u.Plan)
	}
	return nil
}

// RecordUsage increments the tenant's counter after a successful creation.
// Counters only ever go up; deletions do not reclaim quota.
func (m *Manager) RecordUsage(tenantID, resource string) error {
	_, err := m.repo.Update(tenantID, func(u *User) {
		switch resource {
		case ResourceContacts:
			u.Usage.Contacts++
		case ResourceCampaigns:
			u.Usage.Campaigns++
		case ResourceCalls:
			u.Usage.Calls++
		}
	})
	return err
}

// ErasureReport records the outcome of a tenant data erasure per entity type.
type ErasureReport struct {
	TenantID string         `json:"tenant_id"`
	Deleted  map[string]int `json:"deleted"`
	// Failed maps entity type to the error that stopped its purge. Empty on
	// full success.
	Failed map[string]string `json:"failed,omitempty"`
}

// EraseTenantData purges every registered entity type owned by the tenant and
// then anonymizes the user record itself. The sweep is best-effort, not
// transactional: each type is attempted independently and the report names
// the ones that failed. ErrErasureIncomplete is returned when any did.
func (m *Manager) EraseTenantData(tenantID string) (ErasureReport, error) {
	if _, err := m.repo.Get(tenantID); err != nil {
		return ErasureReport{}, err
	}

	report := ErasureReport{
		TenantID: tenantID,
		Deleted:  map[string]int{},
		Failed:   map[string]string{},
	}

	for _, entityType := range m.purgerOrder() {
		n, err := m.purgers[entityType].DeleteAll(tenantID)
		report.Deleted[entityType] = n
		if err != nil {
			report.Failed[entityType] = err.Error()
		}
	}

	if len(report.Failed) > 0 {
		return report, fmt.Errorf("%w: %d entity types failed", ErrErasureIncomplete, len(report.Failed))
	}

	// All CRM data gone; scrub the account rather than deleting the row so
	// the tenant ID stays tombstoned.
	_, err := m.repo.Update(tenantID, func(u *User) {
		u.Email = "erased+" + tenantID + "@invalid"
		u.PasswordHash = "!"
		u.FirstName, u.LastName, u.CompanyName = "", "", ""
		u.PhoneNumbers = nil
		u.Settings = nil
		u.ContactFields = nil
		u.APIKey = ""
		u.Status = StatusInactive
		u.LastLoginAt = nil
	})
	if err != nil {
		report.Failed["users"] = err.Error()
		return report, fmt.Errorf("%w: user anonymization failed", ErrErasureIncomplete)
	}
	report.Deleted["users"] = 1
	report.Failed = nil
	return report, nil
}

func (m *Manager) purgerOrder() []string {
	types := make([]string, 0, len(m.purgers))
	for t := range m.purgers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("voicecrm"), bcrypt.MinCost)

func newAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("users: generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
