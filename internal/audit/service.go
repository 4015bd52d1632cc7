package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AccountID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAuth records a login, failed login, or registration.
func (s *Service) LogAuth(ctx context.Context, typ EventType, accountID, ip, message string) error {
	return s.Append(ctx, Event{
		AccountID:   accountID,
		Type:        typ,
		ActorUserID: accountID,
		IPAddress:   ip,
		Message:     message,
	})
}

// LogQuotaRejected records a plan-limit rejection for later support triage.
func (s *Service) LogQuotaRejected(ctx context.Context, accountID, ip, resource string) error {
	return s.Append(ctx, Event{
		AccountID:   accountID,
		Type:        EventTypeQuotaRejected,
		ActorUserID: accountID,
		IPAddress:   ip,
		Message:     "quota rejected: " + resource,
	})
}

// LogErasure records the outcome of a tenant data-erasure sweep.
func (s *Service) LogErasure(ctx context.Context, accountID, actorUserID, actorRole, ip, metadata string) error {
	return s.Append(ctx, Event{
		AccountID:   accountID,
		Type:        EventTypeErasure,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     "tenant data erased",
		Metadata:    metadata,
	})
}
