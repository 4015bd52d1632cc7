package audit

import (
	"context"
	"database/sql"

	"voicecrm/pkg/utils"
)

// PostgresRepo persists audit events to an insert-only table.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id            text PRIMARY KEY,
//	    account_id    text NOT NULL,
//	    type          text NOT NULL,
//	    actor_user_id text,
//	    actor_role    text,
//	    ip_address    text,
//	    contact_id    text,
//	    campaign_id   text,
//	    call_id       text,
//	    message       text,
//	    metadata      jsonb,
//	    created_at    timestamptz NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const insertEvent = `
INSERT INTO audit_events
	(id, account_id, type, actor_user_id, actor_role, ip_address,
	 contact_id, campaign_id, call_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,'')::jsonb,$12)`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, insertEvent,
		e.ID, e.AccountID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
		e.ContactID, e.CampaignID, e.CallID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}

// AppendBatch inserts a group of events atomically.
func (r *PostgresRepo) AppendBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertEvent)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range events {
			if _, err := stmt.ExecContext(ctx,
				e.ID, e.AccountID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
				e.ContactID, e.CampaignID, e.CallID, e.Message, e.Metadata, e.CreatedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}
