package recon

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

// Repository persists reconciliations and the append-only link history.
type Repository interface {
	GetReconciliation(ctx context.Context, tenantID, reconID int64) (Reconciliation, error)
	GetEntryMeta(ctx context.Context, tenantID, entryID int64) (EntryMeta, error)
	LatestEvent(ctx context.Context, tenantID, reconID, entryID int64, kind LinkKind) (LinkEvent, bool, error)
	AppendEvent(ctx context.Context, event LinkEvent) (LinkEvent, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetReconciliation(ctx context.Context, tenantID, reconID int64) (Reconciliation, error) {
	var rec Reconciliation
	err := r.db.QueryRow(ctx, `SELECT id, tenant_id, bank_account_id, statement_date, created_at
FROM bank_reconciliations WHERE tenant_id=$1 AND id=$2`, tenantID, reconID).
		Scan(&rec.ID, &rec.TenantID, &rec.BankAccountID, &rec.StatementDate, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reconciliation{}, shared.ErrGroupNotFound
		}
		return Reconciliation{}, err
	}
	return rec, nil
}

func (r *repository) GetEntryMeta(ctx context.Context, tenantID, entryID int64) (EntryMeta, error) {
	var meta EntryMeta
	err := r.db.QueryRow(ctx, `SELECT le.id, le.account_id, pg.posting_date,
  EXISTS (SELECT 1 FROM posting_groups rev WHERE rev.reversal_of_posting_group_id = pg.id)
FROM ledger_entries le
JOIN posting_groups pg ON pg.id = le.posting_group_id
WHERE le.tenant_id=$1 AND le.id=$2`, tenantID, entryID).
		Scan(&meta.LedgerEntryID, &meta.AccountID, &meta.PostingDate, &meta.GroupReversed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EntryMeta{}, shared.ErrGroupNotFound
		}
		return EntryMeta{}, err
	}
	return meta, nil
}

func (r *repository) LatestEvent(ctx context.Context, tenantID, reconID, entryID int64, kind LinkKind) (LinkEvent, bool, error) {
	var event LinkEvent
	var ref *string
	err := r.db.QueryRow(ctx, `SELECT id, tenant_id, reconciliation_id, ledger_entry_id, kind, status, statement_line_ref, actor_id, created_at
FROM recon_link_events WHERE tenant_id=$1 AND reconciliation_id=$2 AND ledger_entry_id=$3 AND kind=$4
ORDER BY id DESC LIMIT 1`, tenantID, reconID, entryID, kind).
		Scan(&event.ID, &event.TenantID, &event.ReconciliationID, &event.LedgerEntryID, &event.Kind, &event.Status, &ref, &event.ActorID, &event.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LinkEvent{}, false, nil
		}
		return LinkEvent{}, false, err
	}
	if ref != nil {
		event.StatementLineRef = *ref
	}
	return event, true, nil
}

func (r *repository) AppendEvent(ctx context.Context, event LinkEvent) (LinkEvent, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO recon_link_events (tenant_id, reconciliation_id, ledger_entry_id, kind, status, statement_line_ref, actor_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		event.TenantID, event.ReconciliationID, event.LedgerEntryID, event.Kind, event.Status, nullStr(event.StatementLineRef), event.ActorID).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return LinkEvent{}, err
	}
	return event, nil
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
