package posting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/cycles"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
	"github.com/fasal-erp/fasal-erp/internal/platform/db"
)

// ErrDuplicateKey signals that another caller won the idempotency-key race.
// The engine resolves it by re-fetching the winner's group.
var ErrDuplicateKey = errors.New("posting: duplicate idempotency key")

// GroupInsert carries the header fields of a new posting group.
type GroupInsert struct {
	TenantID         int64
	SourceType       sources.Kind
	SourceID         uuid.UUID
	CropCycleID      *int64
	PostingDate      time.Time
	IdempotencyKey   *string
	ReversalOf       *int64
	CorrectionReason string
}

// EntryInsert carries one resolved ledger line.
type EntryInsert struct {
	AccountID   int64
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Currency    string
}

// Repository encapsulates DB operations for posting groups.
type Repository interface {
	GetByIdempotencyKey(ctx context.Context, tenantID int64, key string) (PostingGroup, error)
	GetGroup(ctx context.Context, tenantID, groupID int64) (PostingGroup, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations available inside a posting
// transaction. Crop cycle, source link and correction lookups live here too:
// the guards they back must run against the same transaction.
type TxRepository interface {
	InsertGroup(ctx context.Context, in GroupInsert) (PostingGroup, error)
	InsertEntries(ctx context.Context, tenantID, groupID int64, entries []EntryInsert) error
	InsertAllocations(ctx context.Context, tenantID, groupID int64, rows []AllocationInput) error
	SumEntries(ctx context.Context, groupID int64) (debit, credit decimal.Decimal, err error)
	InsertSourceLink(ctx context.Context, tenantID int64, kind sources.Kind, sourceID uuid.UUID, groupID int64) error

	GetGroupWithDetail(ctx context.Context, tenantID, groupID int64) (PostingGroup, error)
	GetCycleForUpdate(ctx context.Context, tenantID, cycleID int64) (cycles.CropCycle, error)

	GetLinkForUpdate(ctx context.Context, tenantID, groupID int64) (sources.Link, error)
	MarkLinkReversed(ctx context.Context, linkID, reversalGroupID, actorID int64, reason string) error

	GetCorrectionByOriginal(ctx context.Context, tenantID, originalGroupID int64) (sources.Correction, bool, error)
	InsertCorrection(ctx context.Context, c sources.Correction) (sources.Correction, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const groupColumns = `id, tenant_id, source_type, source_id, crop_cycle_id, posting_date, idempotency_key, reversal_of_posting_group_id, correction_reason, created_at`

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanGroup(row pgx.Row) (PostingGroup, error) {
	var g PostingGroup
	var reason *string
	err := row.Scan(&g.ID, &g.TenantID, &g.SourceType, &g.SourceID, &g.CropCycleID, &g.PostingDate,
		&g.IdempotencyKey, &g.ReversalOfPostingGroupID, &reason, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PostingGroup{}, shared.ErrGroupNotFound
		}
		return PostingGroup{}, err
	}
	if reason != nil {
		g.CorrectionReason = *reason
	}
	return g, nil
}

func loadGroupDetail(ctx context.Context, q rowQuerier, g *PostingGroup) error {
	rows, err := q.Query(ctx, `SELECT e.id, e.tenant_id, e.posting_group_id, e.account_id, a.code, e.debit_amount, e.credit_amount, e.currency_code, e.created_at
FROM ledger_entries e JOIN accounts a ON a.id = e.account_id
WHERE e.posting_group_id=$1 ORDER BY e.id ASC`, g.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.PostingGroupID, &e.AccountID, &e.AccountCode, &e.Debit, &e.Credit, &e.Currency, &e.CreatedAt); err != nil {
			return err
		}
		g.Entries = append(g.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	allocRows, err := q.Query(ctx, `SELECT id, tenant_id, posting_group_id, project_id, party_id, machine_id, allocation_type, allocation_scope, amount, quantity, unit, created_at
FROM allocation_rows WHERE posting_group_id=$1 ORDER BY id ASC`, g.ID)
	if err != nil {
		return err
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var a AllocationRow
		var unit *string
		if err := allocRows.Scan(&a.ID, &a.TenantID, &a.PostingGroupID, &a.ProjectID, &a.PartyID, &a.MachineID, &a.Type, &a.Scope, &a.Amount, &a.Quantity, &unit, &a.CreatedAt); err != nil {
			return err
		}
		if unit != nil {
			a.Unit = *unit
		}
		g.Allocations = append(g.Allocations, a)
	}
	return allocRows.Err()
}

func (r *repository) GetByIdempotencyKey(ctx context.Context, tenantID int64, key string) (PostingGroup, error) {
	g, err := scanGroup(r.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM posting_groups WHERE tenant_id=$1 AND idempotency_key=$2`, tenantID, key))
	if err != nil {
		return PostingGroup{}, err
	}
	if err := loadGroupDetail(ctx, r.db, &g); err != nil {
		return PostingGroup{}, err
	}
	return g, nil
}

func (r *repository) GetGroup(ctx context.Context, tenantID, groupID int64) (PostingGroup, error) {
	g, err := scanGroup(r.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM posting_groups WHERE tenant_id=$1 AND id=$2`, tenantID, groupID))
	if err != nil {
		return PostingGroup{}, err
	}
	if err := loadGroupDetail(ctx, r.db, &g); err != nil {
		return PostingGroup{}, err
	}
	return g, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertGroup(ctx context.Context, in GroupInsert) (PostingGroup, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO posting_groups (tenant_id, source_type, source_id, crop_cycle_id, posting_date, idempotency_key, reversal_of_posting_group_id, correction_reason)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		in.TenantID, in.SourceType, in.SourceID, in.CropCycleID, in.PostingDate, in.IdempotencyKey, in.ReversalOf, nullStr(in.CorrectionReason))
	g := PostingGroup{
		TenantID:                 in.TenantID,
		SourceType:               in.SourceType,
		SourceID:                 in.SourceID,
		CropCycleID:              in.CropCycleID,
		PostingDate:              in.PostingDate,
		IdempotencyKey:           in.IdempotencyKey,
		ReversalOfPostingGroupID: in.ReversalOf,
		CorrectionReason:         in.CorrectionReason,
	}
	if err := row.Scan(&g.ID, &g.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.ConstraintName == "uq_posting_groups_tenant_idem" {
				return PostingGroup{}, ErrDuplicateKey
			}
			return PostingGroup{}, shared.StorageError{Op: "insert posting group", Reason: pgErr.Message, Err: err}
		}
		return PostingGroup{}, err
	}
	return g, nil
}

func (r *txRepository) InsertEntries(ctx context.Context, tenantID, groupID int64, entries []EntryInsert) error {
	for _, e := range entries {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_entries (tenant_id, posting_group_id, account_id, debit_amount, credit_amount, currency_code)
VALUES ($1,$2,$3,$4,$5,$6)`, tenantID, groupID, e.AccountID, e.Debit, e.Credit, e.Currency); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				return shared.StorageError{Op: "insert ledger entry", Reason: pgErr.Message, Err: err}
			}
			return err
		}
	}
	return nil
}

func (r *txRepository) InsertAllocations(ctx context.Context, tenantID, groupID int64, rows []AllocationInput) error {
	for _, a := range rows {
		if _, err := r.tx.Exec(ctx, `INSERT INTO allocation_rows (tenant_id, posting_group_id, project_id, party_id, machine_id, allocation_type, allocation_scope, amount, quantity, unit)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			tenantID, groupID, a.ProjectID, a.PartyID, a.MachineID, a.Type, a.Scope, a.Amount, a.Quantity, nullStr(a.Unit)); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				return shared.StorageError{Op: "insert allocation row", Reason: pgErr.Message, Err: err}
			}
			return err
		}
	}
	return nil
}

func (r *txRepository) SumEntries(ctx context.Context, groupID int64) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount),0), COALESCE(SUM(credit_amount),0) FROM ledger_entries WHERE posting_group_id=$1`, groupID).
		Scan(&debit, &credit)
	return debit, credit, err
}

func (r *txRepository) InsertSourceLink(ctx context.Context, tenantID int64, kind sources.Kind, sourceID uuid.UUID, groupID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (tenant_id, source_type, source_id, posting_group_id) VALUES ($1,$2,$3,$4)`,
		tenantID, kind, sourceID, groupID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return shared.StorageError{Op: "insert source link", Reason: pgErr.Message, Err: err}
		}
		return err
	}
	return nil
}

func (r *txRepository) GetGroupWithDetail(ctx context.Context, tenantID, groupID int64) (PostingGroup, error) {
	g, err := scanGroup(r.tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM posting_groups WHERE tenant_id=$1 AND id=$2`, tenantID, groupID))
	if err != nil {
		return PostingGroup{}, err
	}
	if err := loadGroupDetail(ctx, r.tx, &g); err != nil {
		return PostingGroup{}, err
	}
	return g, nil
}

// GetCycleForUpdate locks the crop cycle row so a concurrent close cannot
// slip between the status check and the posting commit.
func (r *txRepository) GetCycleForUpdate(ctx context.Context, tenantID, cycleID int64) (cycles.CropCycle, error) {
	return cycles.GetForUpdate(ctx, r.tx, tenantID, cycleID)
}

func (r *txRepository) GetLinkForUpdate(ctx context.Context, tenantID, groupID int64) (sources.Link, error) {
	var l sources.Link
	var reason *string
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, source_type, source_id, posting_group_id, reversal_posting_group_id, reversed_at, reversed_by, reversal_reason, created_at
FROM source_links WHERE tenant_id=$1 AND posting_group_id=$2 FOR UPDATE`, tenantID, groupID).
		Scan(&l.ID, &l.TenantID, &l.Kind, &l.SourceID, &l.PostingGroupID, &l.ReversalPostingGroupID, &l.ReversedAt, &l.ReversedBy, &reason, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sources.Link{}, shared.ErrGroupNotFound
		}
		return sources.Link{}, err
	}
	if reason != nil {
		l.ReversalReason = *reason
	}
	return l, nil
}

func (r *txRepository) MarkLinkReversed(ctx context.Context, linkID, reversalGroupID, actorID int64, reason string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE source_links SET reversal_posting_group_id=$2, reversed_at=NOW(), reversed_by=$3, reversal_reason=$4
WHERE id=$1 AND reversal_posting_group_id IS NULL`, linkID, reversalGroupID, nullID(actorID), nullStr(reason))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyReversed
	}
	return nil
}

func (r *txRepository) GetCorrectionByOriginal(ctx context.Context, tenantID, originalGroupID int64) (sources.Correction, bool, error) {
	var c sources.Correction
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, original_group_id, reversal_group_id, corrected_group_id, reason_code, created_at
FROM accounting_corrections WHERE tenant_id=$1 AND original_group_id=$2`, tenantID, originalGroupID).
		Scan(&c.ID, &c.TenantID, &c.OriginalGroupID, &c.ReversalGroupID, &c.CorrectedGroupID, &c.ReasonCode, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sources.Correction{}, false, nil
		}
		return sources.Correction{}, false, err
	}
	return c, true, nil
}

func (r *txRepository) InsertCorrection(ctx context.Context, c sources.Correction) (sources.Correction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO accounting_corrections (tenant_id, original_group_id, reversal_group_id, corrected_group_id, reason_code)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`, c.TenantID, c.OriginalGroupID, c.ReversalGroupID, c.CorrectedGroupID, c.ReasonCode).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return sources.Correction{}, shared.StorageError{Op: "insert correction", Reason: pgErr.Message, Err: err}
		}
		return sources.Correction{}, err
	}
	return c, nil
}

// Helpers
func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
