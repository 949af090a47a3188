package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

// Repository encapsulates DB operations for the account directory.
type Repository interface {
	List(ctx context.Context, tenantID int64) ([]Account, error)
	GetByCode(ctx context.Context, tenantID int64, code string) (Account, error)
	GetByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Account, error)
	GetByCodes(ctx context.Context, tenantID int64, codes []string) (map[string]Account, error)
	DeprecatedCodes(ctx context.Context, tenantID int64) (DeprecatedSet, error)
	SetDeprecated(ctx context.Context, tenantID int64, code string, deprecated bool) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, tenant_id, code, name, type, deprecated, created_at, updated_at`

func (r *repository) List(ctx context.Context, tenantID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY code ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Deprecated, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code).
		Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Deprecated, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetByIDs(ctx context.Context, tenantID int64, ids []int64) (map[int64]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Account, len(ids))
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Deprecated, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *repository) GetByCodes(ctx context.Context, tenantID int64, codes []string) (map[string]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND code = ANY($2)`, tenantID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]Account, len(codes))
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Deprecated, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out[a.Code] = a
	}
	return out, rows.Err()
}

func (r *repository) DeprecatedCodes(ctx context.Context, tenantID int64) (DeprecatedSet, error) {
	rows, err := r.db.Query(ctx, `SELECT code FROM accounts WHERE tenant_id=$1 AND deprecated`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(DeprecatedSet)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		set[code] = struct{}{}
	}
	return set, rows.Err()
}

func (r *repository) SetDeprecated(ctx context.Context, tenantID int64, code string, deprecated bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET deprecated=$3, updated_at=NOW() WHERE tenant_id=$1 AND code=$2`, tenantID, code, deprecated)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}
