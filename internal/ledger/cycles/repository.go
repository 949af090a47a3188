package cycles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

// Repository encapsulates DB operations for crop cycles.
type Repository interface {
	Get(ctx context.Context, tenantID, cycleID int64) (CropCycle, error)
	ListOpen(ctx context.Context, tenantID int64) ([]CropCycle, error)
	Close(ctx context.Context, tenantID, cycleID, actorID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const cycleColumns = `id, tenant_id, name, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

func scanCycle(row pgx.Row) (CropCycle, error) {
	var c CropCycle
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.StartDate, &c.EndDate, &c.Status, &c.ClosedAt, &c.ClosedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CropCycle{}, shared.ErrCycleNotFound
		}
		return CropCycle{}, err
	}
	return c, nil
}

func (r *repository) Get(ctx context.Context, tenantID, cycleID int64) (CropCycle, error) {
	return scanCycle(r.db.QueryRow(ctx, `SELECT `+cycleColumns+` FROM crop_cycles WHERE tenant_id=$1 AND id=$2`, tenantID, cycleID))
}

func (r *repository) ListOpen(ctx context.Context, tenantID int64) ([]CropCycle, error) {
	rows, err := r.db.Query(ctx, `SELECT `+cycleColumns+` FROM crop_cycles WHERE tenant_id=$1 AND status='OPEN' ORDER BY start_date DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CropCycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Close(ctx context.Context, tenantID, cycleID, actorID int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE crop_cycles SET status='CLOSED', closed_at=NOW(), closed_by=$3, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2 AND status='OPEN'`, tenantID, cycleID, actorID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrCycleNotFound
	}
	return nil
}

// GetForUpdate locks the cycle row inside tx so a concurrent close is
// serialized against the posting commit.
func GetForUpdate(ctx context.Context, tx pgx.Tx, tenantID, cycleID int64) (CropCycle, error) {
	return scanCycle(tx.QueryRow(ctx, `SELECT `+cycleColumns+` FROM crop_cycles WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, cycleID))
}
