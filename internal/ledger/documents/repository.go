package documents

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/platform/db"
)

// Repository reads document balances from ledger truth. A sale's remaining
// amount is the receivable it debited minus every applied payment, with
// reversed payments netting out. RecordApplication re-checks the remaining
// balance under a row lock, so concurrent applications against the same
// sale serialize instead of both passing the service-level pre-check.
type Repository interface {
	SaleRemaining(ctx context.Context, tenantID, saleGroupID, controlAccountID int64) (decimal.Decimal, error)
	RecordApplication(ctx context.Context, tenantID, paymentGroupID, saleGroupID, controlAccountID int64, amount decimal.Decimal) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func saleRemaining(ctx context.Context, q querier, tenantID, saleGroupID, controlAccountID int64) (decimal.Decimal, error) {
	var credited, applied decimal.Decimal
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(le.debit_amount),0)
FROM ledger_entries le WHERE le.tenant_id=$1 AND le.posting_group_id=$2 AND le.account_id=$3`,
		tenantID, saleGroupID, controlAccountID).Scan(&credited)
	if err != nil {
		return decimal.Decimal{}, err
	}
	err = q.QueryRow(ctx, `SELECT COALESCE(SUM(pa.amount),0)
FROM payment_applications pa
JOIN posting_groups pg ON pg.id = pa.payment_group_id
WHERE pa.tenant_id=$1 AND pa.sale_group_id=$2
  AND NOT EXISTS (SELECT 1 FROM posting_groups rev WHERE rev.reversal_of_posting_group_id = pg.id)`,
		tenantID, saleGroupID).Scan(&applied)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return credited.Sub(applied), nil
}

func (r *repository) SaleRemaining(ctx context.Context, tenantID, saleGroupID, controlAccountID int64) (decimal.Decimal, error) {
	return saleRemaining(ctx, r.db, tenantID, saleGroupID, controlAccountID)
}

// RecordApplication locks the sale group, re-checks the remaining balance
// and inserts the application row in one transaction. READ COMMITTED so
// the re-check sees applications committed by a writer we waited on.
func (r *repository) RecordApplication(ctx context.Context, tenantID, paymentGroupID, saleGroupID, controlAccountID int64, amount decimal.Decimal) error {
	return db.WithTxOpts(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM posting_groups WHERE tenant_id=$1 AND id=$2 FOR UPDATE`,
			tenantID, saleGroupID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrGroupNotFound
			}
			return err
		}
		remaining, err := saleRemaining(ctx, tx, tenantID, saleGroupID, controlAccountID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(remaining) {
			return shared.OverAllocationError{Applied: amount, Remaining: remaining}
		}
		_, err = tx.Exec(ctx, `INSERT INTO payment_applications (tenant_id, payment_group_id, sale_group_id, amount)
VALUES ($1,$2,$3,$4)`, tenantID, paymentGroupID, saleGroupID, amount)
		return err
	})
}
