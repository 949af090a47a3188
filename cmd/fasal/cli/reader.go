package cli

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolBalanceReader reads posting group totals straight from Postgres.
type PoolBalanceReader struct {
	db *pgxpool.Pool
}

func NewPoolBalanceReader(db *pgxpool.Pool) *PoolBalanceReader {
	return &PoolBalanceReader{db: db}
}

func (r *PoolBalanceReader) GroupTotals(ctx context.Context, tenantID int64) ([]GroupTotal, error) {
	rows, err := r.db.Query(ctx, `SELECT pg.id, COALESCE(SUM(le.debit_amount),0), COALESCE(SUM(le.credit_amount),0)
FROM posting_groups pg
LEFT JOIN ledger_entries le ON le.posting_group_id = pg.id
WHERE pg.tenant_id = $1
GROUP BY pg.id
ORDER BY pg.id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []GroupTotal
	for rows.Next() {
		var t GroupTotal
		if err := rows.Scan(&t.GroupID, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
