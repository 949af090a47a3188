package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

// Repository provides the ledger-truth aggregations the engine computes
// from. Revenue and costs come from allocation rows joined to ledger
// entries, never from source documents; reversal mirrors carry negated
// amounts so reversed facts net out of every sum without special casing.
type Repository interface {
	GetRule(ctx context.Context, tenantID, projectID int64) (ProjectRule, error)
	ProjectRevenue(ctx context.Context, tenantID, projectID int64, asOf time.Time) (decimal.Decimal, error)
	ProjectExpenses(ctx context.Context, tenantID, projectID int64, asOf time.Time) (ExpenseTotals, error)
	ProjectsInCycle(ctx context.Context, tenantID, cycleID int64) ([]int64, error)
	InsertRecord(ctx context.Context, rec SettlementRecord) (SettlementRecord, error)
	GetRecordByGroup(ctx context.Context, tenantID, postingGroupID int64) (SettlementRecord, bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetRule(ctx context.Context, tenantID, projectID int64) (ProjectRule, error) {
	var rule ProjectRule
	err := r.db.QueryRow(ctx, `SELECT project_id, tenant_id, profit_split_landlord_pct, profit_split_hari_pct, kamdari_pct, kamdari_order, pool_definition, landlord_party_id, hari_party_id, kamdar_party_id, updated_at
FROM project_rules WHERE tenant_id=$1 AND project_id=$2`, tenantID, projectID).
		Scan(&rule.ProjectID, &rule.TenantID, &rule.LandlordPct, &rule.HariPct, &rule.KamdariPct, &rule.KamdariOrder, &rule.PoolDefinition, &rule.LandlordPartyID, &rule.HariPartyID, &rule.KamdarPartyID, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProjectRule{}, shared.ErrRuleNotFound
		}
		return ProjectRule{}, err
	}
	return rule, nil
}

// ProjectRevenue sums income attributed to the project through allocation
// rows within the period. The classifier matches an INCOME entry on either
// side: a reversal mirror carries the income amount as a debit, and must be
// included so its negated allocation nets the original out of the sum.
func (r *repository) ProjectRevenue(ctx context.Context, tenantID, projectID int64, asOf time.Time) (decimal.Decimal, error) {
	var revenue decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(ar.amount), 0)
FROM allocation_rows ar
JOIN posting_groups pg ON pg.id = ar.posting_group_id
WHERE ar.tenant_id=$1 AND ar.project_id=$2 AND ar.amount IS NOT NULL AND pg.posting_date <= $3
  AND EXISTS (
    SELECT 1 FROM ledger_entries le JOIN accounts a ON a.id = le.account_id
    WHERE le.posting_group_id = pg.id AND a.type = 'INCOME'
      AND (le.credit_amount > 0 OR le.debit_amount > 0)
  )`, tenantID, projectID, asOf).Scan(&revenue)
	return revenue, err
}

// ProjectExpenses sums expense amounts per allocation scope within the
// period. Rows with a null scope are legacy and count as SHARED. Like
// ProjectRevenue, the classifier matches EXPENSE entries on either side so
// reversal mirrors net their originals out per scope.
func (r *repository) ProjectExpenses(ctx context.Context, tenantID, projectID int64, asOf time.Time) (ExpenseTotals, error) {
	rows, err := r.db.Query(ctx, `SELECT COALESCE(ar.allocation_scope, 'SHARED'), COALESCE(SUM(ar.amount), 0)
FROM allocation_rows ar
JOIN posting_groups pg ON pg.id = ar.posting_group_id
WHERE ar.tenant_id=$1 AND ar.project_id=$2 AND ar.amount IS NOT NULL AND pg.posting_date <= $3
  AND EXISTS (
    SELECT 1 FROM ledger_entries le JOIN accounts a ON a.id = le.account_id
    WHERE le.posting_group_id = pg.id AND a.type = 'EXPENSE'
      AND (le.debit_amount > 0 OR le.credit_amount > 0)
  )
GROUP BY 1`, tenantID, projectID, asOf)
	if err != nil {
		return ExpenseTotals{}, err
	}
	defer rows.Close()
	var totals ExpenseTotals
	for rows.Next() {
		var scope string
		var sum decimal.Decimal
		if err := rows.Scan(&scope, &sum); err != nil {
			return ExpenseTotals{}, err
		}
		switch scope {
		case "HARI_ONLY":
			totals.HariOnly = totals.HariOnly.Add(sum)
		case "LANDLORD_ONLY":
			totals.LandlordOnly = totals.LandlordOnly.Add(sum)
		default:
			totals.Shared = totals.Shared.Add(sum)
		}
	}
	return totals, rows.Err()
}

func (r *repository) ProjectsInCycle(ctx context.Context, tenantID, cycleID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM projects WHERE tenant_id=$1 AND crop_cycle_id=$2 ORDER BY id ASC`, tenantID, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *repository) InsertRecord(ctx context.Context, rec SettlementRecord) (SettlementRecord, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO settlements (tenant_id, project_id, crop_cycle_id, posting_group_id, as_of, is_final, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (posting_group_id) DO UPDATE SET notes = settlements.notes
RETURNING id, created_at`, rec.TenantID, rec.ProjectID, rec.CropCycleID, rec.PostingGroupID, rec.AsOf, rec.IsFinal, rec.Notes).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return SettlementRecord{}, err
	}
	return rec, nil
}

func (r *repository) GetRecordByGroup(ctx context.Context, tenantID, postingGroupID int64) (SettlementRecord, bool, error) {
	var rec SettlementRecord
	err := r.db.QueryRow(ctx, `SELECT id, tenant_id, project_id, crop_cycle_id, posting_group_id, as_of, is_final, notes, created_at
FROM settlements WHERE tenant_id=$1 AND posting_group_id=$2`, tenantID, postingGroupID).
		Scan(&rec.ID, &rec.TenantID, &rec.ProjectID, &rec.CropCycleID, &rec.PostingGroupID, &rec.AsOf, &rec.IsFinal, &rec.Notes, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SettlementRecord{}, false, nil
		}
		return SettlementRecord{}, false, err
	}
	return rec, true, nil
}
