package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

// Reporting never reads cached balances: every view recomputes from ledger
// entries. Reversal-kind groups and groups that have since been reversed are
// excluded everywhere — the pair nets to zero and is never shown at the line
// level, in neither opening aggregates nor period lists.
const excludeReversedPairs = ` AND pg.source_type NOT IN ('REVERSAL','ACCOUNTING_CORRECTION_REVERSAL')
  AND NOT EXISTS (SELECT 1 FROM posting_groups rev WHERE rev.reversal_of_posting_group_id = pg.id)`

// TrialBalanceRow is one account's aggregate as of a date.
type TrialBalanceRow struct {
	AccountCode string
	AccountName string
	AccountType string
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// EntryLine is one ledger line as shown on statements and ledgers.
type EntryLine struct {
	PostingGroupID int64
	PostingDate    time.Time
	SourceType     sources.Kind
	AccountCode    string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
}

// PartyAmount is one dated party-control movement used for ageing.
type PartyAmount struct {
	PartyID     int64
	Role        string
	PostingDate time.Time
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// Repository aggregates posting groups, ledger entries and allocation rows
// for the read-side views.
type Repository interface {
	TrialBalanceRows(ctx context.Context, tenantID int64, asOf time.Time) ([]TrialBalanceRow, error)
	AccountOpening(ctx context.Context, tenantID, accountID int64, before time.Time) (debit, credit decimal.Decimal, err error)
	AccountEntries(ctx context.Context, tenantID, accountID int64, from, to time.Time) ([]EntryLine, error)
	PartyOpening(ctx context.Context, tenantID, partyID, controlAccountID int64, before time.Time) (debit, credit decimal.Decimal, err error)
	PartyEntries(ctx context.Context, tenantID, partyID, controlAccountID int64, from, to time.Time) ([]EntryLine, error)
	PartyAmounts(ctx context.Context, tenantID int64, asOf time.Time, projectID, cropCycleID *int64) ([]PartyAmount, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) TrialBalanceRows(ctx context.Context, tenantID int64, asOf time.Time) ([]TrialBalanceRow, error) {
	rows, err := r.db.Query(ctx, `SELECT a.code, a.name, a.type, COALESCE(SUM(le.debit_amount),0), COALESCE(SUM(le.credit_amount),0)
FROM ledger_entries le
JOIN accounts a ON a.id = le.account_id
JOIN posting_groups pg ON pg.id = le.posting_group_id
WHERE le.tenant_id=$1 AND pg.posting_date <= $2`+excludeReversedPairs+`
GROUP BY a.code, a.name, a.type
ORDER BY a.code ASC`, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		if err := rows.Scan(&row.AccountCode, &row.AccountName, &row.AccountType, &row.TotalDebit, &row.TotalCredit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) AccountOpening(ctx context.Context, tenantID, accountID int64, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(le.debit_amount),0), COALESCE(SUM(le.credit_amount),0)
FROM ledger_entries le
JOIN posting_groups pg ON pg.id = le.posting_group_id
WHERE le.tenant_id=$1 AND le.account_id=$2 AND pg.posting_date < $3`+excludeReversedPairs,
		tenantID, accountID, before).Scan(&debit, &credit)
	return debit, credit, err
}

const entryLineColumns = `pg.id, pg.posting_date, pg.source_type, a.code, le.debit_amount, le.credit_amount`

func (r *repository) AccountEntries(ctx context.Context, tenantID, accountID int64, from, to time.Time) ([]EntryLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryLineColumns+`
FROM ledger_entries le
JOIN accounts a ON a.id = le.account_id
JOIN posting_groups pg ON pg.id = le.posting_group_id
WHERE le.tenant_id=$1 AND le.account_id=$2 AND pg.posting_date >= $3 AND pg.posting_date <= $4`+excludeReversedPairs+`
ORDER BY pg.posting_date ASC, le.id ASC`, tenantID, accountID, from, to)
	if err != nil {
		return nil, err
	}
	return scanEntryLines(rows)
}

func (r *repository) PartyOpening(ctx context.Context, tenantID, partyID, controlAccountID int64, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(le.debit_amount),0), COALESCE(SUM(le.credit_amount),0)
FROM ledger_entries le
JOIN posting_groups pg ON pg.id = le.posting_group_id
WHERE le.tenant_id=$1 AND le.account_id=$2 AND pg.posting_date < $3`+excludeReversedPairs+`
  AND EXISTS (SELECT 1 FROM allocation_rows ar WHERE ar.posting_group_id = pg.id AND ar.party_id = $4)`,
		tenantID, controlAccountID, before, partyID).Scan(&debit, &credit)
	return debit, credit, err
}

func (r *repository) PartyEntries(ctx context.Context, tenantID, partyID, controlAccountID int64, from, to time.Time) ([]EntryLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryLineColumns+`
FROM ledger_entries le
JOIN accounts a ON a.id = le.account_id
JOIN posting_groups pg ON pg.id = le.posting_group_id
WHERE le.tenant_id=$1 AND le.account_id=$2 AND pg.posting_date >= $3 AND pg.posting_date <= $4`+excludeReversedPairs+`
  AND EXISTS (SELECT 1 FROM allocation_rows ar WHERE ar.posting_group_id = pg.id AND ar.party_id = $5)
ORDER BY pg.posting_date ASC, le.id ASC`, tenantID, controlAccountID, from, to, partyID)
	if err != nil {
		return nil, err
	}
	return scanEntryLines(rows)
}

func (r *repository) PartyAmounts(ctx context.Context, tenantID int64, asOf time.Time, projectID, cropCycleID *int64) ([]PartyAmount, error) {
	rows, err := r.db.Query(ctx, `SELECT p.id, p.role, pg.posting_date, COALESCE(SUM(le.debit_amount),0), COALESCE(SUM(le.credit_amount),0)
FROM ledger_entries le
JOIN posting_groups pg ON pg.id = le.posting_group_id
JOIN allocation_rows ar ON ar.posting_group_id = pg.id AND ar.party_id IS NOT NULL
JOIN parties p ON p.id = ar.party_id
WHERE le.tenant_id=$1 AND le.account_id = p.control_account_id AND pg.posting_date <= $2`+excludeReversedPairs+`
  AND ($3::bigint IS NULL OR ar.project_id = $3)
  AND ($4::bigint IS NULL OR pg.crop_cycle_id = $4)
GROUP BY p.id, p.role, pg.posting_date
ORDER BY pg.posting_date ASC`, tenantID, asOf, projectID, cropCycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PartyAmount
	for rows.Next() {
		var pa PartyAmount
		if err := rows.Scan(&pa.PartyID, &pa.Role, &pa.PostingDate, &pa.Debit, &pa.Credit); err != nil {
			return nil, err
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}

func scanEntryLines(rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}) ([]EntryLine, error) {
	defer rows.Close()
	var out []EntryLine
	for rows.Next() {
		var line EntryLine
		if err := rows.Scan(&line.PostingGroupID, &line.PostingDate, &line.SourceType, &line.AccountCode, &line.Debit, &line.Credit); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}
