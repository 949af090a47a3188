package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// KamdariOrder controls where the kamdar's cut is taken.
type KamdariOrder string

const (
	// KamdariBeforeSplit deducts the cut from pool profit before the
	// landlord/hari split.
	KamdariBeforeSplit KamdariOrder = "BEFORE_SPLIT"
	// KamdariAfterSplit deducts the cut from each party's gross share
	// independently after splitting.
	KamdariAfterSplit KamdariOrder = "AFTER_SPLIT"
)

// ProjectRule is the mutable profit-split configuration for one project,
// read at computation time and never snapshotted into past postings.
type ProjectRule struct {
	ProjectID       int64
	TenantID        int64
	LandlordPct     decimal.Decimal
	HariPct         decimal.Decimal
	KamdariPct      decimal.Decimal
	KamdariOrder    KamdariOrder
	PoolDefinition  string
	LandlordPartyID int64
	HariPartyID     int64
	KamdarPartyID   *int64
	UpdatedAt       time.Time
}

// Position classifies a party's net standing with the business.
type Position string

const (
	PositionPayable    Position = "PAYABLE"
	PositionReceivable Position = "RECEIVABLE"
	PositionSettled    Position = "SETTLED"
)

// ExpenseTotals groups project expenses by allocation scope. Legacy rows
// without a scope count as shared.
type ExpenseTotals struct {
	Shared       decimal.Decimal
	HariOnly     decimal.Decimal
	LandlordOnly decimal.Decimal
}

// Total is the reconciliation law: every project expense lands in exactly
// one scope bucket.
func (t ExpenseTotals) Total() decimal.Decimal {
	return t.Shared.Add(t.HariOnly).Add(t.LandlordOnly)
}

// Breakdown is the full settlement computation for one project and period.
type Breakdown struct {
	ProjectID int64
	AsOf      time.Time

	Revenue       decimal.Decimal
	SharedCosts   decimal.Decimal
	PoolProfit    decimal.Decimal
	KamdariOrder  KamdariOrder
	KamdariCut    decimal.Decimal
	RemainingPool decimal.Decimal

	LandlordGross decimal.Decimal
	HariGross     decimal.Decimal

	HariOnlyDeductions decimal.Decimal
	LandlordOnlyCosts  decimal.Decimal

	LandlordNet decimal.Decimal
	HariNet     decimal.Decimal
	HariDeficit decimal.Decimal

	LandlordPosition Position
	HariPosition     Position

	TotalExpenses decimal.Decimal
}

// SettlementRecord stores a committed settlement for audit and statements.
type SettlementRecord struct {
	ID             int64
	TenantID       int64
	ProjectID      *int64
	CropCycleID    *int64
	PostingGroupID int64
	AsOf           time.Time
	IsFinal        bool
	Notes          string
	CreatedAt      time.Time
}
