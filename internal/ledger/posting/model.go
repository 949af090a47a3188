package posting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

// PostingGroup is one atomic, balanced, immutable financial fact. Once
// committed it is never updated or deleted; reversed groups stay forever as
// audit trail.
type PostingGroup struct {
	ID                       int64
	TenantID                 int64
	SourceType               sources.Kind
	SourceID                 uuid.UUID
	CropCycleID              *int64
	PostingDate              time.Time
	IdempotencyKey           *string
	ReversalOfPostingGroupID *int64
	CorrectionReason         string
	CreatedAt                time.Time

	Entries     []LedgerEntry
	Allocations []AllocationRow
}

// LedgerEntry is one debit or credit line against one account.
type LedgerEntry struct {
	ID             int64
	TenantID       int64
	PostingGroupID int64
	AccountID      int64
	AccountCode    string
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	Currency       string
	CreatedAt      time.Time
}

// AllocationType tags what an allocation row represents.
type AllocationType string

const (
	AllocationPoolShare       AllocationType = "POOL_SHARE"
	AllocationHariOnly        AllocationType = "HARI_ONLY"
	AllocationLandlordOnly    AllocationType = "LANDLORD_ONLY"
	AllocationMachineryUsage  AllocationType = "MACHINERY_USAGE"
	AllocationMachineryMaint  AllocationType = "MACHINERY_MAINTENANCE"
	AllocationKamdari         AllocationType = "KAMDARI"
	AllocationSettlementShare AllocationType = "SETTLEMENT_SHARE"
)

// AllocationScope determines which settlement bucket an expense lands in.
// Nil on legacy rows, which settlement treats as SHARED.
type AllocationScope string

const (
	ScopeShared       AllocationScope = "SHARED"
	ScopeHariOnly     AllocationScope = "HARI_ONLY"
	ScopeLandlordOnly AllocationScope = "LANDLORD_ONLY"
)

// AllocationRow is the analytic split of a group's effect across
// project/party/machine dimensions. Monetary rows carry Amount; usage-only
// rows carry Quantity+Unit and no ledger effect. Exactly one of the two.
type AllocationRow struct {
	ID             int64
	TenantID       int64
	PostingGroupID int64
	ProjectID      *int64
	PartyID        *int64
	MachineID      *int64
	Type           AllocationType
	Scope          *AllocationScope
	Amount         *decimal.Decimal
	Quantity       *decimal.Decimal
	Unit           string
	CreatedAt      time.Time
}

// Monetary reports whether the row carries a ledger-relevant amount.
func (a AllocationRow) Monetary() bool {
	return a.Amount != nil
}
