// Package sources models the polymorphic reference between business
// documents and the posting groups they produced. The reference is a closed
// enum of document kinds plus a lookup table, never inheritance.
package sources

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates every document kind that can own a posting group.
type Kind string

const (
	KindSale                = Kind("SALE")
	KindPayment             = Kind("PAYMENT")
	KindInventoryIssue      = Kind("INVENTORY_ISSUE")
	KindGRN                 = Kind("GRN")
	KindTransfer            = Kind("TRANSFER")
	KindAdjustment          = Kind("ADJUSTMENT")
	KindWorkLog             = Kind("WORK_LOG")
	KindLandLeaseAccrual    = Kind("LAND_LEASE_ACCRUAL")
	KindMachineWorkLog      = Kind("MACHINE_WORK_LOG")
	KindMachineService      = Kind("MACHINE_SERVICE")
	KindMaintenanceJob      = Kind("MAINTENANCE_JOB")
	KindJournal             = Kind("JOURNAL")
	KindSettlement          = Kind("SETTLEMENT")
	KindCropCycleSettlement = Kind("CROP_CYCLE_SETTLEMENT")
	KindReversal            = Kind("REVERSAL")
	KindCorrection          = Kind("ACCOUNTING_CORRECTION")
	KindCorrectionReversal  = Kind("ACCOUNTING_CORRECTION_REVERSAL")
)

var known = map[Kind]struct{}{
	KindSale: {}, KindPayment: {}, KindInventoryIssue: {}, KindGRN: {},
	KindTransfer: {}, KindAdjustment: {}, KindWorkLog: {}, KindLandLeaseAccrual: {},
	KindMachineWorkLog: {}, KindMachineService: {}, KindMaintenanceJob: {},
	KindJournal: {}, KindSettlement: {}, KindCropCycleSettlement: {},
	KindReversal: {}, KindCorrection: {}, KindCorrectionReversal: {},
}

// Valid reports whether k belongs to the closed enum.
func (k Kind) Valid() bool {
	_, ok := known[k]
	return ok
}

// IsReversalKind reports whether groups of this kind offset earlier groups.
// Reporting views exclude these together with the groups they reverse.
func (k Kind) IsReversalKind() bool {
	return k == KindReversal || k == KindCorrectionReversal
}

// Link records which posting group a document produced and, once reversed,
// which group offsets it. At most one reversal per posting group.
type Link struct {
	ID                     int64
	TenantID               int64
	Kind                   Kind
	SourceID               uuid.UUID
	PostingGroupID         int64
	ReversalPostingGroupID *int64
	ReversedAt             *time.Time
	ReversedBy             *int64
	ReversalReason         string
	CreatedAt              time.Time
}
