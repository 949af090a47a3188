package reversal

import (
	"time"

	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
)

// ReverseInput wraps parameters for reversing one posted group.
type ReverseInput struct {
	TenantID       int64
	PostingGroupID int64
	ActorID        int64
	Reason         string
}

// CorrectInput wraps parameters for a reverse-and-replace correction. The
// corrected lines/allocations are the entries that should have existed.
type CorrectInput struct {
	TenantID       int64
	PostingGroupID int64
	ActorID        int64
	ReasonCode     string
	PostingDate    time.Time
	Lines          []posting.LineInput
	Allocations    []posting.AllocationInput
}

// CorrectionResult carries the reversal and replacement groups produced by a
// correction, or the previously recorded pair when the correction already ran.
type CorrectionResult struct {
	ReversalGroup  posting.PostingGroup
	CorrectedGroup posting.PostingGroup
	AlreadyApplied bool
}
