package posting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

// LineInput describes one ledger line of a posting request. Accounts are
// addressed by code so deprecated-code rejection can name the offender.
type LineInput struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Currency    string
}

// AllocationInput describes one analytic row of a posting request.
type AllocationInput struct {
	ProjectID *int64
	PartyID   *int64
	MachineID *int64
	Type      AllocationType
	Scope     *AllocationScope
	Amount    *decimal.Decimal
	Quantity  *decimal.Decimal
	Unit      string
}

// PostingInput groups fields required to commit a posting group.
type PostingInput struct {
	TenantID         int64
	CropCycleID      *int64
	SourceType       sources.Kind
	SourceID         uuid.UUID
	PostingDate      time.Time
	IdempotencyKey   *string
	ReversalOf       *int64
	CorrectionReason string
	Lines            []LineInput
	Allocations      []AllocationInput
}

// Validate ensures the input shape is sane. The balance invariant is not
// checked here: lines may be assembled in several statements and are only
// required to balance at commit.
func (in PostingInput) Validate() error {
	if in.TenantID == 0 {
		return fmt.Errorf("%w: tenant required", shared.ErrValidation)
	}
	if !in.SourceType.Valid() {
		return fmt.Errorf("%w: unknown source type %q", shared.ErrValidation, in.SourceType)
	}
	if in.SourceID == uuid.Nil {
		return fmt.Errorf("%w: source id required", shared.ErrValidation)
	}
	if in.PostingDate.IsZero() {
		return fmt.Errorf("%w: posting date required", shared.ErrValidation)
	}
	if in.IdempotencyKey != nil && *in.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency key must not be blank", shared.ErrValidation)
	}
	for idx, line := range in.Lines {
		if line.AccountCode == "" {
			return fmt.Errorf("%w: line %d missing account code", shared.ErrValidation, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", shared.ErrValidation, idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d cannot be both debit and credit", shared.ErrValidation, idx)
		}
		if line.Currency == "" {
			return fmt.Errorf("%w: line %d missing currency", shared.ErrValidation, idx)
		}
	}
	return ValidateAllocations(in.Allocations)
}

// ValidateAllocations enforces the allocation row shape: a type, exactly
// one of amount or quantity, and a unit alongside any quantity. Shared with
// the correction path, which inserts rows without a full PostingInput.
func ValidateAllocations(rows []AllocationInput) error {
	for idx, alloc := range rows {
		if alloc.Type == "" {
			return fmt.Errorf("%w: allocation %d missing type", shared.ErrValidation, idx)
		}
		hasAmount := alloc.Amount != nil
		hasQuantity := alloc.Quantity != nil
		if hasAmount == hasQuantity {
			return fmt.Errorf("%w: allocation %d requires exactly one of amount or quantity", shared.ErrValidation, idx)
		}
		if hasQuantity && alloc.Unit == "" {
			return fmt.Errorf("%w: allocation %d quantity requires a unit", shared.ErrValidation, idx)
		}
	}
	return nil
}

// Totals sums debit and credit across all lines.
func (in PostingInput) Totals() (debit, credit decimal.Decimal) {
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}
