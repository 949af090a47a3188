package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation indicates malformed posting input.
	ErrValidation = errors.New("ledger: validation failed")
	// ErrDeprecatedAccount indicates a line targets a retired account code.
	ErrDeprecatedAccount = errors.New("ledger: account code deprecated")
	// ErrClosedCycle indicates the target crop cycle is not open for posting.
	ErrClosedCycle = errors.New("ledger: crop cycle closed")
	// ErrUnbalanced indicates the group failed the commit-time balance check.
	ErrUnbalanced = errors.New("ledger: posting group must balance")
	// ErrAlreadyReversed indicates a second reversal attempt.
	ErrAlreadyReversed = errors.New("ledger: posting group already reversed")
	// ErrOverAllocation indicates a payment application exceeds the remaining amount.
	ErrOverAllocation = errors.New("ledger: applied amount exceeds remaining")
	// ErrStaleMatch indicates a bank clear/match against an ineligible entry.
	ErrStaleMatch = errors.New("ledger: entry not eligible for reconciliation")
	// ErrGroupNotFound indicates a missing posting group.
	ErrGroupNotFound = errors.New("ledger: posting group not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrCycleNotFound indicates a missing crop cycle.
	ErrCycleNotFound = errors.New("ledger: crop cycle not found")
	// ErrRuleNotFound indicates a project has no profit-split rule.
	ErrRuleNotFound = errors.New("ledger: project rule not found")
	// ErrImmutable indicates an update/delete against posted rows.
	ErrImmutable = errors.New("ledger: posted rows are immutable")
)

// DeprecatedAccountError names the offending code so callers can surface it.
type DeprecatedAccountError struct {
	Code string
}

func (e DeprecatedAccountError) Error() string {
	return fmt.Sprintf("ledger: account code %s is deprecated", e.Code)
}

func (e DeprecatedAccountError) Unwrap() error { return ErrDeprecatedAccount }

// UnbalancedError carries the totals that failed the balance invariant.
type UnbalancedError struct {
	GroupRef string
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

func (e UnbalancedError) Error() string {
	return fmt.Sprintf("ledger: group %s unbalanced: debit %s != credit %s", e.GroupRef, e.Debit, e.Credit)
}

func (e UnbalancedError) Unwrap() error { return ErrUnbalanced }

// OverAllocationError carries the amounts involved in a rejected application.
type OverAllocationError struct {
	Applied   decimal.Decimal
	Remaining decimal.Decimal
}

func (e OverAllocationError) Error() string {
	return fmt.Sprintf("ledger: applied %s exceeds remaining %s", e.Applied, e.Remaining)
}

func (e OverAllocationError) Unwrap() error { return ErrOverAllocation }

// StorageError wraps a constraint or trigger violation while preserving the
// storage-level reason text so operators can tell apart unbalanced, closed
// period and duplicate key rejects.
type StorageError struct {
	Op     string
	Reason string
	Err    error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("ledger: %s rejected by storage: %s", e.Op, e.Reason)
}

func (e StorageError) Unwrap() error { return e.Err }
