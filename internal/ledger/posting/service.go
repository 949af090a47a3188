package posting

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/cycles"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

// AccountDirectory is the read-only chart of accounts the engine validates
// lines against.
type AccountDirectory interface {
	ByCodes(ctx context.Context, tenantID int64, codes []string) (map[string]accounts.Account, error)
	DeprecatedCodes(ctx context.Context, tenantID int64) (accounts.DeprecatedSet, error)
}

// Engine commits balanced, idempotent, immutable posting groups.
type Engine struct {
	repo      Repository
	directory AccountDirectory
}

func NewEngine(repo Repository, directory AccountDirectory) *Engine {
	return &Engine{repo: repo, directory: directory}
}

// Post validates and commits one posting group. Calls carrying an
// idempotency key are safe to repeat: the first committed group wins and
// every later call returns it untouched.
func (e *Engine) Post(ctx context.Context, input PostingInput) (PostingGroup, error) {
	if err := input.Validate(); err != nil {
		return PostingGroup{}, err
	}

	entries, err := ResolveLines(ctx, e.directory, input.TenantID, input.Lines)
	if err != nil {
		return PostingGroup{}, err
	}

	if input.IdempotencyKey != nil {
		existing, err := e.repo.GetByIdempotencyKey(ctx, input.TenantID, *input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, shared.ErrGroupNotFound) {
			return PostingGroup{}, err
		}
	}

	var group PostingGroup
	err = e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.CropCycleID != nil {
			cycle, err := tx.GetCycleForUpdate(ctx, input.TenantID, *input.CropCycleID)
			if err != nil {
				return err
			}
			if cycle.Status != cycles.StatusOpen {
				return fmt.Errorf("%w: crop cycle %d is %s", shared.ErrClosedCycle, cycle.ID, cycle.Status)
			}
		}
		inserted, err := tx.InsertGroup(ctx, GroupInsert{
			TenantID:         input.TenantID,
			SourceType:       input.SourceType,
			SourceID:         input.SourceID,
			CropCycleID:      input.CropCycleID,
			PostingDate:      input.PostingDate,
			IdempotencyKey:   input.IdempotencyKey,
			ReversalOf:       input.ReversalOf,
			CorrectionReason: input.CorrectionReason,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertEntries(ctx, input.TenantID, inserted.ID, entries); err != nil {
			return err
		}
		if err := tx.InsertAllocations(ctx, input.TenantID, inserted.ID, input.Allocations); err != nil {
			return err
		}
		// Balance is asserted across everything inserted for the group, not
		// per statement, so a group may be assembled in several steps. A
		// group with no lines trivially balances.
		debit, credit, err := tx.SumEntries(ctx, inserted.ID)
		if err != nil {
			return err
		}
		if !debit.Equal(credit) {
			return shared.UnbalancedError{GroupRef: strconv.FormatInt(inserted.ID, 10), Debit: debit, Credit: credit}
		}
		if !input.SourceType.IsReversalKind() {
			if err := tx.InsertSourceLink(ctx, input.TenantID, input.SourceType, input.SourceID, inserted.ID); err != nil {
				return err
			}
		}
		group = inserted
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) && input.IdempotencyKey != nil {
			// Lost the insert race; the winner's group is the result.
			return e.repo.GetByIdempotencyKey(ctx, input.TenantID, *input.IdempotencyKey)
		}
		return PostingGroup{}, err
	}

	group.Entries = toLedgerEntries(group, entries)
	group.Allocations = toAllocationRows(group, input.Allocations)
	return group, nil
}

// GetGroup loads one posting group with its entries and allocation rows.
func (e *Engine) GetGroup(ctx context.Context, tenantID, groupID int64) (PostingGroup, error) {
	return e.repo.GetGroup(ctx, tenantID, groupID)
}

// ResolveLines maps account codes to accounts and rejects deprecated codes
// before anything is written.
func ResolveLines(ctx context.Context, directory AccountDirectory, tenantID int64, lines []LineInput) ([]EntryInsert, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	codes := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountCode]; ok {
			continue
		}
		seen[line.AccountCode] = struct{}{}
		codes = append(codes, line.AccountCode)
	}
	deprecated, err := directory.DeprecatedCodes(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, code := range codes {
		if deprecated.Contains(code) {
			return nil, shared.DeprecatedAccountError{Code: code}
		}
	}
	byCode, err := directory.ByCodes(ctx, tenantID, codes)
	if err != nil {
		return nil, err
	}
	entries := make([]EntryInsert, 0, len(lines))
	for _, line := range lines {
		account, ok := byCode[line.AccountCode]
		if !ok {
			return nil, fmt.Errorf("%w: code %s", shared.ErrAccountNotFound, line.AccountCode)
		}
		if account.Deprecated {
			return nil, shared.DeprecatedAccountError{Code: account.Code}
		}
		entries = append(entries, EntryInsert{
			AccountID:   account.ID,
			AccountCode: account.Code,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Currency:    line.Currency,
		})
	}
	return entries, nil
}

func toLedgerEntries(g PostingGroup, entries []EntryInsert) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntry{
			TenantID:       g.TenantID,
			PostingGroupID: g.ID,
			AccountID:      e.AccountID,
			AccountCode:    e.AccountCode,
			Debit:          e.Debit,
			Credit:         e.Credit,
			Currency:       e.Currency,
			CreatedAt:      g.CreatedAt,
		})
	}
	return out
}

func toAllocationRows(g PostingGroup, rows []AllocationInput) []AllocationRow {
	out := make([]AllocationRow, 0, len(rows))
	for _, a := range rows {
		out = append(out, AllocationRow{
			TenantID:       g.TenantID,
			PostingGroupID: g.ID,
			ProjectID:      a.ProjectID,
			PartyID:        a.PartyID,
			MachineID:      a.MachineID,
			Type:           a.Type,
			Scope:          a.Scope,
			Amount:         a.Amount,
			Quantity:       a.Quantity,
			Unit:           a.Unit,
			CreatedAt:      g.CreatedAt,
		})
	}
	return out
}
