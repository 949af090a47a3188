// Package reversal implements safe undo of posted groups: history is never
// mutated, an exact offsetting group is appended instead.
package reversal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

// groupNamespace derives a stable source id for a reversal group from the
// original group id, so the reference survives retries unchanged.
var groupNamespace = uuid.MustParse("8f7a2d34-0c14-4f6e-9b1d-2a60f4f1c9aa")

func sourceIDForGroup(groupID int64) uuid.UUID {
	return uuid.NewSHA1(groupNamespace, []byte("posting-group:"+strconv.FormatInt(groupID, 10)))
}

type Service struct {
	repo      posting.Repository
	directory posting.AccountDirectory
	now       func() time.Time
}

func NewService(repo posting.Repository, directory posting.AccountDirectory) *Service {
	return &Service{repo: repo, directory: directory, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Reverse produces the exact mirror of a posted group: every entry with
// debit and credit swapped, every allocation with amount or quantity
// negated, same dimensions. Fails with ErrAlreadyReversed on a second
// attempt; the original stays forever.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (posting.PostingGroup, error) {
	if input.PostingGroupID == 0 {
		return posting.PostingGroup{}, fmt.Errorf("%w: posting group id required", shared.ErrValidation)
	}
	var reversalGroup posting.PostingGroup
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx posting.TxRepository) error {
		link, err := tx.GetLinkForUpdate(ctx, input.TenantID, input.PostingGroupID)
		if err != nil {
			return err
		}
		if link.ReversalPostingGroupID != nil {
			return fmt.Errorf("%w: group %d reversed by group %d", shared.ErrAlreadyReversed, input.PostingGroupID, *link.ReversalPostingGroupID)
		}
		original, err := tx.GetGroupWithDetail(ctx, input.TenantID, input.PostingGroupID)
		if err != nil {
			return err
		}
		reversalGroup, err = s.insertMirror(ctx, tx, original, sources.KindReversal)
		if err != nil {
			return err
		}
		return tx.MarkLinkReversed(ctx, link.ID, reversalGroup.ID, input.ActorID, input.Reason)
	})
	if err != nil {
		return posting.PostingGroup{}, err
	}
	return reversalGroup, nil
}

// Correct reverses a misclassified group and posts the replacement that
// should have existed, recording the linkage so re-running the job for the
// same original performs no further writes.
func (s *Service) Correct(ctx context.Context, input CorrectInput) (CorrectionResult, error) {
	if input.PostingGroupID == 0 {
		return CorrectionResult{}, fmt.Errorf("%w: posting group id required", shared.ErrValidation)
	}
	if input.ReasonCode == "" {
		return CorrectionResult{}, fmt.Errorf("%w: reason code required", shared.ErrValidation)
	}
	if err := posting.ValidateAllocations(input.Allocations); err != nil {
		return CorrectionResult{}, err
	}
	correctedEntries, err := posting.ResolveLines(ctx, s.directory, input.TenantID, input.Lines)
	if err != nil {
		return CorrectionResult{}, err
	}

	var result CorrectionResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx posting.TxRepository) error {
		if existing, found, err := tx.GetCorrectionByOriginal(ctx, input.TenantID, input.PostingGroupID); err != nil {
			return err
		} else if found {
			reversalGroup, err := tx.GetGroupWithDetail(ctx, input.TenantID, existing.ReversalGroupID)
			if err != nil {
				return err
			}
			correctedGroup, err := tx.GetGroupWithDetail(ctx, input.TenantID, existing.CorrectedGroupID)
			if err != nil {
				return err
			}
			result = CorrectionResult{ReversalGroup: reversalGroup, CorrectedGroup: correctedGroup, AlreadyApplied: true}
			return nil
		}

		link, err := tx.GetLinkForUpdate(ctx, input.TenantID, input.PostingGroupID)
		if err != nil {
			return err
		}
		if link.ReversalPostingGroupID != nil {
			return fmt.Errorf("%w: group %d reversed by group %d", shared.ErrAlreadyReversed, input.PostingGroupID, *link.ReversalPostingGroupID)
		}
		original, err := tx.GetGroupWithDetail(ctx, input.TenantID, input.PostingGroupID)
		if err != nil {
			return err
		}

		reversalGroup, err := s.insertMirror(ctx, tx, original, sources.KindCorrectionReversal)
		if err != nil {
			return err
		}
		if err := tx.MarkLinkReversed(ctx, link.ID, reversalGroup.ID, input.ActorID, input.ReasonCode); err != nil {
			return err
		}

		postingDate := input.PostingDate
		if postingDate.IsZero() {
			postingDate = original.PostingDate
		}
		correctedGroup, err := tx.InsertGroup(ctx, posting.GroupInsert{
			TenantID:         input.TenantID,
			SourceType:       sources.KindCorrection,
			SourceID:         sourceIDForGroup(original.ID),
			CropCycleID:      original.CropCycleID,
			PostingDate:      postingDate,
			CorrectionReason: input.ReasonCode,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertEntries(ctx, input.TenantID, correctedGroup.ID, correctedEntries); err != nil {
			return err
		}
		if err := tx.InsertAllocations(ctx, input.TenantID, correctedGroup.ID, input.Allocations); err != nil {
			return err
		}
		debit, credit, err := tx.SumEntries(ctx, correctedGroup.ID)
		if err != nil {
			return err
		}
		if !debit.Equal(credit) {
			return shared.UnbalancedError{GroupRef: strconv.FormatInt(correctedGroup.ID, 10), Debit: debit, Credit: credit}
		}
		if err := tx.InsertSourceLink(ctx, input.TenantID, sources.KindCorrection, correctedGroup.SourceID, correctedGroup.ID); err != nil {
			return err
		}

		if _, err := tx.InsertCorrection(ctx, sources.Correction{
			TenantID:         input.TenantID,
			OriginalGroupID:  original.ID,
			ReversalGroupID:  reversalGroup.ID,
			CorrectedGroupID: correctedGroup.ID,
			ReasonCode:       input.ReasonCode,
		}); err != nil {
			return err
		}
		result = CorrectionResult{ReversalGroup: reversalGroup, CorrectedGroup: correctedGroup}
		return nil
	})
	if err != nil {
		return CorrectionResult{}, err
	}
	return result, nil
}

// insertMirror appends the offsetting group for original inside tx. The
// mirror posts into the original's crop cycle on the original's date so the
// pair nets to zero in every window.
func (s *Service) insertMirror(ctx context.Context, tx posting.TxRepository, original posting.PostingGroup, kind sources.Kind) (posting.PostingGroup, error) {
	originalID := original.ID
	group, err := tx.InsertGroup(ctx, posting.GroupInsert{
		TenantID:    original.TenantID,
		SourceType:  kind,
		SourceID:    sourceIDForGroup(originalID),
		CropCycleID: original.CropCycleID,
		PostingDate: original.PostingDate,
		ReversalOf:  &originalID,
	})
	if err != nil {
		return posting.PostingGroup{}, err
	}
	if err := tx.InsertEntries(ctx, original.TenantID, group.ID, MirrorEntries(original.Entries)); err != nil {
		return posting.PostingGroup{}, err
	}
	if err := tx.InsertAllocations(ctx, original.TenantID, group.ID, MirrorAllocations(original.Allocations)); err != nil {
		return posting.PostingGroup{}, err
	}
	debit, credit, err := tx.SumEntries(ctx, group.ID)
	if err != nil {
		return posting.PostingGroup{}, err
	}
	if !debit.Equal(credit) {
		return posting.PostingGroup{}, shared.UnbalancedError{GroupRef: strconv.FormatInt(group.ID, 10), Debit: debit, Credit: credit}
	}
	return group, nil
}

// MirrorEntries swaps debit and credit on every entry, keeping accounts.
func MirrorEntries(entries []posting.LedgerEntry) []posting.EntryInsert {
	out := make([]posting.EntryInsert, 0, len(entries))
	for _, e := range entries {
		out = append(out, posting.EntryInsert{
			AccountID:   e.AccountID,
			AccountCode: e.AccountCode,
			Debit:       e.Credit,
			Credit:      e.Debit,
			Currency:    e.Currency,
		})
	}
	return out
}

// MirrorAllocations negates amount or quantity, keeping every dimension, so
// aggregate usage and allocation both net to zero after reversal.
func MirrorAllocations(rows []posting.AllocationRow) []posting.AllocationInput {
	out := make([]posting.AllocationInput, 0, len(rows))
	for _, a := range rows {
		mirrored := posting.AllocationInput{
			ProjectID: a.ProjectID,
			PartyID:   a.PartyID,
			MachineID: a.MachineID,
			Type:      a.Type,
			Scope:     a.Scope,
			Unit:      a.Unit,
		}
		if a.Amount != nil {
			neg := a.Amount.Neg()
			mirrored.Amount = &neg
		}
		if a.Quantity != nil {
			neg := a.Quantity.Neg()
			mirrored.Quantity = &neg
		}
		out = append(out, mirrored)
	}
	return out
}

// NetEffect sums original and reversal per account; every total must be zero.
// Used by the integrity job as a second-line audit of the mirror law.
func NetEffect(original, reversal posting.PostingGroup) map[int64]decimal.Decimal {
	net := make(map[int64]decimal.Decimal)
	for _, g := range []posting.PostingGroup{original, reversal} {
		for _, e := range g.Entries {
			net[e.AccountID] = net[e.AccountID].Add(e.Debit).Sub(e.Credit)
		}
	}
	return net
}

// IsAlreadyReversed reports whether err is the duplicate-reversal guard.
func IsAlreadyReversed(err error) bool {
	return errors.Is(err, shared.ErrAlreadyReversed)
}
