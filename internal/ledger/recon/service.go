// Package recon keeps bank reconciliation state as an append-only event
// history per ledger entry. Nothing is ever deleted or flipped in place.
package recon

import (
	"context"
	"fmt"

	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// LinkInput identifies one ledger entry within one reconciliation.
type LinkInput struct {
	TenantID         int64
	ReconciliationID int64
	LedgerEntryID    int64
	StatementLineRef string
	ActorID          int64
}

// Clear marks an entry cleared against the bank statement.
func (s *Service) Clear(ctx context.Context, input LinkInput) (LinkEvent, error) {
	return s.engage(ctx, input, LinkClear, StatusCleared)
}

// Unclear voids the latest clear. The cleared row stays in history.
func (s *Service) Unclear(ctx context.Context, input LinkInput) (LinkEvent, error) {
	return s.disengage(ctx, input, LinkClear, StatusCleared)
}

// Match links an entry to a statement line.
func (s *Service) Match(ctx context.Context, input LinkInput) (LinkEvent, error) {
	return s.engage(ctx, input, LinkMatch, StatusMatched)
}

// Unmatch voids the latest match.
func (s *Service) Unmatch(ctx context.Context, input LinkInput) (LinkEvent, error) {
	return s.disengage(ctx, input, LinkMatch, StatusMatched)
}

func (s *Service) engage(ctx context.Context, input LinkInput, kind LinkKind, status LinkStatus) (LinkEvent, error) {
	recon, err := s.repo.GetReconciliation(ctx, input.TenantID, input.ReconciliationID)
	if err != nil {
		return LinkEvent{}, err
	}
	meta, err := s.repo.GetEntryMeta(ctx, input.TenantID, input.LedgerEntryID)
	if err != nil {
		return LinkEvent{}, err
	}
	if meta.AccountID != recon.BankAccountID {
		return LinkEvent{}, fmt.Errorf("%w: entry %d belongs to another account", shared.ErrStaleMatch, input.LedgerEntryID)
	}
	if meta.PostingDate.After(recon.StatementDate) {
		return LinkEvent{}, fmt.Errorf("%w: entry %d dated after statement date", shared.ErrStaleMatch, input.LedgerEntryID)
	}
	if meta.GroupReversed {
		return LinkEvent{}, fmt.Errorf("%w: entry %d belongs to a reversed posting group", shared.ErrStaleMatch, input.LedgerEntryID)
	}
	if latest, found, err := s.repo.LatestEvent(ctx, input.TenantID, input.ReconciliationID, input.LedgerEntryID, kind); err != nil {
		return LinkEvent{}, err
	} else if found && latest.Status == status {
		return LinkEvent{}, fmt.Errorf("%w: entry %d already %s", shared.ErrValidation, input.LedgerEntryID, status)
	}
	return s.repo.AppendEvent(ctx, LinkEvent{
		TenantID:         input.TenantID,
		ReconciliationID: input.ReconciliationID,
		LedgerEntryID:    input.LedgerEntryID,
		Kind:             kind,
		Status:           status,
		StatementLineRef: input.StatementLineRef,
		ActorID:          input.ActorID,
	})
}

func (s *Service) disengage(ctx context.Context, input LinkInput, kind LinkKind, engaged LinkStatus) (LinkEvent, error) {
	latest, found, err := s.repo.LatestEvent(ctx, input.TenantID, input.ReconciliationID, input.LedgerEntryID, kind)
	if err != nil {
		return LinkEvent{}, err
	}
	if !found || latest.Status != engaged {
		return LinkEvent{}, fmt.Errorf("%w: entry %d is not %s", shared.ErrValidation, input.LedgerEntryID, engaged)
	}
	return s.repo.AppendEvent(ctx, LinkEvent{
		TenantID:         input.TenantID,
		ReconciliationID: input.ReconciliationID,
		LedgerEntryID:    input.LedgerEntryID,
		Kind:             kind,
		Status:           StatusVoid,
		StatementLineRef: input.StatementLineRef,
		ActorID:          input.ActorID,
	})
}
