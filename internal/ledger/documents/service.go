// Package documents is the facade source documents post through. Each
// operation builds a posting input, commits it via the posting engine and
// returns the group for the document to store by id.
package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reversal"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

// Poster is the posting engine surface documents commit through.
type Poster interface {
	Post(ctx context.Context, input posting.PostingInput) (posting.PostingGroup, error)
}

// Reverser undoes a document's posting group.
type Reverser interface {
	Reverse(ctx context.Context, input reversal.ReverseInput) (posting.PostingGroup, error)
}

type Service struct {
	poster   Poster
	reverser Reverser
	repo     Repository
}

func NewService(poster Poster, reverser Reverser, repo Repository) *Service {
	return &Service{poster: poster, reverser: reverser, repo: repo}
}

// SaleInput records a sale: income is credited and the buyer party's
// control account carries the receivable.
type SaleInput struct {
	TenantID       int64
	CropCycleID    *int64
	SaleID         uuid.UUID
	ProjectID      *int64
	PartyID        int64
	PostingDate    time.Time
	IdempotencyKey string
	Amount         decimal.Decimal
	Currency       string
	IncomeCode     string
	ControlCode    string
}

func (s *Service) PostSale(ctx context.Context, input SaleInput) (posting.PostingGroup, error) {
	amount := input.Amount.Round(2)
	partyID := input.PartyID
	return s.poster.Post(ctx, posting.PostingInput{
		TenantID:       input.TenantID,
		CropCycleID:    input.CropCycleID,
		SourceType:     sources.KindSale,
		SourceID:       input.SaleID,
		PostingDate:    input.PostingDate,
		IdempotencyKey: &input.IdempotencyKey,
		Lines: []posting.LineInput{
			{AccountCode: input.ControlCode, Debit: amount, Currency: input.Currency},
			{AccountCode: input.IncomeCode, Credit: amount, Currency: input.Currency},
		},
		Allocations: []posting.AllocationInput{
			{ProjectID: input.ProjectID, PartyID: &partyID, Type: posting.AllocationPoolShare, Amount: &amount},
		},
	})
}

// PaymentInput applies a payment-in against a posted sale.
type PaymentInput struct {
	TenantID         int64
	CropCycleID      *int64
	PaymentID        uuid.UUID
	SaleGroupID      int64
	PartyID          int64
	PostingDate      time.Time
	IdempotencyKey   string
	Amount           decimal.Decimal
	Currency         string
	BankCode         string
	ControlCode      string
	ControlAccountID int64
}

// PostPayment rejects applications exceeding the sale's remaining balance,
// then debits the party control account against the bank account. The
// pre-check is a fast path; the repository re-checks under a row lock when
// recording the application, and a payment that loses that race is
// reversed rather than left overshooting the sale.
func (s *Service) PostPayment(ctx context.Context, input PaymentInput) (posting.PostingGroup, error) {
	remaining, err := s.repo.SaleRemaining(ctx, input.TenantID, input.SaleGroupID, input.ControlAccountID)
	if err != nil {
		return posting.PostingGroup{}, err
	}
	amount := input.Amount.Round(2)
	if amount.GreaterThan(remaining) {
		return posting.PostingGroup{}, shared.OverAllocationError{Applied: amount, Remaining: remaining}
	}
	partyID := input.PartyID
	group, err := s.poster.Post(ctx, posting.PostingInput{
		TenantID:       input.TenantID,
		CropCycleID:    input.CropCycleID,
		SourceType:     sources.KindPayment,
		SourceID:       input.PaymentID,
		PostingDate:    input.PostingDate,
		IdempotencyKey: &input.IdempotencyKey,
		Lines: []posting.LineInput{
			{AccountCode: input.BankCode, Debit: amount, Currency: input.Currency},
			{AccountCode: input.ControlCode, Credit: amount, Currency: input.Currency},
		},
		Allocations: []posting.AllocationInput{
			{PartyID: &partyID, Type: posting.AllocationPoolShare, Amount: &amount},
		},
	})
	if err != nil {
		return posting.PostingGroup{}, err
	}
	if err := s.repo.RecordApplication(ctx, input.TenantID, group.ID, input.SaleGroupID, input.ControlAccountID, amount); err != nil {
		if errors.Is(err, shared.ErrOverAllocation) {
			// A concurrent application won after our pre-check. The
			// payment group is already committed, so append its mirror
			// before surfacing the rejection.
			if _, revErr := s.reverser.Reverse(ctx, reversal.ReverseInput{
				TenantID:       input.TenantID,
				PostingGroupID: group.ID,
				Reason:         "payment over-allocation",
			}); revErr != nil {
				return posting.PostingGroup{}, fmt.Errorf("reversing over-allocated payment group %d: %w", group.ID, revErr)
			}
		}
		return posting.PostingGroup{}, err
	}
	return group, nil
}

// JournalInput posts a manual journal of arbitrary balanced lines.
type JournalInput struct {
	TenantID       int64
	CropCycleID    *int64
	JournalID      uuid.UUID
	PostingDate    time.Time
	IdempotencyKey string
	Lines          []posting.LineInput
	Allocations    []posting.AllocationInput
}

func (s *Service) PostJournal(ctx context.Context, input JournalInput) (posting.PostingGroup, error) {
	return s.poster.Post(ctx, posting.PostingInput{
		TenantID:       input.TenantID,
		CropCycleID:    input.CropCycleID,
		SourceType:     sources.KindJournal,
		SourceID:       input.JournalID,
		PostingDate:    input.PostingDate,
		IdempotencyKey: &input.IdempotencyKey,
		Lines:          input.Lines,
		Allocations:    input.Allocations,
	})
}

// UsageInput records a usage-only fact: a quantity against a machine with
// no ledger effect. The group has zero lines and trivially balances.
type UsageInput struct {
	TenantID       int64
	CropCycleID    *int64
	WorkLogID      uuid.UUID
	ProjectID      *int64
	MachineID      int64
	PostingDate    time.Time
	IdempotencyKey string
	Quantity       decimal.Decimal
	Unit           string
}

func (s *Service) PostMachineUsage(ctx context.Context, input UsageInput) (posting.PostingGroup, error) {
	machineID := input.MachineID
	quantity := input.Quantity
	return s.poster.Post(ctx, posting.PostingInput{
		TenantID:       input.TenantID,
		CropCycleID:    input.CropCycleID,
		SourceType:     sources.KindMachineWorkLog,
		SourceID:       input.WorkLogID,
		PostingDate:    input.PostingDate,
		IdempotencyKey: &input.IdempotencyKey,
		Allocations: []posting.AllocationInput{
			{ProjectID: input.ProjectID, MachineID: &machineID, Type: posting.AllocationMachineryUsage, Quantity: &quantity, Unit: input.Unit},
		},
	})
}

// ReverseDocument undoes whatever group the document posted.
func (s *Service) ReverseDocument(ctx context.Context, tenantID, postingGroupID, actorID int64, reason string) (posting.PostingGroup, error) {
	return s.reverser.Reverse(ctx, reversal.ReverseInput{
		TenantID:       tenantID,
		PostingGroupID: postingGroupID,
		ActorID:        actorID,
		Reason:         reason,
	})
}
