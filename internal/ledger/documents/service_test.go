package documents_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/documents"
	"github.com/fasal-erp/fasal-erp/internal/ledger/ledgertest"
	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reversal"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

const tenantID = int64(1)

type fakeDocRepo struct {
	remaining    map[int64]decimal.Decimal
	applications []struct {
		paymentGroupID, saleGroupID int64
		amount                      decimal.Decimal
	}

	// raceRemaining, when set, makes the next RecordApplication behave as
	// if a concurrent application shrank the sale's balance between the
	// service pre-check and the locked re-check.
	raceRemaining *decimal.Decimal
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{remaining: make(map[int64]decimal.Decimal)}
}

func (f *fakeDocRepo) SaleRemaining(ctx context.Context, tenantID, saleGroupID, controlAccountID int64) (decimal.Decimal, error) {
	return f.remaining[saleGroupID], nil
}

func (f *fakeDocRepo) RecordApplication(ctx context.Context, tenantID, paymentGroupID, saleGroupID, controlAccountID int64, amount decimal.Decimal) error {
	if f.raceRemaining != nil {
		remaining := *f.raceRemaining
		f.raceRemaining = nil
		if amount.GreaterThan(remaining) {
			return shared.OverAllocationError{Applied: amount, Remaining: remaining}
		}
	}
	f.applications = append(f.applications, struct {
		paymentGroupID, saleGroupID int64
		amount                      decimal.Decimal
	}{paymentGroupID, saleGroupID, amount})
	f.remaining[saleGroupID] = f.remaining[saleGroupID].Sub(amount)
	return nil
}

type fixture struct {
	repo    *ledgertest.Repo
	docRepo *fakeDocRepo
	svc     *documents.Service
}

func newFixture() *fixture {
	directory := ledgertest.NewDirectory(
		accounts.Account{ID: 1, TenantID: tenantID, Code: "1020", Name: "Bank - Main", Type: accounts.AccountTypeAsset},
		accounts.Account{ID: 2, TenantID: tenantID, Code: "1200", Name: "Buyer Receivable", Type: accounts.AccountTypeAsset},
		accounts.Account{ID: 3, TenantID: tenantID, Code: "4010", Name: "Crop Sale Income", Type: accounts.AccountTypeIncome},
	)
	repo := ledgertest.NewRepo()
	engine := posting.NewEngine(repo, directory)
	reverser := reversal.NewService(repo, directory)
	docRepo := newFakeDocRepo()
	return &fixture{
		repo:    repo,
		docRepo: docRepo,
		svc:     documents.NewService(engine, reverser, docRepo),
	}
}

func saleInput(amount int64) documents.SaleInput {
	return documents.SaleInput{
		TenantID:       tenantID,
		SaleID:         uuid.New(),
		PartyID:        10,
		PostingDate:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: uuid.NewString(),
		Amount:         decimal.NewFromInt(amount),
		Currency:       "PKR",
		IncomeCode:     "4010",
		ControlCode:    "1200",
	}
}

func paymentInput(saleGroupID int64, amount int64) documents.PaymentInput {
	return documents.PaymentInput{
		TenantID:         tenantID,
		PaymentID:        uuid.New(),
		SaleGroupID:      saleGroupID,
		PartyID:          10,
		PostingDate:      time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		IdempotencyKey:   uuid.NewString(),
		Amount:           decimal.NewFromInt(amount),
		Currency:         "PKR",
		BankCode:         "1020",
		ControlCode:      "1200",
		ControlAccountID: 2,
	}
}

func TestPostSaleDebitsControlCreditsIncome(t *testing.T) {
	f := newFixture()

	group, err := f.svc.PostSale(context.Background(), saleInput(1500))
	require.NoError(t, err)
	require.Equal(t, sources.KindSale, group.SourceType)

	require.Len(t, group.Entries, 2)
	require.Equal(t, "1200", group.Entries[0].AccountCode)
	require.True(t, group.Entries[0].Debit.Equal(decimal.NewFromInt(1500)))
	require.Equal(t, "4010", group.Entries[1].AccountCode)
	require.True(t, group.Entries[1].Credit.Equal(decimal.NewFromInt(1500)))

	require.Len(t, group.Allocations, 1)
	require.Equal(t, posting.AllocationPoolShare, group.Allocations[0].Type)
	require.True(t, group.Allocations[0].Amount.Equal(decimal.NewFromInt(1500)))

	link, ok := f.repo.Links[group.ID]
	require.True(t, ok)
	require.Equal(t, sources.KindSale, link.Kind)
}

func TestPostPaymentRecordsApplication(t *testing.T) {
	f := newFixture()

	sale, err := f.svc.PostSale(context.Background(), saleInput(1500))
	require.NoError(t, err)
	f.docRepo.remaining[sale.ID] = decimal.NewFromInt(1500)

	payment, err := f.svc.PostPayment(context.Background(), paymentInput(sale.ID, 400))
	require.NoError(t, err)
	require.Equal(t, sources.KindPayment, payment.SourceType)

	require.Len(t, payment.Entries, 2)
	require.Equal(t, "1020", payment.Entries[0].AccountCode)
	require.True(t, payment.Entries[0].Debit.Equal(decimal.NewFromInt(400)))
	require.Equal(t, "1200", payment.Entries[1].AccountCode)
	require.True(t, payment.Entries[1].Credit.Equal(decimal.NewFromInt(400)))

	require.Len(t, f.docRepo.applications, 1)
	require.Equal(t, payment.ID, f.docRepo.applications[0].paymentGroupID)
	require.Equal(t, sale.ID, f.docRepo.applications[0].saleGroupID)
	require.True(t, f.docRepo.remaining[sale.ID].Equal(decimal.NewFromInt(1100)))
}

func TestPostPaymentRejectsOverAllocation(t *testing.T) {
	f := newFixture()

	sale, err := f.svc.PostSale(context.Background(), saleInput(100))
	require.NoError(t, err)
	f.docRepo.remaining[sale.ID] = decimal.NewFromInt(100)
	groups := f.repo.GroupCount()

	_, err = f.svc.PostPayment(context.Background(), paymentInput(sale.ID, 150))
	var overErr shared.OverAllocationError
	require.ErrorAs(t, err, &overErr)
	require.True(t, overErr.Applied.Equal(decimal.NewFromInt(150)))
	require.True(t, overErr.Remaining.Equal(decimal.NewFromInt(100)))

	require.Equal(t, groups, f.repo.GroupCount(), "nothing was posted")
	require.Empty(t, f.docRepo.applications)
}

func TestPostPaymentLosingLockedRecheckIsReversed(t *testing.T) {
	f := newFixture()

	sale, err := f.svc.PostSale(context.Background(), saleInput(100))
	require.NoError(t, err)
	f.docRepo.remaining[sale.ID] = decimal.NewFromInt(100)

	// Another payment lands between the pre-check and the locked re-check,
	// leaving only 20 on the sale.
	left := decimal.NewFromInt(20)
	f.docRepo.raceRemaining = &left

	_, err = f.svc.PostPayment(context.Background(), paymentInput(sale.ID, 80))
	require.ErrorIs(t, err, shared.ErrOverAllocation)
	require.Empty(t, f.docRepo.applications)

	// The losing payment was already posted; its mirror must exist so the
	// ledger carries no net effect.
	var payment posting.PostingGroup
	for _, g := range f.repo.Groups {
		if g.SourceType == sources.KindPayment {
			payment = g
		}
	}
	require.NotZero(t, payment.ID, "payment group was posted before the re-check")
	link := f.repo.Links[payment.ID]
	require.NotNil(t, link.ReversalPostingGroupID, "losing payment is reversed, not left overshooting")

	mirror := f.repo.Groups[*link.ReversalPostingGroupID]
	require.Equal(t, sources.KindReversal, mirror.SourceType)
	for account, net := range reversal.NetEffect(f.repo.Groups[payment.ID], mirror) {
		require.True(t, net.IsZero(), "account %d must net to zero", account)
	}
}

func TestPostMachineUsageHasNoLedgerEffect(t *testing.T) {
	f := newFixture()

	group, err := f.svc.PostMachineUsage(context.Background(), documents.UsageInput{
		TenantID:       tenantID,
		WorkLogID:      uuid.New(),
		MachineID:      5,
		PostingDate:    time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: uuid.NewString(),
		Quantity:       decimal.RequireFromString("2.5"),
		Unit:           "HOURS",
	})
	require.NoError(t, err)
	require.Equal(t, sources.KindMachineWorkLog, group.SourceType)
	require.Empty(t, group.Entries)

	require.Len(t, group.Allocations, 1)
	row := group.Allocations[0]
	require.Equal(t, posting.AllocationMachineryUsage, row.Type)
	require.Nil(t, row.Amount)
	require.True(t, row.Quantity.Equal(decimal.RequireFromString("2.5")))
	require.Equal(t, "HOURS", row.Unit)
}

func TestReverseDocumentMirrorsSale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	sale, err := f.svc.PostSale(ctx, saleInput(1500))
	require.NoError(t, err)

	rev, err := f.svc.ReverseDocument(ctx, tenantID, sale.ID, 7, "posted twice")
	require.NoError(t, err)
	require.Equal(t, sources.KindReversal, rev.SourceType)
	require.NotNil(t, rev.ReversalOfPostingGroupID)
	require.Equal(t, sale.ID, *rev.ReversalOfPostingGroupID)

	stored := f.repo.Groups[rev.ID]
	require.Len(t, stored.Entries, 2)
	require.Equal(t, "1200", stored.Entries[0].AccountCode)
	require.True(t, stored.Entries[0].Credit.Equal(decimal.NewFromInt(1500)))
	require.Equal(t, "4010", stored.Entries[1].AccountCode)
	require.True(t, stored.Entries[1].Debit.Equal(decimal.NewFromInt(1500)))
}
