package reversal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/ledgertest"
	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reversal"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

const tenantID = int64(1)

func newFixture(t *testing.T) (*ledgertest.Repo, *posting.Engine, *reversal.Service) {
	t.Helper()
	directory := ledgertest.NewDirectory(
		accounts.Account{ID: 1, TenantID: tenantID, Code: "1200", Name: "Buyer Receivable", Type: accounts.AccountTypeAsset},
		accounts.Account{ID: 2, TenantID: tenantID, Code: "4010", Name: "Crop Sale Income", Type: accounts.AccountTypeIncome},
		accounts.Account{ID: 3, TenantID: tenantID, Code: "5020", Name: "Fertilizer Expense", Type: accounts.AccountTypeExpense},
		accounts.Account{ID: 4, TenantID: tenantID, Code: "5030", Name: "Pesticide Expense", Type: accounts.AccountTypeExpense},
		accounts.Account{ID: 5, TenantID: tenantID, Code: "2010", Name: "Supplier Payable", Type: accounts.AccountTypeLiability},
	)
	repo := ledgertest.NewRepo()
	engine := posting.NewEngine(repo, directory)
	return repo, engine, reversal.NewService(repo, directory)
}

func postSale(t *testing.T, engine *posting.Engine, amount int64) posting.PostingGroup {
	t.Helper()
	amt := decimal.NewFromInt(amount)
	projectID := int64(7)
	group, err := engine.Post(context.Background(), posting.PostingInput{
		TenantID:    tenantID,
		SourceType:  sources.KindSale,
		SourceID:    uuid.New(),
		PostingDate: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
		Lines: []posting.LineInput{
			{AccountCode: "1200", Debit: amt, Currency: "PKR"},
			{AccountCode: "4010", Credit: amt, Currency: "PKR"},
		},
		Allocations: []posting.AllocationInput{
			{ProjectID: &projectID, Type: posting.AllocationPoolShare, Amount: &amt},
		},
	})
	require.NoError(t, err)
	return group
}

func TestReverseMirrorsGroup(t *testing.T) {
	repo, engine, svc := newFixture(t)
	original := postSale(t, engine, 1500)

	mirror, err := svc.Reverse(context.Background(), reversal.ReverseInput{
		TenantID:       tenantID,
		PostingGroupID: original.ID,
		ActorID:        11,
		Reason:         "duplicate entry",
	})
	require.NoError(t, err)
	require.Equal(t, sources.KindReversal, mirror.SourceType)
	require.NotNil(t, mirror.ReversalOfPostingGroupID)
	require.Equal(t, original.ID, *mirror.ReversalOfPostingGroupID)
	require.True(t, mirror.PostingDate.Equal(original.PostingDate), "mirror posts on the original's date")

	stored := repo.Groups[mirror.ID]
	require.Len(t, stored.Entries, 2)
	require.True(t, stored.Entries[0].Credit.Equal(decimal.NewFromInt(1500)), "debit side flips to credit")
	require.True(t, stored.Entries[1].Debit.Equal(decimal.NewFromInt(1500)), "credit side flips to debit")

	require.Len(t, stored.Allocations, 1)
	require.True(t, stored.Allocations[0].Amount.Equal(decimal.NewFromInt(-1500)), "allocation amount negates")

	for account, net := range reversal.NetEffect(repo.Groups[original.ID], stored) {
		require.True(t, net.IsZero(), "account %d must net to zero", account)
	}

	link := repo.Links[original.ID]
	require.NotNil(t, link.ReversalPostingGroupID)
	require.Equal(t, mirror.ID, *link.ReversalPostingGroupID)
	require.Equal(t, "duplicate entry", link.ReversalReason)
}

func TestReverseTwiceRejected(t *testing.T) {
	_, engine, svc := newFixture(t)
	original := postSale(t, engine, 400)

	_, err := svc.Reverse(context.Background(), reversal.ReverseInput{TenantID: tenantID, PostingGroupID: original.ID, Reason: "first"})
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), reversal.ReverseInput{TenantID: tenantID, PostingGroupID: original.ID, Reason: "second"})
	require.ErrorIs(t, err, shared.ErrAlreadyReversed)
	require.True(t, reversal.IsAlreadyReversed(err))
}

func TestReverseUnknownGroup(t *testing.T) {
	_, _, svc := newFixture(t)
	_, err := svc.Reverse(context.Background(), reversal.ReverseInput{TenantID: tenantID, PostingGroupID: 99, Reason: "missing"})
	require.ErrorIs(t, err, shared.ErrGroupNotFound)
}

func TestReverseRequiresGroupID(t *testing.T) {
	_, _, svc := newFixture(t)
	_, err := svc.Reverse(context.Background(), reversal.ReverseInput{TenantID: tenantID})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func correctedLines(amount int64) []posting.LineInput {
	amt := decimal.NewFromInt(amount)
	return []posting.LineInput{
		{AccountCode: "5030", Debit: amt, Currency: "PKR"},
		{AccountCode: "2010", Credit: amt, Currency: "PKR"},
	}
}

func TestCorrectReplacesMisclassifiedGroup(t *testing.T) {
	repo, engine, svc := newFixture(t)

	amt := decimal.NewFromInt(800)
	original, err := engine.Post(context.Background(), posting.PostingInput{
		TenantID:    tenantID,
		SourceType:  sources.KindGRN,
		SourceID:    uuid.New(),
		PostingDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Lines: []posting.LineInput{
			{AccountCode: "5020", Debit: amt, Currency: "PKR"},
			{AccountCode: "2010", Credit: amt, Currency: "PKR"},
		},
	})
	require.NoError(t, err)

	result, err := svc.Correct(context.Background(), reversal.CorrectInput{
		TenantID:       tenantID,
		PostingGroupID: original.ID,
		ActorID:        5,
		ReasonCode:     "WRONG_EXPENSE_HEAD",
		Lines:          correctedLines(800),
	})
	require.NoError(t, err)
	require.False(t, result.AlreadyApplied)
	require.Equal(t, sources.KindCorrectionReversal, result.ReversalGroup.SourceType)
	require.Equal(t, original.ID, *result.ReversalGroup.ReversalOfPostingGroupID)
	require.Equal(t, sources.KindCorrection, result.CorrectedGroup.SourceType)
	require.Equal(t, "WRONG_EXPENSE_HEAD", result.CorrectedGroup.CorrectionReason)
	require.True(t, result.CorrectedGroup.PostingDate.Equal(original.PostingDate), "defaults to the original's date")

	corrected := repo.Groups[result.CorrectedGroup.ID]
	require.Equal(t, "5030", corrected.Entries[0].AccountCode)
	require.Equal(t, 3, repo.GroupCount())
}

func TestCorrectIsIdempotent(t *testing.T) {
	repo, engine, svc := newFixture(t)
	original := postSale(t, engine, 250)

	first, err := svc.Correct(context.Background(), reversal.CorrectInput{
		TenantID:       tenantID,
		PostingGroupID: original.ID,
		ReasonCode:     "RECLASS",
		Lines:          correctedLines(250),
	})
	require.NoError(t, err)

	groupsAfterFirst := repo.GroupCount()
	second, err := svc.Correct(context.Background(), reversal.CorrectInput{
		TenantID:       tenantID,
		PostingGroupID: original.ID,
		ReasonCode:     "RECLASS",
		Lines:          correctedLines(250),
	})
	require.NoError(t, err)
	require.True(t, second.AlreadyApplied)
	require.Equal(t, first.ReversalGroup.ID, second.ReversalGroup.ID)
	require.Equal(t, first.CorrectedGroup.ID, second.CorrectedGroup.ID)
	require.Equal(t, groupsAfterFirst, repo.GroupCount(), "replay performs no further writes")
}

func TestCorrectRequiresReasonCode(t *testing.T) {
	_, engine, svc := newFixture(t)
	original := postSale(t, engine, 100)

	_, err := svc.Correct(context.Background(), reversal.CorrectInput{
		TenantID:       tenantID,
		PostingGroupID: original.ID,
		Lines:          correctedLines(100),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCorrectRejectsMalformedAllocation(t *testing.T) {
	repo, engine, svc := newFixture(t)
	original := postSale(t, engine, 100)

	amt := decimal.NewFromInt(100)
	qty := decimal.NewFromInt(3)
	projectID := int64(7)
	_, err := svc.Correct(context.Background(), reversal.CorrectInput{
		TenantID:       tenantID,
		PostingGroupID: original.ID,
		ReasonCode:     "RECLASS",
		Lines:          correctedLines(100),
		Allocations: []posting.AllocationInput{
			{ProjectID: &projectID, Type: posting.AllocationPoolShare, Amount: &amt, Quantity: &qty, Unit: "KG"},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, 1, repo.GroupCount(), "rejected correction writes nothing")

	link := repo.Links[original.ID]
	require.Nil(t, link.ReversalPostingGroupID, "original stays unreversed")
}

func TestCorrectRejectsUnbalancedReplacement(t *testing.T) {
	repo, engine, svc := newFixture(t)
	original := postSale(t, engine, 100)

	lines := correctedLines(100)
	lines[1].Credit = decimal.NewFromInt(60)
	_, err := svc.Correct(context.Background(), reversal.CorrectInput{
		TenantID:       tenantID,
		PostingGroupID: original.ID,
		ReasonCode:     "RECLASS",
		Lines:          lines,
	})
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Equal(t, 1, repo.GroupCount(), "failed correction rolls everything back")

	link := repo.Links[original.ID]
	require.Nil(t, link.ReversalPostingGroupID, "original stays unreversed")
}

func TestMirrorAllocationsNegatesQuantities(t *testing.T) {
	hours := decimal.NewFromFloat(3.5)
	machineID := int64(2)
	rows := []posting.AllocationRow{
		{MachineID: &machineID, Type: posting.AllocationMachineryUsage, Quantity: &hours, Unit: "HOURS"},
	}
	mirrored := reversal.MirrorAllocations(rows)
	require.Len(t, mirrored, 1)
	require.Nil(t, mirrored[0].Amount)
	require.True(t, mirrored[0].Quantity.Equal(decimal.NewFromFloat(-3.5)))
	require.Equal(t, "HOURS", mirrored[0].Unit)
}
