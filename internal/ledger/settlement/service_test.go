package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/ledgertest"
	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reports"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reversal"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func fiftyFiftyRule() ProjectRule {
	return ProjectRule{
		ProjectID:       1,
		TenantID:        1,
		LandlordPct:     d(50),
		HariPct:         d(50),
		KamdariPct:      decimal.Zero,
		KamdariOrder:    KamdariBeforeSplit,
		LandlordPartyID: 10,
		HariPartyID:     20,
	}
}

func TestComputeEvenSplitNoKamdari(t *testing.T) {
	b := Compute(fiftyFiftyRule(), d(1000), ExpenseTotals{Shared: d(200)})

	require.True(t, b.PoolProfit.Equal(d(800)))
	require.True(t, b.KamdariCut.IsZero())
	require.True(t, b.LandlordGross.Equal(d(400)))
	require.True(t, b.HariGross.Equal(d(400)))
	require.True(t, b.LandlordNet.Equal(d(400)))
	require.True(t, b.HariNet.Equal(d(400)))
	require.Equal(t, PositionReceivable, b.LandlordPosition)
	require.Equal(t, PositionReceivable, b.HariPosition)
}

func TestComputeScopedExpensesBypassPool(t *testing.T) {
	// No revenue and no shared costs: scoped expenses charge each party
	// directly and never touch the pool.
	expenses := ExpenseTotals{LandlordOnly: d(100), HariOnly: d(50)}
	b := Compute(fiftyFiftyRule(), decimal.Zero, expenses)

	require.True(t, b.PoolProfit.IsZero())
	require.True(t, b.TotalExpenses.Equal(d(150)))
	require.True(t, b.LandlordNet.Equal(d(-100)))
	require.True(t, b.HariNet.Equal(d(-50)))
	require.True(t, b.HariDeficit.Equal(d(50)), "negative hari net is carried as deficit, never written off")
	require.Equal(t, PositionPayable, b.LandlordPosition)
	require.Equal(t, PositionPayable, b.HariPosition)
}

func TestComputeKamdariBeforeSplit(t *testing.T) {
	rule := fiftyFiftyRule()
	rule.KamdariPct = d(10)
	kamdar := int64(30)
	rule.KamdarPartyID = &kamdar

	b := Compute(rule, d(1000), ExpenseTotals{Shared: d(200)})

	require.True(t, b.PoolProfit.Equal(d(800)))
	require.True(t, b.KamdariCut.Equal(d(80)), "cut comes off pool profit")
	require.True(t, b.RemainingPool.Equal(d(720)))
	require.True(t, b.LandlordGross.Equal(d(360)))
	require.True(t, b.HariGross.Equal(d(360)))
}

func TestComputeKamdariAfterSplit(t *testing.T) {
	rule := fiftyFiftyRule()
	rule.KamdariPct = d(10)
	rule.KamdariOrder = KamdariAfterSplit

	b := Compute(rule, d(1000), ExpenseTotals{Shared: d(200)})

	// Each party's gross of 400 loses its own 10% cut.
	require.True(t, b.RemainingPool.Equal(d(800)))
	require.True(t, b.KamdariCut.Equal(d(80)))
	require.True(t, b.LandlordGross.Equal(d(360)))
	require.True(t, b.HariGross.Equal(d(360)))
}

func TestComputeDistributionReconciles(t *testing.T) {
	rule := fiftyFiftyRule()
	rule.KamdariPct = d(5)

	revenue := d(2400)
	expenses := ExpenseTotals{Shared: d(400), HariOnly: d(120), LandlordOnly: d(80)}
	b := Compute(rule, revenue, expenses)

	// Everything distributed out of the pool equals pool profit.
	distributed := b.LandlordGross.Add(b.HariGross).Add(b.KamdariCut)
	require.True(t, distributed.Equal(b.PoolProfit))

	// Every expense lands in exactly one bucket.
	require.True(t, expenses.Total().Equal(d(600)))
	require.True(t, b.TotalExpenses.Equal(d(600)))
	require.True(t, b.LandlordNet.Equal(b.LandlordGross.Sub(d(80))))
	require.True(t, b.HariNet.Equal(b.HariGross.Sub(d(120))))
}

// stubRepo serves rules and ledger aggregates from fixed values.
type stubRepo struct {
	rules     map[int64]ProjectRule
	revenue   map[int64]decimal.Decimal
	expenses  map[int64]ExpenseTotals
	projects  []int64
	records   []SettlementRecord
	ruleCalls int
}

func (s *stubRepo) GetRule(ctx context.Context, tenantID, projectID int64) (ProjectRule, error) {
	s.ruleCalls++
	rule, ok := s.rules[projectID]
	if !ok {
		return ProjectRule{}, shared.ErrRuleNotFound
	}
	return rule, nil
}

func (s *stubRepo) ProjectRevenue(ctx context.Context, tenantID, projectID int64, asOf time.Time) (decimal.Decimal, error) {
	return s.revenue[projectID], nil
}

func (s *stubRepo) ProjectExpenses(ctx context.Context, tenantID, projectID int64, asOf time.Time) (ExpenseTotals, error) {
	return s.expenses[projectID], nil
}

func (s *stubRepo) ProjectsInCycle(ctx context.Context, tenantID, cycleID int64) ([]int64, error) {
	return s.projects, nil
}

func (s *stubRepo) InsertRecord(ctx context.Context, rec SettlementRecord) (SettlementRecord, error) {
	rec.ID = int64(len(s.records) + 1)
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *stubRepo) GetRecordByGroup(ctx context.Context, tenantID, postingGroupID int64) (SettlementRecord, bool, error) {
	for _, rec := range s.records {
		if rec.PostingGroupID == postingGroupID {
			return rec, true, nil
		}
	}
	return SettlementRecord{}, false, nil
}

// stubPoster captures the posting input and assigns a group id.
type stubPoster struct {
	inputs []posting.PostingInput
}

func (p *stubPoster) Post(ctx context.Context, input posting.PostingInput) (posting.PostingGroup, error) {
	p.inputs = append(p.inputs, input)
	return posting.PostingGroup{
		ID:          int64(len(p.inputs)),
		TenantID:    input.TenantID,
		SourceType:  input.SourceType,
		SourceID:    input.SourceID,
		CropCycleID: input.CropCycleID,
		PostingDate: input.PostingDate,
	}, nil
}

func testConfig() Config {
	return Config{
		ClearingAccountCode: "2900",
		LandlordControlCode: "2110",
		HariControlCode:     "2120",
		KamdarControlCode:   "2130",
		CurrencyCode:        "PKR",
	}
}

func TestPostSettlementDistributesNetShares(t *testing.T) {
	kamdar := int64(30)
	rule := fiftyFiftyRule()
	rule.KamdariPct = d(10)
	rule.KamdarPartyID = &kamdar

	repo := &stubRepo{
		rules:    map[int64]ProjectRule{1: rule},
		revenue:  map[int64]decimal.Decimal{1: d(1000)},
		expenses: map[int64]ExpenseTotals{1: {Shared: d(200), HariOnly: d(400)}},
	}
	poster := &stubPoster{}
	svc := NewService(repo, poster, testConfig())

	asOf := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	result, err := svc.PostSettlement(context.Background(), PostInput{
		TenantID:       1,
		ProjectID:      1,
		AsOf:           asOf,
		PostingDate:    asOf,
		IdempotencyKey: "settle-1-2026-04-30",
	})
	require.NoError(t, err)
	require.Len(t, poster.inputs, 1)

	input := poster.inputs[0]
	require.Equal(t, sources.KindSettlement, input.SourceType)
	require.Equal(t, "settle-1-2026-04-30", *input.IdempotencyKey)

	// landlord net +360, hari net 360-400 = -40, kamdari +80: three pairs.
	require.Len(t, input.Lines, 6)
	var debit, credit decimal.Decimal
	for _, line := range input.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	require.True(t, debit.Equal(credit), "settlement group balances by construction")

	// Owed parties are credited on their control; the owing hari is debited.
	require.Equal(t, "2900", input.Lines[0].AccountCode)
	require.Equal(t, "2110", input.Lines[1].AccountCode)
	require.True(t, input.Lines[1].Credit.Equal(d(360)))
	require.Equal(t, "2120", input.Lines[2].AccountCode)
	require.True(t, input.Lines[2].Debit.Equal(d(40)))
	require.Equal(t, "2130", input.Lines[5].AccountCode)
	require.True(t, input.Lines[5].Credit.Equal(d(80)))

	require.Len(t, input.Allocations, 3)
	require.Equal(t, posting.AllocationSettlementShare, input.Allocations[0].Type)
	require.True(t, input.Allocations[1].Amount.Equal(d(-40)), "hari allocation carries the signed net")

	require.True(t, result.Breakdown.HariDeficit.Equal(d(40)))
	require.Len(t, repo.records, 1)
	require.Equal(t, result.Group.ID, repo.records[0].PostingGroupID)
}

func TestPostSettlementSkipsSettledParty(t *testing.T) {
	repo := &stubRepo{
		rules:    map[int64]ProjectRule{1: fiftyFiftyRule()},
		revenue:  map[int64]decimal.Decimal{1: d(200)},
		expenses: map[int64]ExpenseTotals{1: {Shared: d(200), LandlordOnly: d(30)}},
	}
	poster := &stubPoster{}
	svc := NewService(repo, poster, testConfig())

	_, err := svc.PostSettlement(context.Background(), PostInput{
		TenantID:       1,
		ProjectID:      1,
		AsOf:           time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: "settle-zero",
	})
	require.NoError(t, err)

	// Pool profit is zero; only the landlord's -30 moves.
	input := poster.inputs[0]
	require.Len(t, input.Lines, 2)
	require.Equal(t, "2110", input.Lines[0].AccountCode)
	require.True(t, input.Lines[0].Debit.Equal(d(30)))
	require.Len(t, input.Allocations, 1)
}

func TestPostSettlementRequiresIdempotencyKey(t *testing.T) {
	svc := NewService(&stubRepo{}, &stubPoster{}, testConfig())
	_, err := svc.PostSettlement(context.Background(), PostInput{TenantID: 1, ProjectID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPostSettlementUnknownRule(t *testing.T) {
	svc := NewService(&stubRepo{rules: map[int64]ProjectRule{}}, &stubPoster{}, testConfig())
	_, err := svc.PostSettlement(context.Background(), PostInput{
		TenantID: 1, ProjectID: 9, IdempotencyKey: "x",
	})
	require.ErrorIs(t, err, shared.ErrRuleNotFound)
}

func TestSettleCropCycleAggregatesProjects(t *testing.T) {
	ruleB := fiftyFiftyRule()
	ruleB.ProjectID = 2
	repo := &stubRepo{
		rules: map[int64]ProjectRule{1: fiftyFiftyRule(), 2: ruleB},
		revenue: map[int64]decimal.Decimal{
			1: d(1000),
			2: d(600),
		},
		expenses: map[int64]ExpenseTotals{
			1: {Shared: d(200)},
			2: {Shared: d(100)},
		},
		projects: []int64{1, 2},
	}
	poster := &stubPoster{}
	svc := NewService(repo, poster, testConfig())

	result, err := svc.SettleCropCycle(context.Background(), CycleInput{
		TenantID:       1,
		CropCycleID:    4,
		AsOf:           time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: "cycle-4",
	})
	require.NoError(t, err)
	require.Len(t, result.Breakdowns, 2)
	require.Len(t, poster.inputs, 1, "one aggregate group for the whole cycle")

	input := poster.inputs[0]
	require.Equal(t, sources.KindCropCycleSettlement, input.SourceType)
	require.NotNil(t, input.CropCycleID)
	require.Equal(t, int64(4), *input.CropCycleID)
	require.Len(t, input.Lines, 8, "two pairs per project")

	var debit, credit decimal.Decimal
	for _, line := range input.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	require.True(t, debit.Equal(credit))
}

func TestPreviewServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &stubRepo{
		rules:   map[int64]ProjectRule{1: fiftyFiftyRule()},
		revenue: map[int64]decimal.Decimal{1: d(1000)},
		expenses: map[int64]ExpenseTotals{
			1: {Shared: d(200)},
		},
	}
	svc := NewService(repo, &stubPoster{}, testConfig()).
		WithCache(reports.NewCache(client, time.Minute))

	asOf := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	first, err := svc.Preview(context.Background(), 1, 1, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, repo.ruleCalls)

	second, err := svc.Preview(context.Background(), 1, 1, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, repo.ruleCalls, "second preview comes from the cache")
	require.True(t, second.PoolProfit.Equal(first.PoolProfit))
	require.True(t, second.LandlordNet.Equal(first.LandlordNet))
}

func TestPostSettlementRecomputesPastCachedPreview(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &stubRepo{
		rules:    map[int64]ProjectRule{1: fiftyFiftyRule()},
		revenue:  map[int64]decimal.Decimal{1: d(1000)},
		expenses: map[int64]ExpenseTotals{1: {Shared: d(200)}},
	}
	poster := &stubPoster{}
	svc := NewService(repo, poster, testConfig()).
		WithCache(reports.NewCache(client, time.Minute))

	asOf := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	_, err := svc.Preview(context.Background(), 1, 1, asOf)
	require.NoError(t, err)

	// More revenue lands after the preview was cached. The commit must
	// distribute the ledger's current truth, not the cached breakdown.
	repo.revenue[1] = d(2000)

	result, err := svc.PostSettlement(context.Background(), PostInput{
		TenantID:       1,
		ProjectID:      1,
		AsOf:           asOf,
		PostingDate:    asOf,
		IdempotencyKey: "settle-fresh",
	})
	require.NoError(t, err)
	require.True(t, result.Breakdown.Revenue.Equal(d(2000)))

	input := poster.inputs[0]
	require.Equal(t, "2110", input.Lines[1].AccountCode)
	require.True(t, input.Lines[1].Credit.Equal(d(900)), "landlord share comes from recomputed pool of 1800")
}

// ledgerRepo aggregates revenue and expenses from an in-memory posting
// store the way the SQL repository does: a group contributes when it has an
// entry of the classifying account type on either side, so reversal mirrors
// count with their negated allocation rows.
type ledgerRepo struct {
	stubRepo
	ledger      *ledgertest.Repo
	incomeCode  string
	expenseCode string
}

func (l *ledgerRepo) ProjectRevenue(ctx context.Context, tenantID, projectID int64, asOf time.Time) (decimal.Decimal, error) {
	return l.sumAllocations(tenantID, projectID, asOf, l.incomeCode), nil
}

func (l *ledgerRepo) ProjectExpenses(ctx context.Context, tenantID, projectID int64, asOf time.Time) (ExpenseTotals, error) {
	return ExpenseTotals{Shared: l.sumAllocations(tenantID, projectID, asOf, l.expenseCode)}, nil
}

func (l *ledgerRepo) sumAllocations(tenantID, projectID int64, asOf time.Time, accountCode string) decimal.Decimal {
	var sum decimal.Decimal
	for _, g := range l.ledger.Groups {
		if g.TenantID != tenantID || g.PostingDate.After(asOf) {
			continue
		}
		qualifies := false
		for _, e := range g.Entries {
			if e.AccountCode == accountCode && (e.Debit.IsPositive() || e.Credit.IsPositive()) {
				qualifies = true
				break
			}
		}
		if !qualifies {
			continue
		}
		for _, a := range g.Allocations {
			if a.ProjectID != nil && *a.ProjectID == projectID && a.Amount != nil {
				sum = sum.Add(*a.Amount)
			}
		}
	}
	return sum
}

func TestPreviewNetsOutReversedFacts(t *testing.T) {
	directory := ledgertest.NewDirectory(
		accounts.Account{ID: 1, TenantID: 1, Code: "1200", Name: "Buyer Receivable", Type: accounts.AccountTypeAsset},
		accounts.Account{ID: 2, TenantID: 1, Code: "4010", Name: "Crop Sale Income", Type: accounts.AccountTypeIncome},
		accounts.Account{ID: 3, TenantID: 1, Code: "5010", Name: "Shared Input Expense", Type: accounts.AccountTypeExpense},
		accounts.Account{ID: 4, TenantID: 1, Code: "1020", Name: "Bank - Main", Type: accounts.AccountTypeAsset},
	)
	ledger := ledgertest.NewRepo()
	engine := posting.NewEngine(ledger, directory)
	reverser := reversal.NewService(ledger, directory)
	ctx := context.Background()
	projectID := int64(1)
	asOf := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	post := func(debitCode, creditCode string, amount int64) posting.PostingGroup {
		amt := d(amount)
		group, err := engine.Post(ctx, posting.PostingInput{
			TenantID:    1,
			SourceType:  sources.KindJournal,
			SourceID:    uuid.New(),
			PostingDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			Lines: []posting.LineInput{
				{AccountCode: debitCode, Debit: amt, Currency: "PKR"},
				{AccountCode: creditCode, Credit: amt, Currency: "PKR"},
			},
			Allocations: []posting.AllocationInput{
				{ProjectID: &projectID, Type: posting.AllocationPoolShare, Amount: &amt},
			},
		})
		require.NoError(t, err)
		return group
	}
	reverse := func(groupID int64) {
		_, err := reverser.Reverse(ctx, reversal.ReverseInput{TenantID: 1, PostingGroupID: groupID, Reason: "entered in error"})
		require.NoError(t, err)
	}

	sale := post("1200", "4010", 1000)
	expense := post("5010", "1020", 200)

	repo := &ledgerRepo{
		stubRepo:    stubRepo{rules: map[int64]ProjectRule{1: fiftyFiftyRule()}},
		ledger:      ledger,
		incomeCode:  "4010",
		expenseCode: "5010",
	}
	svc := NewService(repo, &stubPoster{}, testConfig())

	before, err := svc.Preview(ctx, 1, projectID, asOf)
	require.NoError(t, err)
	require.True(t, before.Revenue.Equal(d(1000)))
	require.True(t, before.SharedCosts.Equal(d(200)))
	require.True(t, before.PoolProfit.Equal(d(800)))

	// Reversing the sale mirrors the income onto the debit side with a
	// negated allocation; the pair must vanish from the pool.
	reverse(sale.ID)
	afterSale, err := svc.Preview(ctx, 1, projectID, asOf)
	require.NoError(t, err)
	require.True(t, afterSale.Revenue.IsZero(), "reversed sale nets out of revenue, got %s", afterSale.Revenue)
	require.True(t, afterSale.SharedCosts.Equal(d(200)))
	require.True(t, afterSale.PoolProfit.Equal(d(-200)))

	reverse(expense.ID)
	afterBoth, err := svc.Preview(ctx, 1, projectID, asOf)
	require.NoError(t, err)
	require.True(t, afterBoth.Revenue.IsZero())
	require.True(t, afterBoth.SharedCosts.IsZero(), "reversed expense nets out of shared costs")
	require.True(t, afterBoth.PoolProfit.IsZero())
}
