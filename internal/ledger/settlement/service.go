package settlement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reports"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

var hundred = decimal.NewFromInt(100)

// settlementNamespace derives stable source ids for settlement groups.
var settlementNamespace = uuid.MustParse("6d1f0a9e-3b82-4c55-8f07-b51d9c40e7f3")

// Config names the accounts settlement postings move money between. Party
// balances are carried exclusively on one control account per role; legacy
// advance/due accounts are never touched by new postings.
type Config struct {
	ClearingAccountCode string
	LandlordControlCode string
	HariControlCode     string
	KamdarControlCode   string
	CurrencyCode        string
}

// Poster is the posting engine surface the settlement engine commits through.
type Poster interface {
	Post(ctx context.Context, input posting.PostingInput) (posting.PostingGroup, error)
}

// Service computes pool profit and per-party positions, and posts
// settlements through the posting engine.
type Service struct {
	repo   Repository
	poster Poster
	cfg    Config
	cache  *reports.Cache
	now    func() time.Time
}

func NewService(repo Repository, poster Poster, cfg Config) *Service {
	return &Service{repo: repo, poster: poster, cfg: cfg, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithCache caches preview breakdowns. Commits never read the cache.
func (s *Service) WithCache(cache *reports.Cache) *Service {
	s.cache = cache
	return s
}

func previewCacheKey(tenantID, projectID int64, asOf time.Time) string {
	return fmt.Sprintf("settlement:preview:%d:%d:%s", tenantID, projectID, asOf.Format("2006-01-02"))
}

// Preview computes the settlement breakdown for a project as of a date. No
// writes. Results are cached; only previews read the cache — commits always
// recompute from the ledger.
func (s *Service) Preview(ctx context.Context, tenantID, projectID int64, asOf time.Time) (Breakdown, error) {
	key := previewCacheKey(tenantID, projectID, asOf)
	var cached Breakdown
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	breakdown, _, err := s.compute(ctx, tenantID, projectID, asOf)
	if err != nil {
		return Breakdown{}, err
	}
	_ = s.cache.Set(ctx, key, breakdown)
	return breakdown, nil
}

// compute aggregates ledger truth and derives the breakdown, bypassing the
// preview cache.
func (s *Service) compute(ctx context.Context, tenantID, projectID int64, asOf time.Time) (Breakdown, ProjectRule, error) {
	rule, err := s.repo.GetRule(ctx, tenantID, projectID)
	if err != nil {
		return Breakdown{}, ProjectRule{}, err
	}
	revenue, err := s.repo.ProjectRevenue(ctx, tenantID, projectID, asOf)
	if err != nil {
		return Breakdown{}, ProjectRule{}, err
	}
	expenses, err := s.repo.ProjectExpenses(ctx, tenantID, projectID, asOf)
	if err != nil {
		return Breakdown{}, ProjectRule{}, err
	}
	breakdown := Compute(rule, revenue, expenses)
	breakdown.ProjectID = projectID
	breakdown.AsOf = asOf
	return breakdown, rule, nil
}

// Compute derives the full breakdown from ledger-truth inputs. Pure.
func Compute(rule ProjectRule, revenue decimal.Decimal, expenses ExpenseTotals) Breakdown {
	b := Breakdown{
		Revenue:            revenue,
		SharedCosts:        expenses.Shared,
		KamdariOrder:       rule.KamdariOrder,
		HariOnlyDeductions: expenses.HariOnly,
		LandlordOnlyCosts:  expenses.LandlordOnly,
		TotalExpenses:      expenses.Total(),
	}
	b.PoolProfit = revenue.Sub(expenses.Shared)

	switch rule.KamdariOrder {
	case KamdariAfterSplit:
		// The cut comes out of each party's gross independently.
		b.RemainingPool = b.PoolProfit
		landlordGross := b.RemainingPool.Mul(rule.LandlordPct).Div(hundred)
		hariGross := b.RemainingPool.Mul(rule.HariPct).Div(hundred)
		landlordCut := landlordGross.Mul(rule.KamdariPct).Div(hundred)
		hariCut := hariGross.Mul(rule.KamdariPct).Div(hundred)
		b.KamdariCut = landlordCut.Add(hariCut)
		b.LandlordGross = landlordGross.Sub(landlordCut)
		b.HariGross = hariGross.Sub(hariCut)
	default:
		b.KamdariCut = b.PoolProfit.Mul(rule.KamdariPct).Div(hundred)
		b.RemainingPool = b.PoolProfit.Sub(b.KamdariCut)
		b.LandlordGross = b.RemainingPool.Mul(rule.LandlordPct).Div(hundred)
		b.HariGross = b.RemainingPool.Mul(rule.HariPct).Div(hundred)
	}

	b.LandlordNet = b.LandlordGross.Sub(expenses.LandlordOnly)
	b.HariNet = b.HariGross.Sub(expenses.HariOnly)
	if b.HariNet.IsNegative() {
		b.HariDeficit = b.HariNet.Neg()
	}
	b.LandlordPosition = positionOf(b.LandlordNet)
	b.HariPosition = positionOf(b.HariNet)
	return b
}

func positionOf(net decimal.Decimal) Position {
	switch {
	case net.IsNegative():
		return PositionPayable
	case net.IsPositive():
		return PositionReceivable
	default:
		return PositionSettled
	}
}

// PostInput wraps parameters for committing a settlement.
type PostInput struct {
	TenantID       int64
	ProjectID      int64
	CropCycleID    *int64
	AsOf           time.Time
	PostingDate    time.Time
	IdempotencyKey string
	IsFinal        bool
	Notes          string
}

// PostResult pairs the committed group with the breakdown it distributes.
type PostResult struct {
	Group     posting.PostingGroup
	Breakdown Breakdown
}

// PostSettlement commits one balanced SETTLEMENT group moving each party's
// net share between the profit-distribution clearing account and that
// party's control account. Same idempotency-key semantics as any posting.
// The breakdown is recomputed from the ledger, never taken from a cached
// preview.
func (s *Service) PostSettlement(ctx context.Context, input PostInput) (PostResult, error) {
	if input.IdempotencyKey == "" {
		return PostResult{}, fmt.Errorf("%w: idempotency key required", shared.ErrValidation)
	}
	breakdown, rule, err := s.compute(ctx, input.TenantID, input.ProjectID, input.AsOf)
	if err != nil {
		return PostResult{}, err
	}
	lines, allocations := s.distribution(breakdown, rule, input.ProjectID)
	group, err := s.poster.Post(ctx, posting.PostingInput{
		TenantID:       input.TenantID,
		CropCycleID:    input.CropCycleID,
		SourceType:     sources.KindSettlement,
		SourceID:       settlementSourceID("project", input.ProjectID, input.AsOf),
		PostingDate:    postingDateOr(input.PostingDate, s.now),
		IdempotencyKey: &input.IdempotencyKey,
		Lines:          lines,
		Allocations:    allocations,
	})
	if err != nil {
		return PostResult{}, err
	}
	projectID := input.ProjectID
	if _, err := s.repo.InsertRecord(ctx, SettlementRecord{
		TenantID:       input.TenantID,
		ProjectID:      &projectID,
		CropCycleID:    input.CropCycleID,
		PostingGroupID: group.ID,
		AsOf:           input.AsOf,
		IsFinal:        input.IsFinal,
		Notes:          input.Notes,
	}); err != nil {
		return PostResult{}, err
	}
	return PostResult{Group: group, Breakdown: breakdown}, nil
}

// CycleInput wraps parameters for a cycle-wide settlement.
type CycleInput struct {
	TenantID       int64
	CropCycleID    int64
	AsOf           time.Time
	PostingDate    time.Time
	IdempotencyKey string
	IsFinal        bool
	Notes          string
}

// CycleResult carries the aggregate group and per-project breakdowns.
type CycleResult struct {
	Group      posting.PostingGroup
	Breakdowns []Breakdown
}

// SettleCropCycle aggregates every project in the cycle and posts one
// CROP_CYCLE_SETTLEMENT group for the combined per-party totals.
func (s *Service) SettleCropCycle(ctx context.Context, input CycleInput) (CycleResult, error) {
	if input.IdempotencyKey == "" {
		return CycleResult{}, fmt.Errorf("%w: idempotency key required", shared.ErrValidation)
	}
	projects, err := s.repo.ProjectsInCycle(ctx, input.TenantID, input.CropCycleID)
	if err != nil {
		return CycleResult{}, err
	}
	var breakdowns []Breakdown
	var lines []posting.LineInput
	var allocations []posting.AllocationInput
	for _, projectID := range projects {
		breakdown, rule, err := s.compute(ctx, input.TenantID, projectID, input.AsOf)
		if err != nil {
			return CycleResult{}, err
		}
		projectLines, projectAllocs := s.distribution(breakdown, rule, projectID)
		lines = append(lines, projectLines...)
		allocations = append(allocations, projectAllocs...)
		breakdowns = append(breakdowns, breakdown)
	}
	cycleID := input.CropCycleID
	group, err := s.poster.Post(ctx, posting.PostingInput{
		TenantID:       input.TenantID,
		CropCycleID:    &cycleID,
		SourceType:     sources.KindCropCycleSettlement,
		SourceID:       settlementSourceID("cycle", input.CropCycleID, input.AsOf),
		PostingDate:    postingDateOr(input.PostingDate, s.now),
		IdempotencyKey: &input.IdempotencyKey,
		Lines:          lines,
		Allocations:    allocations,
	})
	if err != nil {
		return CycleResult{}, err
	}
	if _, err := s.repo.InsertRecord(ctx, SettlementRecord{
		TenantID:       input.TenantID,
		CropCycleID:    &cycleID,
		PostingGroupID: group.ID,
		AsOf:           input.AsOf,
		IsFinal:        input.IsFinal,
		Notes:          input.Notes,
	}); err != nil {
		return CycleResult{}, err
	}
	return CycleResult{Group: group, Breakdowns: breakdowns}, nil
}

// distribution renders a breakdown as balanced ledger lines against the
// clearing account plus allocation rows per party. Each pair of lines moves
// one party's net, so the group balances by construction.
func (s *Service) distribution(b Breakdown, rule ProjectRule, projectID int64) ([]posting.LineInput, []posting.AllocationInput) {
	var lines []posting.LineInput
	var allocations []posting.AllocationInput

	add := func(controlCode string, partyID int64, net decimal.Decimal) {
		if net.IsZero() {
			return
		}
		amount := net.Round(2).Abs()
		if net.IsPositive() {
			// Business owes the party: clearing pays out, control account
			// carries the payable.
			lines = append(lines,
				posting.LineInput{AccountCode: s.cfg.ClearingAccountCode, Debit: amount, Currency: s.cfg.CurrencyCode},
				posting.LineInput{AccountCode: controlCode, Credit: amount, Currency: s.cfg.CurrencyCode},
			)
		} else {
			// Party owes the business.
			lines = append(lines,
				posting.LineInput{AccountCode: controlCode, Debit: amount, Currency: s.cfg.CurrencyCode},
				posting.LineInput{AccountCode: s.cfg.ClearingAccountCode, Credit: amount, Currency: s.cfg.CurrencyCode},
			)
		}
		pid := projectID
		party := partyID
		rounded := net.Round(2)
		allocations = append(allocations, posting.AllocationInput{
			ProjectID: &pid,
			PartyID:   &party,
			Type:      posting.AllocationSettlementShare,
			Amount:    &rounded,
		})
	}

	add(s.cfg.LandlordControlCode, rule.LandlordPartyID, b.LandlordNet)
	add(s.cfg.HariControlCode, rule.HariPartyID, b.HariNet)
	if rule.KamdarPartyID != nil && !b.KamdariCut.IsZero() {
		add(s.cfg.KamdarControlCode, *rule.KamdarPartyID, b.KamdariCut)
	}
	return lines, allocations
}

func settlementSourceID(kind string, id int64, asOf time.Time) uuid.UUID {
	name := kind + ":" + strconv.FormatInt(id, 10) + ":" + asOf.Format("2006-01-02")
	return uuid.NewSHA1(settlementNamespace, []byte(name))
}

func postingDateOr(date time.Time, now func() time.Time) time.Time {
	if date.IsZero() {
		return now()
	}
	return date
}
