package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

// AccountDirectory resolves account codes for ledger views.
type AccountDirectory interface {
	ByCodes(ctx context.Context, tenantID int64, codes []string) (map[string]accounts.Account, error)
}

// Service exposes the read-side views. Aggregation always recomputes from
// ledger entries; the cache and singleflight only collapse identical reads.
type Service struct {
	repo      Repository
	directory AccountDirectory
	cache     *Cache
	flight    singleflight.Group
}

func NewService(repo Repository, directory AccountDirectory, cache *Cache) *Service {
	return &Service{repo: repo, directory: directory, cache: cache}
}

// TrialBalance aggregates every account as of a date.
func (s *Service) TrialBalance(ctx context.Context, tenantID int64, asOf time.Time) (TrialBalance, error) {
	key := fmt.Sprintf("reports:tb:%d:%s", tenantID, asOf.Format("2006-01-02"))
	var cached TrialBalance
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	result, err, _ := s.flight.Do(key, func() (any, error) {
		rows, err := s.repo.TrialBalanceRows(ctx, tenantID, asOf)
		if err != nil {
			return TrialBalance{}, err
		}
		tb := BuildTrialBalance(asOf, rows)
		_ = s.cache.Set(ctx, key, tb)
		return tb, nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return result.(TrialBalance), nil
}

// GeneralLedger renders one account's entries over a range with running
// balances on top of the opening aggregate.
func (s *Service) GeneralLedger(ctx context.Context, tenantID int64, accountCode string, from, to time.Time) (LedgerView, error) {
	account, err := s.resolveAccount(ctx, tenantID, accountCode)
	if err != nil {
		return LedgerView{}, err
	}
	openingDebit, openingCredit, err := s.repo.AccountOpening(ctx, tenantID, account.ID, from)
	if err != nil {
		return LedgerView{}, err
	}
	lines, err := s.repo.AccountEntries(ctx, tenantID, account.ID, from, to)
	if err != nil {
		return LedgerView{}, err
	}
	return BuildLedgerView(from, to, openingDebit, openingCredit, NormalityFor(string(account.Type)), lines), nil
}

// PartyLedger renders a party's movements on its role control account.
func (s *Service) PartyLedger(ctx context.Context, tenantID, partyID int64, controlAccountCode string, from, to time.Time) (LedgerView, error) {
	account, err := s.resolveAccount(ctx, tenantID, controlAccountCode)
	if err != nil {
		return LedgerView{}, err
	}
	openingDebit, openingCredit, err := s.repo.PartyOpening(ctx, tenantID, partyID, account.ID, from)
	if err != nil {
		return LedgerView{}, err
	}
	lines, err := s.repo.PartyEntries(ctx, tenantID, partyID, account.ID, from, to)
	if err != nil {
		return LedgerView{}, err
	}
	return BuildLedgerView(from, to, openingDebit, openingCredit, CreditNormal, lines), nil
}

// ARStatement is the party ledger shaped for customers: per-line running
// balances plus debit/credit totals and the closing balance.
func (s *Service) ARStatement(ctx context.Context, tenantID, partyID int64, controlAccountCode string, from, to time.Time) (LedgerView, error) {
	return s.PartyLedger(ctx, tenantID, partyID, controlAccountCode, from, to)
}

// Ageing buckets role balances by posting-date age as of a date, optionally
// filtered to one project or crop cycle.
func (s *Service) Ageing(ctx context.Context, tenantID int64, asOf time.Time, projectID, cropCycleID *int64) ([]AgeingBucket, error) {
	amounts, err := s.repo.PartyAmounts(ctx, tenantID, asOf, projectID, cropCycleID)
	if err != nil {
		return nil, err
	}
	return BuildAgeing(asOf, amounts), nil
}

func (s *Service) resolveAccount(ctx context.Context, tenantID int64, code string) (accounts.Account, error) {
	byCode, err := s.directory.ByCodes(ctx, tenantID, []string{code})
	if err != nil {
		return accounts.Account{}, err
	}
	account, ok := byCode[code]
	if !ok {
		return accounts.Account{}, fmt.Errorf("%w: code %s", shared.ErrAccountNotFound, code)
	}
	return account, nil
}
