package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

type stubReportRepo struct {
	tbCalls int
	tbRows  []TrialBalanceRow

	opening struct{ debit, credit decimal.Decimal }
	entries []EntryLine
}

func (s *stubReportRepo) TrialBalanceRows(ctx context.Context, tenantID int64, asOf time.Time) ([]TrialBalanceRow, error) {
	s.tbCalls++
	return s.tbRows, nil
}

func (s *stubReportRepo) AccountOpening(ctx context.Context, tenantID, accountID int64, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return s.opening.debit, s.opening.credit, nil
}

func (s *stubReportRepo) AccountEntries(ctx context.Context, tenantID, accountID int64, from, to time.Time) ([]EntryLine, error) {
	return s.entries, nil
}

func (s *stubReportRepo) PartyOpening(ctx context.Context, tenantID, partyID, controlAccountID int64, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return s.opening.debit, s.opening.credit, nil
}

func (s *stubReportRepo) PartyEntries(ctx context.Context, tenantID, partyID, controlAccountID int64, from, to time.Time) ([]EntryLine, error) {
	return s.entries, nil
}

func (s *stubReportRepo) PartyAmounts(ctx context.Context, tenantID int64, asOf time.Time, projectID, cropCycleID *int64) ([]PartyAmount, error) {
	return nil, nil
}

type stubDirectory struct {
	accounts map[string]accounts.Account
}

func (s stubDirectory) ByCodes(ctx context.Context, tenantID int64, codes []string) (map[string]accounts.Account, error) {
	out := make(map[string]accounts.Account)
	for _, code := range codes {
		if a, ok := s.accounts[code]; ok {
			out[code] = a
		}
	}
	return out, nil
}

func TestTrialBalanceServedFromCache(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	repo := &stubReportRepo{tbRows: []TrialBalanceRow{
		{AccountCode: "1020", AccountType: "ASSET", TotalDebit: d(100)},
		{AccountCode: "4010", AccountType: "INCOME", TotalCredit: d(100)},
	}}
	svc := NewService(repo, stubDirectory{}, cache)

	asOf := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	first, err := svc.TrialBalance(context.Background(), 1, asOf)
	require.NoError(t, err)
	require.True(t, first.Balanced)
	require.Equal(t, 1, repo.tbCalls)

	second, err := svc.TrialBalance(context.Background(), 1, asOf)
	require.NoError(t, err)
	require.True(t, second.TotalDebit.Equal(first.TotalDebit))
	require.Equal(t, 1, repo.tbCalls, "second read comes from the cache")
}

func TestGeneralLedgerUsesAccountNormality(t *testing.T) {
	repo := &stubReportRepo{entries: []EntryLine{
		{PostingGroupID: 1, PostingDate: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), AccountCode: "4010", Credit: d(900)},
	}}
	directory := stubDirectory{accounts: map[string]accounts.Account{
		"4010": {ID: 3, Code: "4010", Type: accounts.AccountTypeIncome},
	}}
	svc := NewService(repo, directory, nil)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	view, err := svc.GeneralLedger(context.Background(), 1, "4010", from, to)
	require.NoError(t, err)
	require.True(t, view.ClosingBalance.Equal(d(900)), "income is credit normal")
}

func TestGeneralLedgerUnknownAccount(t *testing.T) {
	svc := NewService(&stubReportRepo{}, stubDirectory{}, nil)
	_, err := svc.GeneralLedger(context.Background(), 1, "9999", time.Now(), time.Now())
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}
