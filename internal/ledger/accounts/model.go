package accounts

import "time"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account models a chart of accounts node. Once any ledger entry references
// the account, only the deprecated flag may change.
type Account struct {
	ID         int64
	TenantID   int64
	Code       string
	Name       string
	Type       AccountType
	Deprecated bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DeprecatedSet is the injected configuration the posting engine validates
// lines against: the set of forbidden codes for one tenant.
type DeprecatedSet map[string]struct{}

// Contains reports whether code is on the deprecated list.
func (s DeprecatedSet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}
