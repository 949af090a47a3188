package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalance is the as-of aggregate per account plus the balanced flag.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balanced    bool
}

// BuildTrialBalance totals the per-account rows and sets the balanced flag.
// With only committed posting groups feeding it the flag is always true;
// false means the storage invariant was breached out of band.
func BuildTrialBalance(asOf time.Time, rows []TrialBalanceRow) TrialBalance {
	tb := TrialBalance{AsOf: asOf, Rows: rows}
	for _, row := range rows {
		tb.TotalDebit = tb.TotalDebit.Add(row.TotalDebit)
		tb.TotalCredit = tb.TotalCredit.Add(row.TotalCredit)
	}
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb
}
