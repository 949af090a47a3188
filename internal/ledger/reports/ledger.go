package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Normality says which side grows an account's balance.
type Normality int

const (
	DebitNormal Normality = iota
	CreditNormal
)

// NormalityFor maps account types to their natural balance side.
func NormalityFor(accountType string) Normality {
	switch accountType {
	case "LIABILITY", "EQUITY", "INCOME":
		return CreditNormal
	default:
		return DebitNormal
	}
}

// RunningLine is one statement line with the balance after it.
type RunningLine struct {
	EntryLine
	RunningBalance decimal.Decimal
}

// LedgerView is an account or party ledger over a date range.
type LedgerView struct {
	From           time.Time
	To             time.Time
	OpeningBalance decimal.Decimal
	Lines          []RunningLine
	ClosingBalance decimal.Decimal
	DebitTotal     decimal.Decimal
	CreditTotal    decimal.Decimal
}

// BuildLedgerView orders entries into running balances on top of the
// opening aggregate. openingDebit/openingCredit come from everything before
// the window, with reversed pairs already excluded.
func BuildLedgerView(from, to time.Time, openingDebit, openingCredit decimal.Decimal, normality Normality, lines []EntryLine) LedgerView {
	view := LedgerView{From: from, To: to}
	view.OpeningBalance = balance(normality, openingDebit, openingCredit)
	running := view.OpeningBalance
	for _, line := range lines {
		running = running.Add(balance(normality, line.Debit, line.Credit))
		view.Lines = append(view.Lines, RunningLine{EntryLine: line, RunningBalance: running})
		view.DebitTotal = view.DebitTotal.Add(line.Debit)
		view.CreditTotal = view.CreditTotal.Add(line.Credit)
	}
	view.ClosingBalance = running
	return view
}

func balance(normality Normality, debit, credit decimal.Decimal) decimal.Decimal {
	if normality == CreditNormal {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}
