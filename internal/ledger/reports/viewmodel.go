package reports

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shopspring/decimal"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a decimal with digit grouping for statements and
// ageing views, e.g. 1,234,567.89.
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return amountPrinter.Sprintf("%.2f", f)
}

// StatementTotals is the summary block under an AR statement.
type StatementTotals struct {
	DebitTotal     string `json:"debit_total"`
	CreditTotal    string `json:"credit_total"`
	ClosingBalance string `json:"closing_balance"`
}

// TotalsOf renders a ledger view's totals for display.
func TotalsOf(view LedgerView) StatementTotals {
	return StatementTotals{
		DebitTotal:     FormatAmount(view.DebitTotal),
		CreditTotal:    FormatAmount(view.CreditTotal),
		ClosingBalance: FormatAmount(view.ClosingBalance),
	}
}
