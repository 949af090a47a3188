package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceReader exposes the balance totals the integrity command checks.
type BalanceReader interface {
	GroupTotals(ctx context.Context, tenantID int64) ([]GroupTotal, error)
}

// GroupTotal carries the summed sides of one posting group.
type GroupTotal struct {
	GroupID int64
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// LedgerOpsCLI offers operational helpers for checking ledger health.
type LedgerOpsCLI struct {
	reader BalanceReader
}

// NewLedgerOpsCLI constructs the helper with the provided reader.
func NewLedgerOpsCLI(reader BalanceReader) (*LedgerOpsCLI, error) {
	if reader == nil {
		return nil, fmt.Errorf("ledger cli: balance reader required")
	}
	return &LedgerOpsCLI{reader: reader}, nil
}

// IntegrityOptions defines available flags for the integrity command.
type IntegrityOptions struct {
	TenantID   int64
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// IntegritySummary describes the JSON response for the integrity command.
type IntegritySummary struct {
	OK     bool             `json:"ok"`
	Issues []IntegrityIssue `json:"issues"`
}

// IntegrityIssue reports one unbalanced posting group.
type IntegrityIssue struct {
	GroupID int64  `json:"group_id"`
	Debit   string `json:"debit"`
	Credit  string `json:"credit"`
}

// IntegrityCommand verifies every posting group balances and prints the outcome.
func (c *LedgerOpsCLI) IntegrityCommand(ctx context.Context, opts IntegrityOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.TenantID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "ledger integrity: --tenant is required and must be positive")
		return 1
	}
	totals, err := c.reader.GroupTotals(ctx, opts.TenantID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "ledger integrity: %v\n", err)
		return 1
	}

	issues := make([]IntegrityIssue, 0)
	for _, total := range totals {
		if !total.Debit.Equal(total.Credit) {
			issues = append(issues, IntegrityIssue{
				GroupID: total.GroupID,
				Debit:   total.Debit.StringFixed(2),
				Credit:  total.Credit.StringFixed(2),
			})
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].GroupID < issues[j].GroupID })

	if opts.JSONOutput {
		summary := IntegritySummary{OK: len(issues) == 0, Issues: issues}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "ledger integrity: encode json: %v\n", err)
			return 1
		}
	} else {
		if len(issues) == 0 {
			_, _ = fmt.Fprintln(opts.Stdout, "all posting groups balance")
		}
		for _, issue := range issues {
			_, _ = fmt.Fprintf(opts.Stdout, "group %d unbalanced: debit=%s credit=%s\n", issue.GroupID, issue.Debit, issue.Credit)
		}
	}
	if len(issues) > 0 {
		return 10
	}
	return 0
}
