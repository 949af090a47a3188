package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubBalanceReader struct {
	totals []GroupTotal
	err    error
}

func (s stubBalanceReader) GroupTotals(ctx context.Context, tenantID int64) ([]GroupTotal, error) {
	return s.totals, s.err
}

func TestIntegrityCommandJSONSuccess(t *testing.T) {
	reader := stubBalanceReader{totals: []GroupTotal{
		{GroupID: 1, Debit: decimal.NewFromInt(100), Credit: decimal.NewFromInt(100)},
		{GroupID: 2, Debit: decimal.Zero, Credit: decimal.Zero},
	}}
	cli, err := NewLedgerOpsCLI(reader)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.IntegrityCommand(context.Background(), IntegrityOptions{
		TenantID:   1,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary IntegritySummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Empty(t, summary.Issues)
}

func TestIntegrityCommandJSONIssues(t *testing.T) {
	reader := stubBalanceReader{totals: []GroupTotal{
		{GroupID: 7, Debit: decimal.NewFromInt(500), Credit: decimal.NewFromInt(300)},
	}}
	cli, err := NewLedgerOpsCLI(reader)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.IntegrityCommand(context.Background(), IntegrityOptions{
		TenantID:   1,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
	})
	require.Equal(t, 10, exitCode)

	var summary IntegritySummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Issues, 1)
	require.Equal(t, int64(7), summary.Issues[0].GroupID)
	require.Equal(t, "500.00", summary.Issues[0].Debit)
	require.Equal(t, "300.00", summary.Issues[0].Credit)
}

func TestIntegrityCommandRequiresTenant(t *testing.T) {
	cli, err := NewLedgerOpsCLI(stubBalanceReader{})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.IntegrityCommand(context.Background(), IntegrityOptions{
		TenantID: 0,
		Stdout:   new(bytes.Buffer),
		Stderr:   stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "--tenant")
}

func TestIntegrityCommandReaderError(t *testing.T) {
	cli, err := NewLedgerOpsCLI(stubBalanceReader{err: errors.New("boom")})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.IntegrityCommand(context.Background(), IntegrityOptions{
		TenantID: 1,
		Stdout:   new(bytes.Buffer),
		Stderr:   stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "boom")
}
