package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/reversal"
)

// NewControlMigrationHandler returns a handler that moves historical groups
// from one party control account to another via corrections: each group is
// mirrored out and re-posted with the account swapped. Already-corrected
// groups are skipped, so the batch is safe to retry.
func NewControlMigrationHandler(repo posting.Repository, corrector *reversal.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ControlMigrationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.FromControl == "" || payload.ToControl == "" || payload.ReasonCode == "" {
			return asynq.SkipRetry
		}
		postingDate, err := time.Parse(time.RFC3339, payload.PostingDateISO)
		if err != nil {
			postingDate = time.Now().UTC()
		}

		for _, groupID := range payload.GroupIDs {
			group, err := repo.GetGroup(ctx, payload.TenantID, groupID)
			if err != nil {
				return err
			}
			lines, touched := swapControlLines(group, payload.FromControl, payload.ToControl)
			if !touched {
				logger.Info("group does not touch migrated control, skipping",
					slog.Int64("group_id", groupID))
				continue
			}
			result, err := corrector.Correct(ctx, reversal.CorrectInput{
				TenantID:       payload.TenantID,
				PostingGroupID: groupID,
				ActorID:        payload.ActorID,
				ReasonCode:     payload.ReasonCode,
				PostingDate:    postingDate,
				Lines:          lines,
				Allocations:    carryAllocations(group),
			})
			if err != nil {
				return err
			}
			logger.Info("control migration applied",
				slog.Int64("group_id", groupID),
				slog.Int64("reversal_group_id", result.ReversalGroup.ID),
				slog.Int64("corrected_group_id", result.CorrectedGroup.ID),
				slog.Bool("already_applied", result.AlreadyApplied))
		}
		return nil
	}
}

func swapControlLines(group posting.PostingGroup, from, to string) ([]posting.LineInput, bool) {
	touched := false
	lines := make([]posting.LineInput, 0, len(group.Entries))
	for _, entry := range group.Entries {
		code := entry.AccountCode
		if code == from {
			code = to
			touched = true
		}
		lines = append(lines, posting.LineInput{
			AccountCode: code,
			Debit:       entry.Debit,
			Credit:      entry.Credit,
			Currency:    entry.Currency,
		})
	}
	return lines, touched
}

func carryAllocations(group posting.PostingGroup) []posting.AllocationInput {
	rows := make([]posting.AllocationInput, 0, len(group.Allocations))
	for _, a := range group.Allocations {
		rows = append(rows, posting.AllocationInput{
			ProjectID: a.ProjectID,
			PartyID:   a.PartyID,
			MachineID: a.MachineID,
			Type:      a.Type,
			Scope:     a.Scope,
			Amount:    a.Amount,
			Quantity:  a.Quantity,
			Unit:      a.Unit,
		})
	}
	return rows
}
