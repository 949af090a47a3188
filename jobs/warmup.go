package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fasal-erp/fasal-erp/internal/ledger/reports"
)

// NewWarmupHandler returns a handler that rebuilds the trial balance cache
// for each listed tenant so the first morning request doesn't pay the
// aggregation cost.
func NewWarmupHandler(service *reports.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload WarmupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		asOf := payload.AsOf
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		for _, tenantID := range payload.TenantIDs {
			if _, err := service.TrialBalance(ctx, tenantID, asOf); err != nil {
				logger.Warn("trial balance warmup failed",
					slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			}
		}
		return nil
	}
}
