package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fasal-erp/fasal-erp/internal/observability"
)

// NewIntegrityScanHandler returns a handler that rechecks Σdebit = Σcredit
// for every posting group. The posting engine validates this at commit and
// storage triggers forbid mutation, so any hit here means corruption worth
// paging on.
func NewIntegrityScanHandler(pool *pgxpool.Pool, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IntegrityScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		query := `SELECT pg.tenant_id, pg.id, COALESCE(SUM(le.debit_amount),0), COALESCE(SUM(le.credit_amount),0)
FROM posting_groups pg
LEFT JOIN ledger_entries le ON le.posting_group_id = pg.id
GROUP BY pg.tenant_id, pg.id
HAVING COALESCE(SUM(le.debit_amount),0) <> COALESCE(SUM(le.credit_amount),0)`
		args := []any{}
		if payload.TenantID > 0 {
			query = `SELECT pg.tenant_id, pg.id, COALESCE(SUM(le.debit_amount),0), COALESCE(SUM(le.credit_amount),0)
FROM posting_groups pg
LEFT JOIN ledger_entries le ON le.posting_group_id = pg.id
WHERE pg.tenant_id = $1
GROUP BY pg.tenant_id, pg.id
HAVING COALESCE(SUM(le.debit_amount),0) <> COALESCE(SUM(le.credit_amount),0)`
			args = append(args, payload.TenantID)
		}

		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		issues := 0
		for rows.Next() {
			var tenantID, groupID int64
			var debit, credit string
			if err := rows.Scan(&tenantID, &groupID, &debit, &credit); err != nil {
				return err
			}
			issues++
			logger.Error("unbalanced posting group",
				slog.Int64("tenant_id", tenantID),
				slog.Int64("group_id", groupID),
				slog.String("debit", debit),
				slog.String("credit", credit))
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if metrics != nil {
			metrics.IntegrityIssues.Set(float64(issues))
		}
		logger.Info("ledger integrity scan finished",
			slog.Int64("tenant_id", payload.TenantID),
			slog.Int("issues", issues))
		return nil
	}
}
