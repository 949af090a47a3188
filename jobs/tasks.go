package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan rechecks the balance invariant across posted groups.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskReportCacheWarmup pre-computes the trial balance for active tenants.
	TaskReportCacheWarmup = "reports:warmup"
	// TaskControlMigration re-posts groups onto a new party control account.
	TaskControlMigration = "ledger:control_migration"
)

// IntegrityScanPayload scopes a scan to one tenant, zero meaning all tenants.
type IntegrityScanPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// NewIntegrityScanTask constructs an integrity scan task.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// WarmupPayload lists the tenants whose report caches should be rebuilt.
type WarmupPayload struct {
	TenantIDs []int64   `json:"tenant_ids"`
	AsOf      time.Time `json:"as_of"`
}

// NewWarmupTask constructs a report cache warmup task.
func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportCacheWarmup, data), nil
}

// ControlMigrationPayload describes a batch of groups to correct onto a new
// control account. Each group is reversed and re-posted with the account
// swapped; history stays intact.
type ControlMigrationPayload struct {
	TenantID       int64   `json:"tenant_id"`
	GroupIDs       []int64 `json:"group_ids"`
	FromControl    string  `json:"from_control"`
	ToControl      string  `json:"to_control"`
	ReasonCode     string  `json:"reason_code"`
	ActorID        int64   `json:"actor_id"`
	PostingDateISO string  `json:"posting_date"`
}

// NewControlMigrationTask constructs a control migration task.
func NewControlMigrationTask(payload ControlMigrationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskControlMigration, data), nil
}
