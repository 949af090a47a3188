package sources

import "time"

// Correction links an original posting group with the pair of groups that
// corrected it. Its presence makes a correction job idempotent: re-running
// for the same original performs no further writes.
type Correction struct {
	ID               int64
	TenantID         int64
	OriginalGroupID  int64
	ReversalGroupID  int64
	CorrectedGroupID int64
	ReasonCode       string
	CreatedAt        time.Time
}
