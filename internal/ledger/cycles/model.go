package cycles

import "time"

// Status enumerates crop cycle lifecycle values.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// CropCycle is the posting period of the farm ledger. Postings are gated on
// the cycle being OPEN at commit time.
type CropCycle struct {
	ID        int64
	TenantID  int64
	Name      string
	StartDate time.Time
	EndDate   *time.Time
	Status    Status
	ClosedAt  *time.Time
	ClosedBy  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
