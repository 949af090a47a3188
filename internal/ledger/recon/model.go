package recon

import "time"

// LinkKind separates the two state machines kept per ledger entry.
type LinkKind string

const (
	LinkClear LinkKind = "CLEAR"
	LinkMatch LinkKind = "MATCH"
)

// LinkStatus is one event in a link's history. Voids never delete: each
// clear/unclear or match/unmatch appends a new status-tagged row.
type LinkStatus string

const (
	StatusCleared LinkStatus = "CLEARED"
	StatusMatched LinkStatus = "MATCHED"
	StatusVoid    LinkStatus = "VOID"
)

// Reconciliation scopes clear/match work to one bank account and statement.
type Reconciliation struct {
	ID            int64
	TenantID      int64
	BankAccountID int64
	StatementDate time.Time
	CreatedAt     time.Time
}

// LinkEvent is one appended row in a link's history.
type LinkEvent struct {
	ID               int64
	TenantID         int64
	ReconciliationID int64
	LedgerEntryID    int64
	Kind             LinkKind
	Status           LinkStatus
	StatementLineRef string
	ActorID          int64
	CreatedAt        time.Time
}

// EntryMeta is what the guards need to know about a ledger entry.
type EntryMeta struct {
	LedgerEntryID int64
	AccountID     int64
	PostingDate   time.Time
	GroupReversed bool
}
