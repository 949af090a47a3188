// Package ledgertest provides in-memory fakes for exercising the posting
// engine and its callers without Postgres. The fake enforces the same
// guards the storage layer does: idempotency-key uniqueness, one source
// link per group, one reversal per link, and transactional rollback.
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fasal-erp/fasal-erp/internal/ledger/accounts"
	"github.com/fasal-erp/fasal-erp/internal/ledger/cycles"
	"github.com/fasal-erp/fasal-erp/internal/ledger/posting"
	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
	"github.com/fasal-erp/fasal-erp/internal/ledger/sources"
)

// Directory is a fixed chart of accounts satisfying posting.AccountDirectory.
type Directory struct {
	Accounts   map[string]accounts.Account
	Deprecated accounts.DeprecatedSet
}

// NewDirectory builds a directory from the given accounts, keyed by code.
func NewDirectory(accs ...accounts.Account) *Directory {
	d := &Directory{
		Accounts:   make(map[string]accounts.Account, len(accs)),
		Deprecated: make(accounts.DeprecatedSet),
	}
	for _, a := range accs {
		d.Accounts[a.Code] = a
		if a.Deprecated {
			d.Deprecated[a.Code] = struct{}{}
		}
	}
	return d
}

// Deprecate retires a code in the directory.
func (d *Directory) Deprecate(code string) {
	a := d.Accounts[code]
	a.Deprecated = true
	d.Accounts[code] = a
	d.Deprecated[code] = struct{}{}
}

func (d *Directory) ByCodes(ctx context.Context, tenantID int64, codes []string) (map[string]accounts.Account, error) {
	out := make(map[string]accounts.Account, len(codes))
	for _, code := range codes {
		if a, ok := d.Accounts[code]; ok {
			out[code] = a
		}
	}
	return out, nil
}

func (d *Directory) DeprecatedCodes(ctx context.Context, tenantID int64) (accounts.DeprecatedSet, error) {
	return d.Deprecated, nil
}

// Repo is an in-memory posting.Repository. All state is exported so tests
// can seed and assert directly.
type Repo struct {
	mu sync.Mutex

	nextGroupID int64
	nextLinkID  int64
	nextCorrID  int64

	Groups      map[int64]posting.PostingGroup
	ByIdemKey   map[string]int64
	Links       map[int64]sources.Link // keyed by posting group id
	Corrections map[int64]sources.Correction
	Cycles      map[int64]cycles.CropCycle

	// MissIdemOnce makes the next idempotency-key lookup miss, simulating a
	// competing writer committing between the engine's pre-check and its
	// insert. The insert then collides on the unique key like in Postgres.
	MissIdemOnce bool
}

func NewRepo() *Repo {
	return &Repo{
		Groups:      make(map[int64]posting.PostingGroup),
		ByIdemKey:   make(map[string]int64),
		Links:       make(map[int64]sources.Link),
		Corrections: make(map[int64]sources.Correction),
		Cycles:      make(map[int64]cycles.CropCycle),
	}
}

// AddCycle seeds a crop cycle.
func (r *Repo) AddCycle(c cycles.CropCycle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cycles[c.ID] = c
}

// GroupCount reports how many posting groups are committed.
func (r *Repo) GroupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Groups)
}

func idemKey(tenantID int64, key string) string {
	return fmt.Sprintf("%d|%s", tenantID, key)
}

func (r *Repo) GetByIdempotencyKey(ctx context.Context, tenantID int64, key string) (posting.PostingGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.MissIdemOnce {
		r.MissIdemOnce = false
		return posting.PostingGroup{}, shared.ErrGroupNotFound
	}
	id, ok := r.ByIdemKey[idemKey(tenantID, key)]
	if !ok {
		return posting.PostingGroup{}, shared.ErrGroupNotFound
	}
	return r.Groups[id], nil
}

func (r *Repo) GetGroup(ctx context.Context, tenantID, groupID int64) (posting.PostingGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.Groups[groupID]
	if !ok || g.TenantID != tenantID {
		return posting.PostingGroup{}, shared.ErrGroupNotFound
	}
	return g, nil
}

// WithTx runs fn against the shared state, restoring the pre-transaction
// snapshot when fn fails so partial writes never leak.
func (r *Repo) WithTx(ctx context.Context, fn func(context.Context, posting.TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot()
	if err := fn(ctx, &tx{repo: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

type state struct {
	nextGroupID, nextLinkID, nextCorrID int64
	groups                              map[int64]posting.PostingGroup
	byIdemKey                           map[string]int64
	links                               map[int64]sources.Link
	corrections                         map[int64]sources.Correction
}

func (r *Repo) snapshot() state {
	s := state{
		nextGroupID: r.nextGroupID,
		nextLinkID:  r.nextLinkID,
		nextCorrID:  r.nextCorrID,
		groups:      make(map[int64]posting.PostingGroup, len(r.Groups)),
		byIdemKey:   make(map[string]int64, len(r.ByIdemKey)),
		links:       make(map[int64]sources.Link, len(r.Links)),
		corrections: make(map[int64]sources.Correction, len(r.Corrections)),
	}
	for k, v := range r.Groups {
		s.groups[k] = v
	}
	for k, v := range r.ByIdemKey {
		s.byIdemKey[k] = v
	}
	for k, v := range r.Links {
		s.links[k] = v
	}
	for k, v := range r.Corrections {
		s.corrections[k] = v
	}
	return s
}

func (r *Repo) restore(s state) {
	r.nextGroupID = s.nextGroupID
	r.nextLinkID = s.nextLinkID
	r.nextCorrID = s.nextCorrID
	r.Groups = s.groups
	r.ByIdemKey = s.byIdemKey
	r.Links = s.links
	r.Corrections = s.corrections
}

type tx struct {
	repo *Repo
}

func (t *tx) InsertGroup(ctx context.Context, in posting.GroupInsert) (posting.PostingGroup, error) {
	r := t.repo
	if in.IdempotencyKey != nil {
		if _, exists := r.ByIdemKey[idemKey(in.TenantID, *in.IdempotencyKey)]; exists {
			return posting.PostingGroup{}, posting.ErrDuplicateKey
		}
	}
	r.nextGroupID++
	g := posting.PostingGroup{
		ID:                       r.nextGroupID,
		TenantID:                 in.TenantID,
		SourceType:               in.SourceType,
		SourceID:                 in.SourceID,
		CropCycleID:              in.CropCycleID,
		PostingDate:              in.PostingDate,
		IdempotencyKey:           in.IdempotencyKey,
		ReversalOfPostingGroupID: in.ReversalOf,
		CorrectionReason:         in.CorrectionReason,
		CreatedAt:                time.Now(),
	}
	r.Groups[g.ID] = g
	if in.IdempotencyKey != nil {
		r.ByIdemKey[idemKey(in.TenantID, *in.IdempotencyKey)] = g.ID
	}
	return g, nil
}

func (t *tx) InsertEntries(ctx context.Context, tenantID, groupID int64, entries []posting.EntryInsert) error {
	g, ok := t.repo.Groups[groupID]
	if !ok {
		return shared.ErrGroupNotFound
	}
	for _, e := range entries {
		g.Entries = append(g.Entries, posting.LedgerEntry{
			ID:             int64(len(g.Entries) + 1),
			TenantID:       tenantID,
			PostingGroupID: groupID,
			AccountID:      e.AccountID,
			AccountCode:    e.AccountCode,
			Debit:          e.Debit,
			Credit:         e.Credit,
			Currency:       e.Currency,
			CreatedAt:      g.CreatedAt,
		})
	}
	t.repo.Groups[groupID] = g
	return nil
}

func (t *tx) InsertAllocations(ctx context.Context, tenantID, groupID int64, rows []posting.AllocationInput) error {
	g, ok := t.repo.Groups[groupID]
	if !ok {
		return shared.ErrGroupNotFound
	}
	for _, a := range rows {
		g.Allocations = append(g.Allocations, posting.AllocationRow{
			ID:             int64(len(g.Allocations) + 1),
			TenantID:       tenantID,
			PostingGroupID: groupID,
			ProjectID:      a.ProjectID,
			PartyID:        a.PartyID,
			MachineID:      a.MachineID,
			Type:           a.Type,
			Scope:          a.Scope,
			Amount:         a.Amount,
			Quantity:       a.Quantity,
			Unit:           a.Unit,
			CreatedAt:      g.CreatedAt,
		})
	}
	t.repo.Groups[groupID] = g
	return nil
}

func (t *tx) SumEntries(ctx context.Context, groupID int64) (debit, credit decimal.Decimal, err error) {
	g, ok := t.repo.Groups[groupID]
	if !ok {
		return debit, credit, shared.ErrGroupNotFound
	}
	for _, e := range g.Entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit, nil
}

func (t *tx) InsertSourceLink(ctx context.Context, tenantID int64, kind sources.Kind, sourceID uuid.UUID, groupID int64) error {
	if _, exists := t.repo.Links[groupID]; exists {
		return fmt.Errorf("ledgertest: duplicate source link for group %d", groupID)
	}
	t.repo.nextLinkID++
	t.repo.Links[groupID] = sources.Link{
		ID:             t.repo.nextLinkID,
		TenantID:       tenantID,
		Kind:           kind,
		SourceID:       sourceID,
		PostingGroupID: groupID,
		CreatedAt:      time.Now(),
	}
	return nil
}

func (t *tx) GetGroupWithDetail(ctx context.Context, tenantID, groupID int64) (posting.PostingGroup, error) {
	g, ok := t.repo.Groups[groupID]
	if !ok || g.TenantID != tenantID {
		return posting.PostingGroup{}, shared.ErrGroupNotFound
	}
	return g, nil
}

func (t *tx) GetCycleForUpdate(ctx context.Context, tenantID, cycleID int64) (cycles.CropCycle, error) {
	c, ok := t.repo.Cycles[cycleID]
	if !ok || c.TenantID != tenantID {
		return cycles.CropCycle{}, shared.ErrCycleNotFound
	}
	return c, nil
}

func (t *tx) GetLinkForUpdate(ctx context.Context, tenantID, groupID int64) (sources.Link, error) {
	l, ok := t.repo.Links[groupID]
	if !ok || l.TenantID != tenantID {
		return sources.Link{}, shared.ErrGroupNotFound
	}
	return l, nil
}

func (t *tx) MarkLinkReversed(ctx context.Context, linkID, reversalGroupID, actorID int64, reason string) error {
	for groupID, l := range t.repo.Links {
		if l.ID != linkID {
			continue
		}
		if l.ReversalPostingGroupID != nil {
			return shared.ErrAlreadyReversed
		}
		now := time.Now()
		l.ReversalPostingGroupID = &reversalGroupID
		l.ReversedAt = &now
		if actorID != 0 {
			l.ReversedBy = &actorID
		}
		l.ReversalReason = reason
		t.repo.Links[groupID] = l
		return nil
	}
	return shared.ErrGroupNotFound
}

func (t *tx) GetCorrectionByOriginal(ctx context.Context, tenantID, originalGroupID int64) (sources.Correction, bool, error) {
	c, ok := t.repo.Corrections[originalGroupID]
	if !ok || c.TenantID != tenantID {
		return sources.Correction{}, false, nil
	}
	return c, true, nil
}

func (t *tx) InsertCorrection(ctx context.Context, c sources.Correction) (sources.Correction, error) {
	if _, exists := t.repo.Corrections[c.OriginalGroupID]; exists {
		return sources.Correction{}, fmt.Errorf("ledgertest: duplicate correction for group %d", c.OriginalGroupID)
	}
	t.repo.nextCorrID++
	c.ID = t.repo.nextCorrID
	c.CreatedAt = time.Now()
	t.repo.Corrections[c.OriginalGroupID] = c
	return c, nil
}
