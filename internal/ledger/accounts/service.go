package accounts

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, tenantID int64) ([]Account, error) {
	return s.repo.List(ctx, tenantID)
}

func (s *Service) GetByCode(ctx context.Context, tenantID int64, code string) (Account, error) {
	return s.repo.GetByCode(ctx, tenantID, code)
}

// Deprecate retires an account code. Existing ledger entries keep referencing
// the account; new postings against it are rejected.
func (s *Service) Deprecate(ctx context.Context, tenantID int64, code string) error {
	return s.repo.SetDeprecated(ctx, tenantID, code, true)
}

// Reinstate clears the deprecated flag.
func (s *Service) Reinstate(ctx context.Context, tenantID int64, code string) error {
	return s.repo.SetDeprecated(ctx, tenantID, code, false)
}

// ByCodes resolves account codes to accounts for one tenant.
func (s *Service) ByCodes(ctx context.Context, tenantID int64, codes []string) (map[string]Account, error) {
	return s.repo.GetByCodes(ctx, tenantID, codes)
}

// DeprecatedCodes returns the forbidden-code set the posting engine validates
// against. Passed explicitly into validation, never read as global state.
func (s *Service) DeprecatedCodes(ctx context.Context, tenantID int64) (DeprecatedSet, error) {
	return s.repo.DeprecatedCodes(ctx, tenantID)
}
