package httpx

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

// TenantID reads the tenant from the X-Tenant-ID header. Every ledger
// route is tenant-scoped; requests without a tenant are rejected.
func TenantID(r *http.Request) (int64, error) {
	raw := r.Header.Get("X-Tenant-ID")
	if raw == "" {
		return 0, fmt.Errorf("%w: missing X-Tenant-ID header", shared.ErrValidation)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid X-Tenant-ID header", shared.ErrValidation)
	}
	return id, nil
}

// ActorID reads the acting user from the X-Actor-ID header, zero when absent.
func ActorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
