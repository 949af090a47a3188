// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/fasal-erp/fasal-erp/internal/ledger/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrGroupNotFound),
		errors.Is(err, shared.ErrAccountNotFound),
		errors.Is(err, shared.ErrCycleNotFound),
		errors.Is(err, shared.ErrRuleNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrDeprecatedAccount),
		errors.Is(err, shared.ErrOverAllocation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrClosedCycle),
		errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrAlreadyReversed),
		errors.Is(err, shared.ErrStaleMatch),
		errors.Is(err, shared.ErrImmutable):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
