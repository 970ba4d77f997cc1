package settlement

import (
	"errors"
	"net/http"

	"github.com/noah-isme/backend-importadora/internal/common"
)

// AppError translates settlement failures into API errors. Other errors are
// returned unchanged.
func AppError(err error) error {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		appErr := common.NewAppError("VALIDATION_ERROR", "invalid request", http.StatusBadRequest, err)
		if len(reqErr.Fields) > 0 {
			appErr.Details = map[string]any{"fields": reqErr.Fields}
		}
		return appErr
	case errors.Is(err, ErrInvalidInput):
		return common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrRateUnavailable):
		return common.NewAppError("RATE_UNAVAILABLE", "exchange rate unavailable; the total cannot be settled", http.StatusUnprocessableEntity, err)
	}
	return err
}
