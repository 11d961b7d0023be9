package httpadapter

import (
	"net/http"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrInvalidTarget),
		domain.IsKind(err, domain.ErrEmptyCriteria):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrPatientNotFound),
		domain.IsKind(err, domain.ErrTrialNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrSimilarityUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
