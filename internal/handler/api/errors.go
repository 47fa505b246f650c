package api

import (
	"errors"

	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/internal/usecase"
	xhttp "RiskWatch/pkg/http"
)

// appError maps use case errors onto the HTTP error envelope.
func appError(err error) error {
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.NotFoundError(err.Error()).WithError(err)
	}
	var inv *usecase.InvalidError
	if errors.As(err, &inv) {
		return xhttp.UnprocessableError(inv.Field, inv.Msg).WithError(err)
	}
	return err
}
