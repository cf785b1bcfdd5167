package handler

import (
	"net/http"

	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/pkg/assets"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const internalMessage = "internal server error"

// httpError maps service failures onto status codes. Anything unknown is
// logged and answered with a generic 500.
func (h *Handler) httpError(c echo.Context, err error) error {
	var storeErr *errs.StoreError
	switch {
	case errors.Is(err, errs.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrInvalidReference):
		return echo.NewHTTPError(http.StatusBadRequest, errs.ErrInvalidReference.Error())
	case errors.Is(err, errs.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrEmailTaken), errors.Is(err, errs.ErrCopyUnavailable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, assets.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, assets.ErrUnsupportedMediaType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &storeErr):
		h.log.Error("store", zap.String("path", c.Path()), zap.Error(storeErr.Err))
		return echo.NewHTTPError(http.StatusInternalServerError, storeErr.Error())
	}
	h.log.Error("unexpected", zap.String("path", c.Path()), zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, internalMessage)
}
