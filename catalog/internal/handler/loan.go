package handler

import (
	"net/http"

	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/labstack/echo/v4"
)

func identity(c echo.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return id, nil
}

func (h *Handler) Borrow(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req model.BorrowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "copy_id is required")
	}
	loan, err := h.loanSvc.Borrow(c.Request().Context(), caller.ID, req)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, model.BorrowResponse{Borrowed: true, Loan: loan})
}

func (h *Handler) Return(c echo.Context) error {
	if _, err := identity(c); err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.loanSvc.Return(c.Request().Context(), id); err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"returned": true})
}

func (h *Handler) ListLoans(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	loans, err := h.loanSvc.ListLoans(c.Request().Context(), caller.ID)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, loans)
}
