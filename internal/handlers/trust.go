package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/structmail/structmail/internal/trust"
)

// TrustHandler manages the trusted-sender list.
type TrustHandler struct {
	store  trust.Store
	logger *slog.Logger
}

type markTrustedRequest struct {
	Address string `json:"address" validate:"required,email"`
}

type trustedResponse struct {
	Address string `json:"address"`
	Trusted bool   `json:"trusted"`
}

func NewTrustHandler(log *slog.Logger, store trust.Store) *TrustHandler {
	return &TrustHandler{
		store:  store,
		logger: log.With(slog.String("handler", "trust")),
	}
}

func (h *TrustHandler) Register(e *echo.Echo) {
	e.POST("/trust", h.MarkTrusted)
	e.GET("/trust/:address", h.GetTrusted)
}

// MarkTrusted godoc
// @Summary Trust a sender
// @Description Add a sender address to the trusted list
// @Tags trust
// @Param payload body markTrustedRequest true "Sender address"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /trust [post]
func (h *TrustHandler) MarkTrusted(c echo.Context) error {
	var req markTrustedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.store.MarkTrusted(c.Request().Context(), req.Address); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("sender trusted", slog.String("address", req.Address))
	return c.NoContent(http.StatusNoContent)
}

// GetTrusted godoc
// @Summary Check a sender
// @Description Report whether a sender address is trusted
// @Tags trust
// @Param address path string true "Sender address"
// @Success 200 {object} trustedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /trust/{address} [get]
func (h *TrustHandler) GetTrusted(c echo.Context) error {
	address := strings.TrimSpace(c.Param("address"))
	if address == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "address is required")
	}
	trusted, err := h.store.IsTrusted(c.Request().Context(), address)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, trustedResponse{Address: address, Trusted: trusted})
}
