package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/structmail/structmail/internal/identity"
)

// IdentityHandler creates sending identities from signature documents.
type IdentityHandler struct {
	store  identity.Store
	logger *slog.Logger
}

type createIdentityRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email" validate:"required,email"`
	Signature string `json:"signature"`
}

func NewIdentityHandler(log *slog.Logger, store identity.Store) *IdentityHandler {
	return &IdentityHandler{
		store:  store,
		logger: log.With(slog.String("handler", "identity")),
	}
}

func (h *IdentityHandler) Register(e *echo.Echo) {
	e.POST("/identities", h.CreateIdentity)
}

// CreateIdentity godoc
// @Summary Create identity
// @Description Create a sending identity, typically from a signature document
// @Tags identities
// @Param payload body createIdentityRequest true "Identity payload"
// @Success 201 {object} identity.Identity
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /identities [post]
func (h *IdentityHandler) CreateIdentity(c echo.Context) error {
	var req createIdentityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	created, err := h.store.Create(c.Request().Context(), req.Name, req.Email, req.Signature)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("identity created", slog.String("id", created.ID), slog.String("email", created.Email))
	return c.JSON(http.StatusCreated, created)
}
