package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/structmail/structmail/internal/action"
	"github.com/structmail/structmail/internal/auth"
)

// ActionsHandler executes a document action on behalf of the user.
type ActionsHandler struct {
	dispatcher *action.Dispatcher
	logger     *slog.Logger
}

type dispatchRequest struct {
	MessageUID  string `json:"message_uid" validate:"required"`
	Kind        string `json:"kind" validate:"required"`
	Target      string `json:"target" validate:"required"`
	Description string `json:"description"`
}

type dispatchResponse struct {
	MessageUID string `json:"message_uid"`
	Kind       string `json:"kind"`
	Succeeded  bool   `json:"succeeded"`
}

func NewActionsHandler(log *slog.Logger, dispatcher *action.Dispatcher) *ActionsHandler {
	return &ActionsHandler{
		dispatcher: dispatcher,
		logger:     log.With(slog.String("handler", "actions")),
	}
}

func (h *ActionsHandler) Register(e *echo.Echo) {
	e.POST("/actions/dispatch", h.Dispatch)
}

// Dispatch godoc
// @Summary Dispatch an action
// @Description Execute a confirm, cancel or view action against its target
// @Tags actions
// @Param payload body dispatchRequest true "Action payload"
// @Success 200 {object} dispatchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /actions/dispatch [post]
func (h *ActionsHandler) Dispatch(c echo.Context) error {
	invokingUser, err := auth.AddressFromContext(c)
	if err != nil {
		return err
	}
	var req dispatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind := action.Kind(req.Kind)
	switch kind {
	case action.KindConfirm, action.KindCancel:
	case action.KindView:
		// View navigates client-side and has no server-side effect.
		return echo.NewHTTPError(http.StatusBadRequest, "view actions are not dispatchable")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported action kind")
	}

	result := h.dispatcher.Dispatch(c.Request().Context(), req.MessageUID, action.Action{
		Kind:        kind,
		Target:      req.Target,
		Description: req.Description,
	}, invokingUser)

	return c.JSON(http.StatusOK, dispatchResponse{
		MessageUID: result.MessageUID,
		Kind:       string(result.Kind),
		Succeeded:  result.Succeeded,
	})
}
