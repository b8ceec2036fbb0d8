package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/structmail/structmail/internal/action"
	"github.com/structmail/structmail/internal/mailstore"
	"github.com/structmail/structmail/internal/render"
	"github.com/structmail/structmail/internal/structured"
	"github.com/structmail/structmail/internal/trust"
)

// MessagesHandler runs the extraction pipeline for stored messages:
// locate the embedded document, classify it, render its markup, and
// decorate its actions.
type MessagesHandler struct {
	store          mailstore.Store
	extractor      *structured.Extractor
	renderer       *render.Renderer
	presenter      *action.Presenter
	trustLookup    trust.Lookup
	showForTrusted bool
	logger         *slog.Logger
}

type structuredResponse struct {
	Found        bool            `json:"found"`
	Kind         structured.Kind `json:"kind,omitempty"`
	Trusted      bool            `json:"trusted"`
	Markup       string          `json:"markup,omitempty"`
	Buttons      []action.Button `json:"buttons,omitempty"`
	ButtonMarkup string          `json:"button_markup,omitempty"`
}

type messageListItem struct {
	mailstore.Envelope
	HasStructured bool            `json:"has_structured"`
	Trusted       bool            `json:"trusted"`
	Actions       []action.Action `json:"actions,omitempty"`
}

type listMessagesResponse struct {
	Folder string            `json:"folder"`
	Items  []messageListItem `json:"items"`
}

func NewMessagesHandler(log *slog.Logger, store mailstore.Store, extractor *structured.Extractor, renderer *render.Renderer, presenter *action.Presenter, trustLookup trust.Lookup, showForTrusted bool) *MessagesHandler {
	return &MessagesHandler{
		store:          store,
		extractor:      extractor,
		renderer:       renderer,
		presenter:      presenter,
		trustLookup:    trustLookup,
		showForTrusted: showForTrusted,
		logger:         log.With(slog.String("handler", "messages")),
	}
}

func (h *MessagesHandler) Register(e *echo.Echo) {
	e.GET("/messages/:folder", h.ListMessages)
	e.GET("/messages/:folder/:uid/structured", h.GetStructured)
}

// GetStructured godoc
// @Summary Get structured content for a message
// @Description Extract the embedded document and return rendered markup plus action buttons
// @Tags messages
// @Param folder path string true "Folder ID"
// @Param uid path string true "Message UID"
// @Success 200 {object} structuredResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /messages/{folder}/{uid}/structured [get]
func (h *MessagesHandler) GetStructured(c echo.Context) error {
	folder := strings.TrimSpace(c.Param("folder"))
	uid := strings.TrimSpace(c.Param("uid"))
	if folder == "" || uid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "folder and uid are required")
	}
	ctx := c.Request().Context()

	env, err := h.store.Envelope(ctx, folder, uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	}
	html, err := h.store.HTMLPart(ctx, folder, uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	doc, found := h.extractor.Extract(ctx, html, env.From, func(ctx context.Context) ([]byte, error) {
		return h.store.RawBody(ctx, folder, uid)
	})
	if !found {
		return c.JSON(http.StatusOK, structuredResponse{Found: false})
	}

	trusted, err := h.trustLookup.IsTrusted(ctx, env.From)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.showForTrusted && !trusted {
		// The document stays hidden until the user trusts the sender.
		return c.JSON(http.StatusOK, structuredResponse{Found: true, Trusted: false})
	}

	kind := structured.Classify(doc)
	markup, ok := h.renderer.Render(kind, doc)
	if !ok {
		// Out-of-office outside its validity window renders nothing.
		return c.JSON(http.StatusOK, structuredResponse{Found: true, Kind: kind, Trusted: trusted})
	}

	buttons, err := h.presenter.Present(ctx, uid, folder, env.From, action.Collect(doc))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, structuredResponse{
		Found:        true,
		Kind:         kind,
		Trusted:      trusted,
		Markup:       markup,
		Buttons:      buttons,
		ButtonMarkup: action.MarkupFor(buttons),
	})
}

// ListMessages godoc
// @Summary List messages in a folder
// @Description List envelopes with structured-content flags, collected actions and trusted-sender flags
// @Tags messages
// @Param folder path string true "Folder ID"
// @Param page query int false "Page number, 1-based"
// @Param page_size query int false "Page size"
// @Success 200 {object} listMessagesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /messages/{folder} [get]
func (h *MessagesHandler) ListMessages(c echo.Context) error {
	folder := strings.TrimSpace(c.Param("folder"))
	if folder == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "folder is required")
	}
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 50)
	if page < 1 || pageSize < 1 || pageSize > 200 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paging parameters")
	}
	ctx := c.Request().Context()

	envelopes, err := h.store.List(ctx, folder, page, pageSize)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	items := make([]messageListItem, 0, len(envelopes))
	for _, env := range envelopes {
		item := messageListItem{Envelope: env}
		html, err := h.store.HTMLPart(ctx, folder, env.UID)
		if err != nil {
			html = ""
		}
		// Same two-tier extraction as the single-message path, so list
		// rows carry the actions the client decorates them with.
		if doc, found := h.extractor.Extract(ctx, html, env.From, func(ctx context.Context) ([]byte, error) {
			return h.store.RawBody(ctx, folder, env.UID)
		}); found {
			item.HasStructured = true
			item.Actions = action.Collect(doc)
		}
		trusted, err := h.trustLookup.IsTrusted(ctx, env.From)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		item.Trusted = trusted
		items = append(items, item)
	}

	return c.JSON(http.StatusOK, listMessagesResponse{Folder: folder, Items: items})
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
