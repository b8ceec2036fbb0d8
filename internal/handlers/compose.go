package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/structmail/structmail/internal/compose"
)

// ComposeHandler builds message bodies carrying an embedded structured
// document, and promotes a drafted body into its sendable form.
type ComposeHandler struct {
	embedder *compose.Embedder
	logger   *slog.Logger
}

type composeFromURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type promoteRequest struct {
	Body string `json:"body" validate:"required"`
}

type bodyResponse struct {
	Body string `json:"body"`
}

func NewComposeHandler(log *slog.Logger, embedder *compose.Embedder) *ComposeHandler {
	return &ComposeHandler{
		embedder: embedder,
		logger:   log.With(slog.String("handler", "compose")),
	}
}

func (h *ComposeHandler) Register(e *echo.Echo) {
	composeGroup := e.Group("/compose")
	composeGroup.POST("/geo", h.EmbedGeo)
	composeGroup.POST("/album", h.EmbedAlbum)
	composeGroup.POST("/from-url", h.EmbedFromURL)
	composeGroup.POST("/promote", h.Promote)
}

// EmbedGeo godoc
// @Summary Embed a location document
// @Description Build a compose body with an embedded Place document and preview
// @Tags compose
// @Param payload body compose.GeoFields true "Location fields"
// @Success 200 {object} bodyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /compose/geo [post]
func (h *ComposeHandler) EmbedGeo(c echo.Context) error {
	var req compose.GeoFields
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body, err := h.embedder.EmbedGeo(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, bodyResponse{Body: body})
}

// EmbedAlbum godoc
// @Summary Embed a music-album document
// @Description Build a compose body with an embedded MusicAlbum document and preview
// @Tags compose
// @Param payload body compose.AlbumFields true "Album fields"
// @Success 200 {object} bodyResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /compose/album [post]
func (h *ComposeHandler) EmbedAlbum(c echo.Context) error {
	var req compose.AlbumFields
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body, err := h.embedder.EmbedAlbum(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, bodyResponse{Body: body})
}

// EmbedFromURL godoc
// @Summary Embed a document scraped from a web page
// @Description Fetch a page, lift its JSON-LD block and build a compose body around it
// @Tags compose
// @Param payload body composeFromURLRequest true "Page URL"
// @Success 200 {object} bodyResponse
// @Failure 400 {object} ErrorResponse
// @Router /compose/from-url [post]
func (h *ComposeHandler) EmbedFromURL(c echo.Context) error {
	var req composeFromURLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body, err := h.embedder.EmbedFromURL(c.Request().Context(), req.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, bodyResponse{Body: body})
}

// Promote godoc
// @Summary Promote a drafted body for sending
// @Description Rewrite the hidden document container into its script-tag form
// @Tags compose
// @Param payload body promoteRequest true "Draft body"
// @Success 200 {object} bodyResponse
// @Failure 400 {object} ErrorResponse
// @Router /compose/promote [post]
func (h *ComposeHandler) Promote(c echo.Context) error {
	var req promoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, bodyResponse{Body: compose.Promote(req.Body)})
}
