package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/structmail/structmail/internal/live"
	"github.com/structmail/structmail/internal/mailstore"
	"github.com/structmail/structmail/internal/render"
	"github.com/structmail/structmail/internal/structured"
)

// LiveHandler streams live-location updates for a message over a
// websocket. The client toggles the refresh loop; the server pushes
// freshly rendered markup whenever the upstream document changes.
type LiveHandler struct {
	store     mailstore.Store
	extractor *structured.Extractor
	renderer  *render.Renderer
	refresher *live.Refresher
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

type liveControlMessage struct {
	Enabled bool `json:"enabled"`
}

type liveUpdateMessage struct {
	Markup string `json:"markup"`
}

func NewLiveHandler(log *slog.Logger, store mailstore.Store, extractor *structured.Extractor, renderer *render.Renderer, refresher *live.Refresher) *LiveHandler {
	return &LiveHandler{
		store:     store,
		extractor: extractor,
		renderer:  renderer,
		refresher: refresher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.With(slog.String("handler", "live")),
	}
}

func (h *LiveHandler) Register(e *echo.Echo) {
	e.GET("/live/:folder/:uid", h.Stream)
}

// Stream godoc
// @Summary Stream live-location updates
// @Description Websocket pushing re-rendered location markup while enabled
// @Tags live
// @Param folder path string true "Folder ID"
// @Param uid path string true "Message UID"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /live/{folder}/{uid} [get]
func (h *LiveHandler) Stream(c echo.Context) error {
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
		return echo.NewHTTPError(http.StatusNotFound, "no structured document")
	}
	liveURL, ok := doc.LiveURL()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "document has no live url")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var writeMu sync.Mutex
	push := func(fields map[string]any) {
		markup, err := h.renderer.RenderTemplate("place_geo", fields)
		if err != nil {
			h.logger.Warn("live render failed", slog.Any("error", err))
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(liveUpdateMessage{Markup: markup}); err != nil {
			h.logger.Debug("live push failed", slog.Any("error", err))
		}
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := h.refresher.Start(sctx, liveURL, push)
	enabled := true
	defer func() {
		if session != nil {
			session.Stop()
		}
	}()

	for {
		var control liveControlMessage
		if err := conn.ReadJSON(&control); err != nil {
			return nil
		}
		if control.Enabled == enabled {
			continue
		}
		enabled = control.Enabled
		if enabled {
			session = h.refresher.Start(sctx, liveURL, push)
			continue
		}
		session.Stop()
		session = nil
	}
}
