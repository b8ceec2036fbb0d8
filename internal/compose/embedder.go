// Package compose builds structured-data documents from user input and
// embeds them in outgoing message bodies.
package compose

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/structmail/structmail/internal/render"
	"github.com/structmail/structmail/internal/structured"
)

// The hidden container holding structured data while a message sits in
// the compose editor. Draft saves are known to mangle the id, so
// promotion re-locates it by fuzzy match.
const (
	ContainerID       = "jsonDivBeforeSend"
	containerOpenTag  = `<div id="jsonDivBeforeSend" style="display:none;">`
	containerCloseTag = `</div>`
)

// mangledContainer matches the container div even after the sanitizer has
// suffixed or otherwise altered its id.
var mangledContainer = regexp.MustCompile(`<div\s+id="[^"]*jsonDivBeforeSend[^"]*"[^>]*>`)

const fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/50.0.2661.102 Safari/537.36"

// Embedder serializes user-entered structured fields into an outgoing
// body fragment: a hidden container with the document plus a rendered
// human-readable preview.
type Embedder struct {
	logger      *slog.Logger
	renderer    *render.Renderer
	client      *http.Client
	allowRemote bool
}

func NewEmbedder(log *slog.Logger, renderer *render.Renderer, allowRemote bool) *Embedder {
	return &Embedder{
		logger:      log.With(slog.String("service", "embedder")),
		renderer:    renderer,
		client:      &http.Client{Timeout: 10 * time.Second},
		allowRemote: allowRemote,
	}
}

// GeoFields is the compose-form input for a location document.
type GeoFields struct {
	Latitude  string `json:"latitude" validate:"required"`
	Longitude string `json:"longitude" validate:"required"`
	Name      string `json:"name"`
}

// BuildGeo maps compose-form fields to a Place document.
func BuildGeo(f GeoFields) *structured.Document {
	name := f.Name
	if name == "" {
		name = "Location"
	}
	fields := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Place",
		"geo": map[string]any{
			"@type":     "GeoCoordinates",
			"latitude":  f.Latitude,
			"longitude": f.Longitude,
		},
		"name": name,
	}
	return &structured.Document{Type: "Place", Fields: fields}
}

// AlbumFields is the compose-form input for a music-album document.
type AlbumFields struct {
	Name string `json:"name" validate:"required"`
}

func BuildAlbum(f AlbumFields) *structured.Document {
	fields := map[string]any{
		"@context": "http://schema.googleapis.com/",
		"@type":    "MusicAlbum",
		"name":     f.Name,
	}
	return &structured.Document{Type: "MusicAlbum", Fields: fields}
}

// EmbedGeo produces the body fragment for a location compose: the hidden
// document container followed by a rendered preview.
func (e *Embedder) EmbedGeo(f GeoFields) (string, error) {
	doc := BuildGeo(f)
	preview, err := e.renderer.RenderTemplate("compose_geo", map[string]any{
		"latitude":  f.Latitude,
		"longitude": f.Longitude,
		"name":      doc.String("name"),
	})
	if err != nil {
		return "", err
	}
	return e.container(doc) + preview, nil
}

// EmbedAlbum produces the body fragment for a music-album compose.
func (e *Embedder) EmbedAlbum(f AlbumFields) (string, error) {
	doc := BuildAlbum(f)
	preview, err := e.renderer.RenderTemplate("compose_album", map[string]any{"name": f.Name})
	if err != nil {
		return "", err
	}
	return e.container(doc) + preview, nil
}

// EmbedFromURL fetches a remote page and embeds any structured data found
// in it, along with a link back to the page. Disabled deployments get
// just the link.
func (e *Embedder) EmbedFromURL(ctx context.Context, pageURL string) (string, error) {
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	fragment := ""
	if e.allowRemote {
		if page, err := e.fetchHTML(ctx, pageURL); err != nil {
			e.logger.Warn("remote fetch failed", slog.String("url", pageURL), slog.Any("error", err))
		} else if doc, ok := structured.InlineDocument(page); ok {
			fragment += e.container(doc)
		}
	}
	fragment += `<a id="urlFromBodyParam" href="` + html.EscapeString(pageURL) + `">URL from body parameter</a>`
	return fragment, nil
}

func (e *Embedder) fetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	// Some sites answer 403 without a browser User-Agent.
	req.Header.Set("User-Agent", fetchUserAgent)
	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (e *Embedder) container(doc *structured.Document) string {
	return containerOpenTag + doc.Encode() + containerCloseTag
}

// Promote rewrites the hidden compose container into the inline script
// form the inbound extractor recognizes. It first restores the canonical
// container id, because draft save/reload cycles may have suffixed it;
// without that repair the promotion would silently miss its target. A
// body without a container is returned unchanged.
func Promote(body string) string {
	body = restoreContainerID(body)

	start := strings.Index(body, containerOpenTag)
	if start < 0 {
		return body
	}
	rest := body[start+len(containerOpenTag):]
	end := strings.Index(rest, containerCloseTag)
	if end < 0 {
		return body
	}
	payload := rest[:end]
	if payload == "" {
		return body
	}

	promoted := structured.ScriptOpenTag + payload + structured.ScriptCloseTag
	return body[:start] + promoted + rest[end+len(containerCloseTag):]
}

// restoreContainerID rewrites a mangled container opening tag back to the
// canonical form. Best effort: only the first match is repaired.
func restoreContainerID(body string) string {
	loc := mangledContainer.FindStringIndex(body)
	if loc == nil {
		return body
	}
	return body[:loc[0]] + containerOpenTag + body[loc[1]:]
}
