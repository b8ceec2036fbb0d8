package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/structmail/structmail/internal/compose"
	"github.com/structmail/structmail/internal/render"
	"github.com/structmail/structmail/internal/structured"
)

func newComposeTestHandler() *ComposeHandler {
	embedder := compose.NewEmbedder(testLogger(), render.NewRenderer(testLogger()), false)
	return NewComposeHandler(testLogger(), embedder)
}

func TestEmbedGeoThenPromoteRoundTrip(t *testing.T) {
	t.Parallel()

	h := newComposeTestHandler()
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodPost, "/compose/geo", strings.NewReader(`{"latitude":"48.2","longitude":"16.37","name":"Office"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	if err := h.EmbedGeo(e.NewContext(req, rec)); err != nil {
		t.Fatalf("EmbedGeo: %v", err)
	}
	var embedded bodyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &embedded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(embedded.Body, compose.ContainerID) {
		t.Fatal("embedded body missing document container")
	}

	payload, err := json.Marshal(map[string]string{"body": embedded.Body})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/compose/promote", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	if err := h.Promote(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	var promoted bodyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &promoted); err != nil {
		t.Fatalf("decode: %v", err)
	}

	doc, ok := structured.InlineDocument(promoted.Body)
	if !ok {
		t.Fatal("promoted body has no extractable document")
	}
	if doc.Type != "Place" {
		t.Fatalf("type = %q, want Place", doc.Type)
	}
}

func TestEmbedGeoRequiresCoordinates(t *testing.T) {
	t.Parallel()

	h := newComposeTestHandler()
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodPost, "/compose/geo", strings.NewReader(`{"name":"Office"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	if err := h.EmbedGeo(e.NewContext(req, rec)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEmbedFromURLDisabled(t *testing.T) {
	t.Parallel()

	h := newComposeTestHandler()
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodPost, "/compose/from-url", strings.NewReader(`{"url":"https://example.com/page"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	if err := h.EmbedFromURL(e.NewContext(req, rec)); err != nil {
		t.Fatalf("EmbedFromURL: %v", err)
	}
	var resp bodyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Contains(resp.Body, compose.ContainerID) {
		t.Fatal("remote extraction disabled, no container expected")
	}
	if !strings.Contains(resp.Body, "urlFromBodyParam") {
		t.Fatal("link fragment missing")
	}
}
