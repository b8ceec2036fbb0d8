package render

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/structmail/structmail/internal/structured"
)

func newTestRenderer(now time.Time) *Renderer {
	r := NewRenderer(slog.Default())
	r.now = func() time.Time { return now }
	return r
}

func mustParse(t *testing.T, raw string) *structured.Document {
	t.Helper()
	doc, ok := structured.Parse(raw)
	if !ok {
		t.Fatalf("failed to parse test document: %s", raw)
	}
	return doc
}

func TestRenderGeoTemplate(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `{"@type":"Place","name":"Office","geo":{"latitude":52.52,"longitude":13.405}}`)
	markup, ok := newTestRenderer(time.Now()).Render(structured.KindGeo, doc)
	if !ok {
		t.Fatal("expected markup")
	}
	if !strings.Contains(markup, "Office") {
		t.Fatalf("name not substituted: %s", markup)
	}
	if !strings.Contains(markup, "52.52") || !strings.Contains(markup, "13.405") {
		t.Fatalf("nested geo fields not substituted: %s", markup)
	}
	if strings.Contains(markup, "refresh-location-div") {
		t.Fatal("live controls must not render without liveUrl")
	}
}

func TestRenderGeoLiveControls(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `{"@type":"Place","name":"Here","geo":{"latitude":1,"longitude":2},"liveUrl":"https://example.com/live"}`)
	markup, ok := newTestRenderer(time.Now()).Render(structured.KindGeo, doc)
	if !ok {
		t.Fatal("expected markup")
	}
	if !strings.Contains(markup, "refresh-location-div") || !strings.Contains(markup, "toggleswitch") {
		t.Fatalf("expected live refresh controls: %s", markup)
	}
	if !strings.Contains(markup, "https://example.com/live") {
		t.Fatalf("live url missing from controls: %s", markup)
	}
}

func TestRenderOutOfOfficeWindow(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `{"@type":"OutOfOffice","start":"2024-06-01","end":"2024-06-15"}`)

	inside := time.Date(2024, 6, 7, 12, 0, 0, 0, time.UTC)
	markup, ok := newTestRenderer(inside).Render(structured.KindOutOfOffice, doc)
	if !ok {
		t.Fatal("expected markup inside the window")
	}
	if !strings.Contains(markup, "1.6.2024") || !strings.Contains(markup, "15.6.2024") {
		t.Fatalf("dates not reformatted to D.M.YYYY: %s", markup)
	}

	after := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, ok := newTestRenderer(after).Render(structured.KindOutOfOffice, doc); ok {
		t.Fatal("stale out-of-office must render nothing")
	}

	before := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, ok := newTestRenderer(before).Render(structured.KindOutOfOffice, doc); ok {
		t.Fatal("future out-of-office must render nothing")
	}
}

func TestRenderUnknownFallsBackToGeneric(t *testing.T) {
	t.Parallel()

	doc := mustParse(t, `{"@type":"MusicGroup","name":"Semantics","members":["a","b"]}`)
	markup, ok := newTestRenderer(time.Now()).Render(structured.KindUnknown, doc)
	if !ok {
		t.Fatal("expected markup")
	}
	if !strings.Contains(markup, "unknown-markup") {
		t.Fatalf("generic renderer should mark unknown markup: %s", markup)
	}
	if !strings.Contains(markup, "Semantics") || !strings.Contains(markup, "<ul>") {
		t.Fatalf("generic renderer should walk arbitrary shapes: %s", markup)
	}
}

func TestSubstituteEscapesValues(t *testing.T) {
	t.Parallel()

	out := Substitute("<p>{{name}}</p>", map[string]any{"name": `<script>alert(1)</script>`})
	if strings.Contains(out, "<script>") {
		t.Fatalf("field value must not land unescaped in markup: %s", out)
	}
}

func TestSubstituteMissingFieldRendersEmpty(t *testing.T) {
	t.Parallel()

	out := Substitute("<p>{{missing.deep}}</p>", map[string]any{"other": "x"})
	if out != "<p></p>" {
		t.Fatalf("missing field should render empty, got %s", out)
	}
}
