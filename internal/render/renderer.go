package render

import (
	"embed"
	"fmt"
	"html"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/structmail/structmail/internal/structured"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templateByKind = map[structured.Kind]string{
	structured.KindAlbum:       "templates/music_album.html",
	structured.KindGeo:         "templates/place_geo.html",
	structured.KindFlight:      "templates/reservation_flight.html",
	structured.KindSignature:   "templates/signature.html",
	structured.KindOutOfOffice: "templates/out_of_office.html",
	structured.KindLodging:     "templates/lodging.html",
}

const placeholderTemplate = "templates/default_placeholder.html"

// Renderer turns a classified document into display markup. Substitution
// is logic-less: template tags name document fields (dotted paths reach
// into nested objects), values are HTML-escaped, and missing fields render
// empty.
type Renderer struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewRenderer(log *slog.Logger) *Renderer {
	return &Renderer{
		logger: log.With(slog.String("service", "renderer")),
		now:    time.Now,
	}
}

// Render produces markup for the document. ok is false when rendering is
// suppressed entirely, which happens only for out-of-office documents
// whose window does not contain the current time.
func (r *Renderer) Render(kind structured.Kind, doc *structured.Document) (markup string, ok bool) {
	if doc == nil {
		return "", false
	}

	fields := doc.Fields
	if kind == structured.KindOutOfOffice {
		normalized, active := normalizeOutOfOffice(fields, r.now())
		if !active {
			return "", false
		}
		fields = normalized
	}

	if kind == structured.KindUnknown {
		return renderGeneric(doc), true
	}

	body, err := templatesFS.ReadFile(templateByKind[kind])
	if err != nil {
		r.logger.Warn("template missing, using placeholder", slog.String("kind", string(kind)))
		body, _ = templatesFS.ReadFile(placeholderTemplate)
	}

	out := Substitute(string(body), fields)
	if kind == structured.KindGeo {
		if liveURL, live := doc.LiveURL(); live {
			out = liveControls(liveURL) + out
		}
	}
	return out, true
}

// RenderTemplate substitutes fields into a named compose template.
func (r *Renderer) RenderTemplate(name string, fields map[string]any) (string, error) {
	body, err := templatesFS.ReadFile("templates/" + name + ".html")
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return Substitute(string(body), fields), nil
}

// Substitute replaces {{path}} tags with the escaped string form of the
// addressed field. Field values never execute as markup.
func Substitute(template string, fields map[string]any) string {
	t := fasttemplate.New(template, "{{", "}}")
	return t.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		return w.Write([]byte(html.EscapeString(lookup(fields, tag))))
	})
}

func lookup(fields map[string]any, path string) string {
	var current any = fields
	for _, part := range strings.Split(strings.TrimSpace(path), ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = m[part]
	}
	switch v := current.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	case nil:
		return ""
	default:
		return ""
	}
}

// normalizeOutOfOffice reformats the start/end fields to D.M.YYYY and
// reports whether now falls strictly inside the window. Stale auto-reply
// banners are not worth showing.
func normalizeOutOfOffice(fields map[string]any, now time.Time) (map[string]any, bool) {
	start, okStart := parseDate(scalar(fields["start"]))
	end, okEnd := parseDate(scalar(fields["end"]))
	if !okStart || !okEnd {
		return fields, false
	}
	if !now.After(start) || !now.Before(end) {
		return fields, false
	}

	normalized := make(map[string]any, len(fields))
	for k, v := range fields {
		normalized[k] = v
	}
	normalized["start"] = formatDate(start)
	normalized["end"] = formatDate(end)
	return normalized, true
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatDate(t time.Time) string {
	return fmt.Sprintf("%d.%d.%d", t.Day(), int(t.Month()), t.Year())
}

func scalar(v any) string {
	s, _ := v.(string)
	return s
}

func liveControls(liveURL string) string {
	escaped := html.EscapeString(liveURL)
	return `<div class="refresh-location-div" data-live-url="` + escaped + `">` +
		`<button id="refreshLocationBtn" class="btn btn-primary" title="Refresh Location">Refresh</button>` +
		`<label class="toggle">Automatically Refresh Location` +
		`<input id="toggleswitch" type="checkbox"></label>` +
		`</div>`
}

// renderGeneric is the fallback for unrecognized document shapes. It walks
// arbitrary nested fields into definition-list markup, skipping JSON-LD
// keywords.
func renderGeneric(doc *structured.Document) string {
	var b strings.Builder
	b.WriteString(`<div class="structured-card structured-generic"><p id="unknown-markup" hidden></p>`)
	b.WriteString(`<h3>` + html.EscapeString(doc.Type) + `</h3>`)
	writeGenericValue(&b, doc.Fields)
	b.WriteString(`</div>`)
	return b.String()
}

func writeGenericValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			if strings.HasPrefix(k, "@") {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("<dl>")
		for _, k := range keys {
			b.WriteString("<dt>" + html.EscapeString(k) + "</dt><dd>")
			writeGenericValue(b, val[k])
			b.WriteString("</dd>")
		}
		b.WriteString("</dl>")
	case []any:
		b.WriteString("<ul>")
		for _, item := range val {
			b.WriteString("<li>")
			writeGenericValue(b, item)
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
	default:
		b.WriteString(html.EscapeString(lookup(map[string]any{"v": v}, "v")))
	}
}
