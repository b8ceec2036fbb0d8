package structured

import (
	"encoding/json"
	"strings"
)

// Document is a decoded schema.org-style object found in a message body.
// It is created once per render pass and never mutated afterwards.
type Document struct {
	// Type is the declared "@type" of the document, e.g. "Place".
	Type string
	// Fields holds every decoded field, including "@type" and "@context".
	// Values may be scalars, nested maps or slices.
	Fields map[string]any
}

// Parse decodes a JSON-LD string into a Document. It tolerates the two
// serialization quirks seen in the wild: a double-encoded document (the
// decoded value is itself a JSON string) and a document wrapped in an
// array (the first element is taken). Malformed input yields (nil, false),
// never an error and never a partially populated document.
func Parse(raw string) (*Document, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, false
	}

	// Sometimes the JSON-LD is stringified twice; decode once more.
	if s, ok := decoded.(string); ok {
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, false
		}
	}

	if arr, ok := decoded.([]any); ok {
		if len(arr) == 0 {
			return nil, false
		}
		decoded = arr[0]
	}

	fields, ok := decoded.(map[string]any)
	if !ok {
		return nil, false
	}

	typ, _ := fields["@type"].(string)
	if strings.TrimSpace(typ) == "" {
		return nil, false
	}

	return &Document{Type: typ, Fields: fields}, true
}

// String returns the document field with the given name rendered as a
// string, or "" when absent or not a scalar.
func (d *Document) String(name string) string {
	if d == nil {
		return ""
	}
	return scalarString(d.Fields[name])
}

// LiveURL reports the document's liveUrl field, used by Place documents
// that point at a re-fetchable live location.
func (d *Document) LiveURL() (string, bool) {
	u := d.String("liveUrl")
	return u, u != ""
}

// Encode serializes the document back to JSON.
func (d *Document) Encode() string {
	data, err := json.Marshal(d.Fields)
	if err != nil {
		return ""
	}
	return string(data)
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		data, _ := json.Marshal(val)
		return string(data)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
