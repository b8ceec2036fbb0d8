package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/structmail/structmail/internal/action"
	"github.com/structmail/structmail/internal/config"
	"github.com/structmail/structmail/internal/folders"
	"github.com/structmail/structmail/internal/mailstore"
	"github.com/structmail/structmail/internal/records"
	"github.com/structmail/structmail/internal/render"
	"github.com/structmail/structmail/internal/structured"
	"github.com/structmail/structmail/internal/trust"
)

type fakeMessage struct {
	envelope mailstore.Envelope
	html     string
	raw      []byte
}

type fakeMailStore struct {
	messages map[string]fakeMessage
	order    []string
}

func (s *fakeMailStore) key(folder, uid string) string { return folder + "/" + uid }

func (s *fakeMailStore) Envelope(_ context.Context, folder, uid string) (mailstore.Envelope, error) {
	msg, ok := s.messages[s.key(folder, uid)]
	if !ok {
		return mailstore.Envelope{}, fmt.Errorf("message %s not found", uid)
	}
	return msg.envelope, nil
}

func (s *fakeMailStore) HTMLPart(_ context.Context, folder, uid string) (string, error) {
	msg, ok := s.messages[s.key(folder, uid)]
	if !ok {
		return "", fmt.Errorf("message %s not found", uid)
	}
	return msg.html, nil
}

func (s *fakeMailStore) RawBody(_ context.Context, folder, uid string) ([]byte, error) {
	msg, ok := s.messages[s.key(folder, uid)]
	if !ok {
		return nil, fmt.Errorf("message %s not found", uid)
	}
	return msg.raw, nil
}

func (s *fakeMailStore) List(_ context.Context, folder string, page, pageSize int) ([]mailstore.Envelope, error) {
	var out []mailstore.Envelope
	for _, key := range s.order {
		out = append(out, s.messages[key].envelope)
	}
	return out, nil
}

const placeHTML = `<html><body>
<script type="application/ld+json">
{
  "@type": "Place",
  "name": "Meeting point",
  "geo": {"latitude": "48.2", "longitude": "16.37"},
  "potentialAction": [
    {"@type": "ViewAction", "target": "https://example.com/map"}
  ]
}
</script>
</body></html>`

func newMessagesTestHandler(t *testing.T, showForTrusted bool) (*MessagesHandler, trust.Store) {
	t.Helper()

	store := &fakeMailStore{
		messages: map[string]fakeMessage{
			"INBOX/1": {
				envelope: mailstore.Envelope{UID: "1", From: "alice@example.com", Subject: "meet me"},
				html:     placeHTML,
			},
			"INBOX/2": {
				envelope: mailstore.Envelope{UID: "2", From: "bob@example.com", Subject: "plain"},
				html:     "<html><body>nothing here</body></html>",
			},
		},
		order: []string{"INBOX/1", "INBOX/2"},
	}
	trustStore := trust.NewMemoryStore()
	extractor := structured.NewExtractor(testLogger(), config.ExtractorConfig{BinaryPath: "/nonexistent"})
	renderer := render.NewRenderer(testLogger())
	presenter := action.NewPresenter(testLogger(), trustStore, folders.NewService(nil), records.NewMemoryStore())

	return NewMessagesHandler(testLogger(), store, extractor, renderer, presenter, trustStore, showForTrusted), trustStore
}

func TestGetStructuredTrustedSender(t *testing.T) {
	t.Parallel()

	h, trustStore := newMessagesTestHandler(t, true)
	if err := trustStore.MarkTrusted(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("MarkTrusted: %v", err)
	}

	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/messages/:folder/:uid/structured")
	c.SetParamNames("folder", "uid")
	c.SetParamValues("INBOX", "1")

	if err := h.GetStructured(c); err != nil {
		t.Fatalf("GetStructured: %v", err)
	}
	var resp structuredResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Found {
		t.Fatal("document not found")
	}
	if resp.Kind != structured.KindGeo {
		t.Fatalf("kind = %q, want %q", resp.Kind, structured.KindGeo)
	}
	if !resp.Trusted {
		t.Fatal("sender should be trusted")
	}
	if resp.Markup == "" {
		t.Fatal("markup missing")
	}
	if len(resp.Buttons) != 1 {
		t.Fatalf("buttons = %d, want 1", len(resp.Buttons))
	}
	if resp.Buttons[0].Kind != action.KindView {
		t.Fatalf("button kind = %q, want ViewAction", resp.Buttons[0].Kind)
	}
}

func TestGetStructuredUntrustedSenderHidesContent(t *testing.T) {
	t.Parallel()

	h, _ := newMessagesTestHandler(t, true)

	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("folder", "uid")
	c.SetParamValues("INBOX", "1")

	if err := h.GetStructured(c); err != nil {
		t.Fatalf("GetStructured: %v", err)
	}
	var resp structuredResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Found {
		t.Fatal("document should be reported present")
	}
	if resp.Trusted {
		t.Fatal("sender must not be trusted")
	}
	if resp.Markup != "" {
		t.Fatal("markup must stay hidden for untrusted senders")
	}
}

func TestGetStructuredNoDocument(t *testing.T) {
	t.Parallel()

	h, _ := newMessagesTestHandler(t, false)

	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("folder", "uid")
	c.SetParamValues("INBOX", "2")

	if err := h.GetStructured(c); err != nil {
		t.Fatalf("GetStructured: %v", err)
	}
	var resp structuredResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Found {
		t.Fatal("no document expected")
	}
}

func TestListMessagesFlags(t *testing.T) {
	t.Parallel()

	h, trustStore := newMessagesTestHandler(t, true)
	if err := trustStore.MarkTrusted(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("MarkTrusted: %v", err)
	}

	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("folder")
	c.SetParamValues("INBOX")

	if err := h.ListMessages(c); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	var resp listMessagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
	if !resp.Items[0].HasStructured || !resp.Items[0].Trusted {
		t.Fatalf("first item flags wrong: %+v", resp.Items[0])
	}
	if len(resp.Items[0].Actions) != 1 || resp.Items[0].Actions[0].Kind != action.KindView {
		t.Fatalf("first item should carry its collected actions: %+v", resp.Items[0].Actions)
	}
	if resp.Items[0].Actions[0].Target != "https://example.com/map" {
		t.Fatalf("action target wrong: %+v", resp.Items[0].Actions[0])
	}
	if resp.Items[1].HasStructured || resp.Items[1].Trusted || len(resp.Items[1].Actions) != 0 {
		t.Fatalf("second item flags wrong: %+v", resp.Items[1])
	}
}

func TestListMessagesRejectsBadPaging(t *testing.T) {
	t.Parallel()

	h, _ := newMessagesTestHandler(t, false)

	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/?page=0", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("folder")
	c.SetParamValues("INBOX")

	if err := h.ListMessages(c); err == nil {
		t.Fatal("expected paging error")
	}
}
