package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/structmail/structmail/internal/action"
	"github.com/structmail/structmail/internal/auth"
	"github.com/structmail/structmail/internal/delivery"
	"github.com/structmail/structmail/internal/records"
)

type recordingSender struct {
	sent []delivery.OutboundMessage
}

func (s *recordingSender) Send(_ context.Context, msg delivery.OutboundMessage) (string, error) {
	s.sent = append(s.sent, msg)
	return "msg-id", nil
}

func authedContext(t *testing.T, e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder) echo.Context {
	t.Helper()

	secret := "test-secret"
	tokenStr, _, err := auth.GenerateToken("admin", "admin@example.com", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	c := e.NewContext(req, rec)
	c.Set("user", token)
	return c
}

func TestDispatchConfirmPostsTarget(t *testing.T) {
	t.Parallel()

	var gotConfirmed string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotConfirmed = r.PostFormValue("confirmed")
	}))
	defer target.Close()

	sender := &recordingSender{}
	recordStore := records.NewMemoryStore()
	h := NewActionsHandler(testLogger(), action.NewDispatcher(testLogger(), sender, recordStore, 5*time.Second))

	e := newTestEcho()
	body := `{"message_uid":"42","kind":"ConfirmAction","target":"` + target.URL + `"}`
	req := httptest.NewRequest(http.MethodPost, "/actions/dispatch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := authedContext(t, e, req, rec)

	if err := h.Dispatch(c); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	var resp dispatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Succeeded {
		t.Fatal("dispatch should succeed")
	}
	if gotConfirmed != "Approved" {
		t.Fatalf("confirmed = %q, want Approved", gotConfirmed)
	}

	executed, err := recordStore.Executed(context.Background(), "42", "ConfirmAction")
	if err != nil {
		t.Fatalf("Executed: %v", err)
	}
	if !executed {
		t.Fatal("confirm execution not recorded")
	}
}

func TestDispatchMailtoSendsReply(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	h := NewActionsHandler(testLogger(), action.NewDispatcher(testLogger(), sender, records.NewMemoryStore(), 5*time.Second))

	e := newTestEcho()
	body := `{"message_uid":"42","kind":"CancelAction","target":"mailto:ops@example.com?subject=x"}`
	req := httptest.NewRequest(http.MethodPost, "/actions/dispatch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := authedContext(t, e, req, rec)

	if err := h.Dispatch(c); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if len(msg.To) != 1 || msg.To[0] != "ops@example.com" {
		t.Fatalf("to = %v", msg.To)
	}
	if msg.From != "admin@example.com" {
		t.Fatalf("from = %q", msg.From)
	}
}

func TestDispatchRejectsViewKind(t *testing.T) {
	t.Parallel()

	h := NewActionsHandler(testLogger(), action.NewDispatcher(testLogger(), &recordingSender{}, records.NewMemoryStore(), 5*time.Second))

	e := newTestEcho()
	body := `{"message_uid":"42","kind":"ViewAction","target":"https://example.com/map"}`
	req := httptest.NewRequest(http.MethodPost, "/actions/dispatch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := authedContext(t, e, req, rec)

	err := h.Dispatch(c)
	if err == nil {
		t.Fatal("view actions navigate client-side, dispatching one must fail")
	}
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestDispatchRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	h := NewActionsHandler(testLogger(), action.NewDispatcher(testLogger(), &recordingSender{}, records.NewMemoryStore(), 5*time.Second))

	e := newTestEcho()
	body := `{"message_uid":"42","kind":"DeleteAction","target":"https://example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/actions/dispatch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := authedContext(t, e, req, rec)

	if err := h.Dispatch(c); err == nil {
		t.Fatal("expected error for unsupported kind")
	}
}

func TestDispatchRequiresToken(t *testing.T) {
	t.Parallel()

	h := NewActionsHandler(testLogger(), action.NewDispatcher(testLogger(), &recordingSender{}, records.NewMemoryStore(), 5*time.Second))

	e := newTestEcho()
	req := httptest.NewRequest(http.MethodPost, "/actions/dispatch", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	if err := h.Dispatch(e.NewContext(req, rec)); err == nil {
		t.Fatal("expected auth error")
	}
}
