package action

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/structmail/structmail/internal/delivery"
	"github.com/structmail/structmail/internal/records"
)

// Result is reported back to the caller after a dispatch attempt. A
// failed dispatch is not retried; the user clicks again.
type Result struct {
	MessageUID string `json:"uid"`
	Kind       Kind   `json:"kind"`
	Succeeded  bool   `json:"succeeded"`
}

// Dispatcher executes one action synchronously: mailto targets become a
// programmatic reply through the delivery provider, anything else an HTTP
// POST with the fixed confirmation payload. Transport failures are logged
// and surface only as Succeeded=false.
type Dispatcher struct {
	logger  *slog.Logger
	sender  delivery.Sender
	records records.Store
	client  *http.Client
	timeout time.Duration
}

func NewDispatcher(log *slog.Logger, sender delivery.Sender, recordStore records.Store, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		logger:  log.With(slog.String("service", "dispatcher")),
		sender:  sender,
		records: recordStore,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Dispatch runs the action for the invoking user and reports the outcome.
// On a successful Confirm it writes the execution record so re-renders
// show the action as done.
func (d *Dispatcher) Dispatch(ctx context.Context, messageUID string, act Action, invokingUser string) Result {
	result := Result{MessageUID: messageUID, Kind: act.Kind}

	if strings.HasPrefix(act.Target, "mailto:") {
		result.Succeeded = d.sendProgrammaticReply(ctx, messageUID, act, invokingUser)
	} else {
		result.Succeeded = d.postConfirmation(ctx, act.Target)
	}

	if result.Succeeded && act.Kind == KindConfirm {
		if err := d.records.MarkExecuted(ctx, messageUID, string(KindConfirm)); err != nil {
			d.logger.Error("failed to persist execution record",
				slog.String("uid", messageUID),
				slog.Any("error", err))
		}
	}
	return result
}

func (d *Dispatcher) sendProgrammaticReply(ctx context.Context, messageUID string, act Action, invokingUser string) bool {
	recipient := strings.TrimPrefix(act.Target, "mailto:")
	recipient = strings.SplitN(recipient, "?", 2)[0]
	if recipient == "" {
		d.logger.Warn("mailto action without recipient", slog.String("uid", messageUID))
		return false
	}

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// TODO template the action's document context into subject and body;
	// the fixed text mirrors the behavior this replaces.
	msg := delivery.OutboundMessage{
		From:      invokingUser,
		To:        []string{recipient},
		Subject:   "Test programmatic email send",
		Body:      "<html><body><p>A test programmatic send</p></body></html>",
		HTML:      true,
		InReplyTo: messageUID,
	}
	if _, err := d.sender.Send(cctx, msg); err != nil {
		d.logger.Error("programmatic reply failed",
			slog.String("uid", messageUID),
			slog.String("recipient", recipient),
			slog.Any("error", err))
		return false
	}
	return true
}

func (d *Dispatcher) postConfirmation(ctx context.Context, target string) bool {
	// The caller sends the target percent-encoded; undo that first.
	if decoded, err := url.QueryUnescape(target); err == nil {
		target = decoded
	}

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	form := url.Values{"confirmed": {"Approved"}}
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		d.logger.Error("invalid dispatch target", slog.String("target", target), slog.Any("error", err))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("dispatch request failed", slog.String("target", target), slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		d.logger.Warn("dispatch rejected",
			slog.String("target", target),
			slog.Int("status", resp.StatusCode))
		return false
	}
	return true
}
