package action

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/structmail/structmail/internal/folders"
	"github.com/structmail/structmail/internal/records"
	"github.com/structmail/structmail/internal/trust"
)

// Button describes how one action renders for a given message.
type Button struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Label       string `json:"label"`
	Target      string `json:"target"`
	Description string `json:"description,omitempty"`
	// Dispatch is true for Confirm/Cancel; View navigates client-side only.
	Dispatch bool `json:"dispatch"`
	Disabled bool `json:"disabled"`
	Hidden   bool `json:"hidden"`
	Executed bool `json:"executed"`
}

// Presenter applies the rendering policy for action buttons: untrusted
// senders get hidden buttons, special folders get disabled ones, and an
// already-executed Confirm renders disabled with a checkmark.
type Presenter struct {
	logger  *slog.Logger
	trust   trust.Lookup
	folders *folders.Service
	records records.Store
}

func NewPresenter(log *slog.Logger, trustLookup trust.Lookup, folderSvc *folders.Service, recordStore records.Store) *Presenter {
	return &Presenter{
		logger:  log.With(slog.String("service", "action_presenter")),
		trust:   trustLookup,
		folders: folderSvc,
		records: recordStore,
	}
}

// Present builds button descriptors for a message's actions. Buttons
// depend only on the action kind, the sender's trust, the folder and the
// execution record, not on what the document classified as.
func (p *Presenter) Present(ctx context.Context, messageUID, folderID, sender string, actions []Action) ([]Button, error) {
	if len(actions) == 0 {
		return nil, nil
	}

	trusted, err := p.trust.IsTrusted(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("trust lookup: %w", err)
	}
	inSpecial := p.folders.IsSpecialOrChildOfSpecial(folderID)

	buttons := make([]Button, 0, len(actions))
	for _, act := range actions {
		btn := Button{
			ID:          "actionButton" + string(act.Kind) + messageUID,
			Kind:        act.Kind,
			Label:       act.Label(),
			Target:      act.Target,
			Description: act.Description,
			Dispatch:    act.Kind != KindView,
			Hidden:      !trusted,
		}
		if btn.Dispatch && inSpecial {
			btn.Disabled = true
		}
		if act.Kind == KindConfirm {
			executed, err := p.records.Executed(ctx, messageUID, string(KindConfirm))
			if err != nil {
				return nil, fmt.Errorf("execution record lookup: %w", err)
			}
			if executed {
				btn.Executed = true
				btn.Disabled = true
				btn.Label = act.Label() + " ✓"
			}
		}
		buttons = append(buttons, btn)
	}
	return buttons, nil
}

// MarkupFor renders the button descriptors as an HTML fragment in the
// shape the host view expects.
func MarkupFor(buttons []Button) string {
	if len(buttons) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<div id="individualMessageActionButtons" class="action-buttons">`)
	for _, btn := range buttons {
		b.WriteString(`<button id="` + html.EscapeString(btn.ID) + `" class="btn btn-primary actionButton`)
		if btn.Executed {
			b.WriteString(" actionButtonClicked")
		}
		b.WriteString(`"`)
		if btn.Description != "" {
			b.WriteString(` title="` + html.EscapeString(btn.Description) + `"`)
		}
		if btn.Disabled {
			b.WriteString(` disabled`)
		}
		if btn.Hidden {
			b.WriteString(` hidden`)
		}
		b.WriteString(` data-kind="` + html.EscapeString(string(btn.Kind)) + `"`)
		b.WriteString(` data-target="` + html.EscapeString(btn.Target) + `"`)
		b.WriteString(`>` + html.EscapeString(btn.Label) + `</button>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}
