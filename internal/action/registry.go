// Package action collects a document's potential actions, decides how
// they render, and executes them on behalf of the user.
package action

import (
	"net/url"
	"sort"
	"strconv"

	"github.com/structmail/structmail/internal/structured"
)

// Kind is a supported action verb.
type Kind string

const (
	KindConfirm Kind = "ConfirmAction"
	KindCancel  Kind = "CancelAction"
	KindView    Kind = "ViewAction"
)

// Action is one user-triggerable verb attached to a structured document.
type Action struct {
	Kind        Kind   `json:"kind"`
	Target      string `json:"target"`
	Description string `json:"description,omitempty"`
}

// Label is the display text for the action's button.
func (a Action) Label() string {
	switch a.Kind {
	case KindConfirm:
		return "Confirm"
	case KindCancel:
		return "Cancel"
	case KindView:
		return "View"
	}
	return ""
}

// Collect normalizes a document's potentialAction field into an ordered
// action sequence. The field may arrive as a proper list or, through a
// legacy serialization quirk, as an object keyed by index-like tokens;
// both shapes yield the same sequence. Entries with unrecognized types
// or unparseable targets are dropped silently.
func Collect(doc *structured.Document) []Action {
	if doc == nil {
		return nil
	}

	var entries []any
	switch raw := doc.Fields["potentialAction"].(type) {
	case []any:
		entries = raw
	case map[string]any:
		entries = orderedValues(raw)
	default:
		return nil
	}

	var actions []Action
	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := fields["@type"].(string)
		kind := Kind(typ)
		switch kind {
		case KindConfirm, KindCancel, KindView:
		default:
			continue
		}

		target, _ := fields["target"].(string)
		if target == "" {
			target, _ = fields["url"].(string)
		}
		if _, err := url.Parse(target); err != nil || target == "" {
			continue
		}

		desc, _ := fields["description"].(string)
		if desc == "" {
			desc, _ = fields["name"].(string)
		}
		actions = append(actions, Action{Kind: kind, Target: target, Description: desc})
	}
	return actions
}

// orderedValues flattens an object-of-entries into a slice, ordering by
// the numeric value of the keys where possible so the original relative
// order survives.
func orderedValues(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, iErr := strconv.Atoi(keys[i])
		nj, jErr := strconv.Atoi(keys[j])
		if iErr == nil && jErr == nil {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	values := make([]any, 0, len(keys))
	for _, k := range keys {
		values = append(values, m[k])
	}
	return values
}
