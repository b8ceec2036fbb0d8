// Package delivery sends program-generated messages: action replies and
// promoted compose bodies.
package delivery

import "context"

type OutboundMessage struct {
	From      string   `json:"from"`
	To        []string `json:"to"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	HTML      bool     `json:"html,omitempty"`
	InReplyTo string   `json:"in_reply_to,omitempty"`
}

// Sender delivers one message and returns the transport message id.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) (messageID string, err error)
}
