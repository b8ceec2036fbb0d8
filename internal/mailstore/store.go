// Package mailstore is the boundary to the host message store. The
// pipeline only needs a message's HTML part, its raw bytes for the
// fallback extractor, and a few envelope headers.
package mailstore

import (
	"context"
	"time"
)

type Envelope struct {
	UID      string    `json:"uid"`
	From     string    `json:"from"`
	Subject  string    `json:"subject"`
	Received time.Time `json:"received"`
}

type Store interface {
	Envelope(ctx context.Context, folder, uid string) (Envelope, error)
	HTMLPart(ctx context.Context, folder, uid string) (string, error)
	RawBody(ctx context.Context, folder, uid string) ([]byte, error)
	List(ctx context.Context, folder string, page, pageSize int) ([]Envelope, error)
}
