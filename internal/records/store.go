// Package records persists which actions have already been executed for a
// message. This is the only state in the pipeline that outlives a render
// pass: a confirmed action must stay confirmed across reloads.
package records

import "context"

// Store is keyed by (message uid, action kind). Writes are set-once; a
// record is never cleared by this subsystem.
type Store interface {
	Executed(ctx context.Context, messageUID, actionKind string) (bool, error)
	MarkExecuted(ctx context.Context, messageUID, actionKind string) error
}
