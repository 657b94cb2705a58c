// Package audit records every granted access and deletes records once their
// retention window has elapsed.
package audit

import "time"

// Entry is an append-only record of one granted access.
type Entry struct {
	ID         string
	ActorID    string
	Capability string
	ResourceID *string
	AccessedAt time.Time
	ExpiresAt  time.Time
}
