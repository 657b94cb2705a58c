// Package retention owns the fixed retention window and the reaper that
// enforces it.
package retention

import "time"

// DefaultDays is the retention window applied to declarations and audit entries.
const DefaultDays = 183

// Window is a retention period measured in whole days.
type Window struct {
	Days int
}

// DefaultWindow returns the 183 day window.
func DefaultWindow() Window {
	return Window{Days: DefaultDays}
}

func (w Window) days() int {
	if w.Days <= 0 {
		return DefaultDays
	}
	return w.Days
}

// ExpiresAt returns the expiry for a declaration on an assignment due at due.
// The value is fixed at creation and never recomputed.
func (w Window) ExpiresAt(due time.Time) time.Time {
	return due.UTC().AddDate(0, 0, w.days())
}

// AuditExpiry returns the expiry of an audit entry accessed at accessedAt.
func (w Window) AuditExpiry(accessedAt time.Time) time.Time {
	return accessedAt.UTC().Add(time.Duration(w.days()) * 24 * time.Hour)
}

// Expired reports whether a row expiring at expiresAt is due for deletion at now.
// The boundary is strict: a row is kept until expiresAt has passed.
func Expired(expiresAt, now time.Time) bool {
	return expiresAt.Before(now)
}
