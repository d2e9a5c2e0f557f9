package domain

import "time"

// AuditLog is one immutable audit trail entry for an authentication event.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
