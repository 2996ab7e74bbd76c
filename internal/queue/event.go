// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer pair for the audit fan-out.
package queue

// AuditRecordedEvent is published after an audit record has been
// persisted. It carries enough for downstream consumers to log or feed
// analytics without querying the primary database.
type AuditRecordedEvent struct {
	AuditID   int64  `json:"audit_id"`
	UserID    int64  `json:"user_id"`
	HostelID  *int64 `json:"hostel_id,omitempty"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}
