// Package issuer submits sponsored concert transactions (claps, comments,
// badge mints) and tracks each one from pending to a terminal status.
package issuer

import "time"

// Intent names what a transaction is for.
type Intent string

const (
	IntentClap    Intent = "clap"
	IntentComment Intent = "comment"
	IntentMint    Intent = "mint"
	IntentOther   Intent = "other"
)

// Valid reports whether the intent is known.
func (i Intent) Valid() bool {
	switch i {
	case IntentClap, IntentComment, IntentMint, IntentOther:
		return true
	}
	return false
}

// Status is a transaction's lifecycle position.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Payload keys.
const (
	PayloadConcertID = "concertId"
	PayloadArtist    = "artist"
	PayloadMessage   = "message"
)

// Record is one issued transaction.
type Record struct {
	ID        string            `json:"id"`
	Hash      string            `json:"hash,omitempty"`
	Intent    Intent            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Status    Status            `json:"status"`
	Payload   map[string]string `json:"data,omitempty"`
}

// Request asks for a transaction. Owner is the submitting wallet address;
// Subject scopes the in-flight guard, usually a concert ID.
type Request struct {
	Intent  Intent
	Owner   string
	Subject string
	Payload map[string]string
}

func (r Request) key() string {
	return string(r.Intent) + "|" + r.Owner + "|" + r.Subject
}

func clonePayload(payload map[string]string) map[string]string {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
