package responder

import (
	"sync"
	"time"

	"github.com/louisbranch/encore/internal/platform/i18n"
)

// WelcomeID is the fixed ID of the first message in every transcript.
const WelcomeID = "welcome"

// Transcript is an append-only, time-ordered message log for one concert.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
}

// NewTranscript starts a transcript with the companion's welcome.
func NewTranscript(artist string, now time.Time) *Transcript {
	return &Transcript{messages: []Message{{
		ID:        WelcomeID,
		Content:   WelcomeMessage(artist),
		Sender:    SenderCompanion,
		Timestamp: now.UTC(),
	}}}
}

// WelcomeMessage is the greeting for a concert by artist.
func WelcomeMessage(artist string) string {
	return i18n.Sprintf(i18n.KeyChatWelcome, artist)
}

// Append adds messages in order. Timestamps earlier than the last entry are
// raised to it so the log stays non-decreasing.
func (t *Transcript) Append(msgs ...Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, msg := range msgs {
		if n := len(t.messages); n > 0 {
			if last := t.messages[n-1].Timestamp; msg.Timestamp.Before(last) {
				msg.Timestamp = last
			}
		}
		t.messages = append(t.messages, msg)
	}
}

// Messages returns a copy of the log.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}
