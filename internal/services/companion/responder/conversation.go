package responder

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/platform/i18n"
)

// Conversation binds a transcript to the responder and artist it talks about.
type Conversation struct {
	responder  *Responder
	transcript *Transcript
	artist     string
}

// NewConversation starts a conversation over transcript. A nil transcript
// gets a fresh one with the welcome message.
func (r *Responder) NewConversation(artist string, transcript *Transcript) *Conversation {
	if transcript == nil {
		transcript = NewTranscript(artist, r.now())
	}
	return &Conversation{responder: r, transcript: transcript, artist: artist}
}

// Transcript exposes the underlying log.
func (c *Conversation) Transcript() *Transcript {
	return c.transcript
}

// Send appends the user's message and the companion's answer, returning
// both. When no answer can be produced the apology is appended in its place
// and no error is returned.
func (c *Conversation) Send(ctx context.Context, text string) (Message, Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, Message{}, apperrors.Field("text", i18n.Sprintf(i18n.KeyChatEmpty))
	}
	userMsg, err := c.responder.message(text, SenderUser)
	if err != nil {
		return Message{}, Message{}, fmt.Errorf("user message: %w", err)
	}

	reply, err := c.responder.Respond(ctx, text, c.artist)
	if err != nil {
		c.responder.logf("companion reply failed: artist=%s err=%v", c.artist, err)
		reply, err = c.apology()
		if err != nil {
			return Message{}, Message{}, err
		}
	}
	c.transcript.Append(userMsg, reply)
	return userMsg, reply, nil
}

func (c *Conversation) apology() (Message, error) {
	msg, err := c.responder.message(i18n.Sprintf(i18n.KeyChatApology), SenderCompanion)
	if err != nil {
		return Message{}, fmt.Errorf("apology message: %w", err)
	}
	return msg, nil
}
