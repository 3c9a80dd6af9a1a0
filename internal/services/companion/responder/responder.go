// Package responder produces the companion's replies to fan chat and keeps
// the per-concert transcripts they land in.
package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/encore/internal/platform/id"
	"github.com/louisbranch/encore/internal/platform/otel"
	"github.com/louisbranch/encore/internal/platform/random"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderCompanion Sender = "companion"
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Backend is an external reply source consulted before the built-in rules.
// An empty reply defers to the rules.
type Backend interface {
	Reply(ctx context.Context, text, artist string) (string, error)
}

// Logger receives backend failures. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// Config wires a Responder.
type Config struct {
	Tables  Tables
	Picker  random.Picker
	Backend Backend
	Logger  Logger
	Now     func() time.Time
	NewID   func() (string, error)
}

// Responder answers fan messages.
type Responder struct {
	tables  Tables
	picker  random.Picker
	backend Backend
	logger  Logger
	now     func() time.Time
	newID   func() (string, error)
	tracer  trace.Tracer
}

// New builds a Responder. Zero-valued fields fall back to the built-in
// tables, a crypto-seeded picker, the wall clock and random IDs.
func New(cfg Config) (*Responder, error) {
	r := &Responder{
		tables:  cfg.Tables,
		picker:  cfg.Picker,
		backend: cfg.Backend,
		logger:  cfg.Logger,
		now:     cfg.Now,
		newID:   cfg.NewID,
		tracer:  otel.Tracer("encore/responder"),
	}
	if r.tables.Facts == nil && r.tables.Reactions == nil && r.tables.Defaults == nil {
		r.tables = DefaultTables()
	}
	if r.picker == nil {
		seed, err := random.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("seed picker: %w", err)
		}
		r.picker = random.NewPicker(seed)
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = func() (string, error) { return id.Prefixed("msg") }
	}
	return r, nil
}

// Respond builds the companion reply to text for a concert by artist.
func (r *Responder) Respond(ctx context.Context, text, artist string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	ctx, span := r.tracer.Start(ctx, "responder.Respond",
		trace.WithAttributes(attribute.String("encore.artist", artist)))
	defer span.End()

	content, source := r.reply(ctx, text, artist)
	span.SetAttributes(attribute.String("encore.reply_source", source))

	msg, err := r.message(content, SenderCompanion)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build reply")
		return Message{}, err
	}
	return msg, nil
}

func (r *Responder) reply(ctx context.Context, text, artist string) (string, string) {
	if r.backend != nil {
		content, err := r.backend.Reply(ctx, text, artist)
		switch {
		case err != nil:
			r.logf("companion backend failed: artist=%s err=%v", artist, err)
		case strings.TrimSpace(content) != "":
			return content, "backend"
		}
	}
	category := Classify(text)
	return r.Rule(category, artist), string(category)
}

// Rule renders a reply for an already classified message.
func (r *Responder) Rule(category Category, artist string) string {
	switch category {
	case CategoryFact:
		return random.Pick(r.picker, r.tables.factsFor(artist))
	case CategoryReaction:
		return AcknowledgmentPrefix + random.Pick(r.picker, r.tables.Reactions)
	default:
		return renderDefault(random.Pick(r.picker, r.tables.Defaults), artist)
	}
}

// renderDefault fills the artist into templates that ask for it; templates
// without a verb are returned as written.
func renderDefault(template, artist string) string {
	if !strings.Contains(template, "%[1]s") {
		return template
	}
	return fmt.Sprintf(template, artist)
}

func (r *Responder) message(content string, sender Sender) (Message, error) {
	msgID, err := r.newID()
	if err != nil {
		return Message{}, fmt.Errorf("message id: %w", err)
	}
	return Message{
		ID:        msgID,
		Content:   content,
		Sender:    sender,
		Timestamp: r.now().UTC(),
	}, nil
}

func (r *Responder) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
