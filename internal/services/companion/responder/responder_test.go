package responder

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/encore/internal/platform/random"
)

var testNow = time.Date(2026, time.October, 20, 18, 0, 0, 0, time.UTC)

func newTestResponder(t *testing.T, cfg Config) *Responder {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	if cfg.Picker == nil {
		cfg.Picker = random.NewPicker(42)
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("new responder: %v", err)
	}
	return r
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want Category
	}{
		{text: "Tell me a fact", want: CategoryFact},
		{text: "TELL ME ABOUT the band", want: CategoryFact},
		{text: "who is on drums?", want: CategoryFact},
		{text: "WOW", want: CategoryReaction},
		{text: "I love this", want: CategoryReaction},
		{text: "that was cool", want: CategoryReaction},
		{text: "amazing fact", want: CategoryFact},
		{text: "hello there", want: CategoryDefault},
		{text: "", want: CategoryDefault},
	}
	for _, tc := range tests {
		if got := Classify(tc.text); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestRespondFactsComeFromArtistList(t *testing.T) {
	t.Parallel()

	r := newTestResponder(t, Config{})
	facts := DefaultTables().Facts["Taylor Swift"]
	for range 20 {
		msg, err := r.Respond(context.Background(), "tell me a fact", "Taylor Swift")
		if err != nil {
			t.Fatalf("respond: %v", err)
		}
		if !slices.Contains(facts, msg.Content) {
			t.Fatalf("content = %q, not a Taylor Swift fact", msg.Content)
		}
		if msg.Sender != SenderCompanion {
			t.Fatalf("sender = %q, want companion", msg.Sender)
		}
	}
}

func TestRespondUnknownArtistUsesFallbackFacts(t *testing.T) {
	t.Parallel()

	r := newTestResponder(t, Config{Picker: random.NewSequence(2)})
	msg, err := r.Respond(context.Background(), "Who is that?", "Unknown Band")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if want := DefaultTables().Facts[FallbackArtist][2]; msg.Content != want {
		t.Fatalf("content = %q, want %q", msg.Content, want)
	}
}

func TestRespondBeyonceHasOwnFacts(t *testing.T) {
	t.Parallel()

	r := newTestResponder(t, Config{Picker: random.NewSequence(0)})
	msg, err := r.Respond(context.Background(), "fact please", "Beyoncé")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.Contains(msg.Content, "32 Grammy") {
		t.Fatalf("content = %q, want Beyoncé fact", msg.Content)
	}
}

func TestRespondReactionHasAcknowledgmentPrefix(t *testing.T) {
	t.Parallel()

	r := newTestResponder(t, Config{})
	reactions := DefaultTables().Reactions
	msg, err := r.Respond(context.Background(), "Wow!", "BTS")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	rest, ok := strings.CutPrefix(msg.Content, AcknowledgmentPrefix)
	if !ok {
		t.Fatalf("content = %q, want prefix %q", msg.Content, AcknowledgmentPrefix)
	}
	if !slices.Contains(reactions, rest) {
		t.Fatalf("reaction %q not in pool", rest)
	}
}

func TestRespondDefaultFillsArtist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		index int
		want  string
	}{
		{index: 1, want: "The Weeknd is absolutely crushing it tonight!"},
		{index: 4, want: "Feel free to use the clap button to show your appreciation during the show!"},
	}
	for _, tc := range tests {
		r := newTestResponder(t, Config{Picker: random.NewSequence(tc.index)})
		msg, err := r.Respond(context.Background(), "hello", "The Weeknd")
		if err != nil {
			t.Fatalf("respond: %v", err)
		}
		if msg.Content != tc.want {
			t.Fatalf("content = %q, want %q", msg.Content, tc.want)
		}
	}
}

type stubBackend struct {
	reply string
	err   error
	calls int
}

func (b *stubBackend) Reply(context.Context, string, string) (string, error) {
	b.calls++
	return b.reply, b.err
}

func TestRespondBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		backend *stubBackend
		want    string
	}{
		{name: "backend reply wins", backend: &stubBackend{reply: "from script"}, want: "from script"},
		{name: "empty reply falls back", backend: &stubBackend{reply: "  "}, want: AcknowledgmentPrefix + DefaultTables().Reactions[0]},
		{name: "error falls back", backend: &stubBackend{err: errors.New("boom")}, want: AcknowledgmentPrefix + DefaultTables().Reactions[0]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := newTestResponder(t, Config{Backend: tc.backend, Picker: random.NewSequence(0)})
			msg, err := r.Respond(context.Background(), "awesome", "BTS")
			if err != nil {
				t.Fatalf("respond: %v", err)
			}
			if msg.Content != tc.want {
				t.Fatalf("content = %q, want %q", msg.Content, tc.want)
			}
			if tc.backend.calls != 1 {
				t.Fatalf("backend calls = %d, want 1", tc.backend.calls)
			}
		})
	}
}

func TestRespondCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newTestResponder(t, Config{})
	if _, err := r.Respond(ctx, "hi", "BTS"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
