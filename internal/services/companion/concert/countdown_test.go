package concert

import (
	"testing"
	"time"
)

func TestCountdown(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.October, 20, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		delta time.Duration
		want  string
	}{
		{name: "past", delta: -time.Minute, want: "Live now!"},
		{name: "exactly now", delta: 0, want: "Live now!"},
		{name: "ninety minutes", delta: 90 * time.Minute, want: "Starts in 1h 30m"},
		{name: "floors seconds", delta: 59*time.Second + 500*time.Millisecond, want: "Starts in 0h 0m"},
		{name: "exactly a day", delta: 24 * time.Hour, want: "Starts in 24h 0m"},
		{name: "just over a day", delta: 25 * time.Hour, want: "Starts in 1 day"},
		{name: "two days", delta: 49 * time.Hour, want: "Starts in 2 days"},
		{name: "almost two days", delta: 47*time.Hour + 59*time.Minute, want: "Starts in 1 day"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Countdown(now.Add(tc.delta), now); got != tc.want {
				t.Fatalf("Countdown(%s) = %q, want %q", tc.delta, got, tc.want)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.October, 20, 19, 30, 0, 0, time.UTC)
	if got := FormatDate(at); got != "Tue, Oct 20, 07:30 PM" {
		t.Fatalf("FormatDate = %q", got)
	}
}
