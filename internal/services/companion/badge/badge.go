// Package badge defines the commemorative badges minted for concerts.
package badge

import (
	"time"

	"github.com/louisbranch/encore/internal/platform/i18n"
	"github.com/louisbranch/encore/internal/services/companion/concert"
)

// Badge is proof of attendance for one concert.
type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	ConcertID   string    `json:"concertId"`
	Artist      string    `json:"artist"`
	MintedAt    time.Time `json:"mintedAt"`
}

// ForConcert describes the badge minted for record. id is the mint
// transaction's hash.
func ForConcert(id string, record concert.Record, mintedAt time.Time) Badge {
	return Badge{
		ID:          id,
		Name:        i18n.Sprintf(i18n.KeyBadgeName, record.Artist),
		Description: i18n.Sprintf(i18n.KeyBadgeDescription, record.Title),
		Image:       record.Thumbnail,
		ConcertID:   record.ID,
		Artist:      record.Artist,
		MintedAt:    mintedAt.UTC(),
	}
}

// FilterByConcert returns the badges minted for concertID, in order.
func FilterByConcert(badges []Badge, concertID string) []Badge {
	out := make([]Badge, 0, len(badges))
	for _, b := range badges {
		if b.ConcertID == concertID {
			out = append(out, b)
		}
	}
	return out
}
