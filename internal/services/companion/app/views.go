package app

import (
	"time"

	"github.com/louisbranch/encore/internal/services/companion/badge"
	"github.com/louisbranch/encore/internal/services/companion/concert"
	"github.com/louisbranch/encore/internal/services/companion/issuer"
	"github.com/louisbranch/encore/internal/services/companion/responder"
	"github.com/louisbranch/encore/internal/services/companion/wallet"
)

// UserView is the signed-in wallet as pages show it.
type UserView struct {
	Address      string `json:"address"`
	ShortAddress string `json:"shortAddress"`
	IsConnected  bool   `json:"isConnected"`
}

// ConcertCard is a catalog entry with display helpers.
type ConcertCard struct {
	concert.Record
	Status    string `json:"status"`
	Date      string `json:"date"`
	Countdown string `json:"countdown"`
}

// LandingView backs the catalog page.
type LandingView struct {
	User     *UserView     `json:"user,omitempty"`
	Live     []ConcertCard `json:"live"`
	Upcoming []ConcertCard `json:"upcoming"`
}

// DetailView backs a concert page.
type DetailView struct {
	User      *UserView           `json:"user,omitempty"`
	Concert   ConcertCard         `json:"concert"`
	Messages  []responder.Message `json:"messages,omitempty"`
	Badges    []badge.Badge       `json:"badges"`
	ClapCount int                 `json:"clapCount"`
}

// ProfileView backs the profile page.
type ProfileView struct {
	User         UserView        `json:"user"`
	Transactions []issuer.Record `json:"transactions"`
	Badges       []badge.Badge   `json:"badges"`
	Pending      []issuer.Record `json:"pending"`
}

func userView(identity wallet.Identity) UserView {
	return UserView{
		Address:      identity.Address,
		ShortAddress: wallet.Abbreviate(identity.Address),
		IsConnected:  identity.IsConnected,
	}
}

func concertCard(record concert.Record, now time.Time) ConcertCard {
	return ConcertCard{
		Record:    record,
		Status:    record.Status(now),
		Date:      concert.FormatDate(record.StartTime),
		Countdown: concert.Countdown(record.StartTime, now),
	}
}

func concertCards(records []concert.Record, now time.Time) []ConcertCard {
	cards := make([]ConcertCard, 0, len(records))
	for _, record := range records {
		cards = append(cards, concertCard(record, now))
	}
	return cards
}
