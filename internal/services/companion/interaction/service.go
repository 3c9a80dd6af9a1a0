// Package interaction runs the fan actions of a concert page: chatting with
// the companion, clapping, and minting attendance badges. Each action
// checks the session, reaches the collaborators, and records what
// succeeded back into the session.
package interaction

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/platform/i18n"
	"github.com/louisbranch/encore/internal/services/companion/badge"
	"github.com/louisbranch/encore/internal/services/companion/concert"
	"github.com/louisbranch/encore/internal/services/companion/issuer"
	"github.com/louisbranch/encore/internal/services/companion/responder"
	"github.com/louisbranch/encore/internal/services/companion/session"
	"github.com/louisbranch/encore/internal/services/companion/wallet"
)

// Config wires a Service.
type Config struct {
	Catalog   *concert.Catalog
	Responder *responder.Responder
	Issuer    *issuer.Issuer
	Sessions  *session.Controller
	Now       func() time.Time
}

// Service coordinates concert actions for the signed-in fan.
type Service struct {
	catalog   *concert.Catalog
	responder *responder.Responder
	issuer    *issuer.Issuer
	sessions  *session.Controller
	now       func() time.Time
}

// NewService validates cfg.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, errors.New("concert catalog is required")
	case cfg.Responder == nil:
		return nil, errors.New("responder is required")
	case cfg.Issuer == nil:
		return nil, errors.New("issuer is required")
	case cfg.Sessions == nil:
		return nil, errors.New("session controller is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		catalog:   cfg.Catalog,
		responder: cfg.Responder,
		issuer:    cfg.Issuer,
		sessions:  cfg.Sessions,
		now:       now,
	}, nil
}

// ChatResult is the outcome of one chat send.
type ChatResult struct {
	User  responder.Message `json:"user"`
	Reply responder.Message `json:"reply"`
	// Transaction is set when the message was published as a comment.
	Transaction *issuer.Record `json:"transaction,omitempty"`
}

// Transcript returns the chat log for a concert.
func (s *Service) Transcript(ctx context.Context, concertID string) ([]responder.Message, error) {
	record, err := s.concert(ctx, concertID)
	if err != nil {
		return nil, err
	}
	transcript, ok := s.sessions.Transcript(record.ID, record.Artist)
	if !ok {
		return nil, errLoginNeeded()
	}
	return transcript.Messages(), nil
}

// Chat sends text to the companion. With publish set, the message is also
// issued as a comment transaction; the chat exchange is kept even when
// that transaction fails, and the failure is returned with the result.
func (s *Service) Chat(ctx context.Context, concertID, text string, publish bool) (ChatResult, error) {
	record, err := s.concert(ctx, concertID)
	if err != nil {
		return ChatResult{}, err
	}
	identity, ok := s.sessions.Identity()
	if !ok {
		return ChatResult{}, errLoginNeeded()
	}
	transcript, ok := s.sessions.Transcript(record.ID, record.Artist)
	if !ok {
		return ChatResult{}, errLoginNeeded()
	}

	conversation := s.responder.NewConversation(record.Artist, transcript)
	userMsg, reply, err := conversation.Send(ctx, text)
	if err != nil {
		return ChatResult{}, err
	}
	result := ChatResult{User: userMsg, Reply: reply}
	if !publish {
		return result, nil
	}

	tx, err := s.issue(ctx, issuer.Request{
		Intent:  issuer.IntentComment,
		Owner:   identity.Address,
		Subject: record.ID,
		Payload: map[string]string{
			issuer.PayloadConcertID: record.ID,
			issuer.PayloadMessage:   userMsg.Content,
		},
	})
	if err != nil {
		return result, err
	}
	result.Transaction = &tx
	return result, nil
}

// Clap sends an appreciation signal for a concert.
func (s *Service) Clap(ctx context.Context, concertID string) (issuer.Record, error) {
	record, err := s.concert(ctx, concertID)
	if err != nil {
		return issuer.Record{}, err
	}
	identity, ok := s.sessions.Identity()
	if !ok {
		return issuer.Record{}, errLoginNeeded()
	}
	return s.issue(ctx, issuer.Request{
		Intent:  issuer.IntentClap,
		Owner:   identity.Address,
		Subject: record.ID,
		Payload: map[string]string{
			issuer.PayloadConcertID: record.ID,
			"timestamp":             s.now().UTC().Format(time.RFC3339Nano),
		},
	})
}

// ClapCount counts the signed-in fan's completed claps for a concert.
func (s *Service) ClapCount(concertID string) int {
	snap, ok := s.sessions.Snapshot()
	if !ok {
		return 0
	}
	count := 0
	for _, tx := range snap.Transactions {
		if tx.Intent == issuer.IntentClap && tx.Payload[issuer.PayloadConcertID] == concertID {
			count++
		}
	}
	return count
}

// Mint issues an attendance badge for a concert and records it.
func (s *Service) Mint(ctx context.Context, concertID string) (issuer.Record, badge.Badge, error) {
	record, err := s.concert(ctx, concertID)
	if err != nil {
		return issuer.Record{}, badge.Badge{}, err
	}
	identity, ok := s.sessions.Identity()
	if !ok {
		return issuer.Record{}, badge.Badge{}, errLoginNeeded()
	}
	tx, err := s.issuer.Mint(ctx, identity.Address, record.ID, record.Artist)
	if err != nil {
		return tx, badge.Badge{}, err
	}
	minted := badge.ForConcert(tx.Hash, record, s.now())
	s.sessions.AddTransaction(tx)
	s.sessions.AddBadge(minted)
	return tx, minted, nil
}

// Badges lists the signed-in fan's badges for a concert.
func (s *Service) Badges(ctx context.Context, concertID string) ([]badge.Badge, error) {
	record, err := s.concert(ctx, concertID)
	if err != nil {
		return nil, err
	}
	if !s.sessions.LoggedIn() {
		return nil, errLoginNeeded()
	}
	return s.sessions.BadgesForConcert(record.ID), nil
}

// Identity returns the signed-in wallet, for display.
func (s *Service) Identity() (wallet.Identity, bool) {
	return s.sessions.Identity()
}

// Pending lists transactions still waiting on the sponsor.
func (s *Service) Pending() []issuer.Record {
	return s.issuer.Pending()
}

func (s *Service) issue(ctx context.Context, req issuer.Request) (issuer.Record, error) {
	tx, err := s.issuer.Issue(ctx, req)
	if err != nil {
		return tx, err
	}
	s.sessions.AddTransaction(tx)
	return tx, nil
}

func (s *Service) concert(ctx context.Context, concertID string) (concert.Record, error) {
	record, ok, err := s.catalog.Get(ctx, concertID)
	if err != nil {
		return concert.Record{}, err
	}
	if !ok {
		return concert.Record{}, apperrors.E(apperrors.KindNotFound, "concert not found")
	}
	return record, nil
}

func errLoginNeeded() error {
	return apperrors.E(apperrors.KindUnauthorized, i18n.Sprintf(i18n.KeyLoginNeeded))
}
