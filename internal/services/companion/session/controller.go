// Package session owns the signed-in fan's state: wallet identity, issued
// transactions, minted badges and per-concert chat transcripts.
//
// State exists only while logged in. The identity is the one value that
// survives a restart, written at login and removed at logout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/platform/i18n"
	"github.com/louisbranch/encore/internal/services/companion/badge"
	"github.com/louisbranch/encore/internal/services/companion/issuer"
	"github.com/louisbranch/encore/internal/services/companion/responder"
	"github.com/louisbranch/encore/internal/services/companion/storage"
	"github.com/louisbranch/encore/internal/services/companion/wallet"
)

// IdentityKey is the storage key of the persisted identity.
const IdentityKey = "concert_wallet"

// Logger receives best-effort failures. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// Snapshot is a copy of the logged-in state.
type Snapshot struct {
	Identity     wallet.Identity     `json:"user"`
	Transactions []issuer.Record     `json:"transactions"`
	Badges       []badge.Badge       `json:"badges"`
	Messages     []responder.Message `json:"messages"`
}

type state struct {
	identity     wallet.Identity
	transactions []issuer.Record
	badges       []badge.Badge
	transcripts  map[string]*responder.Transcript
}

// Config wires a Controller.
type Config struct {
	Store   storage.KeyValueStore
	Wallets wallet.Provider
	Logger  Logger
	Now     func() time.Time
}

// Controller serializes all session mutations.
type Controller struct {
	store   storage.KeyValueStore
	wallets wallet.Provider
	logger  Logger
	now     func() time.Time

	mu    sync.Mutex
	state *state
}

// NewController builds a logged-out controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Wallets == nil {
		return nil, errors.New("wallet provider is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{store: cfg.Store, wallets: cfg.Wallets, logger: cfg.Logger, now: now}, nil
}

// SignIn validates email, derives its wallet and logs it in.
func (c *Controller) SignIn(ctx context.Context, email string) (wallet.Identity, error) {
	if err := wallet.ValidateEmail(email); err != nil {
		return wallet.Identity{}, err
	}
	identity, err := c.wallets.Create(ctx, strings.TrimSpace(email))
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindValidation {
			return wallet.Identity{}, err
		}
		return wallet.Identity{}, apperrors.Wrap(apperrors.KindUnknown, i18n.Sprintf(i18n.KeyLoginFailed), err)
	}
	if err := c.Login(ctx, identity.Address); err != nil {
		return wallet.Identity{}, err
	}
	return wallet.Identity{Address: identity.Address, IsConnected: true}, nil
}

// Login replaces any current state with a fresh one for address and
// persists the identity. Existing badges are fetched from the wallet
// provider; a fetch failure is logged and ignored.
func (c *Controller) Login(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return apperrors.Field("address", "wallet address is required")
	}
	identity := wallet.Identity{Address: address, IsConnected: true}

	badges, err := c.wallets.FetchBadges(ctx, address)
	if err != nil {
		c.logf("fetch badges failed: address=%s err=%v", address, err)
		badges = nil
	}

	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Put(ctx, IdentityKey, raw); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}
	c.state = &state{
		identity:    identity,
		badges:      append([]badge.Badge(nil), badges...),
		transcripts: make(map[string]*responder.Transcript),
	}
	return nil
}

// Logout disconnects the wallet, removes the persisted identity and drops
// the state. Provider and storage failures are logged, never returned.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil {
		if err := c.wallets.Disconnect(ctx, c.state.identity.Address); err != nil {
			c.logf("wallet disconnect failed: address=%s err=%v", c.state.identity.Address, err)
		}
	}
	if err := c.store.Delete(ctx, IdentityKey); err != nil {
		c.logf("delete identity failed: err=%v", err)
	}
	c.state = nil
}

// Restore logs back in from the persisted identity. A missing entry leaves
// the controller logged out. An unreadable entry is reported as a restore
// error, deleted, and also leaves it logged out.
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	raw, err := c.store.Get(ctx, IdentityKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		restoreErr := apperrors.Wrap(apperrors.KindRestore, "read saved wallet", err)
		c.logf("restore failed: err=%v", restoreErr)
		return false, restoreErr
	}

	var identity wallet.Identity
	if err := json.Unmarshal(raw, &identity); err != nil || strings.TrimSpace(identity.Address) == "" {
		if err == nil {
			err = errors.New("address is empty")
		}
		restoreErr := apperrors.Wrap(apperrors.KindRestore, "decode saved wallet", err)
		c.logf("restore failed: err=%v", restoreErr)
		if delErr := c.store.Delete(ctx, IdentityKey); delErr != nil {
			c.logf("delete identity failed: err=%v", delErr)
		}
		return false, restoreErr
	}

	if err := c.Login(ctx, identity.Address); err != nil {
		restoreErr := apperrors.Wrap(apperrors.KindRestore, "restore login", err)
		c.logf("restore failed: err=%v", restoreErr)
		return false, restoreErr
	}
	return true, nil
}

// Identity returns the logged-in identity.
func (c *Controller) Identity() (wallet.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return wallet.Identity{}, false
	}
	return c.state.identity, true
}

// LoggedIn reports whether a wallet is signed in.
func (c *Controller) LoggedIn() bool {
	_, ok := c.Identity()
	return ok
}

// AddTransaction appends rec. It reports false when logged out.
func (c *Controller) AddTransaction(rec issuer.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return false
	}
	c.state.transactions = append(c.state.transactions, rec)
	return true
}

// AddBadge appends b. It reports false when logged out.
func (c *Controller) AddBadge(b badge.Badge) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return false
	}
	c.state.badges = append(c.state.badges, b)
	return true
}

// BadgesForConcert returns the badges minted for concertID.
func (c *Controller) BadgesForConcert(concertID string) []badge.Badge {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return []badge.Badge{}
	}
	return badge.FilterByConcert(c.state.badges, concertID)
}

// Transcript returns the chat log for concertID, starting one with the
// welcome message on first use. It reports false when logged out.
func (c *Controller) Transcript(concertID, artist string) (*responder.Transcript, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil, false
	}
	transcript, ok := c.state.transcripts[concertID]
	if !ok {
		transcript = responder.NewTranscript(artist, c.now())
		c.state.transcripts[concertID] = transcript
	}
	return transcript, true
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return Snapshot{}, false
	}
	snap := Snapshot{
		Identity:     c.state.identity,
		Transactions: append([]issuer.Record{}, c.state.transactions...),
		Badges:       append([]badge.Badge{}, c.state.badges...),
		Messages:     []responder.Message{},
	}
	concertIDs := make([]string, 0, len(c.state.transcripts))
	for concertID := range c.state.transcripts {
		concertIDs = append(concertIDs, concertID)
	}
	slices.Sort(concertIDs)
	for _, concertID := range concertIDs {
		snap.Messages = append(snap.Messages, c.state.transcripts[concertID].Messages()...)
	}
	slices.SortStableFunc(snap.Messages, func(a, b responder.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return snap, true
}

func (c *Controller) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
