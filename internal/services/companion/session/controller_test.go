package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"github.com/louisbranch/encore/internal/services/companion/badge"
	"github.com/louisbranch/encore/internal/services/companion/issuer"
	"github.com/louisbranch/encore/internal/services/companion/responder"
	"github.com/louisbranch/encore/internal/services/companion/storage"
	"github.com/louisbranch/encore/internal/services/companion/storage/sqlite"
	"github.com/louisbranch/encore/internal/services/companion/wallet"
)

var testNow = time.Date(2026, time.October, 20, 18, 0, 0, 0, time.UTC)

type fakeWallets struct {
	wallet.MockProvider
	badges        []badge.Badge
	fetchErr      error
	disconnectErr error
	disconnected  []string
}

func (f *fakeWallets) FetchBadges(context.Context, string) ([]badge.Badge, error) {
	return f.badges, f.fetchErr
}

func (f *fakeWallets) Disconnect(_ context.Context, address string) error {
	f.disconnected = append(f.disconnected, address)
	return f.disconnectErr
}

func newController(t *testing.T, store storage.KeyValueStore, wallets wallet.Provider) (*Controller, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	if wallets == nil {
		wallets = &fakeWallets{}
	}
	c, err := NewController(Config{
		Store:   store,
		Wallets: wallets,
		Logger:  log.New(&buf, "", 0),
		Now:     func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c, &buf
}

func TestNewControllerRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := NewController(Config{Wallets: wallet.MockProvider{}}); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := NewController(Config{Store: storage.NewMemoryStore()}); err == nil {
		t.Fatal("expected wallet error")
	}
}

func TestLoginPersistsIdentity(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	c, _ := newController(t, store, nil)
	if err := c.Login(context.Background(), "0xabc"); err != nil {
		t.Fatalf("login: %v", err)
	}
	raw, err := store.Get(context.Background(), IdentityKey)
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if string(raw) != `{"address":"0xabc","isConnected":true}` {
		t.Fatalf("persisted = %s", raw)
	}
	snap, ok := c.Snapshot()
	if !ok {
		t.Fatal("expected logged in")
	}
	if snap.Identity.Address != "0xabc" || len(snap.Transactions) != 0 || len(snap.Badges) != 0 || len(snap.Messages) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestLoginRejectsEmptyAddress(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, storage.NewMemoryStore(), nil)
	if err := c.Login(context.Background(), " "); apperrors.KindOf(err) != apperrors.KindValidation {
		t.Fatalf("err = %v, want validation", err)
	}
	if c.LoggedIn() {
		t.Fatal("expected logged out")
	}
}

func TestLoginSeedsFetchedBadgesAndIgnoresFetchFailure(t *testing.T) {
	t.Parallel()

	held := []badge.Badge{{ID: "b1", ConcertID: "1"}}
	c, _ := newController(t, storage.NewMemoryStore(), &fakeWallets{badges: held})
	if err := c.Login(context.Background(), "0xabc"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := c.BadgesForConcert("1"); len(got) != 1 || got[0].ID != "b1" {
		t.Fatalf("badges = %+v", got)
	}

	failing, logs := newController(t, storage.NewMemoryStore(), &fakeWallets{fetchErr: errors.New("rpc down")})
	if err := failing.Login(context.Background(), "0xabc"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !failing.LoggedIn() {
		t.Fatal("expected logged in despite fetch failure")
	}
	if !strings.Contains(logs.String(), "fetch badges failed") {
		t.Fatalf("logs = %q", logs.String())
	}
}

func TestSignIn(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, storage.NewMemoryStore(), &fakeWallets{})
	if _, err := c.SignIn(context.Background(), "not-an-email"); !errors.Is(err, wallet.ErrInvalidEmail) {
		t.Fatalf("err = %v, want ErrInvalidEmail", err)
	}
	if c.LoggedIn() {
		t.Fatal("expected logged out after invalid email")
	}
	identity, err := c.SignIn(context.Background(), "fan@example.com")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	got, ok := c.Identity()
	if !ok || got.Address != identity.Address || !strings.HasPrefix(got.Address, "0x") {
		t.Fatalf("identity = %+v, want %+v", got, identity)
	}
}

func TestLogoutClearsStateAndStore(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	wallets := &fakeWallets{disconnectErr: errors.New("provider gone")}
	c, logs := newController(t, store, wallets)
	if err := c.Login(context.Background(), "0xabc"); err != nil {
		t.Fatalf("login: %v", err)
	}
	c.Logout(context.Background())

	if c.LoggedIn() {
		t.Fatal("expected logged out")
	}
	if _, err := store.Get(context.Background(), IdentityKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("identity still stored: %v", err)
	}
	if len(wallets.disconnected) != 1 || wallets.disconnected[0] != "0xabc" {
		t.Fatalf("disconnected = %v", wallets.disconnected)
	}
	if !strings.Contains(logs.String(), "wallet disconnect failed") {
		t.Fatalf("logs = %q", logs.String())
	}
}

func TestMutationsIgnoredWhenLoggedOut(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, storage.NewMemoryStore(), nil)
	if c.AddTransaction(issuer.Record{ID: "tx"}) {
		t.Fatal("AddTransaction should report false")
	}
	if c.AddBadge(badge.Badge{ID: "b"}) {
		t.Fatal("AddBadge should report false")
	}
	if _, ok := c.Transcript("1", "BTS"); ok {
		t.Fatal("Transcript should report false")
	}
	if _, ok := c.Snapshot(); ok {
		t.Fatal("Snapshot should report false")
	}
	if got := c.BadgesForConcert("1"); len(got) != 0 {
		t.Fatalf("badges = %+v", got)
	}
}

func TestBadgesAccumulatePerConcert(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, storage.NewMemoryStore(), nil)
	if err := c.Login(context.Background(), "0xabc"); err != nil {
		t.Fatalf("login: %v", err)
	}
	for _, b := range []badge.Badge{
		{ID: "a", ConcertID: "1"},
		{ID: "b", ConcertID: "1"},
		{ID: "c", ConcertID: "2"},
	} {
		if !c.AddBadge(b) {
			t.Fatalf("add badge %s", b.ID)
		}
	}
	if got := c.BadgesForConcert("1"); len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("concert 1 badges = %+v", got)
	}
	if got := c.BadgesForConcert("2"); len(got) != 1 {
		t.Fatalf("concert 2 badges = %+v", got)
	}
	snap, _ := c.Snapshot()
	if len(snap.Badges) != 3 {
		t.Fatalf("snapshot badges = %d, want 3", len(snap.Badges))
	}
}

func TestTranscriptIsPerConcert(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, storage.NewMemoryStore(), nil)
	if err := c.Login(context.Background(), "0xabc"); err != nil {
		t.Fatalf("login: %v", err)
	}
	first, ok := c.Transcript("1", "Taylor Swift")
	if !ok {
		t.Fatal("expected transcript")
	}
	again, _ := c.Transcript("1", "Taylor Swift")
	if first != again {
		t.Fatal("expected same transcript on second call")
	}
	first.Append(responder.Message{ID: "m1", Sender: responder.SenderUser, Content: "hi", Timestamp: testNow.Add(time.Second)})
	other, _ := c.Transcript("2", "BTS")
	if other.Len() != 1 {
		t.Fatalf("other transcript len = %d, want 1", other.Len())
	}

	snap, _ := c.Snapshot()
	if len(snap.Messages) != 3 {
		t.Fatalf("snapshot messages = %d, want 3", len(snap.Messages))
	}
	for i := 1; i < len(snap.Messages); i++ {
		if snap.Messages[i].Timestamp.Before(snap.Messages[i-1].Timestamp) {
			t.Fatalf("messages out of order: %+v", snap.Messages)
		}
	}
}

func TestReloginReplacesState(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, storage.NewMemoryStore(), nil)
	if err := c.Login(context.Background(), "0xaaa"); err != nil {
		t.Fatalf("login: %v", err)
	}
	c.AddTransaction(issuer.Record{ID: "tx-1"})
	if err := c.Login(context.Background(), "0xbbb"); err != nil {
		t.Fatalf("login: %v", err)
	}
	snap, _ := c.Snapshot()
	if snap.Identity.Address != "0xbbb" || len(snap.Transactions) != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		stored     string
		wantLogin  bool
		wantErr    bool
		wantStored bool
	}{
		{name: "nothing saved"},
		{name: "valid identity", stored: `{"address":"0xabc","isConnected":true}`, wantLogin: true, wantStored: true},
		{name: "malformed json", stored: `{"address":`, wantErr: true},
		{name: "empty address", stored: `{"address":"","isConnected":true}`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := storage.NewMemoryStore()
			if tc.stored != "" {
				if err := store.Put(ctx, IdentityKey, []byte(tc.stored)); err != nil {
					t.Fatalf("seed: %v", err)
				}
			}
			c, logs := newController(t, store, nil)
			restored, err := c.Restore(ctx)
			if restored != tc.wantLogin || c.LoggedIn() != tc.wantLogin {
				t.Fatalf("restored = %v, logged in = %v, want %v", restored, c.LoggedIn(), tc.wantLogin)
			}
			if tc.wantErr {
				if apperrors.KindOf(err) != apperrors.KindRestore {
					t.Fatalf("err = %v, want restore", err)
				}
				if !strings.Contains(logs.String(), "restore failed") {
					t.Fatalf("logs = %q", logs.String())
				}
			} else if err != nil {
				t.Fatalf("restore: %v", err)
			}
			_, getErr := store.Get(ctx, IdentityKey)
			if stored := getErr == nil; stored != tc.wantStored {
				t.Fatalf("stored = %v, want %v", stored, tc.wantStored)
			}
		})
	}
}

func TestSessionSurvivesRestartOverSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "encore.db")

	store, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	first, _ := newController(t, store, nil)
	if err := first.Login(ctx, "0xfeed"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	second, _ := newController(t, reopened, nil)
	restored, err := second.Restore(ctx)
	if err != nil || !restored {
		t.Fatalf("restore = %v, %v", restored, err)
	}
	identity, _ := second.Identity()
	if identity.Address != "0xfeed" || !identity.IsConnected {
		t.Fatalf("identity = %+v", identity)
	}

	second.Logout(ctx)
	third, _ := newController(t, reopened, nil)
	if restored, err := third.Restore(ctx); restored || err != nil {
		t.Fatalf("restore after logout = %v, %v", restored, err)
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, storage.NewMemoryStore(), nil)
	if err := c.Login(context.Background(), "0xabc"); err != nil {
		t.Fatalf("login: %v", err)
	}
	snap, _ := c.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"user":{"address":"0xabc","isConnected":true},"transactions":[],"badges":[],"messages":[]}`
	if string(raw) != want {
		t.Fatalf("json = %s, want %s", raw, want)
	}
}
