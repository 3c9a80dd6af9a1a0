package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/encore/internal/services/companion/storage"
)

func TestOpenRequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := Open("  "); err == nil {
		t.Fatal("expected empty dir error")
	}
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := store.Get(ctx, "concert_wallet"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
	if err := store.Put(ctx, "concert_wallet", []byte(`{"address":"0x1"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "concert_wallet")
	if err != nil || string(got) != `{"address":"0x1"}` {
		t.Fatalf("get = %s, %v", got, err)
	}
	if err := store.Delete(ctx, "concert_wallet"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "concert_wallet"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, err := store.Get(ctx, "concert_wallet"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get deleted = %v, want ErrNotFound", err)
	}
}

func TestReopenKeepsValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.Get(context.Background(), "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("get = %q, %v", got, err)
	}
}

func TestOpenInMemory(t *testing.T) {
	t.Parallel()

	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, err := store.Get(context.Background(), "k"); err != nil || string(got) != "v" {
		t.Fatalf("get = %q, %v", got, err)
	}
}
