package token

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T, sealer *Sealer) *SQLiteFallback {
	t.Helper()
	f, err := OpenSQLite(filepath.Join(t.TempDir(), "tokens.db"), sealer)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestSQLiteRoundTrip(t *testing.T) {
	f := openTestSQLite(t, nil)
	ctx := context.Background()

	expiresAt := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	want := Record{Access: "acc", Refresh: "ref", ExpiresAt: expiresAt}
	if err := f.Put(ctx, "device-1", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := f.Get(ctx, "device-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil record")
	}
	if got.Access != want.Access || got.Refresh != want.Refresh || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestSQLiteMissingDevice(t *testing.T) {
	f := openTestSQLite(t, nil)

	rec, err := f.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Errorf("Get = %+v, want nil", rec)
	}
}

func TestSQLiteUpsert(t *testing.T) {
	f := openTestSQLite(t, nil)
	ctx := context.Background()

	if err := f.Put(ctx, "device-1", Record{Access: "old"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := f.Put(ctx, "device-1", Record{Access: "new"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := f.Get(ctx, "device-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Access != "new" {
		t.Errorf("Get = %+v, want access new", got)
	}
}

func TestSQLiteDelete(t *testing.T) {
	f := openTestSQLite(t, nil)
	ctx := context.Background()

	if err := f.Put(ctx, "device-1", Record{Access: "acc"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := f.Delete(ctx, "device-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	rec, err := f.Get(ctx, "device-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Error("record survived Delete")
	}
}

func TestSQLiteTTL(t *testing.T) {
	f := openTestSQLite(t, nil)
	ctx := context.Background()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	if err := f.Put(ctx, "device-1", Record{Access: "acc"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	now = now.Add(CookieMaxAge + time.Hour)
	rec, err := f.Get(ctx, "device-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Error("expired record still returned")
	}
}

func TestSQLiteSealed(t *testing.T) {
	sealer, err := NewSealer("secret")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	f := openTestSQLite(t, sealer)
	ctx := context.Background()

	if err := f.Put(ctx, "device-1", Record{Access: "acc"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// The row on disk must not contain the plaintext token.
	var raw string
	if err := f.db.QueryRowContext(ctx,
		`SELECT record FROM tokens WHERE device_id = ?`, "device-1",
	).Scan(&raw); err != nil {
		t.Fatalf("reading raw row: %v", err)
	}
	if raw == "" || raw == `{"access":"acc"}` {
		t.Errorf("raw row %q looks unsealed", raw)
	}

	got, err := f.Get(ctx, "device-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Access != "acc" {
		t.Errorf("Get = %+v, want access acc", got)
	}
}

func TestSQLiteSealMismatchDropsRow(t *testing.T) {
	sealerA, err := NewSealer("secret-a")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	f := openTestSQLite(t, sealerA)
	ctx := context.Background()

	if err := f.Put(ctx, "device-1", Record{Access: "acc"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Simulate a seal secret rotation: the old row is unreadable and must be
	// treated as absent, not returned as an error on every request.
	sealerB, err := NewSealer("secret-b")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	f.sealer = sealerB

	rec, err := f.Get(ctx, "device-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Errorf("Get = %+v, want nil after secret rotation", rec)
	}

	var count int
	if err := f.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 0 {
		t.Errorf("unreadable row not dropped, %d rows remain", count)
	}
}
