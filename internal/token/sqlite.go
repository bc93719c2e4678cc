package token

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	device_id  TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteFallback is a durable Fallback backed by an embedded SQLite file.
// Records are sealed before they reach disk when a Sealer is provided.
type SQLiteFallback struct {
	db     *sql.DB
	sealer *Sealer
	ttl    time.Duration
	now    func() time.Time // injectable clock for testing
}

// OpenSQLite opens (creating if needed) the fallback store at path.
func OpenSQLite(path string, sealer *Sealer) (*SQLiteFallback, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening token store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing token store schema: %w", err)
	}

	return &SQLiteFallback{db: db, sealer: sealer, ttl: CookieMaxAge, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (f *SQLiteFallback) Close() error {
	return f.db.Close()
}

func (f *SQLiteFallback) Get(ctx context.Context, deviceID string) (*Record, error) {
	var sealed string
	var updatedAt int64
	err := f.db.QueryRowContext(ctx,
		`SELECT record, updated_at FROM tokens WHERE device_id = ?`, deviceID,
	).Scan(&sealed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token record: %w", err)
	}

	if f.now().Sub(time.Unix(updatedAt, 0)) > f.ttl {
		_ = f.Delete(ctx, deviceID)
		return nil, nil
	}

	raw, err := f.sealer.Open(sealed)
	if err != nil {
		// Wrong seal secret or corrupt row. Treat as absent rather than
		// failing every request for this device.
		_ = f.Delete(ctx, deviceID)
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		_ = f.Delete(ctx, deviceID)
		return nil, nil
	}
	return &rec, nil
}

func (f *SQLiteFallback) Put(ctx context.Context, deviceID string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling token record: %w", err)
	}

	sealed, err := f.sealer.Seal(string(raw))
	if err != nil {
		return fmt.Errorf("sealing token record: %w", err)
	}

	now := f.now().Unix()
	_, err = f.db.ExecContext(ctx,
		`INSERT INTO tokens (device_id, record, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		deviceID, sealed, now,
	)
	if err != nil {
		return fmt.Errorf("writing token record: %w", err)
	}

	// Opportunistic reap of rows older than the cookie lifetime.
	_, _ = f.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE updated_at < ?`, now-int64(f.ttl.Seconds()),
	)
	return nil
}

func (f *SQLiteFallback) Delete(ctx context.Context, deviceID string) error {
	_, err := f.db.ExecContext(ctx, `DELETE FROM tokens WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("deleting token record: %w", err)
	}
	return nil
}
