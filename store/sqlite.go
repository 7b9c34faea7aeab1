package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
)

// SQLite keeps closes and snapshots in a local SQLite file, for single user
// setups where transactions come from files.
type SQLite struct {
	sql *sql.DB
}

// OpenSQLite opens (creating when needed) the database at path and migrates
// it. ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	s := &SQLite{sql: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CloseDB releases the database.
func (s *SQLite) CloseDB() error { return s.sql.Close() }

func (s *SQLite) migrate() error {
	_, err := s.sql.Exec(`
		CREATE TABLE IF NOT EXISTS closes (
			day      TEXT    NOT NULL,
			symbol   TEXT    NOT NULL,
			status   TEXT    NOT NULL,
			price    TEXT,
			revision INTEGER NOT NULL,
			PRIMARY KEY (day, symbol)
		);
		CREATE TABLE IF NOT EXISTS snapshots (
			account     TEXT NOT NULL,
			day         TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			body        BLOB NOT NULL,
			PRIMARY KEY (account, day)
		);`)
	if err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

func (s *SQLite) SetClose(ctx context.Context, day date.Date, symbol string, price *pnl.Money) error {
	var p sql.NullString
	if price != nil {
		p = sql.NullString{String: price.Decimal().String(), Valid: true}
	}
	_, err := s.sql.ExecContext(ctx, `
		INSERT INTO closes (day, symbol, status, price, revision) VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (day, symbol) DO UPDATE
		SET status = excluded.status, price = excluded.price, revision = closes.revision + 1
		WHERE closes.status <> excluded.status OR closes.price IS NOT excluded.price`,
		day.String(), symbol, string(closeStatus(price)), p)
	if err != nil {
		return fmt.Errorf("set close of %s on %s: %w", symbol, day, err)
	}
	return nil
}

func (s *SQLite) Close(ctx context.Context, day date.Date, symbol string) (pnl.Close, error) {
	var (
		status string
		price  sql.NullString
		cl     pnl.Close
	)
	err := s.sql.QueryRowContext(ctx,
		`SELECT status, price, revision FROM closes WHERE day = ? AND symbol = ?`,
		day.String(), symbol).Scan(&status, &price, &cl.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return pnl.Close{Status: pnl.CloseMissing}, nil
	}
	if err != nil {
		return pnl.Close{}, fmt.Errorf("get close of %s on %s: %w", symbol, day, err)
	}
	cl.Status = pnl.CloseStatus(status)
	if price.Valid {
		d, err := decimal.NewFromString(price.String)
		if err != nil {
			return pnl.Close{}, fmt.Errorf("close of %s on %s: %w", symbol, day, err)
		}
		cl.Price = pnl.P(d)
	}
	return cl, nil
}

func (s *SQLite) Get(ctx context.Context, account string, day date.Date) (*pnl.Snapshot, error) {
	var body []byte
	err := s.sql.QueryRowContext(ctx,
		`SELECT body FROM snapshots WHERE account = ? AND day = ?`, account, day.String()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s of %s: %w", day, account, err)
	}
	return decodeSnapshot(body)
}

func (s *SQLite) Put(ctx context.Context, account string, snap *pnl.Snapshot) error {
	body, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.sql.ExecContext(ctx, `
		INSERT INTO snapshots (account, day, fingerprint, body) VALUES (?, ?, ?, ?)
		ON CONFLICT (account, day) DO UPDATE SET fingerprint = excluded.fingerprint, body = excluded.body`,
		account, snap.Date.String(), snap.Fingerprint, body)
	if err != nil {
		return fmt.Errorf("put snapshot %s of %s: %w", snap.Date, account, err)
	}
	return nil
}

func (s *SQLite) Dates(ctx context.Context, account string) ([]date.Date, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT day FROM snapshots WHERE account = ? ORDER BY day`, account)
	if err != nil {
		return nil, fmt.Errorf("list snapshots of %s: %w", account, err)
	}
	defer rows.Close()
	var dates []date.Date
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		d, err := date.Parse(day)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

var (
	_ pnl.CloseRepository = (*SQLite)(nil)
	_ pnl.SnapshotStore   = (*SQLite)(nil)
	_ CloseWriter         = (*SQLite)(nil)
)
