package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/date"
)

// Postgres implements every repository on PostgreSQL. Quantities and prices
// are stored as NUMERIC for exact decimal precision.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgreSQL-backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const postgresSchema = `
CREATE SEQUENCE IF NOT EXISTS transaction_revision;

CREATE TABLE IF NOT EXISTS transactions (
	account     TEXT    NOT NULL,
	id          TEXT    NOT NULL,
	symbol      TEXT    NOT NULL,
	asset_class TEXT    NOT NULL,
	quantity    NUMERIC NOT NULL,
	price       NUMERIC NOT NULL,
	multiplier  NUMERIC NOT NULL,
	ts_millis   BIGINT  NOT NULL,
	PRIMARY KEY (account, id)
);
CREATE INDEX IF NOT EXISTS transactions_by_time ON transactions (account, ts_millis, id);

CREATE TABLE IF NOT EXISTS transaction_writes (
	account   TEXT   NOT NULL,
	revision  BIGINT NOT NULL,
	ts_millis BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS transaction_writes_by_time ON transaction_writes (account, ts_millis);

CREATE TABLE IF NOT EXISTS closes (
	day      TEXT    NOT NULL,
	symbol   TEXT    NOT NULL,
	status   TEXT    NOT NULL,
	price    NUMERIC,
	revision BIGINT  NOT NULL,
	PRIMARY KEY (day, symbol)
);

CREATE TABLE IF NOT EXISTS snapshots (
	account     TEXT NOT NULL,
	day         TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	body        JSONB NOT NULL,
	PRIMARY KEY (account, day)
);
`

// Migrate creates the schema when it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// logWrite records a write touching transactions executed at ts.
func logWrite(ctx context.Context, tx pgx.Tx, account string, ts ...int64) error {
	var rev int64
	if err := tx.QueryRow(ctx, `SELECT nextval('transaction_revision')`).Scan(&rev); err != nil {
		return err
	}
	for _, t := range ts {
		if _, err := tx.Exec(ctx,
			`INSERT INTO transaction_writes (account, revision, ts_millis) VALUES ($1, $2, $3)`,
			account, rev, t); err != nil {
			return err
		}
	}
	return nil
}

// Append adds new transactions to account in a single database transaction.
func (s *Postgres) Append(ctx context.Context, account string, txs ...pnl.Transaction) error {
	return pgx.BeginFunc(ctx, s.pool, func(dbtx pgx.Tx) error {
		for _, t := range txs {
			tag, err := dbtx.Exec(ctx,
				`INSERT INTO transactions (account, id, symbol, asset_class, quantity, price, multiplier, ts_millis)
				 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)
				 ON CONFLICT (account, id) DO NOTHING`,
				account, t.ID, t.Symbol, t.AssetClass.String(),
				t.Quantity.String(), t.Price.Decimal().String(), t.Multiplier.String(), t.Timestamp)
			if err != nil {
				return fmt.Errorf("insert transaction %s: %w", t.ID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: %s", pnl.ErrDuplicate, t.ID)
			}
			if err := logWrite(ctx, dbtx, account, t.Timestamp); err != nil {
				return fmt.Errorf("log write of %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// Update replaces the transaction of the same id.
func (s *Postgres) Update(ctx context.Context, account string, t pnl.Transaction) error {
	return pgx.BeginFunc(ctx, s.pool, func(dbtx pgx.Tx) error {
		var old int64
		err := dbtx.QueryRow(ctx,
			`SELECT ts_millis FROM transactions WHERE account = $1 AND id = $2 FOR UPDATE`,
			account, t.ID).Scan(&old)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("transaction %s: %w", t.ID, pnl.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if _, err := dbtx.Exec(ctx,
			`UPDATE transactions
			 SET symbol = $3, asset_class = $4, quantity = $5::NUMERIC, price = $6::NUMERIC,
			     multiplier = $7::NUMERIC, ts_millis = $8
			 WHERE account = $1 AND id = $2`,
			account, t.ID, t.Symbol, t.AssetClass.String(),
			t.Quantity.String(), t.Price.Decimal().String(), t.Multiplier.String(), t.Timestamp); err != nil {
			return fmt.Errorf("update transaction %s: %w", t.ID, err)
		}
		return logWrite(ctx, dbtx, account, old, t.Timestamp)
	})
}

// Delete removes a transaction.
func (s *Postgres) Delete(ctx context.Context, account, id string) error {
	return pgx.BeginFunc(ctx, s.pool, func(dbtx pgx.Tx) error {
		var old int64
		err := dbtx.QueryRow(ctx,
			`DELETE FROM transactions WHERE account = $1 AND id = $2 RETURNING ts_millis`,
			account, id).Scan(&old)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("transaction %s: %w", id, pnl.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return logWrite(ctx, dbtx, account, old)
	})
}

func (s *Postgres) Transactions(ctx context.Context, account string, after, through time.Time) ([]pnl.Transaction, error) {
	from := int64(-1 << 62)
	if !after.IsZero() {
		from = after.UnixMilli()
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, asset_class, quantity::TEXT, price::TEXT, multiplier::TEXT, ts_millis
		 FROM transactions
		 WHERE account = $1 AND ts_millis > $2 AND ts_millis <= $3
		 ORDER BY ts_millis, id`,
		account, from, through.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list transactions of %s: %w", account, err)
	}
	defer rows.Close()

	var txs []pnl.Transaction
	for rows.Next() {
		var (
			t                      pnl.Transaction
			class, qty, price, mul string
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &class, &qty, &price, &mul, &t.Timestamp); err != nil {
			return nil, err
		}
		if t.AssetClass, err = pnl.ParseAssetClass(class); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		q, _ := decimal.NewFromString(qty)
		p, _ := decimal.NewFromString(price)
		m, _ := decimal.NewFromString(mul)
		t.Quantity, t.Price, t.Multiplier = pnl.Q(q), pnl.P(p), pnl.Q(m)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *Postgres) Revision(ctx context.Context, account string, through time.Time) (int64, error) {
	var rev int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(revision), 0) FROM transaction_writes WHERE account = $1 AND ts_millis <= $2`,
		account, through.UnixMilli()).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("revision of %s: %w", account, err)
	}
	return rev, nil
}

func (s *Postgres) SetClose(ctx context.Context, day date.Date, symbol string, price *pnl.Money) error {
	var p *string
	if price != nil {
		v := price.Decimal().String()
		p = &v
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO closes (day, symbol, status, price, revision)
		 VALUES ($1, $2, $3, $4::NUMERIC, 1)
		 ON CONFLICT (day, symbol) DO UPDATE
		 SET status = EXCLUDED.status, price = EXCLUDED.price, revision = closes.revision + 1
		 WHERE closes.status <> EXCLUDED.status OR closes.price IS DISTINCT FROM EXCLUDED.price`,
		day.String(), symbol, string(closeStatus(price)), p)
	if err != nil {
		return fmt.Errorf("set close of %s on %s: %w", symbol, day, err)
	}
	return nil
}

func (s *Postgres) Close(ctx context.Context, day date.Date, symbol string) (pnl.Close, error) {
	var (
		status string
		price  *string
		cl     pnl.Close
	)
	err := s.pool.QueryRow(ctx,
		`SELECT status, price::TEXT, revision FROM closes WHERE day = $1 AND symbol = $2`,
		day.String(), symbol).Scan(&status, &price, &cl.Revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return pnl.Close{Status: pnl.CloseMissing}, nil
	}
	if err != nil {
		return pnl.Close{}, fmt.Errorf("get close of %s on %s: %w", symbol, day, err)
	}
	cl.Status = pnl.CloseStatus(status)
	if price != nil {
		d, _ := decimal.NewFromString(*price)
		cl.Price = pnl.P(d)
	}
	return cl, nil
}

func (s *Postgres) Get(ctx context.Context, account string, day date.Date) (*pnl.Snapshot, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM snapshots WHERE account = $1 AND day = $2`,
		account, day.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s of %s: %w", day, account, err)
	}
	return decodeSnapshot(body)
}

func (s *Postgres) Put(ctx context.Context, account string, snap *pnl.Snapshot) error {
	body, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (account, day, fingerprint, body) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (account, day) DO UPDATE SET fingerprint = EXCLUDED.fingerprint, body = EXCLUDED.body`,
		account, snap.Date.String(), snap.Fingerprint, body)
	if err != nil {
		return fmt.Errorf("put snapshot %s of %s: %w", snap.Date, account, err)
	}
	return nil
}

func (s *Postgres) Dates(ctx context.Context, account string) ([]date.Date, error) {
	rows, err := s.pool.Query(ctx, `SELECT day FROM snapshots WHERE account = $1 ORDER BY day`, account)
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
	_ pnl.TransactionSource = (*Postgres)(nil)
	_ pnl.CloseRepository   = (*Postgres)(nil)
	_ pnl.SnapshotStore     = (*Postgres)(nil)
	_ TransactionWriter     = (*Postgres)(nil)
	_ CloseWriter           = (*Postgres)(nil)
)
