// Package cmd implements the pnlc command line: PnL calendar, holdings and
// realized trail of an account.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/pnl"
	"github.com/etnz/pnl/store"
	"github.com/google/subcommands"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Commands lists the subcommands of pnlc.
var Commands = []subcommands.Command{
	&calendarCmd{},
	&holdingsCmd{},
	&realizedCmd{},
	&closesCmd{},
	&topicCmd{},
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	configFile       = flag.String("config", "pnl.toml", "Path to the TOML configuration file")
	transactionsFile = flag.String("transactions", "", "JSONL file of raw transactions to load into the account")
	closesFile       = flag.String("closes", "", "JSONL file of official closes to load")
	account          = flag.String("account", "default", "Account to report on")
)

// app is everything a subcommand needs, built from the global flags.
type app struct {
	config *pnl.Config
	logger *pnl.Logger
	engine *pnl.Engine
	close  func()
}

// newApp loads the configuration, opens the storage, loads the input files
// and builds the engine.
func newApp(ctx context.Context) (*app, error) {
	config, err := pnl.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	logger := pnl.NewLogger(config.Logging.Level)

	var (
		txs     pnl.TransactionSource
		closes  pnl.CloseRepository
		snaps   pnl.SnapshotStore
		txw     store.TransactionWriter
		closew  store.CloseWriter
		cleanup = func() {}
	)
	mem := store.NewMemory()
	switch config.Storage.Driver {
	case "", "memory":
		txs, closes, snaps, txw, closew = mem, mem, mem, mem, mem
	case "sqlite":
		db, err := store.OpenSQLite(config.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		cleanup = func() { db.CloseDB() }
		txs, closes, snaps, txw, closew = mem, db, db, mem, db
	case "postgres":
		pool, err := pgxpool.New(ctx, config.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		cleanup = pool.Close
		db := store.NewPostgres(pool)
		if err := db.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		txs, closes, snaps, txw, closew = db, db, db, db, db
	default:
		return nil, fmt.Errorf("unknown storage driver %q", config.Storage.Driver)
	}

	if config.Storage.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: config.Storage.RedisAddr})
		snaps = store.NewCachedSnapshots(snaps, rdb, config.Storage.GetRedisTTL())
		previous := cleanup
		cleanup = func() { rdb.Close(); previous() }
	}

	if err := loadTransactions(ctx, config, logger, txw); err != nil {
		cleanup()
		return nil, err
	}
	if err := loadCloses(ctx, logger, closew); err != nil {
		cleanup()
		return nil, err
	}

	opts, err := config.EngineOptions(logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &app{
		config: config,
		logger: logger,
		engine: pnl.NewEngine(txs, closes, snaps, opts...),
		close:  cleanup,
	}, nil
}

func loadTransactions(ctx context.Context, config *pnl.Config, logger *pnl.Logger, w store.TransactionWriter) error {
	if *transactionsFile == "" {
		return nil
	}
	f, err := os.Open(*transactionsFile)
	if err != nil {
		return fmt.Errorf("open transactions: %w", err)
	}
	defer f.Close()

	normalizer := pnl.NewNormalizer(config.Currency, config.Ingest.Aliases)
	txs, warnings, err := pnl.DecodeTransactions(f, normalizer)
	if err != nil {
		return err
	}
	for _, warn := range warnings {
		logger.Warn().Str("file", *transactionsFile).Err(warn).Msg("record skipped")
	}
	loaded := 0
	for _, tx := range txs {
		err := w.Append(ctx, *account, tx)
		if errors.Is(err, pnl.ErrDuplicate) {
			logger.Debug().Str("tx", tx.ID).Msg("transaction already stored")
			continue
		}
		if err != nil {
			return err
		}
		loaded++
	}
	logger.Info().Str("file", *transactionsFile).Int("loaded", loaded).Int("skipped", len(warnings)).Msg("transactions loaded")
	return nil
}

func loadCloses(ctx context.Context, logger *pnl.Logger, w store.CloseWriter) error {
	if *closesFile == "" {
		return nil
	}
	f, err := os.Open(*closesFile)
	if err != nil {
		return fmt.Errorf("open closes: %w", err)
	}
	defer f.Close()

	days, err := pnl.DecodeCloses(f)
	if err != nil {
		return err
	}
	n, err := store.ImportCloses(ctx, w, days)
	if err != nil {
		return err
	}
	logger.Info().Str("file", *closesFile).Int("records", n).Msg("closes loaded")
	return nil
}

// start builds the app or reports the error, for subcommands.
func start(ctx context.Context) (*app, subcommands.ExitStatus) {
	a, err := newApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, subcommands.ExitFailure
	}
	return a, subcommands.ExitSuccess
}
