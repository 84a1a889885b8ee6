package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists cycle and trade history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id               TEXT PRIMARY KEY,
			timestamp        INTEGER NOT NULL,
			pnl              REAL,
			pnl_fast         REAL,
			pnl_medium       REAL,
			pnl_slow         REAL,
			capital          REAL,
			irq              REAL,
			raw_irq          REAL,
			protection_level TEXT,
			alloc_fast       REAL,
			alloc_medium     REAL,
			alloc_slow       REAL,
			size_multiplier  REAL,
			cash_pct         REAL,
			active_positions INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(timestamp)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id  TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			asset     TEXT,
			action    TEXT,
			amount    REAL,
			price     REAL,
			note      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_cycle ON trades(cycle_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(snap *CycleSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := snap.Record
	_, err := r.db.Exec(`INSERT INTO cycles
		(id, timestamp, pnl, pnl_fast, pnl_medium, pnl_slow, capital,
		 irq, raw_irq, protection_level,
		 alloc_fast, alloc_medium, alloc_slow,
		 size_multiplier, cash_pct, active_positions)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Timestamp.Unix(), rec.PnL, rec.PnLFast, rec.PnLMedium, rec.PnLSlow,
		rec.Capital, rec.IRQ, snap.Risk.RawIRQScore, string(snap.Protection.Level),
		snap.Allocation.Fast, snap.Allocation.Medium, snap.Allocation.Slow,
		snap.Multiplier, snap.Metrics.CashPct, snap.Metrics.ActivePositions,
	)
	return err
}

func (r *SQLiteRecorder) RecordTrade(trade *TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO trades
		(cycle_id, timestamp, asset, action, amount, price, note)
		VALUES (?,?,?,?,?,?,?)`,
		trade.CycleID, time.Now().Unix(), trade.Asset, trade.Action,
		trade.Amount, trade.Price, trade.Note,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
