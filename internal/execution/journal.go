// Package execution persists order outcomes for analysis and audit.
package execution

import (
	"database/sql"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dailytrader/internal/model"
)

// Journal persists placed orders to SQLite.
type Journal struct {
	mu  sync.Mutex
	db  *sql.DB
	log *slog.Logger
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		side        TEXT NOT NULL,
		order_type  TEXT NOT NULL,
		qty         REAL NOT NULL,
		price       REAL,
		status      TEXT NOT NULL,
		reason      TEXT,
		placed_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("opened order journal", "path", dbPath)
	return &Journal{db: db, log: log}, nil
}

// Record persists one order outcome to the journal.
func (j *Journal) Record(order model.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var price any
	if order.Price != nil {
		price = *order.Price
	}
	_, err := j.db.Exec(
		`INSERT INTO orders (order_id, symbol, side, order_type, qty, price, status, reason, placed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderID,
		order.Symbol,
		string(order.Side),
		string(order.OrderType),
		order.Quantity,
		price,
		string(order.Status),
		order.Reason,
		order.Timestamp.Format(time.RFC3339),
	)
	return err
}

// OrderRecord represents a row from the orders table.
type OrderRecord struct {
	ID        int64   `json:"id"`
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	OrderType string  `json:"order_type"`
	Qty       float64 `json:"qty"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason"`
	PlacedAt  string  `json:"placed_at"`
}

// Recent returns the last N journaled orders, newest first.
func (j *Journal) Recent(limit int) ([]OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, symbol, side, order_type, qty, COALESCE(price, 0), status, COALESCE(reason, ''), placed_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Symbol, &r.Side, &r.OrderType,
			&r.Qty, &r.Price, &r.Status, &r.Reason, &r.PlacedAt); err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// BySymbol returns journaled orders for one symbol, newest first.
func (j *Journal) BySymbol(symbol string, limit int) ([]OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, symbol, side, order_type, qty, COALESCE(price, 0), status, COALESCE(reason, ''), placed_at
		 FROM orders WHERE symbol = ? ORDER BY id DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Symbol, &r.Side, &r.OrderType,
			&r.Qty, &r.Price, &r.Status, &r.Reason, &r.PlacedAt); err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DB exposes the underlying database handle for liveness checks.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
