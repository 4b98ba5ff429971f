// Package tracker owns the database handle and the components built on it.
package tracker

import (
	"database/sql"
	"log/slog"

	"github.com/dukerupert/grocerytracker/internal/database"
	"github.com/dukerupert/grocerytracker/internal/store"
	"github.com/dukerupert/grocerytracker/internal/summary"
)

// Tracker is the process-wide handle on one purchase database. Open it once
// at startup and Close it on shutdown; no operation is valid after Close.
type Tracker struct {
	db        *sql.DB
	path      string
	Purchases *store.PurchaseStore
	Summary   *summary.Service
}

// Open opens (creating if needed) the database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Tracker, error) {
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, &store.StorageError{Op: "open", Err: err}
	}

	purchases := store.NewPurchaseStore(db, logger.With("component", "store"))
	return &Tracker{
		db:        db,
		path:      dbPath,
		Purchases: purchases,
		Summary:   summary.NewService(purchases),
	}, nil
}

// DB returns the underlying handle for maintenance tasks such as backups.
func (t *Tracker) DB() *sql.DB {
	return t.db
}

// Path returns the database file path the tracker was opened with.
func (t *Tracker) Path() string {
	return t.path
}

// Close releases the database handle.
func (t *Tracker) Close() error {
	if err := t.db.Close(); err != nil {
		return &store.StorageError{Op: "close", Err: err}
	}
	return nil
}
