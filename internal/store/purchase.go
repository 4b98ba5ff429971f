package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/grocerytracker/internal/model"
)

type PurchaseStore struct {
	db     *sql.DB
	logger *slog.Logger
	today  func() time.Time
}

func NewPurchaseStore(db *sql.DB, logger *slog.Logger) *PurchaseStore {
	return &PurchaseStore{db: db, logger: logger, today: model.Today}
}

func scanPurchase(scanner interface{ Scan(...any) error }) (*model.Purchase, error) {
	var p model.Purchase
	var cents int64
	var quantity, unit, store sql.NullString
	var date string

	err := scanner.Scan(&p.ID, &p.ItemName, &cents, &quantity, &unit, &store, &date, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.Price = decimal.New(cents, -2)
	if quantity.Valid {
		q, err := decimal.NewFromString(quantity.String)
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %w", quantity.String, err)
		}
		p.Quantity = &q
	}
	p.Unit = unit.String
	p.Store = store.String
	p.PurchaseDate, err = model.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const purchaseCols = `id, item_name, price_cents, quantity, unit, store, purchase_date, created_at`

// Newest purchase date first; equal dates fall back to newest insertion.
const purchaseOrder = ` ORDER BY purchase_date DESC, id DESC`

// ParsePrice parses a decimal price string, rejecting non-numeric and
// negative input with a *ValidationError.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "price", Reason: fmt.Sprintf("%q is not a number", s)}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return d, nil
}

// ParseQuantity parses an optional quantity. Blank input yields nil.
func ParseQuantity(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &ValidationError{Field: "quantity", Reason: fmt.Sprintf("%q is not a number", s)}
	}
	if d.IsNegative() {
		return nil, &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	return &d, nil
}

func (s *PurchaseStore) validate(np model.NewPurchase) (model.NewPurchase, error) {
	np.ItemName = strings.TrimSpace(np.ItemName)
	if np.ItemName == "" {
		return np, &ValidationError{Field: "item_name", Reason: "is required"}
	}
	if np.Price.IsNegative() {
		return np, &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if np.Quantity != nil && np.Quantity.IsNegative() {
		return np, &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	np.Price = model.RoundPrice(np.Price)
	if !np.Price.Shift(2).BigInt().IsInt64() {
		return np, &ValidationError{Field: "price", Reason: "is too large"}
	}
	np.Unit = strings.TrimSpace(np.Unit)
	np.Store = strings.TrimSpace(np.Store)
	if np.PurchaseDate == nil {
		today := s.today()
		np.PurchaseDate = &today
	}
	return np, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Add validates and stores a new purchase, returning its id. Ids increase
// strictly across the lifetime of the database and are never reused.
func (s *PurchaseStore) Add(ctx context.Context, np model.NewPurchase) (int64, error) {
	np, err := s.validate(np)
	if err != nil {
		return 0, err
	}

	var quantity sql.NullString
	if np.Quantity != nil {
		quantity = sql.NullString{String: np.Quantity.String(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO purchases (item_name, price_cents, quantity, unit, store, purchase_date) VALUES (?, ?, ?, ?, ?, ?)`,
		np.ItemName, np.Price.Shift(2).IntPart(), quantity, nullString(np.Unit), nullString(np.Store),
		np.PurchaseDate.Format(model.DateLayout),
	)
	if err != nil {
		return 0, &StorageError{Op: "insert purchase", Err: err}
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "last insert id", Err: err}
	}

	s.logger.Info("purchase added",
		"id", id,
		"item", np.ItemName,
		"price", np.Price.StringFixed(2),
		"date", np.PurchaseDate.Format(model.DateLayout),
	)
	return id, nil
}

// GetByID returns the purchase with the given id, or nil if there is none.
func (s *PurchaseStore) GetByID(ctx context.Context, id int64) (*model.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+purchaseCols+` FROM purchases WHERE id = ?`, id)
	p, err := scanPurchase(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get purchase", Err: err}
	}
	return p, nil
}

// GetAll returns every purchase, newest purchase date first.
func (s *PurchaseStore) GetAll(ctx context.Context) ([]model.Purchase, error) {
	return s.query(ctx, "list purchases", `SELECT `+purchaseCols+` FROM purchases`+purchaseOrder)
}

// GetByName returns the purchases whose item name equals name ignoring
// case, in the same order as GetAll. An unknown name yields no rows.
// Matching happens in Go since SQLite's LOWER only folds ASCII.
func (s *PurchaseStore) GetByName(ctx context.Context, name string) ([]model.Purchase, error) {
	all, err := s.query(ctx, "list purchases by name", `SELECT `+purchaseCols+` FROM purchases`+purchaseOrder)
	if err != nil {
		return nil, err
	}
	var matches []model.Purchase
	for _, p := range all {
		if strings.EqualFold(p.ItemName, name) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (s *PurchaseStore) query(ctx context.Context, op, q string, args ...any) ([]model.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan purchase", Err: err}
		}
		purchases = append(purchases, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	return purchases, nil
}

// Delete removes the purchase with the given id and reports whether it
// existed. Deleting an id that does not exist is not an error.
func (s *PurchaseStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id)
	if err != nil {
		return false, &StorageError{Op: "delete purchase", Err: err}
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "rows affected", Err: err}
	}
	if n == 0 {
		s.logger.Debug("delete of unknown purchase ignored", "id", id)
		return false, nil
	}
	s.logger.Info("purchase deleted", "id", id)
	return true, nil
}
