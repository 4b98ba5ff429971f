package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the on-disk and wire format of a purchase date.
const DateLayout = "2006-01-02"

// Purchase is one recorded grocery purchase. Records are immutable once
// stored; they can only be deleted.
type Purchase struct {
	ID           int64            `json:"id"`
	ItemName     string           `json:"item_name"`
	Price        decimal.Decimal  `json:"price"`
	Quantity     *decimal.Decimal `json:"quantity"`
	Unit         string           `json:"unit,omitempty"`
	Store        string           `json:"store,omitempty"`
	PurchaseDate time.Time        `json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Date returns the purchase date formatted as YYYY-MM-DD.
func (p Purchase) Date() string {
	return p.PurchaseDate.Format(DateLayout)
}

// MarshalJSON writes purchase_date as a plain calendar date.
func (p Purchase) MarshalJSON() ([]byte, error) {
	type alias Purchase
	return json.Marshal(struct {
		alias
		PurchaseDate string `json:"purchase_date"`
	}{alias(p), p.Date()})
}

// NewPurchase holds the caller-supplied fields for a purchase that has not
// been stored yet. A nil Quantity or PurchaseDate means "not supplied".
type NewPurchase struct {
	ItemName     string
	Price        decimal.Decimal
	Quantity     *decimal.Decimal
	Unit         string
	Store        string
	PurchaseDate *time.Time
}

// ItemSummary holds aggregate price statistics for one exact item name.
type ItemSummary struct {
	ItemName        string           `json:"item_name"`
	PurchaseCount   int              `json:"purchase_count"`
	MinPrice        decimal.Decimal  `json:"min_price"`
	MaxPrice        decimal.Decimal  `json:"max_price"`
	AvgPrice        decimal.Decimal  `json:"avg_price"`
	AvgPricePerUnit *decimal.Decimal `json:"avg_price_per_unit"`
	LastPurchase    time.Time        `json:"-"`
}

// MarshalJSON writes last_purchase as a plain calendar date.
func (s ItemSummary) MarshalJSON() ([]byte, error) {
	type alias ItemSummary
	return json.Marshal(struct {
		alias
		LastPurchase string `json:"last_purchase"`
	}{alias(s), s.LastPurchase.Format(DateLayout)})
}

// Today returns the current local calendar date at midnight.
func Today() time.Time {
	return DateOf(time.Now())
}

// DateOf strips the time-of-day from t, keeping its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// ParseDate parses a YYYY-MM-DD date in local time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// RoundPrice rounds a price to whole cents.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatMoney renders an amount as dollars with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
