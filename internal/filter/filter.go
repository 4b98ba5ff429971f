// Package filter narrows a list of purchases by item, store, and date.
// Filtering never touches the store; it only selects from what it is given.
package filter

import (
	"strings"
	"time"

	"github.com/dukerupert/grocerytracker/internal/model"
)

// Filter selects purchases. Empty Items or Stores match everything; From
// and To are inclusive calendar-date bounds.
type Filter struct {
	Items  []string
	Stores []string
	From   *time.Time
	To     *time.Time
}

// Parse builds a Filter from raw strings. Blank values are ignored.
func Parse(items, stores []string, from, to string) (Filter, error) {
	f := Filter{
		Items:  compact(items),
		Stores: compact(stores),
	}
	if strings.TrimSpace(from) != "" {
		d, err := model.ParseDate(from)
		if err != nil {
			return Filter{}, err
		}
		f.From = &d
	}
	if strings.TrimSpace(to) != "" {
		d, err := model.ParseDate(to)
		if err != nil {
			return Filter{}, err
		}
		f.To = &d
	}
	return f, nil
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// IsZero reports whether the filter matches every purchase.
func (f Filter) IsZero() bool {
	return len(f.Items) == 0 && len(f.Stores) == 0 && f.From == nil && f.To == nil
}

// Match reports whether p passes every condition of the filter.
func (f Filter) Match(p model.Purchase) bool {
	if len(f.Items) > 0 && !contains(f.Items, p.ItemName) {
		return false
	}
	if len(f.Stores) > 0 && (p.Store == "" || !contains(f.Stores, p.Store)) {
		return false
	}
	day := model.DateOf(p.PurchaseDate)
	if f.From != nil && day.Before(model.DateOf(*f.From)) {
		return false
	}
	if f.To != nil && day.After(model.DateOf(*f.To)) {
		return false
	}
	return true
}

// Apply returns the matching purchases in their original order.
func (f Filter) Apply(purchases []model.Purchase) []model.Purchase {
	out := make([]model.Purchase, 0, len(purchases))
	for _, p := range purchases {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// Options lists the distinct item names and stores present in purchases,
// in order of first appearance. Purchases without a store add no option.
func Options(purchases []model.Purchase) (items, stores []string) {
	seenItems := make(map[string]bool)
	seenStores := make(map[string]bool)
	for _, p := range purchases {
		if !seenItems[p.ItemName] {
			seenItems[p.ItemName] = true
			items = append(items, p.ItemName)
		}
		if p.Store != "" && !seenStores[p.Store] {
			seenStores[p.Store] = true
			stores = append(stores, p.Store)
		}
	}
	return items, stores
}

// DateRange returns the earliest and latest purchase dates. ok is false
// when purchases is empty.
func DateRange(purchases []model.Purchase) (first, last time.Time, ok bool) {
	for i, p := range purchases {
		if i == 0 || p.PurchaseDate.Before(first) {
			first = p.PurchaseDate
		}
		if i == 0 || p.PurchaseDate.After(last) {
			last = p.PurchaseDate
		}
	}
	return first, last, len(purchases) > 0
}
