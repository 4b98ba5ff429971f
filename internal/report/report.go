// Package report builds a printable price report over a selection of
// purchases: totals, per-item breakdown, category spend and insights.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/grocerytracker/internal/filter"
	"github.com/dukerupert/grocerytracker/internal/grocery"
	"github.com/dukerupert/grocerytracker/internal/model"
	"github.com/dukerupert/grocerytracker/internal/summary"
)

// changeThreshold is the absolute percentage a price must move before the
// report mentions it.
var changeThreshold = decimal.NewFromInt(5)

// Options selects what goes into a report. Empty Items means every item;
// nil From/To default to the earliest/latest purchase date.
type Options struct {
	Items []string
	From  *time.Time
	To    *time.Time
	Now   time.Time
}

type Report struct {
	From            time.Time
	To              time.Time
	Generated       time.Time
	Purchases       int
	TotalSpent      decimal.Decimal
	AveragePurchase decimal.Decimal
	Items           []ItemBreakdown
	Categories      []grocery.CategorySpend
	Insights        []Insight
}

// ItemBreakdown holds the statistics of one item inside the report period.
type ItemBreakdown struct {
	ItemName  string
	Count     int
	Min       decimal.Decimal
	Max       decimal.Decimal
	Avg       decimal.Decimal
	Total     decimal.Decimal
	Purchases []model.Purchase
}

type InsightKind string

const (
	PriceChange InsightKind = "price_change"
	BestStore   InsightKind = "best_store"
)

// Insight is one observation about an item. Percent is set for
// PriceChange; Store and Price for BestStore.
type Insight struct {
	Kind     InsightKind
	ItemName string
	Percent  decimal.Decimal
	Store    string
	Price    decimal.Decimal
}

// Build assembles a report from purchases, which are expected newest first
// as the store returns them.
func Build(purchases []model.Purchase, opts Options) *Report {
	items := opts.Items
	if len(items) == 0 {
		items, _ = filter.Options(purchases)
	}

	r := &Report{Generated: opts.Now}
	if first, last, ok := filter.DateRange(purchases); ok {
		r.From, r.To = first, last
	}
	if opts.From != nil {
		r.From = *opts.From
	}
	if opts.To != nil {
		r.To = *opts.To
	}

	f := filter.Filter{Items: items, From: opts.From, To: opts.To}
	selected := f.Apply(purchases)

	r.Purchases = len(selected)
	r.TotalSpent = summary.Total(selected)
	if len(selected) > 0 {
		r.AveragePurchase = r.TotalSpent.Div(decimal.NewFromInt(int64(len(selected))))
	}
	r.Categories = grocery.SpendByCategory(selected)

	for _, name := range items {
		rows := filter.Filter{Items: []string{name}}.Apply(selected)
		if len(rows) == 0 {
			continue
		}
		r.Items = append(r.Items, breakdown(name, rows))
		r.Insights = append(r.Insights, insights(name, rows)...)
	}
	return r
}

func breakdown(name string, rows []model.Purchase) ItemBreakdown {
	b := ItemBreakdown{
		ItemName:  name,
		Count:     len(rows),
		Min:       rows[0].Price,
		Max:       rows[0].Price,
		Total:     summary.Total(rows),
		Purchases: rows,
	}
	for _, p := range rows[1:] {
		if p.Price.LessThan(b.Min) {
			b.Min = p.Price
		}
		if p.Price.GreaterThan(b.Max) {
			b.Max = p.Price
		}
	}
	b.Avg = b.Total.Div(decimal.NewFromInt(int64(len(rows))))
	return b
}

// insights needs at least two purchases of an item to say anything.
func insights(name string, rows []model.Purchase) []Insight {
	if len(rows) < 2 {
		return nil
	}
	var out []Insight

	newest, oldest := chronoEnds(rows)
	if !oldest.Price.IsZero() {
		change := newest.Price.Sub(oldest.Price).Div(oldest.Price).Mul(decimal.NewFromInt(100))
		if change.Abs().GreaterThan(changeThreshold) {
			out = append(out, Insight{Kind: PriceChange, ItemName: name, Percent: change})
		}
	}

	if store, avg, ok := cheapestStore(rows); ok {
		out = append(out, Insight{Kind: BestStore, ItemName: name, Store: store, Price: avg})
	}
	return out
}

// chronoEnds returns the latest and earliest purchase by date, then id.
func chronoEnds(rows []model.Purchase) (newest, oldest model.Purchase) {
	newest, oldest = rows[0], rows[0]
	for _, p := range rows[1:] {
		if later(p, newest) {
			newest = p
		}
		if later(oldest, p) {
			oldest = p
		}
	}
	return newest, oldest
}

func later(a, b model.Purchase) bool {
	if !a.PurchaseDate.Equal(b.PurchaseDate) {
		return a.PurchaseDate.After(b.PurchaseDate)
	}
	return a.ID > b.ID
}

// cheapestStore returns the store with the lowest mean price. Purchases
// without a store are ignored; ties go to the alphabetically first store.
func cheapestStore(rows []model.Purchase) (string, decimal.Decimal, bool) {
	type acc struct {
		sum decimal.Decimal
		n   int64
	}
	byStore := make(map[string]*acc)
	for _, p := range rows {
		if p.Store == "" {
			continue
		}
		a, ok := byStore[p.Store]
		if !ok {
			a = &acc{}
			byStore[p.Store] = a
		}
		a.sum = a.sum.Add(p.Price)
		a.n++
	}
	if len(byStore) == 0 {
		return "", decimal.Zero, false
	}

	stores := make([]string, 0, len(byStore))
	for s := range byStore {
		stores = append(stores, s)
	}
	sort.Strings(stores)

	best := stores[0]
	bestAvg := byStore[best].sum.Div(decimal.NewFromInt(byStore[best].n))
	for _, s := range stores[1:] {
		avg := byStore[s].sum.Div(decimal.NewFromInt(byStore[s].n))
		if avg.LessThan(bestAvg) {
			best, bestAvg = s, avg
		}
	}
	return best, bestAvg, true
}
