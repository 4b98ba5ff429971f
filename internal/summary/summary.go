// Package summary derives per-item statistics from stored purchases.
// Nothing here is persisted; every call recomputes from the store.
package summary

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/grocerytracker/internal/model"
)

// Source is the read side of the purchase store.
type Source interface {
	GetAll(ctx context.Context) ([]model.Purchase, error)
	GetByName(ctx context.Context, name string) ([]model.Purchase, error)
}

type Service struct {
	src Source
}

func NewService(src Source) *Service {
	return &Service{src: src}
}

// PriceSummary returns one entry per exact item name, most recently
// purchased first. Store errors are returned unchanged.
func (s *Service) PriceSummary(ctx context.Context) ([]model.ItemSummary, error) {
	purchases, err := s.src.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(purchases), nil
}

// ItemHistory returns the purchases of one item matched case-insensitively.
func (s *Service) ItemHistory(ctx context.Context, name string) ([]model.Purchase, error) {
	return s.src.GetByName(ctx, name)
}

// Overview returns whole-store totals alongside the per-item summary.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	purchases, err := s.src.GetAll(ctx)
	if err != nil {
		return Overview{}, err
	}
	return NewOverview(purchases, Summarize(purchases)), nil
}

type group struct {
	count    int
	min, max decimal.Decimal
	sum      decimal.Decimal
	unitSum  decimal.Decimal
	unitN    int
	last     time.Time
}

// Summarize groups purchases by item name. Grouping is case-sensitive:
// "Milk" and "MILK" are separate entries.
func Summarize(purchases []model.Purchase) []model.ItemSummary {
	groups := make(map[string]*group)
	for _, p := range purchases {
		g, ok := groups[p.ItemName]
		if !ok {
			g = &group{min: p.Price, max: p.Price, last: p.PurchaseDate}
			groups[p.ItemName] = g
		}
		g.count++
		g.sum = g.sum.Add(p.Price)
		if p.Price.LessThan(g.min) {
			g.min = p.Price
		}
		if p.Price.GreaterThan(g.max) {
			g.max = p.Price
		}
		if p.PurchaseDate.After(g.last) {
			g.last = p.PurchaseDate
		}
		// Absent or zero quantities carry no per-unit price.
		if p.Quantity != nil && !p.Quantity.IsZero() {
			g.unitSum = g.unitSum.Add(p.Price.Div(*p.Quantity))
			g.unitN++
		}
	}

	summaries := make([]model.ItemSummary, 0, len(groups))
	for name, g := range groups {
		s := model.ItemSummary{
			ItemName:      name,
			PurchaseCount: g.count,
			MinPrice:      g.min,
			MaxPrice:      g.max,
			AvgPrice:      g.sum.Div(decimal.NewFromInt(int64(g.count))),
			LastPurchase:  g.last,
		}
		if g.unitN > 0 {
			avg := g.unitSum.Div(decimal.NewFromInt(int64(g.unitN))).Round(4)
			s.AvgPricePerUnit = &avg
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.LastPurchase.Equal(b.LastPurchase) {
			return a.LastPurchase.After(b.LastPurchase)
		}
		return a.ItemName < b.ItemName
	})
	return summaries
}
