package summary

import (
	"github.com/shopspring/decimal"

	"github.com/dukerupert/grocerytracker/internal/model"
)

// Overview holds whole-collection totals.
type Overview struct {
	TotalPurchases int             `json:"total_purchases"`
	UniqueItems    int             `json:"unique_items"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	AveragePrice   decimal.Decimal `json:"average_price"`
}

func NewOverview(purchases []model.Purchase, summaries []model.ItemSummary) Overview {
	o := Overview{
		TotalPurchases: len(purchases),
		UniqueItems:    len(summaries),
		TotalSpent:     Total(purchases),
	}
	if len(purchases) > 0 {
		o.AveragePrice = o.TotalSpent.Div(decimal.NewFromInt(int64(len(purchases))))
	}
	return o
}

// Total sums the prices of purchases.
func Total(purchases []model.Purchase) decimal.Decimal {
	total := decimal.Zero
	for _, p := range purchases {
		total = total.Add(p.Price)
	}
	return total
}
